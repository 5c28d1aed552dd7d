package agent

import "context"

// Executor is the capability consumed by the orchestration core: given an
// agent name and a text prompt, return the agent's text response. Calls may
// block for seconds to minutes; the context carries the caller's deadline.
// Whether the backing is a hosted LLM API, a local model server, or a stub
// is invisible to the core.
type Executor interface {
	Execute(ctx context.Context, agentName, prompt string) (string, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, agentName, prompt string) (string, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, agentName, prompt string) (string, error) {
	return f(ctx, agentName, prompt)
}
