package run

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/crewflow/agent"
	"github.com/BaSui01/crewflow/types"
)

// orderExecutor records the order in which task descriptions are executed.
type orderExecutor struct {
	mu    sync.Mutex
	order []string
	fail  map[string]bool
}

func (e *orderExecutor) Execute(ctx context.Context, agentName, prompt string) (string, error) {
	e.mu.Lock()
	e.order = append(e.order, prompt)
	e.mu.Unlock()
	if e.fail[prompt] {
		return "", errors.New("simulated failure")
	}
	return "ok: " + prompt, nil
}

func (e *orderExecutor) indexOf(prompt string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, p := range e.order {
		if p == prompt {
			return i
		}
	}
	return -1
}

func newTestScheduler(t *testing.T, exec agent.Executor, cfg SchedulerConfig) *RoundScheduler {
	t.Helper()
	roster := testRoster(t)
	rc := fastRecoveryConfig()
	rc.MaxRetries = 1
	recoverer := NewRecoverer(rc, roster, exec, fastTimeout(), nil)
	return NewRoundScheduler(cfg, recoverer, roster, agent.NewBoard(roster), nil, nil)
}

func TestSchedulerRespectsDependencies(t *testing.T) {
	t.Parallel()

	exec := &orderExecutor{}
	s := newTestScheduler(t, exec, SchedulerConfig{})

	tasks := []*types.Task{
		types.NewTask("3", "sol", "write tests", []string{"2"}),
		types.NewTask("1", "felix", "design schema", nil),
		types.NewTask("2", "nova", "implement api", []string{"1"}),
	}

	results := s.Execute(context.Background(), tasks)

	for _, task := range tasks {
		assert.Equal(t, types.TaskComplete, task.Status, "task %s", task.ID)
	}
	assert.Less(t, exec.indexOf("design schema"), exec.indexOf("implement api"))
	assert.Less(t, exec.indexOf("implement api"), exec.indexOf("write tests"))
	assert.Equal(t, "ok: design schema", results["felix"])
	assert.Equal(t, "ok: write tests", results["sol"])
}

func TestSchedulerDanglingDependency(t *testing.T) {
	t.Parallel()

	exec := &orderExecutor{}
	s := newTestScheduler(t, exec, SchedulerConfig{})

	tasks := []*types.Task{
		types.NewTask("1", "felix", "needs a ghost", []string{"99"}),
		types.NewTask("2", "sol", "independent", nil),
	}

	results := s.Execute(context.Background(), tasks)

	assert.Equal(t, types.TaskComplete, tasks[1].Status)
	assert.Equal(t, types.TaskBlocked, tasks[0].Status)
	assert.Equal(t, types.BlockDepsMissing, tasks[0].BlockReason)
	assert.Equal(t, -1, exec.indexOf("needs a ghost"))
	assert.Equal(t, "ok: independent", results["sol"])
}

func TestSchedulerFailureBlocksDependents(t *testing.T) {
	t.Parallel()

	exec := &orderExecutor{fail: map[string]bool{"doomed": true}}
	s := newTestScheduler(t, exec, SchedulerConfig{})

	tasks := []*types.Task{
		types.NewTask("1", "sol", "doomed", nil),
		types.NewTask("2", "sol", "child", []string{"1"}),
		types.NewTask("3", "sol", "grandchild", []string{"2"}),
		types.NewTask("4", "sol", "bystander", nil),
	}

	results := s.Execute(context.Background(), tasks)

	assert.Equal(t, types.TaskError, tasks[0].Status)
	assert.Equal(t, types.TaskBlocked, tasks[1].Status)
	assert.Equal(t, types.BlockDepsFailed, tasks[1].BlockReason)
	assert.Equal(t, types.TaskBlocked, tasks[2].Status)
	assert.Equal(t, types.BlockDepsFailed, tasks[2].BlockReason)
	assert.Equal(t, types.TaskComplete, tasks[3].Status)

	// A failed task never contributes a result.
	assert.Equal(t, "ok: bystander", results["sol"])
}

func TestSchedulerCycleDetection(t *testing.T) {
	t.Parallel()

	exec := &orderExecutor{}
	s := newTestScheduler(t, exec, SchedulerConfig{})

	tasks := []*types.Task{
		types.NewTask("1", "felix", "a", []string{"2"}),
		types.NewTask("2", "nova", "b", []string{"1"}),
	}

	results := s.Execute(context.Background(), tasks)

	assert.Empty(t, results)
	for _, task := range tasks {
		assert.Equal(t, types.TaskBlocked, task.Status)
		assert.Equal(t, types.BlockDepsCycle, task.BlockReason)
	}
	assert.Empty(t, exec.order)
}

func TestSchedulerRoundCap(t *testing.T) {
	t.Parallel()

	exec := &orderExecutor{}
	s := newTestScheduler(t, exec, SchedulerConfig{MaxRounds: 2})

	// A chain of four needs four rounds; with a cap of two the tail is
	// cut off with an explicit reason.
	tasks := []*types.Task{
		types.NewTask("1", "felix", "one", nil),
		types.NewTask("2", "felix", "two", []string{"1"}),
		types.NewTask("3", "felix", "three", []string{"2"}),
		types.NewTask("4", "felix", "four", []string{"3"}),
	}

	s.Execute(context.Background(), tasks)

	assert.Equal(t, types.TaskComplete, tasks[0].Status)
	assert.Equal(t, types.TaskComplete, tasks[1].Status)
	assert.Equal(t, types.TaskBlocked, tasks[2].Status)
	assert.Equal(t, types.BlockRoundCap, tasks[2].BlockReason)
	assert.Equal(t, types.TaskBlocked, tasks[3].Status)
}

// cancellingExecutor cancels the run after finishing its first call.
type cancellingExecutor struct {
	cancel context.CancelFunc
}

func (e *cancellingExecutor) Execute(ctx context.Context, agentName, prompt string) (string, error) {
	e.cancel()
	return "ok: " + prompt, nil
}

func TestSchedulerCancellationBlocksRemaining(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exec := &cancellingExecutor{cancel: cancel}
	s := newTestScheduler(t, exec, SchedulerConfig{})

	// Task 1 completes but cancels the context; task 2 would be ready in
	// the next round and must be labeled cancelled, not cycled.
	tasks := []*types.Task{
		types.NewTask("1", "felix", "one", nil),
		types.NewTask("2", "felix", "two", []string{"1"}),
	}

	s.Execute(ctx, tasks)

	assert.Equal(t, types.TaskComplete, tasks[0].Status)
	assert.Equal(t, types.TaskBlocked, tasks[1].Status)
	assert.Equal(t, types.BlockCancelled, tasks[1].BlockReason)
}

func TestSchedulerUnknownAgent(t *testing.T) {
	t.Parallel()

	exec := &orderExecutor{}
	s := newTestScheduler(t, exec, SchedulerConfig{})

	tasks := []*types.Task{
		types.NewTask("1", "zorblatt", "nonsense", nil),
		types.NewTask("2", "sol", "real work", nil),
	}

	results := s.Execute(context.Background(), tasks)

	assert.Equal(t, types.TaskError, tasks[0].Status)
	assert.Contains(t, tasks[0].Err, "no such agent")
	assert.Equal(t, types.TaskComplete, tasks[1].Status)
	assert.Equal(t, "ok: real work", results["sol"])
	assert.Equal(t, -1, exec.indexOf("nonsense"))
}

func TestSchedulerRepeatedAgentJoinsResults(t *testing.T) {
	t.Parallel()

	exec := &orderExecutor{}
	s := newTestScheduler(t, exec, SchedulerConfig{Concurrency: 1})

	tasks := []*types.Task{
		types.NewTask("1", "felix", "first", nil),
		types.NewTask("2", "felix", "second", []string{"1"}),
	}

	results := s.Execute(context.Background(), tasks)

	require.Contains(t, results, "felix")
	assert.Equal(t, "ok: first\n\nok: second", results["felix"])
}

func TestSchedulerFallbackResultKeyedByActualAgent(t *testing.T) {
	t.Parallel()

	// felix always fails; the backend fallback chain reaches nova.
	failFelix := agent.ExecutorFunc(func(ctx context.Context, agentName, prompt string) (string, error) {
		if agentName == "felix" {
			return "", errors.New("felix offline")
		}
		return "handled by " + agentName, nil
	})
	s := newTestScheduler(t, failFelix, SchedulerConfig{})

	tasks := []*types.Task{
		types.NewTask("1", "felix", "backend work", nil),
	}

	results := s.Execute(context.Background(), tasks)

	assert.Equal(t, types.TaskComplete, tasks[0].Status)
	assert.Equal(t, "handled by nova", results["nova"])
	assert.NotContains(t, results, "felix")
}

func TestSchedulerParallelWithinRound(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	inFlight, peak := 0, 0
	exec := agent.ExecutorFunc(func(ctx context.Context, agentName, prompt string) (string, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(30 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return "ok", nil
	})
	s := newTestScheduler(t, exec, SchedulerConfig{Concurrency: 4})

	tasks := []*types.Task{
		types.NewTask("1", "felix", "a", nil),
		types.NewTask("2", "nova", "b", nil),
		types.NewTask("3", "sol", "c", nil),
	}

	s.Execute(context.Background(), tasks)

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, peak, 1, "independent tasks should overlap")
}
