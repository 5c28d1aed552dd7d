package collaboration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/crewflow/agent"
	"github.com/BaSui01/crewflow/plan"
	"github.com/BaSui01/crewflow/run"
	"github.com/BaSui01/crewflow/types"
)

const planJSON = `{"tasks": [
	{"task_id": "1", "agent": "felix", "description": "write the login endpoint", "dependencies": []},
	{"task_id": "2", "agent": "sol", "description": "write tests for the login endpoint", "dependencies": ["1"]}
]}`

func orchestratorRoster(t *testing.T) *agent.Roster {
	t.Helper()
	r, err := agent.NewRoster([]agent.Persona{
		{Name: "atlas", Role: "overseer", Specialty: "planning"},
		{Name: "felix", Role: "backend engineer", Specialty: "backend"},
		{Name: "sol", Role: "test engineer", Specialty: "testing"},
	}, map[string][]string{
		"backend": {"sol"},
	})
	require.NoError(t, err)
	return r
}

// scriptedExecutor routes calls by agent name and prompt content.
type scriptedExecutor struct {
	fn func(agentName, prompt string) (string, error)
}

func (s *scriptedExecutor) Execute(ctx context.Context, agentName, prompt string) (string, error) {
	return s.fn(agentName, prompt)
}

func newOrchestrator(t *testing.T, exec agent.Executor) *Orchestrator {
	t.Helper()
	roster := orchestratorRoster(t)
	rc := run.RecoveryConfig{MaxRetries: 1, BaseDelay: time.Millisecond, CallTimeout: time.Second}
	timeout := run.NewTimeoutExecutor(run.TimeoutConfig{PollInterval: 5 * time.Millisecond}, nil)
	recoverer := run.NewRecoverer(rc, roster, exec, timeout, nil)
	board := agent.NewBoard(roster)
	scheduler := run.NewRoundScheduler(run.SchedulerConfig{}, recoverer, roster, board, nil, nil)
	return New(Config{}, roster, plan.NewParser(nil), recoverer, scheduler, board, nil)
}

func TestHandleRequestFullPlan(t *testing.T) {
	t.Parallel()

	exec := &scriptedExecutor{fn: func(agentName, prompt string) (string, error) {
		switch {
		case agentName == "atlas" && strings.Contains(prompt, "Decompose"):
			return planJSON, nil
		case agentName == "atlas" && strings.Contains(prompt, "Synthesize"):
			return "login endpoint shipped with tests", nil
		case agentName == "felix":
			return "endpoint implemented", nil
		case agentName == "sol":
			return "tests passing", nil
		}
		return "", errors.New("unexpected call: " + agentName)
	}}

	o := newOrchestrator(t, exec)
	outcome, err := o.HandleRequest(context.Background(), "build a login feature")
	require.NoError(t, err)

	assert.Equal(t, planJSON, outcome.Plan)
	assert.Equal(t, "direct_json", outcome.Strategy)
	assert.Equal(t, "login endpoint shipped with tests", outcome.Summary)
	assert.Equal(t, "endpoint implemented", outcome.Results["felix"])
	assert.Equal(t, "tests passing", outcome.Results["sol"])
	assert.NotEmpty(t, outcome.RunID)

	require.Len(t, outcome.Tasks, 2)
	for _, snap := range outcome.Tasks {
		assert.Equal(t, types.TaskComplete, snap.Status)
	}
}

func TestHandleRequestDirectPath(t *testing.T) {
	t.Parallel()

	var directAgent string
	exec := &scriptedExecutor{fn: func(agentName, prompt string) (string, error) {
		if agentName == "atlas" && strings.Contains(prompt, "Decompose") {
			return `{"tasks": []}`, nil
		}
		directAgent = agentName
		return "all tests green", nil
	}}

	o := newOrchestrator(t, exec)
	outcome, err := o.HandleRequest(context.Background(), "please run a regression test pass")
	require.NoError(t, err)

	assert.Equal(t, "sol", directAgent, "testing keywords route to the test engineer")
	assert.Equal(t, "all tests green", outcome.Summary)
	assert.Equal(t, "all tests green", outcome.Results["sol"])
	assert.Empty(t, outcome.Tasks)
}

func TestHandleRequestPlanningFailure(t *testing.T) {
	t.Parallel()

	exec := &scriptedExecutor{fn: func(agentName, prompt string) (string, error) {
		if agentName == "atlas" && strings.Contains(prompt, "Decompose") {
			return "", errors.New("model offline")
		}
		return "handled anyway", nil
	}}

	o := newOrchestrator(t, exec)
	outcome, err := o.HandleRequest(context.Background(), "fix the api server bug")
	require.NoError(t, err, "planning failure degrades, never aborts")
	assert.Equal(t, "handled anyway", outcome.Summary)
	assert.Empty(t, outcome.Plan)
}

func TestHandleRequestAggregationFallback(t *testing.T) {
	t.Parallel()

	exec := &scriptedExecutor{fn: func(agentName, prompt string) (string, error) {
		switch {
		case agentName == "atlas" && strings.Contains(prompt, "Decompose"):
			return planJSON, nil
		case agentName == "atlas" && strings.Contains(prompt, "Synthesize"):
			return "", errors.New("aggregation model down")
		case agentName == "felix":
			return "endpoint done", nil
		case agentName == "sol":
			return "tests done", nil
		}
		return "", errors.New("unexpected call")
	}}

	o := newOrchestrator(t, exec)
	outcome, err := o.HandleRequest(context.Background(), "build a login feature")
	require.NoError(t, err)

	// Concatenation fallback, agent-name order.
	assert.Equal(t, "[felix]\nendpoint done\n\n[sol]\ntests done", outcome.Summary)
}

func TestHandleRequestPartialFailure(t *testing.T) {
	t.Parallel()

	exec := &scriptedExecutor{fn: func(agentName, prompt string) (string, error) {
		switch {
		case agentName == "atlas" && strings.Contains(prompt, "Decompose"):
			return planJSON, nil
		case agentName == "atlas" && strings.Contains(prompt, "Synthesize"):
			return "partial delivery", nil
		case agentName == "felix":
			return "", errors.New("felix is stuck")
		case agentName == "sol":
			// Fallback target for felix's backend specialty.
			if strings.Contains(prompt, "login endpoint") && !strings.Contains(prompt, "tests") {
				return "", errors.New("sol cannot do backend either")
			}
			return "tests done", nil
		}
		return "", errors.New("unexpected call")
	}}

	o := newOrchestrator(t, exec)
	outcome, err := o.HandleRequest(context.Background(), "build a login feature")
	require.NoError(t, err)

	byID := map[string]types.TaskSnapshot{}
	for _, snap := range outcome.Tasks {
		byID[snap.ID] = snap
	}
	assert.Equal(t, types.TaskError, byID["1"].Status)
	assert.Equal(t, types.TaskBlocked, byID["2"].Status)
	assert.Equal(t, types.BlockDepsFailed, byID["2"].BlockReason)
}

func TestHandleRequestLineHeuristicPlan(t *testing.T) {
	t.Parallel()

	planText := "Here is how I would split this up.\n\n" +
		"AGENTS NEEDED\n" +
		"- felix: implement the signup endpoint\n" +
		"- sol: cover the signup endpoint with tests\n"

	exec := &scriptedExecutor{fn: func(agentName, prompt string) (string, error) {
		switch {
		case agentName == "atlas" && strings.Contains(prompt, "Decompose"):
			return planText, nil
		case agentName == "atlas" && strings.Contains(prompt, "Synthesize"):
			return "signup shipped", nil
		case agentName == "felix":
			return "signup endpoint done", nil
		case agentName == "sol":
			return "signup tests green", nil
		}
		return "", errors.New("unexpected call: " + agentName)
	}}

	o := newOrchestrator(t, exec)
	outcome, err := o.HandleRequest(context.Background(), "build a signup feature")
	require.NoError(t, err)

	assert.Equal(t, "line_heuristic", outcome.Strategy)
	assert.Equal(t, "signup endpoint done", outcome.Results["felix"])
	assert.Equal(t, "signup tests green", outcome.Results["sol"])
	assert.Equal(t, "signup shipped", outcome.Summary)
	require.Len(t, outcome.Tasks, 2)
}

func TestHandleRequestEmpty(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, &scriptedExecutor{fn: func(string, string) (string, error) {
		return "", errors.New("should not be called")
	}})
	_, err := o.HandleRequest(context.Background(), "   ")
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidPlan))
}
