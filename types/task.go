package types

import (
	"fmt"
	"time"
)

// TaskStatus represents the lifecycle state of a scheduling unit.
// Transitions are monotonic: a task never leaves a terminal state.
type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskRunning  TaskStatus = "running"
	TaskComplete TaskStatus = "complete"
	TaskError    TaskStatus = "error"
	// TaskBlocked is assigned to any task still pending when the scheduler
	// drains, so "stuck" is distinguishable from "done".
	TaskBlocked TaskStatus = "blocked"
)

// IsTerminal reports whether the status admits no further transitions.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskComplete || s == TaskError || s == TaskBlocked
}

// BlockReason records why a task was left unrunnable when scheduling ended.
type BlockReason string

const (
	// BlockDepsFailed means a dependency reached a terminal failure state.
	BlockDepsFailed BlockReason = "deps_failed"
	// BlockDepsMissing means a dependency id does not exist in the plan.
	BlockDepsMissing BlockReason = "deps_missing"
	// BlockRoundCap means the scheduler hit its round cap before the task
	// became ready.
	BlockRoundCap BlockReason = "round_cap"
	// BlockCancelled means scheduling stopped because the caller's context
	// was cancelled before the task could become ready.
	BlockCancelled BlockReason = "cancelled"
	// BlockDepsCycle means the task sits on a dependency cycle: the ready
	// set drained while its dependencies were neither failed nor missing.
	BlockDepsCycle BlockReason = "deps_cycle"
)

// Task is the flat scheduling unit produced by the plan parser and consumed
// by the round scheduler. Structure is immutable after creation; only the
// status and outcome fields change.
type Task struct {
	ID           string      `json:"task_id"`
	Agent        string      `json:"agent"`
	Description  string      `json:"description"`
	Dependencies []string    `json:"dependencies"`
	Status       TaskStatus  `json:"status"`
	Result       string      `json:"result,omitempty"`
	Err          string      `json:"error,omitempty"`
	BlockReason  BlockReason `json:"block_reason,omitempty"`
	StartTime    time.Time   `json:"start_time,omitzero"`
	EndTime      time.Time   `json:"end_time,omitzero"`
}

// NewTask creates a pending task.
func NewTask(id, agent, description string, deps []string) *Task {
	return &Task{
		ID:           id,
		Agent:        agent,
		Description:  description,
		Dependencies: deps,
		Status:       TaskPending,
	}
}

// validTransitions encodes the forward-only status machine.
var validTransitions = map[TaskStatus][]TaskStatus{
	TaskPending: {TaskRunning, TaskError, TaskBlocked},
	TaskRunning: {TaskComplete, TaskError},
}

// Transition moves the task to the target status, rejecting anything that
// would resurrect a terminal task or skip backwards.
func (t *Task) Transition(to TaskStatus) error {
	for _, allowed := range validTransitions[t.Status] {
		if allowed == to {
			t.Status = to
			return nil
		}
	}
	return NewError(ErrBadTransition,
		fmt.Sprintf("task %s: cannot transition %s -> %s", t.ID, t.Status, to))
}

// MarkRunning records the dispatch time and moves to running.
func (t *Task) MarkRunning() error {
	if err := t.Transition(TaskRunning); err != nil {
		return err
	}
	t.StartTime = time.Now()
	return nil
}

// MarkComplete records the result. Result and Err are mutually exclusive.
func (t *Task) MarkComplete(result string) error {
	if err := t.Transition(TaskComplete); err != nil {
		return err
	}
	t.Result = result
	t.Err = ""
	t.EndTime = time.Now()
	return nil
}

// MarkError records the terminal failure message verbatim.
func (t *Task) MarkError(msg string) error {
	if err := t.Transition(TaskError); err != nil {
		return err
	}
	t.Err = msg
	t.Result = ""
	t.EndTime = time.Now()
	return nil
}

// MarkBlocked terminates a never-ready task with a recorded reason.
func (t *Task) MarkBlocked(reason BlockReason) error {
	if err := t.Transition(TaskBlocked); err != nil {
		return err
	}
	t.BlockReason = reason
	t.EndTime = time.Now()
	return nil
}

// Duration returns wall-clock execution time, zero until terminal.
func (t *Task) Duration() time.Duration {
	if t.StartTime.IsZero() || t.EndTime.IsZero() {
		return 0
	}
	return t.EndTime.Sub(t.StartTime)
}

// Snapshot returns a value copy safe to hand to a presentation layer.
func (t *Task) Snapshot() TaskSnapshot {
	deps := make([]string, len(t.Dependencies))
	copy(deps, t.Dependencies)
	return TaskSnapshot{
		ID:           t.ID,
		Agent:        t.Agent,
		Description:  t.Description,
		Dependencies: deps,
		Status:       t.Status,
		Result:       t.Result,
		Err:          t.Err,
		BlockReason:  t.BlockReason,
		Duration:     t.Duration(),
	}
}

// TaskSnapshot is the terminal state of a task as exposed in an Outcome.
type TaskSnapshot struct {
	ID           string        `json:"task_id"`
	Agent        string        `json:"agent"`
	Description  string        `json:"description"`
	Dependencies []string      `json:"dependencies,omitempty"`
	Status       TaskStatus    `json:"status"`
	Result       string        `json:"result,omitempty"`
	Err          string        `json:"error,omitempty"`
	BlockReason  BlockReason   `json:"block_reason,omitempty"`
	Duration     time.Duration `json:"duration"`
}
