package run

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/BaSui01/crewflow/agent"
	"github.com/BaSui01/crewflow/internal/metrics"
	"github.com/BaSui01/crewflow/types"
)

// SchedulerConfig configures the round scheduler.
type SchedulerConfig struct {
	// MaxRounds caps the number of scheduling passes.
	MaxRounds int `json:"max_rounds" yaml:"max_rounds"`
	// Concurrency bounds how many ready tasks run at once within a round.
	// Ready tasks share no dependency edge, so concurrent dispatch is safe.
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// DefaultSchedulerConfig returns the defaults from the delegation contract.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{MaxRounds: 10, Concurrency: 4}
}

// RoundScheduler executes a flat task list respecting dependencies. Each
// round it computes the ready set (pending tasks whose dependencies are all
// complete), dispatches it concurrently, and repeats until the ready set
// drains or the round cap is hit.
//
// A failed task is never retried here and never enters the completed set, so
// its dependents stay blocked. Per-call retries live in the Recoverer, which
// this scheduler treats as a single atomic attempt.
type RoundScheduler struct {
	cfg       SchedulerConfig
	recoverer *Recoverer
	roster    *agent.Roster
	board     *agent.Board
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewRoundScheduler creates a scheduler. board and collector may be nil.
func NewRoundScheduler(cfg SchedulerConfig, recoverer *Recoverer, roster *agent.Roster, board *agent.Board, collector *metrics.Collector, logger *zap.Logger) *RoundScheduler {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoundScheduler{
		cfg:       cfg,
		recoverer: recoverer,
		roster:    roster,
		board:     board,
		collector: collector,
		logger:    logger.With(zap.String("component", "round_scheduler")),
	}
}

// Execute runs the task list to a terminal state and returns the per-agent
// result mapping. When one agent completes several tasks its results are
// joined in completion order.
func (s *RoundScheduler) Execute(ctx context.Context, tasks []*types.Task) map[string]string {
	byID := make(map[string]*types.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	var mu sync.Mutex
	completed := make(map[string]bool, len(tasks))
	results := make(map[string]string)

	// Unknown agents fail immediately; the plan continues without them.
	for _, t := range tasks {
		if !s.roster.Has(t.Agent) {
			s.logger.Warn("task names unknown agent",
				zap.String("task_id", t.ID),
				zap.String("agent", t.Agent),
			)
			_ = t.MarkError(types.NewError(types.ErrUnknownAgent, "no such agent: "+t.Agent).Error())
			s.observe(t)
		}
	}

	sem := semaphore.NewWeighted(int64(s.cfg.Concurrency))
	capHit := true
	cancelled := false

	for round := 1; round <= s.cfg.MaxRounds; round++ {
		ready := s.readySet(tasks, completed)
		if len(ready) == 0 {
			capHit = false
			break
		}

		s.logger.Info("scheduling round",
			zap.Int("round", round),
			zap.Int("ready", len(ready)),
		)
		if s.collector != nil {
			s.collector.IncRound()
		}

		var wg sync.WaitGroup
		for _, t := range ready {
			if err := t.MarkRunning(); err != nil {
				continue
			}
			if s.board != nil {
				s.board.SetBusy(t.Agent, t.ID)
			}

			if err := sem.Acquire(ctx, 1); err != nil {
				// Context cancelled mid-round; fail the task and stop.
				_ = t.MarkError(err.Error())
				s.observe(t)
				break
			}
			wg.Add(1)
			go func(t *types.Task) {
				defer wg.Done()
				defer sem.Release(1)
				s.runTask(ctx, t, &mu, completed, results)
			}(t)
		}
		wg.Wait()

		if ctx.Err() != nil {
			capHit = false
			cancelled = true
			break
		}
	}

	s.markBlocked(tasks, byID, capHit, cancelled)

	for _, t := range tasks {
		if t.Status == types.TaskBlocked {
			s.observe(t)
		}
	}

	return results
}

// runTask executes one ready task through the recoverer and records the
// terminal transition under the shared mutex.
func (s *RoundScheduler) runTask(ctx context.Context, t *types.Task, mu *sync.Mutex, completed map[string]bool, results map[string]string) {
	specialty := ""
	if p, ok := s.roster.Lookup(t.Agent); ok {
		specialty = p.Specialty
	}

	rec := s.recoverer.Execute(ctx, t.ID, t.Agent, t.Description, specialty)

	mu.Lock()
	defer mu.Unlock()

	if rec.Success {
		_ = t.MarkComplete(rec.Result)
		completed[t.ID] = true
		if prev, ok := results[rec.AgentUsed]; ok {
			results[rec.AgentUsed] = prev + "\n\n" + rec.Result
		} else {
			results[rec.AgentUsed] = rec.Result
		}
	} else {
		_ = t.MarkError(rec.Err.Error())
	}
	s.observe(t)

	if s.board != nil {
		s.board.SetIdle(t.Agent, rec.Success, t.Duration())
	}

	s.logger.Debug("task finished",
		zap.String("task_id", t.ID),
		zap.String("agent", t.Agent),
		zap.String("agent_used", rec.AgentUsed),
		zap.Int("attempts", rec.Attempts),
		zap.String("status", string(t.Status)),
	)
}

// readySet returns pending tasks whose dependencies are all complete.
func (s *RoundScheduler) readySet(tasks []*types.Task, completed map[string]bool) []*types.Task {
	var ready []*types.Task
	for _, t := range tasks {
		if t.Status != types.TaskPending {
			continue
		}
		ok := true
		for _, dep := range t.Dependencies {
			if !completed[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, t)
		}
	}
	return ready
}

// markBlocked assigns an explicit terminal status and reason to every task
// still pending when the round loop exits, so a drained run and a stuck run
// are distinguishable.
func (s *RoundScheduler) markBlocked(tasks []*types.Task, byID map[string]*types.Task, capHit, cancelled bool) {
	// Missing dependencies first: these can never become ready.
	for _, t := range tasks {
		if t.Status != types.TaskPending {
			continue
		}
		for _, dep := range t.Dependencies {
			if _, exists := byID[dep]; !exists {
				_ = t.MarkBlocked(types.BlockDepsMissing)
				break
			}
		}
	}

	// Failure propagation to a fixpoint: a dependency in error or blocked
	// dooms its dependents transitively.
	for changed := true; changed; {
		changed = false
		for _, t := range tasks {
			if t.Status != types.TaskPending {
				continue
			}
			for _, dep := range t.Dependencies {
				d := byID[dep]
				if d.Status == types.TaskError || d.Status == types.TaskBlocked {
					_ = t.MarkBlocked(types.BlockDepsFailed)
					changed = true
					break
				}
			}
		}
	}

	// Whatever is left was cancelled, ran out of rounds, or sits on a cycle.
	reason := types.BlockDepsCycle
	switch {
	case cancelled:
		reason = types.BlockCancelled
	case capHit:
		reason = types.BlockRoundCap
	}
	for _, t := range tasks {
		if t.Status == types.TaskPending {
			_ = t.MarkBlocked(reason)
		}
	}
}

func (s *RoundScheduler) observe(t *types.Task) {
	if s.collector != nil {
		s.collector.ObserveTask(t.Agent, string(t.Status), t.Duration())
	}
}
