package tasktree

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/crewflow/agent"
	"github.com/BaSui01/crewflow/run"
)

// Runner drives a tree to a terminal state: it repeatedly takes the ready
// set and dispatches it in parallel, feeding outcomes back into the tree,
// until nothing further can become ready. Failed nodes keep their dependents
// unready permanently.
type Runner struct {
	recoverer   *run.Recoverer
	roster      *agent.Roster
	concurrency int
	logger      *zap.Logger
}

// NewRunner creates a runner. Concurrency below one defaults to four.
func NewRunner(recoverer *run.Recoverer, roster *agent.Roster, concurrency int, logger *zap.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		recoverer:   recoverer,
		roster:      roster,
		concurrency: concurrency,
		logger:      logger.With(zap.String("component", "tree_runner")),
	}
}

// Run executes the tree. It returns the context error on cancellation and
// nil otherwise; per-node failures are recorded on the nodes themselves.
func (r *Runner) Run(ctx context.Context, tree *Tree) error {
	for round := 1; ; round++ {
		ready := tree.GetReadyTasks()
		if len(ready) == 0 {
			return ctx.Err()
		}

		r.logger.Info("tree round",
			zap.Int("round", round),
			zap.Int("ready", len(ready)),
			zap.Float64("progress", tree.Progress()),
		)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.concurrency)
		for _, n := range ready {
			if err := tree.MarkRunning(n.ID); err != nil {
				continue
			}
			g.Go(func() error {
				r.runNode(gctx, tree, n)
				return nil
			})
		}
		_ = g.Wait()

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (r *Runner) runNode(ctx context.Context, tree *Tree, n *Node) {
	specialty := ""
	if p, ok := r.roster.Lookup(n.Agent); ok {
		specialty = p.Specialty
	}

	rec := r.recoverer.Execute(ctx, n.ID, n.Agent, n.Description, specialty)
	if rec.Success {
		_ = tree.MarkComplete(n.ID, rec.Result)
	} else {
		_ = tree.MarkFailed(n.ID, rec.Err.Error())
	}

	r.logger.Debug("tree node finished",
		zap.String("node_id", n.ID),
		zap.String("agent", n.Agent),
		zap.String("agent_used", rec.AgentUsed),
		zap.Bool("success", rec.Success),
	)
}
