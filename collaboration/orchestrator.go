package collaboration

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/crewflow/agent"
	"github.com/BaSui01/crewflow/internal/metrics"
	"github.com/BaSui01/crewflow/plan"
	"github.com/BaSui01/crewflow/run"
	"github.com/BaSui01/crewflow/types"
)

// Outcome is the structured result of one orchestrated request.
type Outcome struct {
	// RunID identifies this orchestration pass.
	RunID string `json:"run_id"`
	// Plan is the raw plan text the overseer produced.
	Plan string `json:"plan"`
	// Strategy names the parser strategy that extracted the tasks, empty
	// when no tasks were found.
	Strategy string `json:"strategy,omitempty"`
	// Tasks holds the terminal state of every planned task.
	Tasks []types.TaskSnapshot `json:"tasks"`
	// Results maps each agent that completed work to its output.
	Results map[string]string `json:"results"`
	// Summary is the overseer's synthesis of the results.
	Summary string `json:"summary"`
}

// Recorder persists finished outcomes. Implementations must not block the
// request path on failure; errors are logged and dropped.
type Recorder interface {
	SaveOutcome(ctx context.Context, request string, outcome *Outcome) error
}

// Config tunes the orchestrator.
type Config struct {
	// MaxSummaryTokens budgets the aggregation prompt. Zero disables
	// truncation.
	MaxSummaryTokens int `json:"max_summary_tokens" yaml:"max_summary_tokens"`
}

// Orchestrator wires the planner, parser, scheduler and summarizer into
// the HandleRequest façade. All collaborators are injected; there is no
// package-level state.
type Orchestrator struct {
	cfg       Config
	roster    *agent.Roster
	parser    *plan.Parser
	recoverer *run.Recoverer
	scheduler *run.RoundScheduler
	board     *agent.Board
	counter   plan.TokenCounter
	collector *metrics.Collector
	recorder  Recorder
	logger    *zap.Logger
}

// New creates an orchestrator. board, counter, collector and recorder are
// optional.
func New(cfg Config, roster *agent.Roster, parser *plan.Parser, recoverer *run.Recoverer,
	scheduler *run.RoundScheduler, board *agent.Board, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		roster:    roster,
		parser:    parser,
		recoverer: recoverer,
		scheduler: scheduler,
		board:     board,
		logger:    logger.With(zap.String("component", "orchestrator")),
	}
}

// SetTokenCounter attaches a token counter for summary prompt budgeting.
func (o *Orchestrator) SetTokenCounter(c plan.TokenCounter) { o.counter = c }

// SetCollector attaches a metrics collector.
func (o *Orchestrator) SetCollector(c *metrics.Collector) { o.collector = c }

// SetRecorder attaches an outcome recorder.
func (o *Orchestrator) SetRecorder(r Recorder) { o.recorder = r }

// AgentStatuses exposes the per-agent status board for dashboards.
func (o *Orchestrator) AgentStatuses() map[string]agent.Status {
	if o.board == nil {
		return nil
	}
	return o.board.Snapshot()
}

// HandleRequest runs one request end to end: plan, parse, schedule,
// summarize. It always returns a structured outcome; per-task failures are
// recorded in Tasks rather than aborting the run.
func (o *Orchestrator) HandleRequest(ctx context.Context, request string) (*Outcome, error) {
	if strings.TrimSpace(request) == "" {
		return nil, types.NewError(types.ErrInvalidPlan, "empty request")
	}

	runID := uuid.NewString()
	logger := o.logger.With(zap.String("run_id", runID))
	outcome := &Outcome{RunID: runID, Results: map[string]string{}}

	planText, err := o.producePlan(ctx, request)
	if err != nil {
		// Planning failed entirely; degrade to the direct path.
		logger.Warn("planning failed, handling directly", zap.Error(err))
	}
	outcome.Plan = planText

	tasks, strategy := o.parser.ParseWithStrategy(planText, o.roster.Known())
	outcome.Strategy = strategy
	if o.collector != nil {
		o.collector.IncParse(strategy)
	}

	if len(tasks) == 0 {
		// No decomposition: a valid outcome, not an error.
		o.handleDirect(ctx, request, outcome, logger)
	} else {
		logger.Info("executing plan",
			zap.Int("tasks", len(tasks)),
			zap.String("strategy", strategy),
		)
		outcome.Results = o.scheduler.Execute(ctx, tasks)
		for _, t := range tasks {
			outcome.Tasks = append(outcome.Tasks, t.Snapshot())
		}
		outcome.Summary = o.summarize(ctx, request, outcome.Results, logger)
	}

	if o.recorder != nil {
		if err := o.recorder.SaveOutcome(ctx, request, outcome); err != nil {
			logger.Warn("outcome not persisted", zap.Error(err))
		}
	}
	return outcome, ctx.Err()
}

// producePlan asks the overseer for a task breakdown.
func (o *Orchestrator) producePlan(ctx context.Context, request string) (string, error) {
	overseer := o.roster.Overseer()
	specialty := ""
	if p, ok := o.roster.Lookup(overseer); ok {
		specialty = p.Specialty
	}

	prompt := plan.DelegationPrompt(o.roster, request)
	rec := o.recoverer.Execute(ctx, "plan", overseer, prompt, specialty)
	if !rec.Success {
		return "", rec.Err
	}
	return rec.Result, nil
}

// handleDirect routes the whole request to a single agent.
func (o *Orchestrator) handleDirect(ctx context.Context, request string, outcome *Outcome, logger *zap.Logger) {
	name := pickDirectAgent(o.roster, request)
	specialty := ""
	if p, ok := o.roster.Lookup(name); ok {
		specialty = p.Specialty
	}
	logger.Info("direct path", zap.String("agent", name))

	rec := o.recoverer.Execute(ctx, "direct", name, request, specialty)
	if rec.Success {
		outcome.Results[rec.AgentUsed] = rec.Result
		outcome.Summary = rec.Result
		return
	}
	outcome.Summary = fmt.Sprintf("request could not be handled: %v", rec.Err)
}

// summarize asks the overseer to synthesize the results, falling back to
// plain concatenation when the aggregation call fails.
func (o *Orchestrator) summarize(ctx context.Context, request string, results map[string]string, logger *zap.Logger) string {
	if len(results) == 0 {
		return "no task produced a result"
	}

	overseer := o.roster.Overseer()
	prompt := plan.AggregationPrompt(request, results, o.counter, o.cfg.MaxSummaryTokens)
	rec := o.recoverer.Execute(ctx, "summary", overseer, prompt, "")
	if rec.Success {
		return rec.Result
	}

	logger.Warn("aggregation failed, concatenating results", zap.Error(rec.Err))
	agents := make([]string, 0, len(results))
	for name := range results {
		agents = append(agents, name)
	}
	sort.Strings(agents)

	var b strings.Builder
	for _, name := range agents {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", name, results[name])
	}
	return strings.TrimSpace(b.String())
}
