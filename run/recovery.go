package run

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/crewflow/agent"
	"github.com/BaSui01/crewflow/internal/metrics"
	"github.com/BaSui01/crewflow/types"
)

// Severity is an advisory classification of an error, derived from substring
// matching on the error text. It is wording-dependent and unreliable, so it
// feeds logs and metrics only and never gates retry or fallback decisions.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ClassifySeverity buckets an error by keywords in its text.
func ClassifySeverity(err error) Severity {
	if err == nil {
		return SeverityLow
	}
	text := strings.ToLower(err.Error())
	switch {
	case containsAny(text, "panic", "fatal", "crash"):
		return SeverityCritical
	case containsAny(text, "auth", "permission", "unauthorized", "forbidden"):
		return SeverityHigh
	case containsAny(text, "timeout", "timed out", "network", "connection", "unreachable"):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// RecoveryConfig configures per-call retry and fallback behavior.
type RecoveryConfig struct {
	// MaxRetries is the number of attempts against the primary agent.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
	// BaseDelay seeds the exponential backoff: base * 2^attempt.
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`
	// MaxDelay caps a single backoff wait.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`
	// Jitter adds ±25% randomization to each wait to avoid thundering herds.
	Jitter bool `json:"jitter" yaml:"jitter"`
	// CallTimeout bounds each individual attempt.
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout"`
}

// DefaultRecoveryConfig returns the defaults from the delegation contract.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		MaxRetries:  3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Jitter:      true,
		CallTimeout: 2 * time.Minute,
	}
}

// Recovery is the outcome of a recovered execution: which agent finally
// answered, after how many total attempts.
type Recovery struct {
	Success   bool
	Result    string
	Err       error
	AgentUsed string
	Attempts  int
}

// Recoverer wraps an agent executor with bounded same-agent retries and
// fallback-agent substitution. The whole recovered execution is atomic from
// the scheduler's point of view: plan-level scheduling never re-queues.
type Recoverer struct {
	cfg       RecoveryConfig
	roster    *agent.Roster
	exec      agent.Executor
	timeout   *TimeoutExecutor
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewRecoverer creates a recoverer.
func NewRecoverer(cfg RecoveryConfig, roster *agent.Roster, exec agent.Executor, timeout *TimeoutExecutor, logger *zap.Logger) *Recoverer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 1 * time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout == nil {
		timeout = NewTimeoutExecutor(TimeoutConfig{}, logger)
	}
	return &Recoverer{
		cfg:     cfg,
		roster:  roster,
		exec:    exec,
		timeout: timeout,
		logger:  logger.With(zap.String("component", "recoverer")),
	}
}

// SetCollector attaches a metrics collector (optional).
func (r *Recoverer) SetCollector(c *metrics.Collector) {
	r.collector = c
}

// Execute runs prompt against agentName with up to MaxRetries attempts and
// exponential backoff, then tries each fallback agent for the specialty once.
// The last error is preserved verbatim when everything fails.
func (r *Recoverer) Execute(ctx context.Context, taskID, agentName, prompt, specialty string) Recovery {
	attempts := 0
	var lastErr error

	for attempt := 0; attempt < r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.backoffDelay(attempt)
			r.logger.Debug("retrying agent call",
				zap.String("task_id", taskID),
				zap.String("agent", agentName),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return Recovery{Err: ctx.Err(), AgentUsed: agentName, Attempts: attempts}
			case <-time.After(delay):
			}
		}

		attempts++
		res := r.attempt(ctx, taskID, agentName, prompt)
		if res.Success {
			return Recovery{Success: true, Result: res.Content, AgentUsed: agentName, Attempts: attempts}
		}
		lastErr = res.Err
		severity := ClassifySeverity(res.Err)
		if r.collector != nil {
			r.collector.IncRetry(agentName, string(severity))
		}
		r.logger.Warn("agent call failed",
			zap.String("task_id", taskID),
			zap.String("agent", agentName),
			zap.Int("attempt", attempts),
			zap.Bool("timed_out", res.TimedOut),
			zap.String("severity", string(severity)),
			zap.Error(res.Err),
		)
	}

	// Primary exhausted; consult the static specialty table.
	if specialty != "" {
		for _, alternate := range r.roster.FallbackFor(specialty, agentName) {
			attempts++
			if r.collector != nil {
				r.collector.IncFallback(agentName, alternate)
			}
			r.logger.Info("trying fallback agent",
				zap.String("task_id", taskID),
				zap.String("primary", agentName),
				zap.String("fallback", alternate),
			)
			res := r.attempt(ctx, taskID, alternate, prompt)
			if res.Success {
				return Recovery{Success: true, Result: res.Content, AgentUsed: alternate, Attempts: attempts}
			}
			lastErr = res.Err
		}
	}

	if lastErr == nil {
		lastErr = types.NewError(types.ErrRetryExhausted, "no attempts were made").WithAgent(agentName)
	}
	return Recovery{Err: lastErr, AgentUsed: agentName, Attempts: attempts}
}

// attempt makes one bounded call.
func (r *Recoverer) attempt(ctx context.Context, taskID, agentName, prompt string) Result {
	return r.timeout.Run(ctx, taskID, r.cfg.CallTimeout, func(callCtx context.Context) (string, error) {
		return r.exec.Execute(callCtx, agentName, prompt)
	})
}

// backoffDelay computes base * 2^attempt with cap and optional jitter.
func (r *Recoverer) backoffDelay(attempt int) time.Duration {
	delay := float64(r.cfg.BaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(r.cfg.MaxDelay) {
		delay = float64(r.cfg.MaxDelay)
	}
	if r.cfg.Jitter {
		jitter := delay * 0.25
		delay += (rand.Float64()*2 - 1) * jitter
	}
	if delay < float64(r.cfg.BaseDelay) {
		delay = float64(r.cfg.BaseDelay)
	}
	return time.Duration(delay)
}
