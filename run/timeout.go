package run

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/crewflow/types"
)

// CallFunc is a single blocking agent call. Implementations should honor the
// context deadline, but the executor does not rely on it.
type CallFunc func(ctx context.Context) (string, error)

// ProgressFunc receives periodic progress estimates for UI consumption.
// Percent stays below 100 until the call truly completes.
type ProgressFunc func(percent int, taskID string)

// Result is the outcome of one bounded-duration call.
type Result struct {
	Success  bool
	Content  string
	Err      error
	Duration time.Duration
	TimedOut bool
}

// TimeoutConfig configures the timeout executor.
type TimeoutConfig struct {
	// PollInterval is how often the waiting side checks for completion and
	// reports progress. Defaults to 500ms.
	PollInterval time.Duration
	// OnProgress, when set, is invoked on every poll tick.
	OnProgress ProgressFunc
}

// TimeoutExecutor runs a blocking agent call on its own goroutine and waits
// for completion or timeout by polling.
//
// Known limitation: a call that ignores its context is not preempted on
// timeout. The goroutine is abandoned and may keep running and holding
// resources until the call returns on its own. The context passed to the
// call does carry the deadline, so context-aware callers (anything built on
// net/http) abort for real.
type TimeoutExecutor struct {
	cfg    TimeoutConfig
	logger *zap.Logger
}

// NewTimeoutExecutor creates a timeout executor.
func NewTimeoutExecutor(cfg TimeoutConfig, logger *zap.Logger) *TimeoutExecutor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimeoutExecutor{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "timeout_executor")),
	}
}

type callOutcome struct {
	content string
	err     error
}

// Run executes fn with the given timeout. It never panics and never returns
// later than timeout plus one poll interval.
func (e *TimeoutExecutor) Run(ctx context.Context, taskID string, timeout time.Duration, fn CallFunc) Result {
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Single-slot channel: the worker can always deliver and exit, even
	// after the caller has given up.
	outcome := make(chan callOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				outcome <- callOutcome{err: types.NewError(types.ErrInternalError,
					fmt.Sprintf("agent call panicked: %v", r))}
			}
		}()
		content, err := fn(callCtx)
		outcome <- callOutcome{content: content, err: err}
	}()

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	finish := func(out callOutcome) Result {
		duration := time.Since(start)
		if out.err != nil {
			timedOut := callCtx.Err() == context.DeadlineExceeded
			return Result{Err: out.err, Duration: duration, TimedOut: timedOut}
		}
		e.emitProgress(100, taskID)
		return Result{Success: true, Content: out.content, Duration: duration}
	}

	for {
		select {
		case out := <-outcome:
			return finish(out)

		case <-ticker.C:
			elapsed := time.Since(start)
			if elapsed >= timeout {
				e.logger.Warn("agent call timed out, abandoning worker",
					zap.String("task_id", taskID),
					zap.Duration("timeout", timeout),
				)
				return Result{
					Err: types.NewError(types.ErrTaskTimeout,
						fmt.Sprintf("no response within %s", timeout)).WithRetryable(true),
					Duration: elapsed,
					TimedOut: true,
				}
			}
			percent := int(elapsed * 100 / timeout)
			if percent > 95 {
				percent = 95
			}
			e.emitProgress(percent, taskID)

		case <-ctx.Done():
			// A call that finished in the same instant still counts, so
			// give the worker one poll interval to deliver.
			select {
			case out := <-outcome:
				return finish(out)
			case <-time.After(e.cfg.PollInterval):
			}
			return Result{Err: ctx.Err(), Duration: time.Since(start)}
		}
	}
}

func (e *TimeoutExecutor) emitProgress(percent int, taskID string) {
	if e.cfg.OnProgress != nil {
		e.cfg.OnProgress(percent, taskID)
	}
}
