package llm

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/crewflow/agent"
	"github.com/BaSui01/crewflow/internal/metrics"
	"github.com/BaSui01/crewflow/internal/pool"
	"github.com/BaSui01/crewflow/llm/retry"
	"github.com/BaSui01/crewflow/types"
)

// ExecutorConfig configures the roster executor.
type ExecutorConfig struct {
	// Model overrides the provider default when set.
	Model string `json:"model" yaml:"model"`
	// MaxTokens caps each completion.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`
	// Temperature for all calls.
	Temperature float32 `json:"temperature" yaml:"temperature"`
	// RequestsPerSecond throttles provider calls. Zero disables.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	// Burst for the rate limiter. Defaults to 1 when throttled.
	Burst int `json:"burst" yaml:"burst"`
	// MaxInFlight bounds concurrent provider calls. Zero disables.
	MaxInFlight int `json:"max_in_flight" yaml:"max_in_flight"`
}

// RosterExecutor turns persona-addressed prompts into provider calls. It
// is the bridge between scheduling, which speaks agent names, and the
// provider, which speaks chat requests: the persona becomes the system
// prompt, responses are cached per agent/prompt pair, and calls share a
// rate limiter and an in-flight bound.
type RosterExecutor struct {
	provider  Provider
	roster    *agent.Roster
	cache     *ResponseCache
	retryer   *retry.Retryer
	limiter   *rate.Limiter
	calls     *pool.CallPool
	collector *metrics.Collector
	cfg       ExecutorConfig
	logger    *zap.Logger
}

// NewRosterExecutor creates a roster executor. cache may be nil to
// disable caching.
func NewRosterExecutor(cfg ExecutorConfig, provider Provider, roster *agent.Roster, cache *ResponseCache, logger *zap.Logger) *RosterExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	var calls *pool.CallPool
	if cfg.MaxInFlight > 0 {
		calls = pool.New(cfg.MaxInFlight, cfg.MaxInFlight*2)
	}

	return &RosterExecutor{
		provider: provider,
		roster:   roster,
		cache:    cache,
		retryer:  retry.New(nil, logger),
		limiter:  limiter,
		calls:    calls,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "roster_executor")),
	}
}

// SetCollector attaches a metrics collector (optional).
func (e *RosterExecutor) SetCollector(c *metrics.Collector) {
	e.collector = c
}

// Close releases the call pool.
func (e *RosterExecutor) Close() {
	if e.calls != nil {
		e.calls.Close()
	}
}

// Execute implements agent.Executor.
func (e *RosterExecutor) Execute(ctx context.Context, agentName, prompt string) (string, error) {
	persona, ok := e.roster.Lookup(agentName)
	if !ok {
		return "", types.NewError(types.ErrUnknownAgent, "no such agent: "+agentName).WithAgent(agentName)
	}

	key := CacheKey(agentName, prompt)
	if e.cache != nil {
		if entry, err := e.cache.Get(ctx, key); err == nil {
			if e.collector != nil {
				e.collector.IncCacheHit()
			}
			e.logger.Debug("cache hit", zap.String("agent", agentName))
			return entry.Response.FirstText(), nil
		}
		if e.collector != nil {
			e.collector.IncCacheMiss()
		}
	}

	req := &ChatRequest{
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		Messages: []Message{
			{Role: RoleSystem, Content: persona.SystemPrompt()},
			{Role: RoleUser, Content: prompt},
		},
		Metadata: map[string]string{"agent": agentName},
	}

	resp, err := e.complete(ctx, req)
	if err != nil {
		return "", err
	}

	if e.cache != nil {
		if cerr := e.cache.Set(ctx, key, &CacheEntry{Response: resp, Agent: agentName}); cerr != nil {
			e.logger.Debug("cache write failed", zap.Error(cerr))
		}
	}
	return resp.FirstText(), nil
}

// complete runs one completion through the limiter, the in-flight bound
// and transport-level retry.
func (e *RosterExecutor) complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	call := func(ctx context.Context) (*ChatResponse, error) {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		var resp *ChatResponse
		err := e.retryer.Do(ctx, func() error {
			var cerr error
			resp, cerr = e.provider.Completion(ctx, req)
			if cerr != nil && !isRetryable(cerr) {
				return retry.Permanent(cerr)
			}
			return cerr
		})
		return resp, err
	}

	if e.calls == nil {
		return call(ctx)
	}

	var resp *ChatResponse
	err := e.calls.Do(ctx, func(ctx context.Context) error {
		var cerr error
		resp, cerr = call(ctx)
		return cerr
	})
	return resp, err
}

func isRetryable(err error) bool {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Retryable
	}
	// Network-level errors arrive unwrapped; retry them.
	return true
}
