// Package crewflow provides a top-level convenience entry point that wires
// the full orchestration stack from a single configuration.
//
// Usage:
//
//	import "github.com/BaSui01/crewflow"
//
//	sys, err := crewflow.New(crewflow.WithConfigFile("config.yaml"))
//	sys, err := crewflow.New(crewflow.WithProvider(myProvider))
//
//	outcome, err := sys.HandleRequest(ctx, "build a login endpoint")
//
// Every collaborator can also be constructed and injected by hand; this
// package only assembles the defaults.
package crewflow

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/crewflow/agent"
	"github.com/BaSui01/crewflow/collaboration"
	"github.com/BaSui01/crewflow/config"
	"github.com/BaSui01/crewflow/internal/metrics"
	"github.com/BaSui01/crewflow/llm"
	"github.com/BaSui01/crewflow/llm/providers/gemini"
	"github.com/BaSui01/crewflow/llm/providers/ollama"
	"github.com/BaSui01/crewflow/llm/providers/openaicompat"
	"github.com/BaSui01/crewflow/llm/tokenizer"
	"github.com/BaSui01/crewflow/persistence"
	"github.com/BaSui01/crewflow/plan"
	"github.com/BaSui01/crewflow/run"
	"github.com/BaSui01/crewflow/types"
)

// System is the assembled orchestration stack. Use [New] to build one and
// [System.HandleRequest] to run requests through it.
type System struct {
	orchestrator *collaboration.Orchestrator
	executor     *llm.RosterExecutor
	store        *persistence.RunStore
	logger       *zap.Logger
}

// Option configures the system built by [New].
type Option func(*builder)

type builder struct {
	cfg        *config.Config
	configPath string
	provider   llm.Provider
	roster     *agent.Roster
	recorder   collaboration.Recorder
	logger     *zap.Logger
	registry   prometheus.Registerer
}

// WithConfig supplies a fully built configuration.
func WithConfig(cfg *config.Config) Option {
	return func(b *builder) { b.cfg = cfg }
}

// WithConfigFile loads configuration from a YAML file, with CREWFLOW_*
// environment variables taking precedence.
func WithConfigFile(path string) Option {
	return func(b *builder) { b.configPath = path }
}

// WithProvider sets a pre-built LLM provider, overriding the configured one.
func WithProvider(p llm.Provider) Option {
	return func(b *builder) { b.provider = p }
}

// WithRoster overrides the built-in persona roster.
func WithRoster(r *agent.Roster) Option {
	return func(b *builder) { b.roster = r }
}

// WithRecorder overrides the outcome recorder. Pass nil together with a
// disabled database section to skip persistence entirely.
func WithRecorder(r collaboration.Recorder) Option {
	return func(b *builder) { b.recorder = r }
}

// WithLogger sets a custom zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *builder) { b.logger = l }
}

// WithMetricsRegistry registers orchestration metrics on the given
// Prometheus registerer. By default each System gets its own registry.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(b *builder) { b.registry = reg }
}

// New assembles a System: roster, provider, executor, recoverer, scheduler
// and orchestrator, all from the resolved configuration.
func New(opts ...Option) (*System, error) {
	var b builder
	for _, opt := range opts {
		opt(&b)
	}

	cfg := b.cfg
	if cfg == nil {
		loader := config.NewLoader()
		if b.configPath != "" {
			loader = loader.WithConfigPath(b.configPath)
		}
		loaded, err := loader.Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	logger := b.logger
	if logger == nil {
		built, err := config.BuildLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
		logger = built
	}

	roster := b.roster
	if roster == nil {
		if cfg.Roster.Path != "" {
			loaded, err := agent.LoadRoster(cfg.Roster.Path)
			if err != nil {
				return nil, fmt.Errorf("load roster: %w", err)
			}
			roster = loaded
		} else {
			roster = agent.DefaultRoster()
		}
	}

	provider := b.provider
	if provider == nil {
		var err error
		provider, err = buildProvider(cfg.LLM, logger)
		if err != nil {
			return nil, err
		}
	}

	var rdb *redis.Client
	if cfg.Cache.EnableRedis {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
	}
	cache := llm.NewResponseCache(rdb, &llm.CacheConfig{
		LocalMaxSize: cfg.Cache.LocalMaxSize,
		LocalTTL:     cfg.Cache.LocalTTL,
		RedisTTL:     cfg.Cache.RedisTTL,
		EnableLocal:  cfg.Cache.EnableLocal,
		EnableRedis:  cfg.Cache.EnableRedis,
	}, logger)

	executor := llm.NewRosterExecutor(llm.ExecutorConfig{
		Model:             cfg.LLM.Model,
		MaxTokens:         cfg.LLM.MaxTokens,
		Temperature:       cfg.LLM.Temperature,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		MaxInFlight:       cfg.LLM.MaxInFlight,
	}, provider, roster, cache, logger)

	timeout := run.NewTimeoutExecutor(run.TimeoutConfig{
		PollInterval: cfg.Orchestrator.PollInterval,
	}, logger)
	recoverer := run.NewRecoverer(run.RecoveryConfig{
		MaxRetries:  cfg.Retry.MaxRetries,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
		Jitter:      cfg.Retry.Jitter,
		CallTimeout: cfg.Orchestrator.TaskTimeout,
	}, roster, executor, timeout, logger)

	registry := b.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	collector := metrics.NewCollector("crewflow", registry, logger)
	executor.SetCollector(collector)

	board := agent.NewBoard(roster)
	scheduler := run.NewRoundScheduler(run.SchedulerConfig{
		MaxRounds:   cfg.Orchestrator.MaxRounds,
		Concurrency: cfg.Orchestrator.Concurrency,
	}, recoverer, roster, board, collector, logger)

	orchestrator := collaboration.New(collaboration.Config{
		MaxSummaryTokens: cfg.Orchestrator.MaxSummaryTokens,
	}, roster, plan.NewParser(logger), recoverer, scheduler, board, logger)
	orchestrator.SetTokenCounter(counterFor(cfg.LLM.Model))
	orchestrator.SetCollector(collector)

	sys := &System{
		orchestrator: orchestrator,
		executor:     executor,
		logger:       logger,
	}

	switch {
	case b.recorder != nil:
		orchestrator.SetRecorder(b.recorder)
	case cfg.Database.Enabled:
		store, err := persistence.NewRunStore(persistence.StoreConfig{Path: cfg.Database.Path}, logger)
		if err != nil {
			return nil, fmt.Errorf("open run store: %w", err)
		}
		sys.store = store
		orchestrator.SetRecorder(store)
	}

	return sys, nil
}

// HandleRequest runs one user request end to end and returns the structured
// outcome.
func (s *System) HandleRequest(ctx context.Context, request string) (*collaboration.Outcome, error) {
	return s.orchestrator.HandleRequest(ctx, request)
}

// Orchestrator exposes the underlying orchestrator for callers that need
// per-run wiring such as a custom metrics collector.
func (s *System) Orchestrator() *collaboration.Orchestrator {
	return s.orchestrator
}

// AgentStatuses reports the live per-agent status board.
func (s *System) AgentStatuses() map[string]agent.Status {
	return s.orchestrator.AgentStatuses()
}

// Close releases the executor pool, the run store and flushes the logger.
func (s *System) Close() error {
	s.executor.Close()
	var err error
	if s.store != nil {
		err = s.store.Close()
	}
	_ = s.logger.Sync()
	return err
}

func buildProvider(cfg config.LLMConfig, logger *zap.Logger) (llm.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return openaicompat.New(openaicompat.Config{
			ProviderName: "openai",
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		}, logger), nil
	case "gemini":
		return gemini.New(gemini.Config{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		}, logger), nil
	case "ollama":
		return ollama.New(ollama.Config{
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		}, logger), nil
	default:
		return nil, types.NewError(types.ErrInvalidPlan, fmt.Sprintf("unknown provider %q", cfg.Provider))
	}
}

// counterFor adapts a tokenizer to the prompt budgeting interface.
func counterFor(model string) plan.TokenCounter {
	return tokenCounter{model: model}
}

type tokenCounter struct {
	model string
}

func (c tokenCounter) Count(text string) int {
	return tokenizer.Count(c.model, text)
}
