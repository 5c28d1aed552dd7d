package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 编排指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 任务指标
	tasksTotal   *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec

	// 调度指标
	roundsTotal prometheus.Counter

	// 恢复指标
	retriesTotal   *prometheus.CounterVec
	fallbacksTotal *prometheus.CounterVec

	// 计划解析指标
	planParsesTotal *prometheus.CounterVec

	// 缓存指标
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	logger *zap.Logger
}

// NewCollector 创建指标收集器。reg 为空时使用默认注册表。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.tasksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Total number of tasks reaching a terminal status",
		},
		[]string{"agent", "status"},
	)

	c.taskDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"agent"},
	)

	c.roundsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_rounds_total",
			Help:      "Total number of scheduling rounds executed",
		},
	)

	c.retriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total number of per-call retries",
		},
		[]string{"agent", "severity"},
	)

	c.fallbacksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Total number of fallback-agent substitutions",
		},
		[]string{"primary", "fallback"},
	)

	c.planParsesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_parses_total",
			Help:      "Plan parse attempts by winning strategy",
		},
		[]string{"strategy"},
	)

	c.cacheHits = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_cache_hits_total",
			Help:      "Agent response cache hits",
		},
	)

	c.cacheMisses = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_cache_misses_total",
			Help:      "Agent response cache misses",
		},
	)

	return c
}

// ObserveTask 记录一个到达终态的任务
func (c *Collector) ObserveTask(agent, status string, duration time.Duration) {
	c.tasksTotal.WithLabelValues(agent, status).Inc()
	if duration > 0 {
		c.taskDuration.WithLabelValues(agent).Observe(duration.Seconds())
	}
}

// IncRound 记录一轮调度
func (c *Collector) IncRound() {
	c.roundsTotal.Inc()
}

// IncRetry 记录一次重试
func (c *Collector) IncRetry(agent, severity string) {
	c.retriesTotal.WithLabelValues(agent, severity).Inc()
}

// IncFallback 记录一次降级替换
func (c *Collector) IncFallback(primary, fallback string) {
	c.fallbacksTotal.WithLabelValues(primary, fallback).Inc()
}

// IncParse 记录一次计划解析（按命中的策略）
func (c *Collector) IncParse(strategy string) {
	if strategy == "" {
		strategy = "none"
	}
	c.planParsesTotal.WithLabelValues(strategy).Inc()
}

// IncCacheHit 记录缓存命中
func (c *Collector) IncCacheHit() { c.cacheHits.Inc() }

// IncCacheMiss 记录缓存未命中
func (c *Collector) IncCacheMiss() { c.cacheMisses.Inc() }
