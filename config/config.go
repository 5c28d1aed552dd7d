// =============================================================================
// 📦 CrewFlow 配置结构
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("CREWFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"time"
)

// Config 是 CrewFlow 的完整配置结构
type Config struct {
	// Orchestrator 编排配置
	Orchestrator OrchestratorConfig `yaml:"orchestrator" env:"ORCHESTRATOR"`

	// Retry 每次调用的重试配置
	Retry RetryConfig `yaml:"retry" env:"RETRY"`

	// LLM 大语言模型配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Cache 响应缓存配置
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Redis 缓存后端配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database 运行历史存储配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Roster 角色表配置
	Roster RosterConfig `yaml:"roster" env:"ROSTER"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`
}

// OrchestratorConfig 编排配置
type OrchestratorConfig struct {
	// 调度轮次上限
	MaxRounds int `yaml:"max_rounds" env:"MAX_ROUNDS"`
	// 同一轮内的并发上限
	Concurrency int `yaml:"concurrency" env:"CONCURRENCY"`
	// 单个任务的执行超时
	TaskTimeout time.Duration `yaml:"task_timeout" env:"TASK_TIMEOUT"`
	// 汇总提示词的 token 预算（0 表示不截断）
	MaxSummaryTokens int `yaml:"max_summary_tokens" env:"MAX_SUMMARY_TOKENS"`
	// 进度轮询间隔
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
}

// RetryConfig 重试配置
type RetryConfig struct {
	// 同一 agent 的最大尝试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 指数退避的初始延迟
	BaseDelay time.Duration `yaml:"base_delay" env:"BASE_DELAY"`
	// 单次退避的最大延迟
	MaxDelay time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
	// 是否添加随机抖动
	Jitter bool `yaml:"jitter" env:"JITTER"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	// Provider 类型: openai, gemini, ollama
	Provider string `yaml:"provider" env:"PROVIDER"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（可选，留空使用 Provider 默认值）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 单次补全的最大 token 数
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 温度参数
	Temperature float32 `yaml:"temperature" env:"TEMPERATURE"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 每秒请求数限制（0 表示不限流）
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	// 并发调用上限（0 表示不限制）
	MaxInFlight int `yaml:"max_in_flight" env:"MAX_IN_FLIGHT"`
}

// CacheConfig 响应缓存配置
type CacheConfig struct {
	// 是否启用本地缓存
	EnableLocal bool `yaml:"enable_local" env:"ENABLE_LOCAL"`
	// 是否启用 Redis 缓存
	EnableRedis bool `yaml:"enable_redis" env:"ENABLE_REDIS"`
	// 本地缓存容量
	LocalMaxSize int `yaml:"local_max_size" env:"LOCAL_MAX_SIZE"`
	// 本地缓存 TTL
	LocalTTL time.Duration `yaml:"local_ttl" env:"LOCAL_TTL"`
	// Redis 缓存 TTL
	RedisTTL time.Duration `yaml:"redis_ttl" env:"REDIS_TTL"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
}

// DatabaseConfig 运行历史存储配置
type DatabaseConfig struct {
	// 是否启用持久化
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// sqlite 文件路径（":memory:" 表示内存库）
	Path string `yaml:"path" env:"PATH"`
}

// RosterConfig 角色表配置
type RosterConfig struct {
	// YAML 角色文件路径（留空使用内置 23 人角色表）
	Path string `yaml:"path" env:"PATH"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Orchestrator: OrchestratorConfig{
			MaxRounds:        10,
			Concurrency:      4,
			TaskTimeout:      2 * time.Minute,
			MaxSummaryTokens: 8000,
			PollInterval:     500 * time.Millisecond,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  1 * time.Second,
			MaxDelay:   30 * time.Second,
			Jitter:     true,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			MaxTokens:   4096,
			Temperature: 0.7,
			Timeout:     60 * time.Second,
			MaxInFlight: 8,
		},
		Cache: CacheConfig{
			EnableLocal:  true,
			LocalMaxSize: 1000,
			LocalTTL:     5 * time.Minute,
			RedisTTL:     1 * time.Hour,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Database: DatabaseConfig{
			Path: "crewflow.db",
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			OutputPaths: []string{"stderr"},
		},
	}
}

// Validate 校验配置的基本一致性
func (c *Config) Validate() error {
	if c.Orchestrator.MaxRounds <= 0 {
		return fmt.Errorf("orchestrator.max_rounds must be positive")
	}
	if c.Orchestrator.Concurrency <= 0 {
		return fmt.Errorf("orchestrator.concurrency must be positive")
	}
	if c.Retry.MaxRetries <= 0 {
		return fmt.Errorf("retry.max_retries must be positive")
	}
	switch c.LLM.Provider {
	case "openai", "gemini", "ollama":
	default:
		return fmt.Errorf("llm.provider must be one of openai, gemini, ollama; got %q", c.LLM.Provider)
	}
	if c.Cache.EnableRedis && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when cache.enable_redis is set")
	}
	return nil
}
