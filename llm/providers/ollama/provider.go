// Package ollama adapts a local Ollama daemon. Ollama exposes an
// OpenAI-compatible endpoint, so this is a thin preset over openaicompat
// with no auth and a localhost default.
package ollama

import (
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/crewflow/llm/providers/openaicompat"
)

// Config holds Ollama connection settings.
type Config struct {
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	DefaultModel string        `json:"default_model" yaml:"default_model"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
}

// New creates an Ollama provider. Local models are slow, so the default
// timeout is generous.
func New(cfg Config, logger *zap.Logger) *openaicompat.Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "llama3.1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return openaicompat.New(openaicompat.Config{
		ProviderName: "ollama",
		BaseURL:      cfg.BaseURL,
		DefaultModel: cfg.DefaultModel,
		Timeout:      cfg.Timeout,
	}, logger)
}
