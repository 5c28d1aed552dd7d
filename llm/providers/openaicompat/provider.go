// Package openaicompat implements the provider interface against any
// OpenAI-compatible chat completions endpoint. OpenAI itself, DeepSeek,
// Qwen and local gateways all speak this dialect; they differ only in base
// URL, default model and auth headers.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/crewflow/internal/tlsutil"
	"github.com/BaSui01/crewflow/llm"
)

// Config holds the configuration for an OpenAI-compatible provider.
type Config struct {
	// ProviderName is the unique identifier for this provider.
	ProviderName string `json:"provider_name" yaml:"provider_name"`

	// APIKey authenticates against the provider. May be empty for local
	// gateways.
	APIKey string `json:"api_key" yaml:"api_key"`

	// BaseURL is the API root, e.g. "https://api.openai.com".
	BaseURL string `json:"base_url" yaml:"base_url"`

	// DefaultModel is used when the request does not name one.
	DefaultModel string `json:"default_model" yaml:"default_model"`

	// Timeout is the HTTP client timeout. Defaults to 60s.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// EndpointPath defaults to "/v1/chat/completions".
	EndpointPath string `json:"endpoint_path" yaml:"endpoint_path"`

	// ModelsEndpoint defaults to "/v1/models"; used by health checks.
	ModelsEndpoint string `json:"models_endpoint" yaml:"models_endpoint"`

	// BuildHeaders optionally replaces the default bearer-token header.
	BuildHeaders func(req *http.Request, apiKey string) `json:"-" yaml:"-"`
}

// Provider talks to one OpenAI-compatible endpoint.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates a provider with the given config.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if cfg.ModelsEndpoint == "" {
		cfg.ModelsEndpoint = "/v1/models"
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = "openaicompat"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("provider", cfg.ProviderName)),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.cfg.ProviderName }

// wireRequest is the chat completions request body.
type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
	TopP        float32       `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Stream      bool          `json:"stream"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		FinishReason string      `json:"finish_reason"`
		Message      wireMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Completion sends a synchronous chat request.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.DefaultModel
	}
	if model == "" {
		return nil, &llm.Error{
			Code:     llm.ErrInvalidRequest,
			Message:  "no model specified and no default configured",
			Provider: p.cfg.ProviderName,
		}
	}

	body := wireRequest{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, wireMessage{Role: string(m.Role), Content: m.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+p.cfg.EndpointPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	p.applyHeaders(httpReq)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{
			Code:      llm.ErrUpstreamError,
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Provider:  p.cfg.ProviderName,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(data)
		var wr wireResponse
		if json.Unmarshal(data, &wr) == nil && wr.Error != nil {
			msg = wr.Error.Message
		}
		return nil, llm.ErrorFromStatus(p.cfg.ProviderName, resp.StatusCode, msg)
	}

	var wr wireResponse
	if err := json.Unmarshal(data, &wr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(wr.Choices) == 0 {
		return nil, &llm.Error{
			Code:     llm.ErrUpstreamError,
			Message:  "response contains no choices",
			Provider: p.cfg.ProviderName,
		}
	}

	out := &llm.ChatResponse{
		ID:        wr.ID,
		Provider:  p.cfg.ProviderName,
		Model:     wr.Model,
		CreatedAt: time.Now(),
		Usage: llm.ChatUsage{
			PromptTokens:     wr.Usage.PromptTokens,
			CompletionTokens: wr.Usage.CompletionTokens,
			TotalTokens:      wr.Usage.TotalTokens,
		},
	}
	for _, c := range wr.Choices {
		out.Choices = append(out.Choices, llm.ChatChoice{
			Index:        c.Index,
			FinishReason: c.FinishReason,
			Message:      llm.Message{Role: llm.Role(c.Message.Role), Content: c.Message.Content},
		})
	}

	p.logger.Debug("completion ok",
		zap.String("model", model),
		zap.Int("total_tokens", out.Usage.TotalTokens),
		zap.Duration("latency", time.Since(start)),
	)
	return out, nil
}

// HealthCheck probes the models endpoint.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.cfg.BaseURL+p.cfg.ModelsEndpoint, nil)
	if err != nil {
		return nil, err
	}
	p.applyHeaders(httpReq)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, nil
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	return &llm.HealthStatus{
		Healthy: resp.StatusCode == http.StatusOK,
		Latency: latency,
	}, nil
}

func (p *Provider) applyHeaders(req *http.Request) {
	if p.cfg.BuildHeaders != nil {
		p.cfg.BuildHeaders(req, p.cfg.APIKey)
		return
	}
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
}
