// Package gemini implements the provider interface for Google Gemini.
// The API differs from the OpenAI dialect: x-goog-api-key auth, a
// generateContent endpoint per model, and system instructions carried
// outside the message list.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/crewflow/internal/tlsutil"
	"github.com/BaSui01/crewflow/llm"
)

// Config holds Gemini connection settings.
type Config struct {
	APIKey       string        `json:"api_key" yaml:"api_key"`
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	DefaultModel string        `json:"default_model" yaml:"default_model"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
}

// Provider talks to the Gemini generateContent API.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates a Gemini provider.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-2.0-flash"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("provider", "gemini")),
	}
}

func (p *Provider) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"` // user, model
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  *struct {
		MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
		Temperature     float32  `json:"temperature,omitempty"`
		TopP            float32  `json:"topP,omitempty"`
		StopSequences   []string `json:"stopSequences,omitempty"`
	} `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Completion sends a synchronous generateContent request.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.DefaultModel
	}

	body := geminiRequest{}
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			// System prompts ride in systemInstruction, not contents.
			body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: m.Content}}}
		case llm.RoleAssistant:
			body.Contents = append(body.Contents, geminiContent{
				Role: "model", Parts: []geminiPart{{Text: m.Content}},
			})
		default:
			body.Contents = append(body.Contents, geminiContent{
				Role: "user", Parts: []geminiPart{{Text: m.Content}},
			})
		}
	}
	if req.MaxTokens > 0 || req.Temperature > 0 || req.TopP > 0 || len(req.Stop) > 0 {
		body.GenerationConfig = &struct {
			MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
			Temperature     float32  `json:"temperature,omitempty"`
			TopP            float32  `json:"topP,omitempty"`
			StopSequences   []string `json:"stopSequences,omitempty"`
		}{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
			TopP:            req.TopP,
			StopSequences:   req.Stop,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(p.cfg.BaseURL, "/"), model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.cfg.APIKey)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &llm.Error{
			Code:      llm.ErrUpstreamError,
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Provider:  "gemini",
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var gr geminiResponse
	if resp.StatusCode != http.StatusOK {
		msg := string(data)
		if json.Unmarshal(data, &gr) == nil && gr.Error != nil {
			msg = gr.Error.Message
		}
		return nil, llm.ErrorFromStatus("gemini", resp.StatusCode, msg)
	}
	if err := json.Unmarshal(data, &gr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(gr.Candidates) == 0 {
		return nil, &llm.Error{
			Code:     llm.ErrContentFiltered,
			Message:  "response contains no candidates",
			Provider: "gemini",
		}
	}

	out := &llm.ChatResponse{
		Provider:  "gemini",
		Model:     model,
		CreatedAt: time.Now(),
		Usage: llm.ChatUsage{
			PromptTokens:     gr.UsageMetadata.PromptTokenCount,
			CompletionTokens: gr.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      gr.UsageMetadata.TotalTokenCount,
		},
	}
	for i, c := range gr.Candidates {
		var text strings.Builder
		for _, part := range c.Content.Parts {
			text.WriteString(part.Text)
		}
		out.Choices = append(out.Choices, llm.ChatChoice{
			Index:        i,
			FinishReason: strings.ToLower(c.FinishReason),
			Message:      llm.Message{Role: llm.RoleAssistant, Content: text.String()},
		})
	}

	p.logger.Debug("completion ok",
		zap.String("model", model),
		zap.Int("total_tokens", out.Usage.TotalTokens),
		zap.Duration("latency", time.Since(start)),
	)
	return out, nil
}

// HealthCheck probes the models listing endpoint.
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models", strings.TrimRight(p.cfg.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("x-goog-api-key", p.cfg.APIKey)

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
