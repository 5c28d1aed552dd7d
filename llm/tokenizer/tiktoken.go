package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer wraps tiktoken for OpenAI-family models. The encoding
// is loaded lazily on first use since it may require a dictionary fetch.
type TiktokenTokenizer struct {
	model     string
	encoding  string
	maxTokens int

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

var modelEncodings = map[string]struct {
	encoding  string
	maxTokens int
}{
	"gpt-4o":        {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4o-mini":   {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4-turbo":   {encoding: "cl100k_base", maxTokens: 128000},
	"gpt-4":         {encoding: "cl100k_base", maxTokens: 8192},
	"gpt-3.5-turbo": {encoding: "cl100k_base", maxTokens: 16385},
}

// NewTiktokenTokenizer creates a tiktoken-backed tokenizer. Unknown models
// return an error so callers can fall back to the estimator.
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	info, ok := modelEncodings[model]
	if !ok {
		// Longest prefix wins so gpt-4o does not resolve through gpt-4.
		best := ""
		for prefix, i := range modelEncodings {
			if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
				info = i
				best = prefix
				ok = true
			}
		}
	}
	if !ok {
		return nil, fmt.Errorf("no tiktoken encoding for model: %s", model)
	}
	return &TiktokenTokenizer{
		model:     model,
		encoding:  info.encoding,
		maxTokens: info.maxTokens,
	}, nil
}

func (t *TiktokenTokenizer) init() {
	t.enc, t.initErr = tiktoken.GetEncoding(t.encoding)
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	t.once.Do(t.init)
	if t.initErr != nil {
		return 0, fmt.Errorf("load encoding %s: %w", t.encoding, t.initErr)
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) MaxTokens() int { return t.maxTokens }

func (t *TiktokenTokenizer) Name() string { return "tiktoken:" + t.encoding }
