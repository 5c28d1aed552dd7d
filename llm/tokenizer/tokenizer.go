// Package tokenizer counts tokens for prompt budgeting. OpenAI-family
// models use exact tiktoken counts; everything else falls back to a
// CJK-aware character estimator.
package tokenizer

// Tokenizer 是统一的 token 计数接口。
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数。
	CountTokens(text string) (int, error)

	// MaxTokens 返回模型的最大上下文长度。
	MaxTokens() int

	// Name 返回分词器的名称。
	Name() string
}

// ForModel 返回给定模型的分词器。已知的 OpenAI 模型使用 tiktoken，
// 其余模型回退到估算器。
func ForModel(model string) Tokenizer {
	if t, err := NewTiktokenTokenizer(model); err == nil {
		return t
	}
	return NewEstimatorTokenizer(model, 0)
}

// Count 是一次性计数的便捷入口。tiktoken 初始化失败时退回估算。
func Count(model, text string) int {
	t := ForModel(model)
	n, err := t.CountTokens(text)
	if err != nil {
		n, _ = NewEstimatorTokenizer(model, 0).CountTokens(text)
	}
	return n
}
