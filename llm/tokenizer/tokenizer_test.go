package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimatorASCII(t *testing.T) {
	t.Parallel()

	e := NewEstimatorTokenizer("local-model", 0)
	n, err := e.CountTokens(strings.Repeat("a", 400))
	require.NoError(t, err)
	assert.Equal(t, 100, n)
}

func TestEstimatorCJKHeavier(t *testing.T) {
	t.Parallel()

	e := NewEstimatorTokenizer("local-model", 0)
	ascii, err := e.CountTokens(strings.Repeat("a", 30))
	require.NoError(t, err)
	cjk, err := e.CountTokens(strings.Repeat("汉", 30))
	require.NoError(t, err)
	assert.Greater(t, cjk, ascii, "CJK text costs more tokens per rune")
}

func TestEstimatorEmptyAndTiny(t *testing.T) {
	t.Parallel()

	e := NewEstimatorTokenizer("local-model", 0)
	n, err := e.CountTokens("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = e.CountTokens("a")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "non-empty text is at least one token")
}

func TestForModelFallsBack(t *testing.T) {
	t.Parallel()

	tk := ForModel("qwen-max")
	assert.Equal(t, "estimator:qwen-max", tk.Name())
	assert.Equal(t, 4096, tk.MaxTokens())
}

func TestTiktokenModelLookup(t *testing.T) {
	t.Parallel()

	tk, err := NewTiktokenTokenizer("gpt-4o-2024-08-06")
	require.NoError(t, err, "prefix match on gpt-4o")
	assert.Equal(t, "tiktoken:o200k_base", tk.Name())
	assert.Equal(t, 128000, tk.MaxTokens())

	_, err = NewTiktokenTokenizer("mystery-model")
	assert.Error(t, err)
}
