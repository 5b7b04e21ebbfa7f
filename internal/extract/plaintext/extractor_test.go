package plaintext

import (
	"context"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanExtract(t *testing.T) {
	e := NewExtractor()

	assert.True(t, e.CanExtract("text/plain"))
	assert.True(t, e.CanExtract("text/markdown"))
	assert.True(t, e.CanExtract("text/csv"))
	assert.True(t, e.CanExtract("text/x-log"))
	assert.False(t, e.CanExtract("application/pdf"))
}

func TestExtractPassesThroughValidUTF8(t *testing.T) {
	e := NewExtractor()

	text, err := e.Extract(context.Background(), []byte("plain text, 日本語 included"))

	require.NoError(t, err)
	assert.Equal(t, "plain text, 日本語 included", text)
}

func TestExtractReplacesInvalidSequences(t *testing.T) {
	e := NewExtractor()

	text, err := e.Extract(context.Background(), []byte{'o', 'k', 0xFF, 0xFE, '!'})

	require.NoError(t, err)
	assert.True(t, utf8.ValidString(text))
	assert.Contains(t, text, "ok")
	assert.Contains(t, text, "!")
}

func TestExtractEmptyInput(t *testing.T) {
	e := NewExtractor()

	text, err := e.Extract(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, text)
}
