package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmbedding(t *testing.T) {
	vec, err := parseEmbedding([]byte("[0.25,-1,3]"))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -1, 3}, vec)
}

// Chunks whose embedding call failed are stored with a NULL embedding
// column; reading them back must yield a nil slice, not a scan error.
func TestParseEmbeddingNull(t *testing.T) {
	vec, err := parseEmbedding(nil)
	require.NoError(t, err)
	assert.Nil(t, vec)
}

func TestParseEmbeddingMalformed(t *testing.T) {
	_, err := parseEmbedding([]byte("not a vector"))
	assert.Error(t, err)
}
