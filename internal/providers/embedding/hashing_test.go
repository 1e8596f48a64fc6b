package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestHashingEmbedderIsDeterministicAndNormalised(t *testing.T) {
	h := NewHashing(64)
	vs, err := h.Embed(context.Background(), []string{"Go developer, Kubernetes", "go developer kubernetes", ""})
	require.NoError(t, err)
	require.Len(t, vs, 3)

	assert.Equal(t, vs[0], vs[1])
	assert.InDelta(t, 1.0, dot(vs[0], vs[0]), 1e-5)
	assert.Zero(t, dot(vs[2], vs[2]))
}

func TestHashingEmbedderSimilarity(t *testing.T) {
	h := NewHashing(0)
	assert.Equal(t, defaultHashingDimensions, h.Dimensions())

	vs, err := h.Embed(context.Background(), []string{
		"built distributed systems in go",
		"distributed systems engineer using go",
		"watercolor painting and pottery",
	})
	require.NoError(t, err)
	assert.Greater(t, dot(vs[0], vs[1]), dot(vs[0], vs[2]))
}
