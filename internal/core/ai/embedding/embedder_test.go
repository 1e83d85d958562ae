package embedding

import (
	"context"
	"math"
	"testing"

	"souschef/internal/infrastructure/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestLocalEmbedderDeterministic(t *testing.T) {
	e := NewLocal(64)
	a, err := e.Embed(context.Background(), []string{"spinach chickpeas", "Spinach, CHICKPEAS"})
	require.NoError(t, err)
	require.Len(t, a, 2)
	assert.Len(t, a[0], 64)
	assert.Equal(t, a[0], a[1])
	assert.InDelta(t, 1.0, norm(a[0]), 1e-5)
}

func TestLocalEmbedderSimilarity(t *testing.T) {
	e := NewLocal(256)
	vecs, err := e.Embed(context.Background(), []string{
		"ingredients: spinach, chickpeas",
		"Spinach Chickpea Curry | ingredients: spinach, chickpeas, rice",
		"Banana Bread | ingredients: banana, flour, sugar",
	})
	require.NoError(t, err)
	assert.Greater(t, dot(vecs[0], vecs[1]), dot(vecs[0], vecs[2]))
}

func TestLocalEmbedderEmptyText(t *testing.T) {
	vecs, err := NewLocal(8).Embed(context.Background(), []string{""})
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), vecs[0])
}

func TestNewSelectsProvider(t *testing.T) {
	e, err := New(config.EmbeddingConfig{Provider: config.EmbeddingProviderLocal, Dimensions: 32}, nil)
	require.NoError(t, err)
	assert.Equal(t, "local-hash-32", e.Model())

	_, err = New(config.EmbeddingConfig{Provider: config.EmbeddingProviderOpenAI}, nil)
	assert.Error(t, err)

	_, err = New(config.EmbeddingConfig{Provider: "nope"}, nil)
	assert.Error(t, err)
}
