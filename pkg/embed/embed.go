// Package embed maps text to dense vectors for relevance scoring.
//
// Two backends are provided: a native Ollama client (POST /api/embed) and an
// OpenAI-compatible client (POST /v1/embeddings) which also covers llama.cpp
// and LM Studio servers. Both are safe for concurrent use.
package embed

import (
	"context"
	"errors"
	"math"
)

// Provider is any text embedding backend.
type Provider interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input, in input order. Partial
	// results are never returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelID names the model, for logs.
	ModelID() string
}

var ErrDimensionMismatch = errors.New("embed: vector dimensions differ")

// Cosine returns the cosine similarity of a and b in [-1, 1]. A zero vector
// has similarity 0 with everything.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
