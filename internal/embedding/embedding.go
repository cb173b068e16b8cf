// Package embedding turns memory summaries and queries into vectors.
package embedding

import (
	"context"
	"fmt"
	"math"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
}

// L2Distance is the Euclidean distance between a and b. Vectors of different
// lengths are infinitely far apart.
func L2Distance(a, b Vector) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Options selects and configures a provider.
type Options struct {
	Provider string // ollama, openai, hash, or empty to disable
	Model    string
	BaseURL  string
	APIKey   string
	Dims     int
}

// New builds the embedder o names. An empty provider returns nil, which disables vector search.
func New(o Options) (Embedder, error) {
	switch o.Provider {
	case "":
		return nil, nil
	case "ollama":
		return NewOllamaEmbedder(o.BaseURL, o.Model, o.Dims), nil
	case "openai":
		return NewOpenAIEmbedder(o.BaseURL, o.APIKey, o.Model, o.Dims), nil
	case "hash":
		return NewHashEmbedder(o.Dims), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (valid: ollama, openai, hash)", o.Provider)
	}
}
