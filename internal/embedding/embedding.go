// Package embedding provides a pluggable interface for text embedding providers
// and the content-hash cache that sits in front of them.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rcliao/tiered-memory/internal/model"
)

// MaxInputRunes bounds the text handed to a provider.
const MaxInputRunes = 8000

// ErrNoEmbedding is returned when a provider answers without a vector.
var ErrNoEmbedding = errors.New("no embedding returned")

// Vector is a float32 embedding vector.
type Vector = model.Vector

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
}

// CosineSimilarity computes cosine similarity between two vectors. Mismatched
// lengths and zero-norm vectors score 0.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// IsZero reports whether v has no magnitude.
func IsZero(v Vector) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}

// Truncate cuts text to at most MaxInputRunes runes.
func Truncate(text string) string {
	n := 0
	for i := range text {
		if n == MaxInputRunes {
			return text[:i]
		}
		n++
	}
	return text
}

// ContentHash returns the hex sha256 of text. It keys the embedding cache and
// derives long-term record ids.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Options configures a provider.
type Options struct {
	Provider string // "openai" | "ollama" | "" (disabled)
	Model    string
	BaseURL  string
	APIKey   string
	Dims     int
	Timeout  time.Duration
}

// New builds an embedder for the configured provider. An empty provider
// returns nil, which disables vector retrieval.
func New(opts Options) (Embedder, error) {
	switch opts.Provider {
	case "":
		return nil, nil
	case "openai":
		return NewOpenAI(opts), nil
	case "ollama":
		e, err := NewOllama(opts)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (valid: openai, ollama)", opts.Provider)
	}
}
