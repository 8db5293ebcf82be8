// Package mock provides a deterministic embedder for tests.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"
)

// Embedder builds a vector as the normalized sum of one pseudo-random vector
// per token, so texts sharing tokens score closer together.
type Embedder struct {
	dims  int
	calls atomic.Int64

	mu    sync.Mutex
	err   error
	fixed map[string][]float32
}

// New creates a mock embedder with the given dimensionality.
func New(dims int) *Embedder {
	if dims <= 0 {
		dims = 256
	}
	return &Embedder{dims: dims, fixed: make(map[string][]float32)}
}

// Set pins the vector returned for an exact text.
func (m *Embedder) Set(text string, v []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixed[text] = v
}

// Fail makes every following Embed call return err. Pass nil to recover.
func (m *Embedder) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Embed has been invoked.
func (m *Embedder) Calls() int64 {
	return m.calls.Load()
}

func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	err := m.err
	v, pinned := m.fixed[text]
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if pinned {
		return v, nil
	}

	out := make([]float32, m.dims)
	for _, tok := range tokens(text) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		seed := h.Sum64()
		for i := range out {
			seed = seed*6364136223846793005 + 1442695040888963407
			out[i] += float32(int64(seed)) / float32(math.MaxInt64)
		}
	}
	return normalize(out), nil
}

func (m *Embedder) Dims() int { return m.dims }

// tokens splits on whitespace and treats each CJK ideograph as its own token.
func tokens(text string) []string {
	var out []string
	for _, field := range strings.Fields(strings.ToLower(text)) {
		var word []rune
		for _, r := range field {
			if unicode.Is(unicode.Han, r) {
				if len(word) > 0 {
					out = append(out, string(word))
					word = nil
				}
				out = append(out, string(r))
				continue
			}
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				word = append(word, r)
			}
		}
		if len(word) > 0 {
			out = append(out, string(word))
		}
	}
	return out
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}
