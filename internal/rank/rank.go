// Package rank scores long-term records against a query by fusing vector
// similarity, lexical overlap and time decay.
package rank

import (
	"context"
	"sort"
	"time"

	"github.com/rcliao/tiered-memory/internal/embedding"
	"github.com/rcliao/tiered-memory/internal/model"
)

// Fusion weights for hybrid scoring.
const (
	VectorWeight  = 0.7
	LexicalWeight = 0.3
)

// DefaultHalfLifeDays is the decay half-life when none is configured.
const DefaultHalfLifeDays = 30.0

// Options controls a scoring pass.
type Options struct {
	TopK     int // <= 0 means unbounded
	MinScore float64
	Lexical  bool
	Decay    bool
	// HalfLifeDays applies when Decay is set.
	HalfLifeDays float64
	Category     string
	// Touch bumps access statistics of returned records. Used by Searcher only.
	Touch bool
	// Now overrides the clock for decay.
	Now time.Time
}

// Scored is a record with its composite score.
type Scored struct {
	Record     model.Record `json:"record"`
	Score      float64      `json:"score"`
	Similarity float64      `json:"similarity"`
}

// checkEvery is how many candidates are scored between deadline checks.
const checkEvery = 64

// Score ranks candidates against query. Candidates without a usable embedding
// are skipped. If ctx ends mid-scan the candidates scored so far are returned.
func Score(ctx context.Context, query embedding.Vector, queryText string, candidates []model.Record, opts Options) []Scored {
	if len(candidates) == 0 || len(query) == 0 || embedding.IsZero(query) {
		return nil
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	halfLife := opts.HalfLifeDays
	if halfLife <= 0 {
		halfLife = DefaultHalfLifeDays
	}

	var queryTokens []string
	if opts.Lexical {
		queryTokens = distinct(Tokenize(queryText))
	}

	var out []Scored
	for i, c := range candidates {
		if i%checkEvery == 0 && ctx.Err() != nil {
			break
		}
		if opts.Category != "" && c.Category != opts.Category {
			continue
		}
		if len(c.Embedding) != len(query) || embedding.IsZero(c.Embedding) {
			continue
		}

		sim := embedding.CosineSimilarity(query, c.Embedding)
		score := sim
		if opts.Lexical {
			score = VectorWeight*sim + LexicalWeight*LexicalScore(queryTokens, c.Content)
		}
		if opts.Decay {
			score *= DecayFactor(c, now, halfLife)
		}
		if score < opts.MinScore {
			continue
		}
		out = append(out, Scored{Record: c, Score: score, Similarity: sim})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Record.ID < out[j].Record.ID
	})

	if opts.TopK > 0 && len(out) > opts.TopK {
		out = out[:opts.TopK]
	}
	return out
}
