package rank

import (
	"math"
	"time"

	"github.com/rcliao/tiered-memory/internal/model"
)

// DecayFactor combines half-life recency since creation, access frequency and
// importance.
// It is strictly positive, so decay alone never removes a record.
func DecayFactor(r model.Record, now time.Time, halfLifeDays float64) float64 {
	ageDays := now.Sub(r.CreatedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}

	recency := math.Exp(-ageDays * math.Ln2 / halfLifeDays)
	access := 1 + 0.1*math.Log1p(float64(max(r.AccessCount, 0)))
	importance := 0.5 + 0.5*clamp01(r.Importance)
	return recency * access * importance
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
