package bot

import (
	"math"
	"time"

	"github.com/freeeve/chessbot/internal/difficulty"
)

// QuickConfig describes how the quick search weakens a tier.
type QuickConfig struct {
	StrengthOffset int     // subtracted from the strength
	DepthOffset    int     // subtracted from the depth
	TimeScale      float64 // multiplies the time budget
}

func (q QuickConfig) withDefaults() QuickConfig {
	if q.StrengthOffset == 0 {
		q.StrengthOffset = 5
	}
	if q.DepthOffset == 0 {
		q.DepthOffset = 3
	}
	if q.TimeScale <= 0 || q.TimeScale > 1 {
		q.TimeScale = 0.6
	}
	return q
}

// QuickParams returns the cheaper, weaker search used for the quick route.
// Strength stays within the engine's skill range and depth is at least one.
func QuickParams(p difficulty.Params, q QuickConfig) difficulty.Params {
	q = q.withDefaults()
	p.Strength = max(difficulty.MinStrength, min(difficulty.MaxStrength, p.Strength-q.StrengthOffset))
	p.Depth = max(1, p.Depth-q.DepthOffset)
	p.TimeBudget = max(time.Millisecond, time.Duration(math.Round(float64(p.TimeBudget)*q.TimeScale)))
	return p
}
