// Package difficulty holds the static tier table that maps a difficulty
// level to engine search parameters.
package difficulty

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Tier is a named difficulty level.
type Tier string

const (
	Easy     Tier = "easy"
	Moderate Tier = "moderate"
	Hard     Tier = "hard"
)

// ErrUnknownTier is returned by ParseTier for names outside the table.
var ErrUnknownTier = errors.New("unknown difficulty tier")

// Engine skill bounds (Stockfish "Skill Level").
const (
	MinStrength = 0
	MaxStrength = 20
)

// Params are the search parameters of one tier, plus the bounds that
// adjusted parameters are clamped to.
type Params struct {
	Strength    int
	Depth       int
	TimeBudget  time.Duration
	Randomness  float64 // chance a move is routed through the quick search
	BlunderRate float64 // chance a move is replaced by a random legal move

	MinDepth       int
	MaxDepth       int
	MinTime        time.Duration
	MaxTime        time.Duration
	MaxRandomness  float64
	MaxBlunderRate float64
}

var table = map[Tier]Params{
	Easy: {
		Strength:       3,
		Depth:          4,
		TimeBudget:     300 * time.Millisecond,
		Randomness:     0.4,
		BlunderRate:    0.08,
		MinDepth:       1,
		MaxDepth:       8,
		MinTime:        100 * time.Millisecond,
		MaxTime:        600 * time.Millisecond,
		MaxRandomness:  0.5,
		MaxBlunderRate: 0.15,
	},
	Moderate: {
		Strength:       10,
		Depth:          8,
		TimeBudget:     600 * time.Millisecond,
		Randomness:     0.2,
		BlunderRate:    0.03,
		MinDepth:       4,
		MaxDepth:       12,
		MinTime:        300 * time.Millisecond,
		MaxTime:        900 * time.Millisecond,
		MaxRandomness:  0.35,
		MaxBlunderRate: 0.10,
	},
	Hard: {
		Strength:       18,
		Depth:          14,
		TimeBudget:     900 * time.Millisecond,
		Randomness:     0.05,
		BlunderRate:    0,
		MinDepth:       10,
		MaxDepth:       18,
		MinTime:        600 * time.Millisecond,
		MaxTime:        1050 * time.Millisecond,
		MaxRandomness:  0.2,
		MaxBlunderRate: 0.05,
	},
}

// All returns the tiers from weakest to strongest.
func All() []Tier {
	return []Tier{Easy, Moderate, Hard}
}

// Resolve returns the parameters of a tier. An unknown tier is a programming
// error and panics.
func Resolve(t Tier) Params {
	p, ok := table[t]
	if !ok {
		panic(fmt.Sprintf("difficulty: unknown tier %q", string(t)))
	}
	return p
}

// ParseTier validates an untrusted tier name.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := table[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
	return t, nil
}

// Adjustment is a bounded delta applied on top of a tier's base parameters.
type Adjustment struct {
	DepthDelta      int           `json:"depthDelta"`
	RandomnessDelta float64       `json:"randomnessDelta"`
	BlunderDelta    float64       `json:"blunderDelta"`
	ThinkTimeDelta  time.Duration `json:"thinkTimeDelta"`
}

// Apply combines the base parameters with an adjustment and an extra depth
// bonus, then clamps every field to the tier bounds.
func (p Params) Apply(adj Adjustment, depthBonus int) Params {
	out := p
	out.Depth = clampInt(p.Depth+adj.DepthDelta+depthBonus, p.MinDepth, p.MaxDepth)
	out.TimeBudget = clampDuration(p.TimeBudget+adj.ThinkTimeDelta, p.MinTime, p.MaxTime)
	out.Randomness = clampFloat(p.Randomness+adj.RandomnessDelta, 0, p.MaxRandomness)
	out.BlunderRate = clampFloat(p.BlunderRate+adj.BlunderDelta, 0, p.MaxBlunderRate)
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
