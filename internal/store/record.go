package store

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Result is a game result from the player's point of view.
type Result string

const (
	Win  Result = "win"
	Loss Result = "loss"
	Draw Result = "draw"
)

// ParseResult validates a result string.
func ParseResult(s string) (Result, error) {
	switch r := Result(strings.ToLower(strings.TrimSpace(s))); r {
	case Win, Loss, Draw:
		return r, nil
	}
	return "", fmt.Errorf("invalid result %q", s)
}

// GameOutcome is one finished game in a player's recent history.
type GameOutcome struct {
	Result    Result    `json:"result"`
	MoveCount int       `json:"moveCount"`
	Patterns  []string  `json:"patterns,omitempty"`
	At        time.Time `json:"at"`
}

// TrickPattern counts how often a named trick or repeated opening was seen.
type TrickPattern struct {
	ID       string    `json:"id"`
	Count    int       `json:"count"`
	LastSeen time.Time `json:"lastSeen"`
}

// HistoryRecord is the per-player blob kept by a HistoryRepository.
type HistoryRecord struct {
	Recent     []GameOutcome           `json:"recent"`
	WinStreak  int                     `json:"winStreak"`
	LossStreak int                     `json:"lossStreak"`
	Tricks     map[string]TrickPattern `json:"tricks,omitempty"`
	// Openings counts the opening signatures (first plies, space separated)
	// of the player's past games.
	Openings  map[string]int `json:"openings,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy of r.
func (r HistoryRecord) Clone() HistoryRecord {
	out := r
	out.Recent = make([]GameOutcome, len(r.Recent))
	for i, o := range r.Recent {
		o.Patterns = slices.Clone(o.Patterns)
		out.Recent[i] = o
	}
	out.Tricks = maps.Clone(r.Tricks)
	out.Openings = maps.Clone(r.Openings)
	return out
}

// Pattern is one learned opening row for a player. Wins and Losses count
// games the bot won and lost with this opening sequence.
type Pattern struct {
	PlayerID    string    `json:"playerId" bson:"playerId"`
	Signature   string    `json:"signature" bson:"signature"`
	Opening     string    `json:"opening" bson:"opening"`
	OpeningName string    `json:"openingName,omitempty" bson:"openingName,omitempty"`
	Frequency   int       `json:"frequency" bson:"frequency"`
	Wins        int       `json:"wins" bson:"wins"`
	Losses      int       `json:"losses" bson:"losses"`
	Draws       int       `json:"draws" bson:"draws"`
	Blunders    int       `json:"blunders" bson:"blunders"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	LastUsed    time.Time `json:"lastUsed" bson:"lastUsed"`
}

// PatternDelta is one recorded game applied to a pattern row.
type PatternDelta struct {
	PlayerID    string
	Signature   string
	Opening     string
	OpeningName string
	Wins        int
	Losses      int
	Draws       int
	Blunders    int
	At          time.Time
}

func (p *Pattern) apply(d PatternDelta) {
	p.Frequency++
	p.Wins += d.Wins
	p.Losses += d.Losses
	p.Draws += d.Draws
	p.Blunders += d.Blunders
	p.Opening = d.Opening
	if d.OpeningName != "" {
		p.OpeningName = d.OpeningName
	}
	p.LastUsed = d.At
}
