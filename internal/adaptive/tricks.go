package adaptive

import (
	"slices"

	"github.com/freeeve/chessbot/internal/board"
)

// Named trick ids reported by DetectTrick.
const (
	TrickScholarsMate     = "scholars-mate"
	TrickFriedLiver       = "fried-liver"
	TrickFoolsMateSetup   = "fools-mate-setup"
	TrickEarlyQueenSortie = "early-queen-sortie"
)

// RepeatPrefix prefixes the id of a repeated-opening match.
const RepeatPrefix = "repeat:"

// Named tricks are only looked for up to this full move.
const trickWindow = 12

type trick struct {
	id    string
	match func(moves []string) bool
}

// Checked in order; the first match wins.
var tricks = []trick{
	{TrickScholarsMate, scholarsMate},
	{TrickFriedLiver, friedLiver},
	{TrickFoolsMateSetup, foolsMateSetup},
	{TrickEarlyQueenSortie, earlyQueenSortie},
}

// DetectTrick checks moves (UCI, from the standard start) against the named
// trick shapes and then against opening signatures this player has used at
// least twice before. It returns the first matching id or "".
func (c *Controller) DetectTrick(fen string, moves []string) string {
	if fen == "" || board.FullMoveNumber(fen) <= trickWindow {
		for _, t := range tricks {
			if t.match(moves) {
				return t.id
			}
		}
	}

	sig, ok := signature(moves, c.cfg.SignaturePlies)
	if !ok {
		return ""
	}
	c.mu.Lock()
	seen := c.rec.Openings[sig]
	c.mu.Unlock()
	if seen >= 2 {
		return RepeatPrefix + sig
	}
	return ""
}

// sideMoves returns the first n moves of one side (0 white, 1 black).
func sideMoves(moves []string, side, n int) []string {
	var out []string
	for i := side; i < len(moves) && len(out) < n; i += 2 {
		out = append(out, moves[i])
	}
	return out
}

func scholarsMate(moves []string) bool {
	white := sideMoves(moves, 0, 4)
	queen := slices.Contains(white, "d1h5") || slices.Contains(white, "d1f3")
	return queen && slices.Contains(white, "f1c4")
}

var friedLiverLine = []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1c4", "g8f6", "f3g5"}

func friedLiver(moves []string) bool {
	return len(moves) >= len(friedLiverLine) && slices.Equal(moves[:len(friedLiverLine)], friedLiverLine)
}

func foolsMateSetup(moves []string) bool {
	opening := moves[:min(4, len(moves))]
	white := (slices.Contains(opening, "f2f3") || slices.Contains(opening, "f2f4")) && slices.Contains(opening, "g2g4")
	black := (slices.Contains(opening, "f7f6") || slices.Contains(opening, "f7f5")) && slices.Contains(opening, "g7g5")
	return white || black
}

func earlyQueenSortie(moves []string) bool {
	for _, mv := range sideMoves(moves, 0, 3) {
		if len(mv) >= 4 && mv[:2] == "d1" {
			return true
		}
	}
	for _, mv := range sideMoves(moves, 1, 3) {
		if len(mv) >= 4 && mv[:2] == "d8" {
			return true
		}
	}
	return false
}
