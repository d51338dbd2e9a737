package board

import (
	"fmt"

	"github.com/freeeve/pgn/v3"
)

// Game is a locally validated game: a starting FEN plus the UCI moves played.
// Bot games are validated here rather than by the remote move service.
// A Game is not safe for concurrent use.
type Game struct {
	startFEN string
	pos      *pgn.GameState
	moves    []string
	sans     []string
	seen     map[string]int // repetition key -> occurrences
}

// NewGame starts a game from fen (StartFEN when empty).
func NewGame(fen string) (*Game, error) {
	if fen == "" {
		fen = StartFEN
	}
	pos, err := ValidateFEN(fen)
	if err != nil {
		return nil, err
	}
	g := &Game{startFEN: fen, pos: pos, seen: make(map[string]int)}
	g.seen[repetitionKey(pos.ToFEN())]++
	return g, nil
}

// Play applies a UCI move if it is legal and the game is not over.
func (g *Game) Play(uci string) error {
	mv, ok := FindMove(g.pos, uci)
	if !ok {
		return fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}
	san := SAN(g.pos, mv)
	if err := pgn.ApplyMove(g.pos, mv); err != nil {
		return fmt.Errorf("apply %s: %w", uci, err)
	}
	g.moves = append(g.moves, MvToUCI(mv))
	g.sans = append(g.sans, san)
	g.seen[repetitionKey(g.pos.ToFEN())]++
	return nil
}

// FEN returns the current position.
func (g *Game) FEN() string {
	return g.pos.ToFEN()
}

// StartFEN returns the position the game started from.
func (g *Game) StartFEN() string {
	return g.startFEN
}

// Moves returns a copy of the UCI moves played so far.
func (g *Game) Moves() []string {
	out := make([]string, len(g.moves))
	copy(out, g.moves)
	return out
}

// SANs returns a copy of the moves in standard algebraic notation.
func (g *Game) SANs() []string {
	out := make([]string, len(g.sans))
	copy(out, g.sans)
	return out
}

// PGN returns the numbered movetext of the game.
func (g *Game) PGN() string {
	return MoveText(g.sans, FullMoveNumber(g.startFEN), SideToMove(g.startFEN) == "b")
}

// Ply returns the number of half-moves played.
func (g *Game) Ply() int {
	return len(g.moves)
}

// SideToMove returns "w" or "b".
func (g *Game) SideToMove() string {
	return SideToMove(g.FEN())
}

// Status reports whether the game is over, including threefold repetition.
func (g *Game) Status() Status {
	st := StatusOf(g.pos)
	if st == StatusOngoing && g.seen[repetitionKey(g.pos.ToFEN())] >= 3 {
		return StatusRepetition
	}
	return st
}
