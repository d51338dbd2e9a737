// Package board wraps the pgn library with the position helpers the bot needs:
// FEN validation, UCI move conversion, legality checks and game status.
package board

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/freeeve/pgn/v3"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	// ErrMalformedPosition is returned for a board string that is not a valid FEN.
	ErrMalformedPosition = errors.New("malformed position")
	// ErrIllegalMove is returned when a move is not legal in the position.
	ErrIllegalMove = errors.New("illegal move")
	// ErrNoLegalMoves is returned when the side to move has no legal move.
	ErrNoLegalMoves = errors.New("no legal moves")
)

// Status describes whether a game can continue.
type Status int

const (
	StatusOngoing Status = iota
	StatusCheckmate
	StatusStalemate
	StatusInsufficientMaterial
	StatusFiftyMoves
	StatusRepetition
)

// fiftyMoveHalfmoves is the halfmove clock at which the game is drawn.
const fiftyMoveHalfmoves = 100

func (s Status) String() string {
	switch s {
	case StatusCheckmate:
		return "checkmate"
	case StatusStalemate:
		return "stalemate"
	case StatusInsufficientMaterial:
		return "insufficient-material"
	case StatusFiftyMoves:
		return "fifty-moves"
	case StatusRepetition:
		return "repetition"
	default:
		return "ongoing"
	}
}

// Drawn reports whether s ends the game without a winner.
func (s Status) Drawn() bool {
	return s != StatusOngoing && s != StatusCheckmate
}

// ValidateFEN parses a FEN string, returning ErrMalformedPosition if it is invalid.
func ValidateFEN(fen string) (*pgn.GameState, error) {
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return nil, fmt.Errorf("%w: expected at least 4 fields, got %d", ErrMalformedPosition, len(fields))
	}
	if fields[1] != "w" && fields[1] != "b" {
		return nil, fmt.Errorf("%w: bad side to move %q", ErrMalformedPosition, fields[1])
	}
	if strings.Count(fields[0], "/") != 7 {
		return nil, fmt.Errorf("%w: expected 8 ranks", ErrMalformedPosition)
	}
	pos, err := pgn.NewGame(strings.Join(fields, " "))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPosition, err)
	}
	return pos, nil
}

// SideToMove returns "w" or "b" for a FEN string, or "" if it cannot be read.
func SideToMove(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

// FullMoveNumber returns the full-move counter of a FEN string (1 when absent).
func FullMoveNumber(fen string) int {
	fields := strings.Fields(fen)
	if len(fields) < 6 {
		return 1
	}
	n, err := strconv.Atoi(fields[5])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// MvToUCI converts a pgn move to UCI notation (e.g., "e2e4", "e7e8q").
func MvToUCI(mv pgn.Mv) string {
	files := "abcdefgh"
	ranks := "12345678"

	uci := string(files[mv.From%8]) + string(ranks[mv.From/8]) +
		string(files[mv.To%8]) + string(ranks[mv.To/8])

	switch mv.Promo {
	case pgn.PromoQueen:
		uci += "q"
	case pgn.PromoRook:
		uci += "r"
	case pgn.PromoBishop:
		uci += "b"
	case pgn.PromoKnight:
		uci += "n"
	}
	return uci
}

// LegalUCI lists the legal moves of a position in UCI notation.
func LegalUCI(pos *pgn.GameState) []string {
	moves := pgn.GenerateLegalMoves(pos)
	out := make([]string, 0, len(moves))
	for _, mv := range moves {
		out = append(out, MvToUCI(mv))
	}
	return out
}

// FindMove returns the legal move matching a UCI string.
func FindMove(pos *pgn.GameState, uci string) (pgn.Mv, bool) {
	uci = strings.ToLower(strings.TrimSpace(uci))
	for _, mv := range pgn.GenerateLegalMoves(pos) {
		if MvToUCI(mv) == uci {
			return mv, true
		}
	}
	return pgn.Mv{}, false
}

// ApplyUCI plays a UCI move on pos if it is legal.
func ApplyUCI(pos *pgn.GameState, uci string) error {
	mv, ok := FindMove(pos, uci)
	if !ok {
		return fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}
	if err := pgn.ApplyMove(pos, mv); err != nil {
		return fmt.Errorf("apply %s: %w", uci, err)
	}
	return nil
}

// RandomLegalMove picks a uniformly random legal move; it is the fallback
// when the engine produced no move in time.
func RandomLegalMove(fen string, rnd *rand.Rand) (string, error) {
	pos, err := ValidateFEN(fen)
	if err != nil {
		return "", err
	}
	moves := LegalUCI(pos)
	if len(moves) == 0 {
		return "", ErrNoLegalMoves
	}
	return moves[rnd.Intn(len(moves))], nil
}

// StatusOf reports how the game stands for the side to move. Mate and
// stalemate win over the draw rules; repetition needs the game history and
// is left to Game.Status.
func StatusOf(pos *pgn.GameState) Status {
	if len(pgn.GenerateLegalMoves(pos)) == 0 {
		if pos.IsInCheck() {
			return StatusCheckmate
		}
		return StatusStalemate
	}
	if insufficientMaterial(pos.ToFEN()) {
		return StatusInsufficientMaterial
	}
	if pos.Halfmove >= fiftyMoveHalfmoves {
		return StatusFiftyMoves
	}
	return StatusOngoing
}

// insufficientMaterial reports king against king, or king and a single
// minor piece against a bare king.
func insufficientMaterial(fen string) bool {
	placement, _, _ := strings.Cut(fen, " ")
	minors := 0
	for _, c := range placement {
		switch c {
		case 'k', 'K', '/', '1', '2', '3', '4', '5', '6', '7', '8':
		case 'n', 'N', 'b', 'B':
			minors++
		default:
			return false
		}
	}
	return minors <= 1
}

// repetitionKey identifies a position for repetition: placement, side to
// move, castling rights and en passant square.
func repetitionKey(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) > 4 {
		fields = fields[:4]
	}
	return strings.Join(fields, " ")
}

// clone copies a position through its packed form.
func clone(pos *pgn.GameState) *pgn.GameState {
	return pos.Pack().Unpack()
}
