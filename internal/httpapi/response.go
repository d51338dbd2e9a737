package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/freeeve/chessbot/internal/board"
	"github.com/freeeve/chessbot/internal/bot"
	"github.com/freeeve/chessbot/internal/difficulty"
	"github.com/freeeve/chessbot/internal/engine"
	"github.com/freeeve/chessbot/internal/movecheck"
	"github.com/freeeve/chessbot/internal/store"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateGameRequest starts a bot game.
type CreateGameRequest struct {
	Tier  string `json:"tier"`
	Color string `json:"color,omitempty"` // "w" (default) or "b"
}

// MoveRequest plays one move, in coordinate notation or as from/to squares.
type MoveRequest struct {
	Move      string `json:"move,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`
}

func (m MoveRequest) uci() string {
	if m.Move != "" {
		return m.Move
	}
	return movecheck.MoveRequest{From: m.From, To: m.To, Promotion: m.Promotion}.UCI()
}

// BestMoveRequest asks for a move in an arbitrary position.
type BestMoveRequest struct {
	FEN   string   `json:"fen"`
	Tier  string   `json:"tier"`
	Moves []string `json:"moves,omitempty"`
}

// BestMoveResponse carries the move; Move is empty and Fallback set when the
// engine produced nothing in time.
type BestMoveResponse struct {
	Move     string `json:"move"`
	Fallback bool   `json:"fallback,omitempty"`
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
	// Don't call http.Error after setting headers - it causes "superfluous WriteHeader"
}

func writeStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps domain errors to HTTP statuses.
func statusOf(err error) int {
	var se *movecheck.StatusError
	switch {
	case errors.As(err, &se):
		return se.Code
	case errors.Is(err, board.ErrMalformedPosition),
		errors.Is(err, board.ErrIllegalMove),
		errors.Is(err, difficulty.ErrUnknownTier):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrEngineUnavailable),
		errors.Is(err, bot.ErrTooManyGames),
		errors.Is(err, store.ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeStatus(w, statusOf(err), ErrorResponse{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeStatus(w, http.StatusBadRequest, ErrorResponse{Error: msg})
}

// decode reads a JSON body of at most 64 KiB.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
