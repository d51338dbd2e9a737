// Package movecheck validates moves. Multiplayer games go to the remote move
// service; bot games are checked locally because the opponent is synthetic.
// Both report failures with the same status-coded errors.
package movecheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/freeeve/chessbot/internal/board"
)

var (
	ErrInvalidMove  = errors.New("invalid move")
	ErrUnauthorized = errors.New("not authorized for game")
	ErrGameNotFound = errors.New("game not found")
	ErrStaleTurn    = errors.New("stale turn")
	ErrServer       = errors.New("move service failure")
)

// StatusError carries the HTTP-style status of a rejected move.
type StatusError struct {
	Code    int
	Message string
	Err     error
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%v (status %d)", e.Err, e.Code)
	}
	return fmt.Sprintf("%v (status %d): %s", e.Err, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error { return e.Err }

// StatusFor maps a status code to a StatusError.
func StatusFor(code int, msg string) *StatusError {
	var err error
	switch {
	case code == http.StatusBadRequest:
		err = ErrInvalidMove
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		err = ErrUnauthorized
	case code == http.StatusNotFound:
		err = ErrGameNotFound
	case code == http.StatusConflict:
		err = ErrStaleTurn
	default:
		err = ErrServer
	}
	return &StatusError{Code: code, Message: msg, Err: err}
}

// Code returns the status of err, or 500 for errors without one.
func Code(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return http.StatusInternalServerError
}

// MoveRequest is one move submission.
type MoveRequest struct {
	GameID    string `json:"gameId"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// UCI returns the move in coordinate notation.
func (r MoveRequest) UCI() string {
	return r.From + r.To + strings.ToLower(r.Promotion)
}

// ParseMove splits a coordinate move into a request.
func ParseMove(gameID, uci string) (MoveRequest, error) {
	m, err := board.ParseUCI(uci)
	if err != nil {
		return MoveRequest{}, StatusFor(http.StatusBadRequest, err.Error())
	}
	uci = m.ToUCI()
	req := MoveRequest{GameID: gameID, From: uci[0:2], To: uci[2:4]}
	if len(uci) == 5 {
		req.Promotion = uci[4:]
	}
	return req, nil
}

// MoveResponse is the game after an accepted move.
type MoveResponse struct {
	Success bool   `json:"success"`
	FEN     string `json:"fen"`
	PGN     string `json:"pgn"`
	Turn    string `json:"turn"`
	Status  string `json:"status"`
	Result  string `json:"result,omitempty"`
}

type playerKey struct{}

// WithPlayer returns ctx carrying the player a move is submitted for.
func WithPlayer(ctx context.Context, playerID string) context.Context {
	return context.WithValue(ctx, playerKey{}, playerID)
}

// PlayerFrom returns the player set by WithPlayer.
func PlayerFrom(ctx context.Context) string {
	s, _ := ctx.Value(playerKey{}).(string)
	return s
}

// Validator accepts or rejects a move.
type Validator interface {
	Submit(ctx context.Context, req MoveRequest) (MoveResponse, error)
}
