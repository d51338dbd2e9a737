package movecheck

import (
	"context"
	"net/http"

	"github.com/freeeve/chessbot/internal/board"
)

// Game statuses reported in MoveResponse.Status.
const (
	StatusActive    = "active"
	StatusCheckmate = "checkmate"
	StatusStalemate = "stalemate"
	StatusDraw      = "draw"
)

// DrawStatus names a drawn board status: stalemate keeps its own status and
// the other draw rules report StatusDraw.
func DrawStatus(st board.Status) string {
	if st == board.StatusStalemate {
		return StatusStalemate
	}
	return StatusDraw
}

// Local validates moves against in-process boards. Lookup finds the board of
// a game; callers serialize access to each board.
type Local struct {
	Lookup func(gameID string) (*board.Game, bool)
}

// Submit plays req on the game's board.
func (l *Local) Submit(ctx context.Context, req MoveRequest) (MoveResponse, error) {
	if err := ctx.Err(); err != nil {
		return MoveResponse{}, err
	}
	g, ok := l.Lookup(req.GameID)
	if !ok {
		return MoveResponse{}, StatusFor(http.StatusNotFound, req.GameID)
	}
	if st := g.Status(); st != board.StatusOngoing {
		return MoveResponse{}, StatusFor(http.StatusConflict, "game is over")
	}
	if err := g.Play(req.UCI()); err != nil {
		return MoveResponse{}, StatusFor(http.StatusBadRequest, err.Error())
	}
	return Describe(g), nil
}

// Describe reports the current state of g.
func Describe(g *board.Game) MoveResponse {
	resp := MoveResponse{
		Success: true,
		FEN:     g.FEN(),
		PGN:     g.PGN(),
		Turn:    g.SideToMove(),
		Status:  StatusActive,
	}
	st := g.Status()
	switch {
	case st == board.StatusCheckmate:
		resp.Status = StatusCheckmate
		// The side to move has been mated.
		if resp.Turn == "w" {
			resp.Result = "0-1"
		} else {
			resp.Result = "1-0"
		}
	case st.Drawn():
		resp.Status = DrawStatus(st)
		resp.Result = "1/2-1/2"
	}
	return resp
}
