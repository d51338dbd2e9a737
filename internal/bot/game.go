package bot

import (
	"sync"
	"time"

	"github.com/freeeve/chessbot/internal/board"
	"github.com/freeeve/chessbot/internal/difficulty"
	"github.com/freeeve/chessbot/internal/movecheck"
	"github.com/freeeve/chessbot/internal/store"
)

// Game statuses beyond the board statuses reported by movecheck.
const (
	StatusResigned = "resigned"
)

// GameState is the public view of a bot game.
type GameState struct {
	ID          string          `json:"gameId"`
	PlayerID    string          `json:"playerId"`
	Tier        difficulty.Tier `json:"tier"`
	PlayerColor string          `json:"playerColor"`
	FEN         string          `json:"fen"`
	PGN         string          `json:"pgn"`
	Moves       []string        `json:"moves"`
	SAN         []string        `json:"san"`
	Turn        string          `json:"turn"`
	Status      string          `json:"status"`
	// Result is the player's result once the game is over.
	Result store.Result `json:"result,omitempty"`
	// BotMove is the reply to the last player move.
	BotMove string `json:"botMove,omitempty"`
	// Fallback is set when BotMove was substituted because the engine gave
	// no move in time.
	Fallback  bool      `json:"fallback,omitempty"`
	Tricks    []string  `json:"tricks,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// game is one live bot game. mu serializes moves.
type game struct {
	mu sync.Mutex

	id          string
	playerID    string
	tier        difficulty.Tier
	playerColor string
	board       *board.Game
	bot         *Bot

	status    string
	result    store.Result
	botMove   string
	fallback  bool
	tricks    []string
	reported  bool
	createdAt time.Time
	updatedAt time.Time
}

// over reports whether no more moves can be played. Called with mu held.
func (g *game) over() bool {
	return g.status != movecheck.StatusActive
}

// settle derives status and the player's result from the board. Called with
// mu held.
func (g *game) settle() {
	st := g.board.Status()
	switch {
	case st == board.StatusCheckmate:
		g.status = movecheck.StatusCheckmate
		if g.board.SideToMove() == g.playerColor {
			g.result = store.Loss
		} else {
			g.result = store.Win
		}
	case st.Drawn():
		g.status = movecheck.DrawStatus(st)
		g.result = store.Draw
	}
}

func (g *game) addTrick(id string) {
	if id == "" {
		return
	}
	for _, t := range g.tricks {
		if t == id {
			return
		}
	}
	g.tricks = append(g.tricks, id)
}

// state snapshots the game. Called with mu held.
func (g *game) state() GameState {
	return GameState{
		ID:          g.id,
		PlayerID:    g.playerID,
		Tier:        g.tier,
		PlayerColor: g.playerColor,
		FEN:         g.board.FEN(),
		PGN:         g.board.PGN(),
		Moves:       g.board.Moves(),
		SAN:         g.board.SANs(),
		Turn:        g.board.SideToMove(),
		Status:      g.status,
		Result:      g.result,
		BotMove:     g.botMove,
		Fallback:    g.fallback,
		Tricks:      append([]string(nil), g.tricks...),
		CreatedAt:   g.createdAt,
		UpdatedAt:   g.updatedAt,
	}
}
