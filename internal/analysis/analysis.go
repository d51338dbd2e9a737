// Package analysis finds a player's blunders in a finished game by replaying
// it through an evaluating engine.
package analysis

import (
	"context"
	"fmt"

	"github.com/freeeve/chessbot/internal/board"
	"github.com/freeeve/chessbot/internal/logx"
	"github.com/rs/zerolog"
)

// mateScore is the centipawn value given to a forced mate.
const mateScore = 10000

// Score is an evaluation from white's point of view.
type Score struct {
	CP     int
	Mate   int // moves to mate, negative when black mates
	IsMate bool
}

// Centipawns folds mate scores into a large centipawn value.
func (s Score) Centipawns() int {
	if !s.IsMate {
		return s.CP
	}
	if s.Mate >= 0 {
		return mateScore - s.Mate
	}
	return -mateScore - s.Mate
}

// Evaluator scores a position.
type Evaluator interface {
	Evaluate(ctx context.Context, fen string) (Score, error)
}

// Config configures an Analyzer.
type Config struct {
	Evaluator Evaluator
	// Threshold is the evaluation drop, in centipawns for the mover, that
	// makes a move a blunder.
	Threshold int
	Logger    zerolog.Logger
}

// Analyzer reports blunders in a move list.
type Analyzer struct {
	cfg Config
	log zerolog.Logger
}

// New creates an Analyzer.
func New(cfg Config) *Analyzer {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 200
	}
	return &Analyzer{
		cfg: cfg,
		log: logx.Component(cfg.Logger, "analysis"),
	}
}

// Blunder is one move that lost at least the threshold.
type Blunder struct {
	Ply    int    `json:"ply"`
	Move   string `json:"move"`
	Square string `json:"square"`
	Drop   int    `json:"drop"`
}

// Blunders replays moves from startFEN and returns the moves of side ("w",
// "b", or "" for both) whose evaluation drop reached the threshold.
func (a *Analyzer) Blunders(ctx context.Context, startFEN string, moves []string, side string) ([]Blunder, error) {
	if startFEN == "" {
		startFEN = board.StartFEN
	}
	pos, err := board.ValidateFEN(startFEN)
	if err != nil {
		return nil, err
	}

	before, err := a.cfg.Evaluator.Evaluate(ctx, startFEN)
	if err != nil {
		return nil, fmt.Errorf("evaluate start: %w", err)
	}

	var out []Blunder
	for i, uci := range moves {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		mover := board.SideToMove(pos.ToFEN())
		if err := board.ApplyUCI(pos, uci); err != nil {
			return out, fmt.Errorf("ply %d: %w", i+1, err)
		}
		fen := pos.ToFEN()

		var after Score
		switch board.StatusOf(pos) {
		case board.StatusCheckmate:
			after = Score{CP: mateScore}
			if mover == "b" {
				after.CP = -mateScore
			}
		case board.StatusOngoing:
			after, err = a.cfg.Evaluator.Evaluate(ctx, fen)
			if err != nil {
				return out, fmt.Errorf("evaluate ply %d: %w", i+1, err)
			}
		default:
			after = Score{}
		}

		drop := before.Centipawns() - after.Centipawns()
		if mover == "b" {
			drop = -drop
		}
		if (side == "" || side == mover) && drop >= a.cfg.Threshold {
			out = append(out, Blunder{Ply: i + 1, Move: uci, Square: uci[2:4], Drop: drop})
			a.log.Debug().Int("ply", i+1).Str("move", uci).Int("drop", drop).Msg("blunder")
		}
		before = after
	}
	return out, nil
}

// BlunderSquares returns the destination squares of side's blunders.
func (a *Analyzer) BlunderSquares(ctx context.Context, startFEN string, moves []string, side string) ([]string, error) {
	blunders, err := a.Blunders(ctx, startFEN, moves, side)
	if err != nil {
		return nil, err
	}
	squares := make([]string, 0, len(blunders))
	for _, b := range blunders {
		squares = append(squares, b.Square)
	}
	return squares, nil
}
