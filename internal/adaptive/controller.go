// Package adaptive tunes the bot's difficulty from a player's recent results.
package adaptive

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/freeeve/chessbot/internal/difficulty"
	"github.com/freeeve/chessbot/internal/logx"
	"github.com/freeeve/chessbot/internal/store"
	"github.com/rs/zerolog"
)

// Bounds of every adjustment the controller returns.
const (
	MaxDepthDelta      = 4
	MaxRandomnessDelta = 0.15
	MaxBlunderDelta    = 0.10
	MaxThinkTimeDelta  = 300 * time.Millisecond
)

// Config configures a Controller.
type Config struct {
	PlayerID string
	Repo     store.HistoryRepository

	HistorySize    int // outcomes kept, oldest dropped first
	FastWinMoves   int // a win in fewer moves counts as fast
	SignaturePlies int // plies in a repeated-opening signature

	Logger zerolog.Logger
	Now    func() time.Time
}

// Controller tracks one player's streaks and recent games and persists them
// after every recorded game.
type Controller struct {
	cfg Config
	log zerolog.Logger

	mu  sync.Mutex
	rec store.HistoryRecord
}

// New creates a controller and loads the player's history. A failed load is
// logged and the controller starts from an empty history.
func New(ctx context.Context, cfg Config) *Controller {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 10
	}
	if cfg.FastWinMoves <= 0 {
		cfg.FastWinMoves = 25
	}
	if cfg.SignaturePlies <= 0 {
		cfg.SignaturePlies = 6
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	c := &Controller{
		cfg: cfg,
		log: logx.Component(cfg.Logger, "adaptive").With().Str("player", cfg.PlayerID).Logger(),
	}

	if cfg.Repo != nil {
		rec, err := cfg.Repo.Load(ctx, cfg.PlayerID)
		if err != nil {
			c.log.Warn().Err(err).Msg("history unavailable, starting fresh")
		} else {
			c.rec = rec
		}
	}
	return c
}

// RecordGame updates streaks, the bounded recent-history list and trick
// counters, then persists the record. moveCount is in full moves. The
// in-memory state is updated even when saving fails.
func (c *Controller) RecordGame(ctx context.Context, result store.Result, moveCount int, patterns []string) error {
	return c.record(ctx, result, moveCount, patterns, nil)
}

// RecordMoves is RecordGame for a full move list; it also counts the game's
// opening signature for repeated-opening detection.
func (c *Controller) RecordMoves(ctx context.Context, result store.Result, moves []string, patterns []string) error {
	return c.record(ctx, result, (len(moves)+1)/2, patterns, moves)
}

func (c *Controller) record(ctx context.Context, result store.Result, moveCount int, patterns []string, moves []string) error {
	now := c.cfg.Now()

	c.mu.Lock()
	switch result {
	case store.Win:
		c.rec.WinStreak++
		c.rec.LossStreak = 0
	case store.Loss:
		c.rec.LossStreak++
		c.rec.WinStreak = 0
	default:
		c.rec.WinStreak = 0
		c.rec.LossStreak = 0
	}

	c.rec.Recent = append(c.rec.Recent, store.GameOutcome{
		Result:    result,
		MoveCount: moveCount,
		Patterns:  append([]string(nil), patterns...),
		At:        now,
	})
	if over := len(c.rec.Recent) - c.cfg.HistorySize; over > 0 {
		c.rec.Recent = append([]store.GameOutcome(nil), c.rec.Recent[over:]...)
	}

	for _, id := range patterns {
		if c.rec.Tricks == nil {
			c.rec.Tricks = make(map[string]store.TrickPattern)
		}
		tp := c.rec.Tricks[id]
		tp.ID = id
		tp.Count++
		tp.LastSeen = now
		c.rec.Tricks[id] = tp
	}

	if sig, ok := signature(moves, c.cfg.SignaturePlies); ok {
		if c.rec.Openings == nil {
			c.rec.Openings = make(map[string]int)
		}
		c.rec.Openings[sig]++
	}

	c.rec.UpdatedAt = now
	snapshot := c.rec.Clone()
	c.mu.Unlock()

	c.log.Debug().
		Str("result", string(result)).
		Int("moves", moveCount).
		Int("win_streak", snapshot.WinStreak).
		Int("loss_streak", snapshot.LossStreak).
		Msg("game recorded")

	if c.cfg.Repo == nil {
		return nil
	}
	if err := c.cfg.Repo.Save(ctx, c.cfg.PlayerID, snapshot); err != nil {
		c.log.Warn().Err(err).Msg("history not saved")
		return err
	}
	return nil
}

// GetAdjustment derives the current bounded adjustment from the history.
func (c *Controller) GetAdjustment() difficulty.Adjustment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return AdjustmentFor(c.rec, c.cfg.FastWinMoves)
}

// AdjustmentFor sums every signal in rec and clamps the total.
func AdjustmentFor(rec store.HistoryRecord, fastWinMoves int) difficulty.Adjustment {
	var depth int
	var randomness, blunder float64
	var think time.Duration

	if n := rec.WinStreak; n >= 2 {
		k := n - 1
		depth += k
		randomness -= 0.05 * float64(k)
		blunder -= 0.03 * float64(k)
		think += time.Duration(k) * 100 * time.Millisecond
	}
	if n := rec.LossStreak; n >= 2 {
		k := n - 1
		depth -= k
		randomness += 0.05 * float64(k)
		blunder += 0.03 * float64(k)
		think -= time.Duration(k) * 100 * time.Millisecond
	}

	fastWins := 0
	for _, o := range rec.Recent {
		if o.Result == store.Win && o.MoveCount < fastWinMoves {
			fastWins++
		}
	}
	if fastWins >= 2 {
		depth++
		randomness -= 0.05
	}

	draws := 0
	last := rec.Recent
	if len(last) > 5 {
		last = last[len(last)-5:]
	}
	for _, o := range last {
		if o.Result == store.Draw {
			draws++
		}
	}
	if draws >= 3 {
		randomness += 0.1
	}

	return difficulty.Adjustment{
		DepthDelta:      clampInt(depth, MaxDepthDelta),
		RandomnessDelta: clampFloat(randomness, MaxRandomnessDelta),
		BlunderDelta:    clampFloat(blunder, MaxBlunderDelta),
		ThinkTimeDelta:  clampDuration(think, MaxThinkTimeDelta),
	}
}

// Snapshot returns a copy of the current record.
func (c *Controller) Snapshot() store.HistoryRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.Clone()
}

// Reset forgets the player's history, streaks and trick counters.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	c.rec = store.HistoryRecord{}
	c.mu.Unlock()

	if c.cfg.Repo == nil {
		return nil
	}
	if err := c.cfg.Repo.Delete(ctx, c.cfg.PlayerID); err != nil {
		c.log.Warn().Err(err).Msg("history not reset in storage")
		return err
	}
	c.log.Info().Msg("history reset")
	return nil
}

func signature(moves []string, plies int) (string, bool) {
	if len(moves) < plies {
		return "", false
	}
	return strings.Join(moves[:plies], " "), true
}

func clampInt(v, bound int) int {
	return max(-bound, min(bound, v))
}

func clampFloat(v, bound float64) float64 {
	return max(-bound, min(bound, v))
}

func clampDuration(v, bound time.Duration) time.Duration {
	return max(-bound, min(bound, v))
}
