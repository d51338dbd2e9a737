// Package learn keeps long-horizon opening statistics per player and turns
// them into hints for the move search.
package learn

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/freeeve/chessbot/internal/eco"
	"github.com/freeeve/chessbot/internal/logx"
	"github.com/freeeve/chessbot/internal/store"
	"github.com/rs/zerolog"
)

// Config configures a Learner.
type Config struct {
	PlayerID string
	Store    store.PatternStore
	// ECO, when set, names the opening reached by the signature moves.
	ECO *eco.Database

	Plies    int // signature length
	Disabled bool

	Logger zerolog.Logger
	Now    func() time.Time
}

// Hints steer the search for the current game.
type Hints struct {
	// PunishFactor is an additive score the caller turns into extra depth.
	PunishFactor int `json:"punishFactor"`
	// DenyList holds signatures that have beaten the bot at least twice.
	DenyList []string `json:"denyList"`
	// TargetOpening is the player's most played opening code.
	TargetOpening string `json:"targetOpening,omitempty"`
}

// Learner records and queries one player's opening patterns.
type Learner struct {
	cfg     Config
	log     zerolog.Logger
	enabled atomic.Bool
}

// New creates a Learner.
func New(cfg Config) *Learner {
	if cfg.Plies <= 0 {
		cfg.Plies = 4
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	l := &Learner{
		cfg: cfg,
		log: logx.Component(cfg.Logger, "learn").With().Str("player", cfg.PlayerID).Logger(),
	}
	l.enabled.Store(!cfg.Disabled)
	return l
}

// SetEnabled turns learning on or off.
func (l *Learner) SetEnabled(on bool) {
	l.enabled.Store(on)
}

// Enabled reports whether learning is on.
func (l *Learner) Enabled() bool {
	return l.enabled.Load()
}

// Signature joins the first plies of moves, or returns false if there are
// not enough moves.
func Signature(moves []string, plies int) (string, bool) {
	if len(moves) < plies {
		return "", false
	}
	return strings.Join(moves[:plies], " "), true
}

// RecordPattern upserts the row for the game's opening signature. result is
// the player's result: a player win is counted as a loss for the bot.
// Disabled learning or a move list shorter than the signature is a no-op.
func (l *Learner) RecordPattern(ctx context.Context, moves []string, blunderSquares []string, result store.Result) error {
	if !l.Enabled() || l.cfg.Store == nil {
		return nil
	}
	sig, ok := Signature(moves, l.cfg.Plies)
	if !ok {
		return nil
	}
	prefix := moves[:l.cfg.Plies]
	code, name := Classify(prefix)
	if l.cfg.ECO != nil {
		if o := l.cfg.ECO.LookupMoves(prefix); o != nil {
			name = o.Name
		}
	}

	d := store.PatternDelta{
		PlayerID:    l.cfg.PlayerID,
		Signature:   sig,
		Opening:     code,
		OpeningName: name,
		Blunders:    len(blunderSquares),
		At:          l.cfg.Now(),
	}
	switch result {
	case store.Win:
		d.Losses = 1
	case store.Loss:
		d.Wins = 1
	default:
		d.Draws = 1
	}

	if err := l.cfg.Store.Upsert(ctx, d); err != nil {
		l.log.Warn().Err(err).Str("signature", sig).Msg("pattern not recorded")
		return err
	}
	l.log.Debug().Str("signature", sig).Str("opening", code).Str("result", string(result)).Msg("pattern recorded")
	return nil
}

// GetAdaptiveHints scores the current game against the stored patterns.
// Disabled learning, no patterns or an unavailable store give zero hints.
func (l *Learner) GetAdaptiveHints(ctx context.Context, current []string) Hints {
	if !l.Enabled() || l.cfg.Store == nil {
		return Hints{}
	}
	rows, err := l.cfg.Store.List(ctx, l.cfg.PlayerID)
	if err != nil {
		l.log.Warn().Err(err).Msg("patterns unavailable")
		return Hints{}
	}
	if len(rows) == 0 {
		return Hints{}
	}
	return score(rows, current, l.cfg.Plies)
}

func score(rows []store.Pattern, current []string, plies int) Hints {
	var h Hints
	for _, r := range rows {
		if r.Losses >= 2 {
			h.DenyList = append(h.DenyList, r.Signature)
		}
	}

	if sig, ok := Signature(current, plies); ok {
		for _, d := range h.DenyList {
			if d == sig {
				h.PunishFactor += 4
				break
			}
		}
	}

	if len(current) > 0 {
		code, _ := Classify(current[:min(plies, len(current))])
		wins, losses := 0, 0
		for _, r := range rows {
			if r.Opening == code {
				wins += r.Wins
				losses += r.Losses
			}
		}
		// Rows count from the bot's side: the bot leads this opening's record.
		if wins > losses {
			h.PunishFactor += 2
		}
	}

	for _, r := range rows {
		if r.Blunders >= 3 {
			h.PunishFactor++
			break
		}
	}

	byOpening := make(map[string]int)
	for _, r := range rows {
		byOpening[r.Opening] += r.Frequency
	}
	best := 0
	for code, n := range byOpening {
		if n > best || (n == best && code < h.TargetOpening) {
			best = n
			h.TargetOpening = code
		}
	}
	return h
}

// Patterns lists the player's stored rows.
func (l *Learner) Patterns(ctx context.Context) ([]store.Pattern, error) {
	if l.cfg.Store == nil {
		return nil, nil
	}
	return l.cfg.Store.List(ctx, l.cfg.PlayerID)
}

// Reset deletes every stored row of the player.
func (l *Learner) Reset(ctx context.Context) error {
	if l.cfg.Store == nil {
		return nil
	}
	if err := l.cfg.Store.DeletePlayer(ctx, l.cfg.PlayerID); err != nil {
		l.log.Warn().Err(err).Msg("patterns not reset")
		return err
	}
	return nil
}
