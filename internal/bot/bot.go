// Package bot is the move-producing façade: it owns one engine session and
// routes each move request through the normal search, the quick search or a
// deliberate blunder, with the player's adaptive adjustments applied.
package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/freeeve/chessbot/internal/adaptive"
	"github.com/freeeve/chessbot/internal/analysis"
	"github.com/freeeve/chessbot/internal/board"
	"github.com/freeeve/chessbot/internal/difficulty"
	"github.com/freeeve/chessbot/internal/engine"
	"github.com/freeeve/chessbot/internal/learn"
	"github.com/freeeve/chessbot/internal/logx"
	"github.com/freeeve/chessbot/internal/store"
	"github.com/rs/zerolog"
)

// Route is the path a move request took.
type Route string

const (
	RouteNormal  Route = "normal"
	RouteQuick   Route = "quick"
	RouteBlunder Route = "blunder"
)

// Config configures a Bot.
type Config struct {
	Launcher         engine.Launcher
	EngineOptions    []engine.Option
	HandshakeTimeout time.Duration
	Deadline         time.Duration // per search, default engine.DefaultDeadline

	Quick QuickConfig

	// Controller and Learner are optional; without them the tier's base
	// parameters are used unchanged.
	Controller *adaptive.Controller
	Learner    *learn.Learner
	// Analyzer, when set, finds the player's blunders for ReportGame.
	Analyzer *analysis.Analyzer

	// Rand drives routing and blunder moves. Nil seeds from the clock.
	Rand   *rand.Rand
	Logger zerolog.Logger
}

// Request is one move request. Moves is the game so far and feeds the
// opening hints; it may be empty.
type Request struct {
	FEN   string
	Tier  difficulty.Tier
	Moves []string
}

// Stats counts routed requests.
type Stats struct {
	Normal   uint64              `json:"normal"`
	Quick    uint64              `json:"quick"`
	Blunder  uint64              `json:"blunder"`
	NoMove   uint64              `json:"noMove"`
	Illegal  uint64              `json:"illegal"`
	Sessions engine.SessionStats `json:"session"`
	// EngineEpoch counts engine launches.
	EngineEpoch uint64 `json:"engineEpoch"`
}

// Bot produces moves for one game at a time.
type Bot struct {
	cfg  Config
	log  zerolog.Logger
	proc *engine.Process
	sess *engine.Session

	slot chan struct{} // one search at a time

	mu  sync.Mutex // guards rnd
	rnd *rand.Rand

	normal, quick, blunder, noMove, illegal atomic.Uint64
}

// New creates a Bot. The engine is not started until Init.
func New(cfg Config) *Bot {
	if cfg.Deadline <= 0 {
		cfg.Deadline = engine.DefaultDeadline
	}
	cfg.Quick = cfg.Quick.withDefaults()
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	log := logx.Component(cfg.Logger, "bot")
	proc := engine.NewProcess(engine.ProcessConfig{
		Launcher:         cfg.Launcher,
		Options:          cfg.EngineOptions,
		HandshakeTimeout: cfg.HandshakeTimeout,
		Logger:           cfg.Logger,
	})
	return &Bot{
		cfg:  cfg,
		log:  log,
		proc: proc,
		sess: engine.NewSession(proc, engine.SessionConfig{Deadline: cfg.Deadline, Logger: cfg.Logger}),
		slot: make(chan struct{}, 1),
		rnd:  cfg.Rand,
	}
}

// Init starts the engine. It is safe to call repeatedly; after Destroy it
// starts a fresh engine.
func (b *Bot) Init(ctx context.Context) error {
	if err := b.proc.Start(ctx); err != nil {
		b.log.Error().Err(err).Msg("engine init failed")
		return err
	}
	return nil
}

// GetBestMove returns a move for fen at the given tier. It returns "" with
// a nil error when no move could be produced in time; the caller decides
// how to continue. A malformed position or an engine that is not running
// is an error.
func (b *Bot) GetBestMove(ctx context.Context, fen string, tier difficulty.Tier) (string, error) {
	return b.Move(ctx, Request{FEN: fen, Tier: tier})
}

// Move is GetBestMove with the game's move list.
func (b *Bot) Move(ctx context.Context, req Request) (string, error) {
	return b.moveWith(ctx, req, b.cfg.Controller, b.cfg.Learner)
}

// moveWith serves req with the given adaptive state, which may be nil.
func (b *Bot) moveWith(ctx context.Context, req Request, ctrl *adaptive.Controller, lrn *learn.Learner) (string, error) {
	pos, err := board.ValidateFEN(req.FEN)
	if err != nil {
		return "", err
	}
	if !b.proc.IsReady() {
		return "", fmt.Errorf("%w: state %s", engine.ErrEngineUnavailable, b.proc.State())
	}

	start := time.Now()
	params := resolveParams(ctx, req, ctrl, lrn)

	// Waiting for the engine counts against the deadline.
	wait := time.NewTimer(max(b.cfg.Deadline-time.Since(start), 0))
	defer wait.Stop()
	select {
	case b.slot <- struct{}{}:
	case <-wait.C:
		b.noMove.Add(1)
		b.log.Warn().Str("tier", string(req.Tier)).Msg("engine busy past deadline")
		return "", nil
	case <-ctx.Done():
		b.noMove.Add(1)
		return "", nil
	}
	defer func() { <-b.slot }()

	b.mu.Lock()
	route := b.route(params)
	b.mu.Unlock()
	log := b.log.With().Str("tier", string(req.Tier)).Str("route", string(route)).Logger()

	switch route {
	case RouteBlunder:
		b.blunder.Add(1)
		b.mu.Lock()
		mv, err := board.RandomLegalMove(req.FEN, b.rnd)
		b.mu.Unlock()
		if errors.Is(err, board.ErrNoLegalMoves) {
			b.noMove.Add(1)
			return "", nil
		}
		if err != nil {
			return "", err
		}
		log.Debug().Str("move", mv).Msg("blunder move")
		return mv, nil
	case RouteQuick:
		b.quick.Add(1)
		params = QuickParams(params, b.cfg.Quick)
	default:
		b.normal.Add(1)
	}

	remaining := b.cfg.Deadline - time.Since(start)
	if remaining <= 0 {
		b.noMove.Add(1)
		return "", nil
	}
	mv, ok := b.sess.Search(ctx, engine.SearchRequest{
		FEN:        req.FEN,
		Strength:   params.Strength,
		Depth:      params.Depth,
		TimeBudget: params.TimeBudget,
		Deadline:   remaining,
	})
	if !ok {
		b.noMove.Add(1)
		log.Debug().Msg("no move from engine")
		return "", nil
	}
	if _, legal := board.FindMove(pos, mv); !legal {
		b.illegal.Add(1)
		log.Warn().Str("move", mv).Str("fen", req.FEN).Msg("engine move rejected")
		return "", nil
	}
	log.Debug().Str("move", mv).Int("depth", params.Depth).Int("strength", params.Strength).Msg("engine move")
	return mv, nil
}

// resolveParams resolves the tier and applies the player's adjustment and hints.
func resolveParams(ctx context.Context, req Request, ctrl *adaptive.Controller, lrn *learn.Learner) difficulty.Params {
	base := difficulty.Resolve(req.Tier)
	var adj difficulty.Adjustment
	if ctrl != nil {
		adj = ctrl.GetAdjustment()
	}
	bonus := 0
	if lrn != nil && len(req.Moves) > 0 {
		bonus = lrn.GetAdaptiveHints(ctx, req.Moves).PunishFactor / 2
	}
	return base.Apply(adj, bonus)
}

// route draws the quick route first; the blunder draw only happens on the
// non-quick path. Called with b.mu held.
func (b *Bot) route(p difficulty.Params) Route {
	if b.rnd.Float64() < p.Randomness {
		return RouteQuick
	}
	if p.BlunderRate > 0 && b.rnd.Float64() < p.BlunderRate {
		return RouteBlunder
	}
	return RouteNormal
}

// FallbackMove picks a random legal move for callers that got no move from
// GetBestMove. It returns "" when the side to move has no legal move.
func (b *Bot) FallbackMove(fen string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	mv, err := board.RandomLegalMove(fen, b.rnd)
	if errors.Is(err, board.ErrNoLegalMoves) {
		return "", nil
	}
	return mv, err
}

// Report is a finished game as seen by the player.
type Report struct {
	StartFEN    string
	Moves       []string
	Result      store.Result // the player's result
	PlayerColor string       // "w" or "b"
	// Patterns are trick ids seen during the game. Nil runs trick
	// detection over the opening.
	Patterns []string
	// BlunderSquares are the player's blunders. Nil asks the Analyzer when
	// one is configured.
	BlunderSquares []string
}

// ReportGame feeds a finished game to the adaptive controller and the
// opening learner. Both are attempted; their errors are joined.
func (b *Bot) ReportGame(ctx context.Context, r Report) error {
	return report(ctx, r, b.cfg.Controller, b.cfg.Learner, b.cfg.Analyzer, b.log)
}

func report(ctx context.Context, r Report, ctrl *adaptive.Controller, lrn *learn.Learner, an *analysis.Analyzer, log zerolog.Logger) error {
	if _, err := store.ParseResult(string(r.Result)); err != nil {
		return err
	}
	patterns := r.Patterns
	if patterns == nil && ctrl != nil {
		if id := ctrl.DetectTrick("", r.Moves); id != "" {
			patterns = []string{id}
		}
	}

	squares := r.BlunderSquares
	if squares == nil && an != nil && r.PlayerColor != "" {
		var err error
		squares, err = an.BlunderSquares(ctx, r.StartFEN, r.Moves, r.PlayerColor)
		if err != nil {
			log.Warn().Err(err).Msg("blunder analysis failed")
			squares = nil
		}
	}

	var errs []error
	if ctrl != nil {
		if err := ctrl.RecordMoves(ctx, r.Result, r.Moves, patterns); err != nil {
			errs = append(errs, fmt.Errorf("record game: %w", err))
		}
	}
	if lrn != nil {
		if err := lrn.RecordPattern(ctx, r.Moves, squares, r.Result); err != nil {
			errs = append(errs, fmt.Errorf("record pattern: %w", err))
		}
	}
	log.Info().Str("result", string(r.Result)).Int("plies", len(r.Moves)).Strs("patterns", patterns).Msg("game reported")
	return errors.Join(errs...)
}

// Destroy stops the engine. Later move requests fail until Init is called
// again. Safe to call repeatedly.
func (b *Bot) Destroy() {
	b.proc.Stop()
}

// Stats returns routing counters.
func (b *Bot) Stats() Stats {
	return Stats{
		Normal:   b.normal.Load(),
		Quick:    b.quick.Load(),
		Blunder:  b.blunder.Load(),
		NoMove:   b.noMove.Load(),
		Illegal:  b.illegal.Load(),
		Sessions: b.sess.Stats(),

		EngineEpoch: b.proc.Epoch(),
	}
}
