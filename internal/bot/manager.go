package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/freeeve/chessbot/internal/adaptive"
	"github.com/freeeve/chessbot/internal/analysis"
	"github.com/freeeve/chessbot/internal/board"
	"github.com/freeeve/chessbot/internal/difficulty"
	"github.com/freeeve/chessbot/internal/eco"
	"github.com/freeeve/chessbot/internal/engine"
	"github.com/freeeve/chessbot/internal/learn"
	"github.com/freeeve/chessbot/internal/logx"
	"github.com/freeeve/chessbot/internal/movecheck"
	"github.com/freeeve/chessbot/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrTooManyGames is returned when the live game limit is reached.
var ErrTooManyGames = errors.New("too many active games")

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Launcher         engine.Launcher
	EngineOptions    []engine.Option
	HandshakeTimeout time.Duration
	Deadline         time.Duration
	Quick            QuickConfig

	History          store.HistoryRepository
	Patterns         store.PatternStore
	ECO              *eco.Database
	Analyzer         *analysis.Analyzer
	LearningDisabled bool

	MaxGames int           // live games, default 64
	IdleTTL  time.Duration // games idle longer are closed, default 15m
	// Seed makes routing reproducible; zero seeds from the clock.
	Seed int64

	Logger zerolog.Logger
	Now    func() time.Time
}

// Manager owns the live bot games, one engine per game, and the per-player
// adaptive state.
type Manager struct {
	cfg   ManagerConfig
	log   zerolog.Logger
	local *movecheck.Local
	seeds atomic.Int64

	mu      sync.Mutex
	games   map[string]*game
	players map[string]*player
	shared  *Bot

	reapStop chan struct{}
	reapDone chan struct{}
}

type player struct {
	controller *adaptive.Controller
	learner    *learn.Learner
}

// NewManager creates a Manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.MaxGames <= 0 {
		cfg.MaxGames = 64
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 15 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	m := &Manager{
		cfg:     cfg,
		log:     logx.Component(cfg.Logger, "bot-manager"),
		games:   make(map[string]*game),
		players: make(map[string]*player),
	}
	m.local = &movecheck.Local{Lookup: m.boardOf}
	return m
}

func (m *Manager) boardOf(gameID string) (*board.Game, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return nil, false
	}
	return g.board, true
}

// player returns the adaptive state of id, loading it on first use.
func (m *Manager) player(ctx context.Context, id string) *player {
	m.mu.Lock()
	p, ok := m.players[id]
	m.mu.Unlock()
	if ok {
		return p
	}

	p = &player{
		controller: adaptive.New(ctx, adaptive.Config{PlayerID: id, Repo: m.cfg.History, Logger: m.cfg.Logger}),
		learner: learn.New(learn.Config{
			PlayerID: id,
			Store:    m.cfg.Patterns,
			ECO:      m.cfg.ECO,
			Disabled: m.cfg.LearningDisabled,
			Logger:   m.cfg.Logger,
		}),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.players[id]; ok {
		return existing
	}
	m.players[id] = p
	return p
}

func (m *Manager) newBot(p *player) *Bot {
	cfg := Config{
		Launcher:         m.cfg.Launcher,
		EngineOptions:    m.cfg.EngineOptions,
		HandshakeTimeout: m.cfg.HandshakeTimeout,
		Deadline:         m.cfg.Deadline,
		Quick:            m.cfg.Quick,
		Analyzer:         m.cfg.Analyzer,
		Rand:             rand.New(rand.NewSource(m.cfg.Seed + m.seeds.Add(1))),
		Logger:           m.cfg.Logger,
	}
	if p != nil {
		cfg.Controller = p.controller
		cfg.Learner = p.learner
	}
	return New(cfg)
}

// CreateGame starts a bot game. color is the player's side, "w" or "b";
// when the player is black the bot moves first.
func (m *Manager) CreateGame(ctx context.Context, playerID string, tier difficulty.Tier, color string) (GameState, error) {
	if color == "" {
		color = "w"
	}
	if color != "w" && color != "b" {
		return GameState{}, movecheck.StatusFor(http.StatusBadRequest, fmt.Sprintf("invalid color %q", color))
	}
	difficulty.Resolve(tier)

	m.mu.Lock()
	full := len(m.games) >= m.cfg.MaxGames
	m.mu.Unlock()
	if full {
		return GameState{}, ErrTooManyGames
	}

	b := m.newBot(m.player(ctx, playerID))
	if err := b.Init(ctx); err != nil {
		return GameState{}, err
	}

	bg, _ := board.NewGame("")
	now := m.cfg.Now()
	g := &game{
		id:          uuid.NewString(),
		playerID:    playerID,
		tier:        tier,
		playerColor: color,
		board:       bg,
		bot:         b,
		status:      movecheck.StatusActive,
		createdAt:   now,
		updatedAt:   now,
	}

	m.mu.Lock()
	if len(m.games) >= m.cfg.MaxGames {
		m.mu.Unlock()
		b.Destroy()
		return GameState{}, ErrTooManyGames
	}
	m.games[g.id] = g
	m.mu.Unlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	if color == "b" {
		m.reply(ctx, g)
	}
	m.log.Info().Str("game", g.id).Str("player", playerID).Str("tier", string(tier)).Str("color", color).Msg("game created")
	return g.state(), nil
}

// lookup finds a game owned by playerID.
func (m *Manager) lookup(gameID, playerID string) (*game, error) {
	m.mu.Lock()
	g, ok := m.games[gameID]
	m.mu.Unlock()
	if !ok {
		return nil, movecheck.StatusFor(http.StatusNotFound, gameID)
	}
	if g.playerID != playerID {
		return nil, movecheck.StatusFor(http.StatusForbidden, "not your game")
	}
	return g, nil
}

// Game returns the state of a game.
func (m *Manager) Game(gameID, playerID string) (GameState, error) {
	g, err := m.lookup(gameID, playerID)
	if err != nil {
		return GameState{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state(), nil
}

// PlayMove validates the player's move locally, then answers with the bot's
// move. When the engine gives no move in time a random legal move is played
// so the game never stalls.
func (m *Manager) PlayMove(ctx context.Context, gameID, playerID, uci string) (GameState, error) {
	g, err := m.lookup(gameID, playerID)
	if err != nil {
		return GameState{}, err
	}
	req, err := movecheck.ParseMove(gameID, uci)
	if err != nil {
		return GameState{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.over() {
		return GameState{}, movecheck.StatusFor(http.StatusConflict, "game is over")
	}
	if g.board.SideToMove() != g.playerColor {
		return GameState{}, movecheck.StatusFor(http.StatusConflict, "not your turn")
	}
	if _, err := m.local.Submit(ctx, req); err != nil {
		return GameState{}, err
	}
	g.botMove, g.fallback = "", false
	g.updatedAt = m.cfg.Now()
	if ctrl := g.bot.cfg.Controller; ctrl != nil {
		g.addTrick(ctrl.DetectTrick(g.board.FEN(), g.board.Moves()))
	}

	g.settle()
	if !g.over() {
		m.reply(ctx, g)
	}
	if g.over() {
		m.finish(ctx, g)
	}
	return g.state(), nil
}

// reply plays the bot's move. Called with g.mu held.
func (m *Manager) reply(ctx context.Context, g *game) {
	fen := g.board.FEN()
	mv, err := g.bot.Move(ctx, Request{FEN: fen, Tier: g.tier, Moves: g.board.Moves()})
	if err != nil {
		m.log.Warn().Err(err).Str("game", g.id).Msg("bot move failed")
	}
	if mv == "" {
		mv, err = g.bot.FallbackMove(fen)
		if err != nil || mv == "" {
			m.log.Error().Err(err).Str("game", g.id).Msg("no fallback move")
			return
		}
		g.fallback = true
	}
	if err := g.board.Play(mv); err != nil {
		m.log.Error().Err(err).Str("game", g.id).Str("move", mv).Msg("bot move not playable")
		return
	}
	g.botMove = mv
	g.updatedAt = m.cfg.Now()
	g.settle()
}

// finish reports a finished game once. Called with g.mu held.
func (m *Manager) finish(ctx context.Context, g *game) {
	if g.reported || g.result == "" {
		return
	}
	g.reported = true
	err := g.bot.ReportGame(ctx, Report{
		StartFEN:    g.board.StartFEN(),
		Moves:       g.board.Moves(),
		Result:      g.result,
		PlayerColor: g.playerColor,
		Patterns:    append([]string{}, g.tricks...),
	})
	if err != nil {
		m.log.Warn().Err(err).Str("game", g.id).Msg("game outcome not persisted")
	}
	m.log.Info().Str("game", g.id).Str("status", g.status).Str("result", string(g.result)).Msg("game finished")
}

// Record reports a game played outside the manager, such as an imported
// PGN, against the player's adaptive state.
func (m *Manager) Record(ctx context.Context, playerID string, r Report) error {
	p := m.player(ctx, playerID)
	return report(ctx, r, p.controller, p.learner, m.cfg.Analyzer, m.log.With().Str("player", playerID).Logger())
}

// Resign ends the game as a loss for the player.
func (m *Manager) Resign(ctx context.Context, gameID, playerID string) (GameState, error) {
	g, err := m.lookup(gameID, playerID)
	if err != nil {
		return GameState{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.over() {
		return GameState{}, movecheck.StatusFor(http.StatusConflict, "game is over")
	}
	g.status = StatusResigned
	g.result = store.Loss
	g.updatedAt = m.cfg.Now()
	m.finish(ctx, g)
	return g.state(), nil
}

// CloseGame stops the game's engine and forgets the game. An unfinished game
// is not reported.
func (m *Manager) CloseGame(gameID, playerID string) error {
	g, err := m.lookup(gameID, playerID)
	if err != nil {
		return err
	}
	m.remove(g)
	return nil
}

func (m *Manager) remove(g *game) {
	m.mu.Lock()
	delete(m.games, g.id)
	m.mu.Unlock()
	g.bot.Destroy()
	m.log.Debug().Str("game", g.id).Msg("game closed")
}

// BestMove answers a stateless move request with a shared engine. The
// player's adaptive state applies when playerID is set.
func (m *Manager) BestMove(ctx context.Context, playerID string, req Request) (string, error) {
	b, err := m.sharedBot(ctx)
	if err != nil {
		return "", err
	}
	if playerID == "" {
		return b.Move(ctx, req)
	}
	p := m.player(ctx, playerID)
	return b.moveWith(ctx, req, p.controller, p.learner)
}

func (m *Manager) sharedBot(ctx context.Context) (*Bot, error) {
	m.mu.Lock()
	if m.shared == nil {
		m.shared = m.newBot(nil)
	}
	b := m.shared
	m.mu.Unlock()
	if err := b.Init(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// AdaptiveView is a player's adaptive state.
type AdaptiveView struct {
	PlayerID   string                `json:"playerId"`
	Adjustment difficulty.Adjustment `json:"adjustment"`
	History    store.HistoryRecord   `json:"history"`
}

// Adaptive returns a player's history and current adjustment.
func (m *Manager) Adaptive(ctx context.Context, playerID string) AdaptiveView {
	p := m.player(ctx, playerID)
	return AdaptiveView{
		PlayerID:   playerID,
		Adjustment: p.controller.GetAdjustment(),
		History:    p.controller.Snapshot(),
	}
}

// HintsView is what the learner and trick detector make of a move list.
type HintsView struct {
	learn.Hints
	Trick string `json:"trick,omitempty"`
}

// Hints scores moves against the player's stored patterns.
func (m *Manager) Hints(ctx context.Context, playerID string, moves []string) HintsView {
	p := m.player(ctx, playerID)
	return HintsView{
		Hints: p.learner.GetAdaptiveHints(ctx, moves),
		Trick: p.controller.DetectTrick("", moves),
	}
}

// ResetLearning clears a player's history and patterns.
func (m *Manager) ResetLearning(ctx context.Context, playerID string) error {
	p := m.player(ctx, playerID)
	return errors.Join(p.controller.Reset(ctx), p.learner.Reset(ctx))
}

// ManagerStats summarizes the manager.
type ManagerStats struct {
	Games   int    `json:"games"`
	Players int    `json:"players"`
	Shared  *Stats `json:"shared,omitempty"`
}

// Stats returns live counts.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := ManagerStats{Games: len(m.games), Players: len(m.players)}
	if m.shared != nil {
		s := m.shared.Stats()
		st.Shared = &s
	}
	return st
}

// StartReaper closes games idle longer than the TTL every interval.
func (m *Manager) StartReaper(interval time.Duration) {
	if m.reapStop != nil {
		return
	}
	m.reapStop = make(chan struct{})
	m.reapDone = make(chan struct{})

	go func() {
		defer close(m.reapDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.reapStop:
				return
			case <-ticker.C:
				if n := m.ReapIdle(); n > 0 {
					m.log.Info().Int("closed", n).Msg("idle games reaped")
				}
			}
		}
	}()

	m.log.Info().Dur("interval", interval).Dur("ttl", m.cfg.IdleTTL).Msg("started idle game reaper")
}

// StopReaper stops the reaper goroutine.
func (m *Manager) StopReaper() {
	if m.reapStop == nil {
		return
	}
	close(m.reapStop)
	<-m.reapDone
	m.reapStop = nil
	m.reapDone = nil
}

// ReapIdle closes games not touched within the TTL and returns how many.
func (m *Manager) ReapIdle() int {
	m.mu.Lock()
	games := make([]*game, 0, len(m.games))
	for _, g := range m.games {
		games = append(games, g)
	}
	m.mu.Unlock()

	cutoff := m.cfg.Now().Add(-m.cfg.IdleTTL)
	n := 0
	for _, g := range games {
		g.mu.Lock()
		idle := g.updatedAt.Before(cutoff)
		g.mu.Unlock()
		if idle {
			m.remove(g)
			n++
		}
	}
	return n
}

// Close stops the reaper and every engine.
func (m *Manager) Close() {
	m.StopReaper()
	m.mu.Lock()
	games := make([]*game, 0, len(m.games))
	for _, g := range m.games {
		games = append(games, g)
	}
	shared := m.shared
	m.shared = nil
	m.mu.Unlock()

	for _, g := range games {
		m.remove(g)
	}
	if shared != nil {
		shared.Destroy()
	}
}
