package analysis

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/freeeve/uci"
	"github.com/rs/zerolog"

	"github.com/freeeve/chessbot/internal/logx"
)

// EngineConfig configures a UCIEvaluator.
type EngineConfig struct {
	StockfishPath string
	Depth         int // search depth per position
	HashMB        int
	Threads       int
	Nice          int // 0 leaves the priority unchanged
	Logger        zerolog.Logger
}

// UCIEvaluator evaluates positions with a dedicated Stockfish process.
// Calls are serialized.
type UCIEvaluator struct {
	mu     sync.Mutex
	engine *uci.Engine
	depth  int
	log    zerolog.Logger
}

// NewUCIEvaluator starts the engine.
func NewUCIEvaluator(cfg EngineConfig) (*UCIEvaluator, error) {
	if cfg.StockfishPath == "" {
		return nil, fmt.Errorf("stockfish path required")
	}
	if cfg.Depth == 0 {
		cfg.Depth = 12
	}
	if cfg.HashMB == 0 {
		cfg.HashMB = 64
	}
	if cfg.Threads == 0 {
		cfg.Threads = 1
	}
	log := logx.Component(cfg.Logger, "analysis-engine")

	engine, err := uci.NewEngine(cfg.StockfishPath)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	opts := uci.Options{
		Hash:    cfg.HashMB,
		Threads: cfg.Threads,
		MultiPV: 1,
		Ponder:  false,
		OwnBook: false,
	}
	if err := engine.SetOptions(opts); err != nil {
		engine.Close()
		return nil, fmt.Errorf("set options: %w", err)
	}

	if cfg.Nice > 0 {
		nice := min(cfg.Nice, 19)
		if err := engine.SetNice(nice); err != nil {
			log.Warn().Err(err).Int("nice", nice).Msg("failed to set nice value")
		}
	}

	log.Info().Int("depth", cfg.Depth).Int("hash_mb", cfg.HashMB).Msg("analysis engine started")
	return &UCIEvaluator{engine: engine, depth: cfg.Depth, log: log}, nil
}

// Evaluate searches fen to the configured depth. The engine call itself is
// not interruptible; ctx is checked before it starts.
func (e *UCIEvaluator) Evaluate(ctx context.Context, fen string) (Score, error) {
	if err := ctx.Err(); err != nil {
		return Score{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.engine.SetFEN(fen); err != nil {
		return Score{}, fmt.Errorf("set FEN: %w", err)
	}
	results, err := e.engine.GoDepth(e.depth, uci.HighestDepthOnly)
	if err != nil {
		return Score{}, fmt.Errorf("stockfish eval: %w", err)
	}
	if len(results.Results) == 0 {
		return Score{}, fmt.Errorf("no results from engine")
	}

	best := results.Results[0]
	for _, r := range results.Results {
		if r.Depth > best.Depth {
			best = r
		}
	}

	// Engine scores are relative to the side to move.
	score := best.Score
	if strings.Contains(fen, " b ") {
		score = -score
	}
	if best.Mate {
		return Score{Mate: score, IsMate: true}, nil
	}
	return Score{CP: score}, nil
}

// Close stops the engine.
func (e *UCIEvaluator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.engine != nil {
		e.engine.Close()
		e.engine = nil
	}
	return nil
}
