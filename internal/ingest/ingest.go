// Package ingest replays PGN files of past games into players' adaptive
// history and opening patterns.
package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/freeeve/pgn/v3"
	"github.com/rs/zerolog"

	"github.com/freeeve/chessbot/internal/board"
	"github.com/freeeve/chessbot/internal/bot"
	"github.com/freeeve/chessbot/internal/logx"
	"github.com/freeeve/chessbot/internal/store"
)

// Recorder stores one finished game of a player.
type Recorder interface {
	Record(ctx context.Context, playerID string, r bot.Report) error
}

// Config configures the ingest worker.
type Config struct {
	WatchDir     string            // Directory to watch for PGN files
	ProcessedDir string            // Directory to move processed files to
	Players      map[string]string // PGN player name (case-insensitive) to player id
	MinPlies     int               // Shorter games are skipped, default 4
	Workers      int               // Files processed in parallel, default 1
	PollInterval time.Duration     // How often to check for new files
	Logger       zerolog.Logger
}

// FileStats summarizes one ingested file.
type FileStats struct {
	Games    int64
	Recorded int64
	Skipped  int64
	Failed   int64
}

// Worker watches a folder and ingests PGN files.
type Worker struct {
	cfg     Config
	rec     Recorder
	players map[string]string
	log     zerolog.Logger
}

// NewWorker creates a new ingest worker. An empty WatchDir disables it.
func NewWorker(cfg Config, rec Recorder) (*Worker, error) {
	if cfg.WatchDir == "" {
		return nil, nil // Disabled
	}
	if cfg.ProcessedDir == "" {
		cfg.ProcessedDir = filepath.Join(cfg.WatchDir, "processed")
	}
	if cfg.MinPlies == 0 {
		cfg.MinPlies = 4
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Second
	}

	if err := os.MkdirAll(cfg.WatchDir, 0755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.ProcessedDir, 0755); err != nil {
		return nil, err
	}

	players := make(map[string]string, len(cfg.Players))
	for name, id := range cfg.Players {
		players[strings.ToLower(strings.TrimSpace(name))] = id
	}

	return &Worker{
		cfg:     cfg,
		rec:     rec,
		players: players,
		log:     logx.Component(cfg.Logger, "ingest"),
	}, nil
}

// Run starts the folder watcher.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().
		Str("watch_dir", w.cfg.WatchDir).
		Str("processed_dir", w.cfg.ProcessedDir).
		Int("players", len(w.players)).
		Msg("ingest worker started")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessNewFiles(ctx); err != nil {
				w.log.Warn().Err(err).Msg("process files failed")
			}
		}
	}
}

// ProcessNewFiles ingests the PGN files in the watch directory and moves
// each one to the processed directory. Files run on up to Workers
// goroutines; games within a file are recorded in order.
func (w *Worker) ProcessNewFiles(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	entries, err := os.ReadDir(w.cfg.WatchDir)
	if err != nil {
		return 0, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isPGNFile(e.Name()) {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return 0, nil
	}

	// Sort by name to process in order
	sort.Strings(files)
	w.log.Info().Int("files", len(files)).Int("workers", w.cfg.Workers).Msg("found PGN files")

	type fileResult struct {
		name string
		err  error
	}

	fileChan := make(chan string, len(files))
	resultChan := make(chan fileResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileChan {
				select {
				case <-ctx.Done():
					resultChan <- fileResult{name: name, err: ctx.Err()}
					continue
				default:
				}
				_, err := w.ProcessFile(ctx, filepath.Join(w.cfg.WatchDir, name))
				resultChan <- fileResult{name: name, err: err}
			}
		}()
	}

	for _, name := range files {
		fileChan <- name
	}
	close(fileChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var processed, failed int
	for result := range resultChan {
		if result.err != nil {
			w.log.Error().Err(result.err).Str("file", result.name).Msg("ingest failed")
			failed++
			continue
		}

		srcPath := filepath.Join(w.cfg.WatchDir, result.name)
		destPath := filepath.Join(w.cfg.ProcessedDir, result.name)
		if err := os.Rename(srcPath, destPath); err != nil {
			w.log.Warn().Err(err).Str("file", result.name).Msg("move to processed failed")
		} else {
			w.log.Info().Str("file", result.name).Msg("moved to processed")
		}
		processed++
	}

	w.log.Info().Int("processed", processed).Int("failed", failed).Msg("batch complete")
	return processed, nil
}

// ProcessFile records every game in path that involves a known player.
func (w *Worker) ProcessFile(ctx context.Context, path string) (FileStats, error) {
	w.log.Info().Str("path", path).Msg("starting file ingest")

	startTime := time.Now()
	var st FileStats
	parser := pgn.Games(path)

	stopped := false
gameLoop:
	for game := range parser.Games {
		select {
		case <-ctx.Done():
			if !stopped {
				parser.Stop()
				stopped = true
			}
			break gameLoop
		default:
		}
		st.Games++

		reports := w.reports(game)
		if len(reports) == 0 {
			st.Skipped++
			continue
		}
		for _, pr := range reports {
			if err := w.rec.Record(ctx, pr.playerID, pr.report); err != nil {
				// Persistence failures degrade to a skipped game.
				w.log.Warn().Err(err).Str("player", pr.playerID).Msg("game not recorded")
				st.Failed++
				continue
			}
			st.Recorded++
		}
	}

	if err := parser.Err(); err != nil {
		return st, err
	}
	if stopped {
		return st, ctx.Err()
	}

	elapsed := time.Since(startTime)
	w.log.Info().
		Str("file", filepath.Base(path)).
		Int64("games", st.Games).
		Int64("recorded", st.Recorded).
		Int64("skipped", st.Skipped).
		Int64("failed", st.Failed).
		Dur("elapsed", elapsed).
		Msg("file ingest complete")
	return st, nil
}

type playerReport struct {
	playerID string
	report   bot.Report
}

// reports builds one report per known player in game.
func (w *Worker) reports(game *pgn.Game) []playerReport {
	white, whiteOK := w.players[strings.ToLower(strings.TrimSpace(game.Tags["White"]))]
	black, blackOK := w.players[strings.ToLower(strings.TrimSpace(game.Tags["Black"]))]
	if !whiteOK && !blackOK {
		return nil
	}

	var whiteResult store.Result
	switch game.Tags["Result"] {
	case "1-0":
		whiteResult = store.Win
	case "0-1":
		whiteResult = store.Loss
	case "1/2-1/2":
		whiteResult = store.Draw
	default:
		return nil // unfinished
	}

	start := board.StartFEN
	pos := pgn.NewStartingPosition()
	if fen := game.Tags["FEN"]; fen != "" {
		p, err := board.ValidateFEN(fen)
		if err != nil {
			return nil
		}
		start, pos = fen, p
	}

	moves := make([]string, 0, len(game.Moves))
	for _, mv := range game.Moves {
		uci := board.MvToUCI(mv)
		if err := pgn.ApplyMove(pos, mv); err != nil {
			break
		}
		moves = append(moves, uci)
	}
	if len(moves) < w.cfg.MinPlies {
		return nil
	}

	var out []playerReport
	if whiteOK {
		out = append(out, playerReport{white, bot.Report{StartFEN: start, Moves: moves, Result: whiteResult, PlayerColor: "w"}})
	}
	if blackOK {
		out = append(out, playerReport{black, bot.Report{StartFEN: start, Moves: moves, Result: flip(whiteResult), PlayerColor: "b"}})
	}
	return out
}

func flip(r store.Result) store.Result {
	switch r {
	case store.Win:
		return store.Loss
	case store.Loss:
		return store.Win
	}
	return r
}

func isPGNFile(name string) bool {
	ext := filepath.Ext(name)
	if ext == ".pgn" {
		return true
	}
	if ext == ".zst" {
		// Check for .pgn.zst
		base := name[:len(name)-4]
		return filepath.Ext(base) == ".pgn"
	}
	return false
}
