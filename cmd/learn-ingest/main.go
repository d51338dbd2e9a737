package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/freeeve/chessbot/internal/analysis"
	"github.com/freeeve/chessbot/internal/bot"
	"github.com/freeeve/chessbot/internal/eco"
	"github.com/freeeve/chessbot/internal/ingest"
	"github.com/freeeve/chessbot/internal/logx"
	"github.com/freeeve/chessbot/internal/store"
)

func main() {
	defaultDB := "./data/history.db"
	if env := os.Getenv("BOT_DB_PATH"); env != "" {
		defaultDB = env
	}

	var (
		inputPath = flag.String("pgn", "", "Path to PGN file (supports .zst)")
		players   = flag.String("players", "", "PGN names to player ids, name=id,...")
		minPlies  = flag.Int("min-plies", 4, "skip games shorter than this")
		dbPath    = flag.String("db", defaultDB, "bolt file for player histories")
		mongoURI  = flag.String("mongo-uri", os.Getenv("MONGO_URI"), "MongoDB URI for learned patterns")
		mongoDB   = flag.String("mongo-db", "chessbot", "MongoDB database")
		ecoDir    = flag.String("eco-dir", "", "Directory containing ECO .tsv files")
		stockfish = flag.String("stockfish", os.Getenv("STOCKFISH_PATH"), "Stockfish for blunder analysis (empty = none)")
		depth     = flag.Int("analyze-depth", 10, "Stockfish depth for blunder analysis")
	)
	flag.Parse()

	if *inputPath == "" || *players == "" {
		fmt.Fprintln(os.Stderr, "Usage: learn-ingest --pgn <file.pgn[.zst]> --players name=id[,name=id] [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := logx.NewLogger()
	logger.Info().
		Str("pgn", *inputPath).
		Str("db", *dbPath).
		Str("players", *players).
		Msg("starting learn ingest")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	history, err := store.OpenBolt(store.BoltConfig{Path: *dbPath, Logger: logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("open history store (is botd running on the same file?)")
	}
	defer history.Close()

	var patterns store.PatternStore
	if *mongoURI != "" {
		client, err := store.ConnectMongo(ctx, *mongoURI)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect mongo")
		}
		defer func() {
			_ = client.Disconnect(context.Background())
		}()
		if patterns, err = store.NewMongoPatterns(ctx, client.Database(*mongoDB), logger); err != nil {
			logger.Fatal().Err(err).Msg("open pattern store")
		}
	} else {
		logger.Warn().Msg("no mongo URI - only histories are updated")
	}

	var ecoDB *eco.Database
	if *ecoDir != "" {
		ecoDB = eco.NewDatabase()
		if err := ecoDB.LoadDir(*ecoDir); err != nil {
			logger.Warn().Err(err).Msg("failed to load ECO database")
			ecoDB = nil
		}
	}

	var analyzer *analysis.Analyzer
	if *stockfish != "" {
		ev, err := analysis.NewUCIEvaluator(analysis.EngineConfig{StockfishPath: *stockfish, Depth: *depth, Logger: logger})
		if err != nil {
			logger.Fatal().Err(err).Msg("start analysis engine")
		}
		defer ev.Close()
		analyzer = analysis.New(analysis.Config{Evaluator: ev, Logger: logger})
	}

	mgr := bot.NewManager(bot.ManagerConfig{
		History:  history,
		Patterns: patterns,
		ECO:      ecoDB,
		Analyzer: analyzer,
		Logger:   logger,
	})
	defer mgr.Close()

	names := make(map[string]string)
	for _, part := range strings.Split(*players, ",") {
		name, id, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			id = name
		}
		if name != "" {
			names[name] = id
		}
	}

	worker, err := ingest.NewWorker(ingest.Config{
		WatchDir: filepath.Dir(*inputPath),
		Players:  names,
		MinPlies: *minPlies,
		Logger:   logger,
	}, mgr)
	if err != nil {
		logger.Fatal().Err(err).Msg("create ingest worker")
	}

	start := time.Now()
	st, err := worker.ProcessFile(ctx, *inputPath)
	if err != nil {
		logger.Error().Err(err).Msg("ingest stopped early")
	}
	logger.Info().
		Int64("games", st.Games).
		Int64("recorded", st.Recorded).
		Int64("skipped", st.Skipped).
		Int64("failed", st.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("ingest complete")
}
