package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/freeeve/chessbot/internal/analysis"
	"github.com/freeeve/chessbot/internal/bot"
	"github.com/freeeve/chessbot/internal/eco"
	"github.com/freeeve/chessbot/internal/engine"
	"github.com/freeeve/chessbot/internal/httpapi"
	"github.com/freeeve/chessbot/internal/ingest"
	"github.com/freeeve/chessbot/internal/logx"
	"github.com/freeeve/chessbot/internal/movecheck"
	"github.com/freeeve/chessbot/internal/store"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// parsePlayers parses "name=id,name2=id2". A bare name maps to itself.
func parsePlayers(s string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, id, ok := strings.Cut(part, "=")
		if !ok {
			id = name
		}
		out[strings.TrimSpace(name)] = strings.TrimSpace(id)
	}
	return out
}

func main() {
	var (
		// Server
		addr    = flag.String("addr", envOr("BOT_ADDR", ":8008"), "listen address")
		origins = flag.String("origins", "*", "comma-separated CORS origins")
		pprof   = flag.Bool("pprof", false, "expose /debug/pprof")

		// Engine
		stockfishPath = flag.String("stockfish", envOr("STOCKFISH_PATH", "stockfish"), "path to Stockfish executable")
		engineThreads = flag.Int("engine-threads", 1, "Stockfish threads per game")
		engineHash    = flag.Int("engine-hash", 16, "Stockfish hash MB per game")
		deadline      = flag.Duration("deadline", 1200*time.Millisecond, "hard limit for one bot move")
		maxGames      = flag.Int("max-games", 64, "maximum live bot games")
		idleTTL       = flag.Duration("idle-ttl", 15*time.Minute, "close games idle this long")

		// Storage
		dbPath   = flag.String("db", envOr("BOT_DB_PATH", "./data/history.db"), "bolt file for player histories")
		mongoURI = flag.String("mongo-uri", os.Getenv("MONGO_URI"), "MongoDB URI for learned patterns (empty = in memory)")
		mongoDB  = flag.String("mongo-db", envOr("MONGO_DB", "chessbot"), "MongoDB database")
		ecoDir   = flag.String("eco-dir", "./data/eco", "Directory containing ECO .tsv files")
		noLearn  = flag.Bool("no-learning", false, "disable opening pattern learning")

		// Analysis
		analyze      = flag.Bool("analyze", false, "find blunders of finished games with a separate engine")
		analyzeDepth = flag.Int("analyze-depth", 12, "Stockfish depth for blunder analysis")
		analyzeNice  = flag.Int("analyze-nice", 0, "nice value for the analysis engine (0=disabled)")

		// Ingest
		ingestDir     = flag.String("ingest-dir", "", "Directory to watch for PGN files (empty = disabled)")
		ingestPlayers = flag.String("ingest-players", "", "PGN names to player ids, name=id,...")

		// Auth and remote moves
		jwtSecret    = flag.String("jwt-secret", os.Getenv("JWT_SECRET"), "HS256 secret (empty = trust X-Player-ID)")
		moveCheckURL = flag.String("movecheck-url", os.Getenv("MOVECHECK_URL"), "move service base URL for multiplayer games")
	)
	flag.Parse()

	logger := logx.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	history, err := store.OpenBolt(store.BoltConfig{Path: *dbPath, Logger: logger})
	if err != nil {
		logger.Fatal().Err(err).Str("path", *dbPath).Msg("open history store")
	}
	defer history.Close()
	logger.Info().Str("path", *dbPath).Msg("opened history store")

	var patterns store.PatternStore = store.NewMemoryPatterns()
	if *mongoURI != "" {
		client, err := store.ConnectMongo(ctx, *mongoURI)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect mongo")
		}
		defer func() {
			_ = client.Disconnect(context.Background())
		}()
		mp, err := store.NewMongoPatterns(ctx, client.Database(*mongoDB), logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("open pattern store")
		}
		patterns = mp
		logger.Info().Str("db", *mongoDB).Msg("learned patterns in mongo")
	} else {
		logger.Warn().Msg("no MONGO_URI - learned patterns are kept in memory")
	}

	// Load ECO opening database
	var ecoDB *eco.Database
	if *ecoDir != "" {
		ecoDB = eco.NewDatabase()
		if err := ecoDB.LoadDir(*ecoDir); err != nil {
			logger.Warn().Err(err).Str("dir", *ecoDir).Msg("failed to load ECO database")
			ecoDB = nil
		} else {
			logger.Info().Int("openings", ecoDB.Count()).Msg("ECO database loaded")
		}
	}

	var analyzer *analysis.Analyzer
	if *analyze {
		ev, err := analysis.NewUCIEvaluator(analysis.EngineConfig{
			StockfishPath: *stockfishPath,
			Depth:         *analyzeDepth,
			Nice:          *analyzeNice,
			Logger:        logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("start analysis engine")
		}
		defer ev.Close()
		analyzer = analysis.New(analysis.Config{Evaluator: ev, Logger: logger})
	}

	mgr := bot.NewManager(bot.ManagerConfig{
		Launcher: engine.ExecLauncher(*stockfishPath),
		EngineOptions: []engine.Option{
			{Name: "Threads", Value: strconv.Itoa(*engineThreads)},
			{Name: "Hash", Value: strconv.Itoa(*engineHash)},
		},
		Deadline:         *deadline,
		History:          history,
		Patterns:         patterns,
		ECO:              ecoDB,
		Analyzer:         analyzer,
		LearningDisabled: *noLearn,
		MaxGames:         *maxGames,
		IdleTTL:          *idleTTL,
		Logger:           logger,
	})
	defer mgr.Close()
	mgr.StartReaper(time.Minute)
	defer mgr.StopReaper()

	var remote movecheck.Validator
	if *moveCheckURL != "" {
		client, err := movecheck.NewClient(movecheck.ClientConfig{
			BaseURL: *moveCheckURL,
			Secret:  *jwtSecret,
			Logger:  logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("create move service client")
		}
		remote = client
	}

	srv := &http.Server{
		Addr: *addr,
		Handler: httpapi.NewRouter(httpapi.RouterConfig{
			Manager:        mgr,
			Remote:         remote,
			Auth:           httpapi.NewAuth(*jwtSecret),
			AllowedOrigins: strings.Split(*origins, ","),
			Pprof:          *pprof,
			Logger:         logger,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Start ingest worker if configured
	worker, err := ingest.NewWorker(ingest.Config{
		WatchDir: *ingestDir,
		Players:  parsePlayers(*ingestPlayers),
		Logger:   logger,
	}, mgr)
	if err != nil {
		logger.Fatal().Err(err).Msg("create ingest worker")
	}
	if worker != nil {
		g.Go(func() error {
			if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		logger.Info().Str("watch_dir", *ingestDir).Msg("started ingest worker")
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped")
	}
	logger.Info().Interface("stats", mgr.Stats()).Msg("shutdown complete")
}
