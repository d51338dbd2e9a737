package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/freeeve/chessbot/internal/logx"
	"github.com/freeeve/chessbot/internal/store"
)

func main() {
	var (
		mongoURI   = flag.String("mongo-uri", os.Getenv("MONGO_URI"), "MongoDB URI")
		mongoDB    = flag.String("mongo-db", "chessbot", "MongoDB database")
		player     = flag.String("player", "", "comma-separated player ids (empty = all players)")
		outputPath = flag.String("output", "patterns.csv", "Output CSV file (.zst compresses)")
	)
	flag.Parse()

	if *mongoURI == "" {
		fmt.Fprintln(os.Stderr, "Usage: export-patterns --mongo-uri <uri> [--player id,...] [--output patterns.csv.zst]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := logx.NewLogger()
	ctx := context.Background()

	client, err := store.ConnectMongo(ctx, *mongoURI)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect mongo")
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()
	patterns, err := store.NewMongoPatterns(ctx, client.Database(*mongoDB), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open pattern store")
	}

	rows, err := collect(ctx, patterns, *player)
	if err != nil {
		logger.Fatal().Err(err).Msg("list patterns")
	}
	if err := store.ExportPatterns(*outputPath, rows); err != nil {
		logger.Fatal().Err(err).Msg("export patterns")
	}
	logger.Info().Int("rows", len(rows)).Str("output", *outputPath).Msg("export complete")
}

// collect lists the rows of the given players, or of every player when ids
// is empty.
func collect(ctx context.Context, ps interface {
	store.PatternStore
	store.PlayerLister
}, ids string) ([]store.Pattern, error) {
	var players []string
	for _, id := range strings.Split(ids, ",") {
		if id = strings.TrimSpace(id); id != "" {
			players = append(players, id)
		}
	}
	if len(players) == 0 {
		var err error
		if players, err = ps.Players(ctx); err != nil {
			return nil, err
		}
	}

	var rows []store.Pattern
	for _, id := range players {
		r, err := ps.List(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("player %s: %w", id, err)
		}
		rows = append(rows, r...)
	}
	return rows, nil
}
