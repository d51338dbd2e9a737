package store

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/freeeve/chessbot/internal/logx"
)

var historyBucket = []byte("history")

// BoltConfig configures a BoltHistory.
type BoltConfig struct {
	Path        string
	OpenTimeout time.Duration
	Logger      zerolog.Logger
}

// BoltHistory stores one zstd-compressed JSON blob per player in a bolt file.
type BoltHistory struct {
	db  *bolt.DB
	log zerolog.Logger
}

// OpenBolt opens (creating if needed) the history database at cfg.Path.
func OpenBolt(cfg BoltConfig) (*BoltHistory, error) {
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 2 * time.Second
	}
	db, err := bolt.Open(cfg.Path, 0600, &bolt.Options{Timeout: cfg.OpenTimeout})
	if err != nil {
		return nil, unavailable("open "+cfg.Path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(historyBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, unavailable("init bucket", err)
	}
	log := logx.Component(cfg.Logger, "bolt-history")
	log.Info().Str("path", cfg.Path).Msg("history database opened")
	return &BoltHistory{db: db, log: log}, nil
}

func historyKey(playerID string) []byte {
	return []byte("player/" + playerID)
}

func (b *BoltHistory) Load(ctx context.Context, playerID string) (HistoryRecord, error) {
	var blob []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(historyBucket).Get(historyKey(playerID)); v != nil {
			blob = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return HistoryRecord{}, unavailable("load history", err)
	}
	if blob == nil {
		return HistoryRecord{}, nil
	}
	rec, err := DecodeHistory(blob)
	if err != nil {
		return HistoryRecord{}, unavailable("load history", err)
	}
	return rec, nil
}

func (b *BoltHistory) Save(ctx context.Context, playerID string, rec HistoryRecord) error {
	blob, err := EncodeHistory(rec)
	if err != nil {
		return unavailable("save history", err)
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(historyBucket).Put(historyKey(playerID), blob)
	})
	if err != nil {
		return unavailable("save history", err)
	}
	b.log.Debug().Str("player", playerID).Int("bytes", len(blob)).Msg("history saved")
	return nil
}

func (b *BoltHistory) Delete(ctx context.Context, playerID string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(historyBucket).Delete(historyKey(playerID))
	})
	if err != nil {
		return unavailable("delete history", err)
	}
	return nil
}

// Players lists the ids with a stored record.
func (b *BoltHistory) Players() ([]string, error) {
	var ids []string
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(historyBucket).Cursor()
		prefix := historyKey("")
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			ids = append(ids, string(k[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("list players", err)
	}
	return ids, nil
}

func (b *BoltHistory) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("close history db: %w", err)
	}
	return nil
}
