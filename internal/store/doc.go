// Package store persists what the bot learns about a player.
//
// Two kinds of state are kept:
//
//   - A HistoryRecord per player: recent game outcomes, win/loss streaks and
//     trick counters. It is read and written as one blob through a
//     HistoryRepository (BoltHistory on disk, MemoryHistory for tests).
//   - Pattern rows keyed by (player, opening signature) with frequency, win,
//     loss and blunder counters. Rows are upserted through a PatternStore
//     (MongoPatterns server-side, MemoryPatterns for tests and single-node use).
//
// Any backend failure is wrapped with ErrPersistenceUnavailable. Callers treat
// it as "no history" and keep playing.
package store
