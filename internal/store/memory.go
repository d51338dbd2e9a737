package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryHistory is a HistoryRepository backed by a map.
type MemoryHistory struct {
	mu   sync.RWMutex
	recs map[string]HistoryRecord

	// FailWith, when set, is returned (wrapped) from every call.
	FailWith error
}

// NewMemoryHistory creates an empty repository.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{recs: make(map[string]HistoryRecord)}
}

func (m *MemoryHistory) Load(ctx context.Context, playerID string) (HistoryRecord, error) {
	if m.FailWith != nil {
		return HistoryRecord{}, unavailable("load history", m.FailWith)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.recs[playerID]
	if !ok {
		return HistoryRecord{}, nil
	}
	return rec.Clone(), nil
}

func (m *MemoryHistory) Save(ctx context.Context, playerID string, rec HistoryRecord) error {
	if m.FailWith != nil {
		return unavailable("save history", m.FailWith)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[playerID] = rec.Clone()
	return nil
}

func (m *MemoryHistory) Delete(ctx context.Context, playerID string) error {
	if m.FailWith != nil {
		return unavailable("delete history", m.FailWith)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, playerID)
	return nil
}

// MemoryPatterns is a PatternStore backed by a map.
type MemoryPatterns struct {
	mu   sync.RWMutex
	rows map[string]map[string]*Pattern // player -> signature -> row

	FailWith error
}

// NewMemoryPatterns creates an empty pattern store.
func NewMemoryPatterns() *MemoryPatterns {
	return &MemoryPatterns{rows: make(map[string]map[string]*Pattern)}
}

func (m *MemoryPatterns) Upsert(ctx context.Context, d PatternDelta) error {
	if m.FailWith != nil {
		return unavailable("upsert pattern", m.FailWith)
	}
	if d.At.IsZero() {
		d.At = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	player := m.rows[d.PlayerID]
	if player == nil {
		player = make(map[string]*Pattern)
		m.rows[d.PlayerID] = player
	}
	row := player[d.Signature]
	if row == nil {
		row = &Pattern{PlayerID: d.PlayerID, Signature: d.Signature, CreatedAt: d.At}
		player[d.Signature] = row
	}
	row.apply(d)
	return nil
}

// List returns the player's rows ordered by signature.
func (m *MemoryPatterns) List(ctx context.Context, playerID string) ([]Pattern, error) {
	if m.FailWith != nil {
		return nil, unavailable("list patterns", m.FailWith)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Pattern, 0, len(m.rows[playerID]))
	for _, row := range m.rows[playerID] {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Signature < out[j].Signature })
	return out, nil
}

func (m *MemoryPatterns) DeletePlayer(ctx context.Context, playerID string) error {
	if m.FailWith != nil {
		return unavailable("delete patterns", m.FailWith)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, playerID)
	return nil
}

// Players returns every player id with at least one row, sorted.
func (m *MemoryPatterns) Players(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.rows))
	for id, rows := range m.rows {
		if len(rows) > 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}
