package adaptive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/freeeve/chessbot/internal/board"
	"github.com/freeeve/chessbot/internal/store"
)

func newController(t *testing.T, repo store.HistoryRepository) *Controller {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	return New(context.Background(), Config{
		PlayerID: "p1",
		Repo:     repo,
		Now: func() time.Time {
			n++
			return base.Add(time.Duration(n) * time.Minute)
		},
	})
}

func record(t *testing.T, c *Controller, results ...store.Result) {
	t.Helper()
	for _, r := range results {
		if err := c.RecordGame(context.Background(), r, 40, nil); err != nil {
			t.Fatalf("RecordGame(%s): %v", r, err)
		}
	}
}

func TestRecordGame_Streaks(t *testing.T) {
	c := newController(t, store.NewMemoryHistory())

	record(t, c, store.Win, store.Win, store.Win)
	if s := c.Snapshot(); s.WinStreak != 3 || s.LossStreak != 0 {
		t.Fatalf("after 3 wins: win=%d loss=%d", s.WinStreak, s.LossStreak)
	}
	adj := c.GetAdjustment()
	if adj.DepthDelta <= 0 || adj.DepthDelta > MaxDepthDelta {
		t.Fatalf("depth delta after win streak = %d, want in (0,%d]", adj.DepthDelta, MaxDepthDelta)
	}
	if adj.RandomnessDelta >= 0 || adj.ThinkTimeDelta <= 0 {
		t.Errorf("win streak adjustment = %+v, want less randomness and more time", adj)
	}

	record(t, c, store.Loss, store.Loss, store.Loss)
	if s := c.Snapshot(); s.WinStreak != 0 || s.LossStreak != 3 {
		t.Fatalf("after 3 losses: win=%d loss=%d", s.WinStreak, s.LossStreak)
	}
	adj = c.GetAdjustment()
	if adj.DepthDelta >= 0 || adj.DepthDelta < -MaxDepthDelta {
		t.Fatalf("depth delta after loss streak = %d, want in [-%d,0)", adj.DepthDelta, MaxDepthDelta)
	}

	record(t, c, store.Draw)
	s := c.Snapshot()
	if s.WinStreak != 0 || s.LossStreak != 0 {
		t.Fatalf("after draw: win=%d loss=%d, want both 0", s.WinStreak, s.LossStreak)
	}
	if adj := c.GetAdjustment(); adj.DepthDelta != 0 || adj.BlunderDelta != 0 || adj.ThinkTimeDelta != 0 {
		t.Errorf("adjustment after draw = %+v, want no streak contribution", adj)
	}
}

func TestRecordGame_FIFOHistory(t *testing.T) {
	c := newController(t, store.NewMemoryHistory())
	for i := 1; i <= 11; i++ {
		if err := c.RecordGame(context.Background(), store.Draw, i, nil); err != nil {
			t.Fatal(err)
		}
	}
	recent := c.Snapshot().Recent
	if len(recent) != 10 {
		t.Fatalf("history length = %d, want 10", len(recent))
	}
	for i, o := range recent {
		if o.MoveCount != i+2 {
			t.Fatalf("recent[%d].MoveCount = %d, want %d (oldest evicted first)", i, o.MoveCount, i+2)
		}
	}
}

func TestRecordGame_PersistsAndReloads(t *testing.T) {
	repo := store.NewMemoryHistory()
	c := newController(t, repo)
	if err := c.RecordGame(context.Background(), store.Win, 18, []string{TrickScholarsMate, TrickScholarsMate}); err != nil {
		t.Fatal(err)
	}
	record(t, c, store.Win)

	reloaded := newController(t, repo)
	s := reloaded.Snapshot()
	if s.WinStreak != 2 || len(s.Recent) != 2 {
		t.Fatalf("reloaded record = %+v", s)
	}
	if s.Tricks[TrickScholarsMate].Count != 2 {
		t.Errorf("trick count = %d, want 2", s.Tricks[TrickScholarsMate].Count)
	}
}

func TestPersistenceUnavailable_DegradesToEmpty(t *testing.T) {
	repo := store.NewMemoryHistory()
	repo.FailWith = errors.New("quota exceeded")

	c := newController(t, repo)
	if s := c.Snapshot(); len(s.Recent) != 0 {
		t.Fatalf("record = %+v, want empty", s)
	}
	err := c.RecordGame(context.Background(), store.Loss, 30, nil)
	if !errors.Is(err, store.ErrPersistenceUnavailable) {
		t.Fatalf("err = %v, want ErrPersistenceUnavailable", err)
	}
	if c.Snapshot().LossStreak != 1 {
		t.Error("in-memory state should still be updated when saving fails")
	}
}

func TestAdjustmentFor(t *testing.T) {
	outcomes := func(rs ...store.Result) []store.GameOutcome {
		var out []store.GameOutcome
		for _, r := range rs {
			out = append(out, store.GameOutcome{Result: r, MoveCount: 40})
		}
		return out
	}

	tests := []struct {
		name  string
		rec   store.HistoryRecord
		check func(t *testing.T, a adjustmentView)
	}{
		{
			name: "neutral",
			rec:  store.HistoryRecord{Recent: outcomes(store.Win, store.Loss)},
			check: func(t *testing.T, a adjustmentView) {
				if a != (adjustmentView{}) {
					t.Errorf("adjustment = %+v, want zero", a)
				}
			},
		},
		{
			name: "huge win streak saturates",
			rec:  store.HistoryRecord{WinStreak: 50},
			check: func(t *testing.T, a adjustmentView) {
				if a.depth != MaxDepthDelta || a.randomness != -MaxRandomnessDelta ||
					a.blunder != -MaxBlunderDelta || a.think != MaxThinkTimeDelta {
					t.Errorf("adjustment = %+v, want saturated at bounds", a)
				}
			},
		},
		{
			name: "huge loss streak saturates",
			rec:  store.HistoryRecord{LossStreak: 50},
			check: func(t *testing.T, a adjustmentView) {
				if a.depth != -MaxDepthDelta || a.randomness != MaxRandomnessDelta ||
					a.blunder != MaxBlunderDelta || a.think != -MaxThinkTimeDelta {
					t.Errorf("adjustment = %+v, want saturated at bounds", a)
				}
			},
		},
		{
			name: "fast wins without streak",
			rec: store.HistoryRecord{Recent: []store.GameOutcome{
				{Result: store.Win, MoveCount: 12},
				{Result: store.Loss, MoveCount: 40},
				{Result: store.Win, MoveCount: 20},
				{Result: store.Loss, MoveCount: 33},
			}},
			check: func(t *testing.T, a adjustmentView) {
				if a.depth != 1 || a.randomness >= 0 {
					t.Errorf("adjustment = %+v, want depth +1 and less randomness", a)
				}
			},
		},
		{
			name: "drawish play",
			rec:  store.HistoryRecord{Recent: outcomes(store.Loss, store.Win, store.Draw, store.Draw, store.Win, store.Draw)},
			check: func(t *testing.T, a adjustmentView) {
				if a.randomness <= 0 || a.depth != 0 || a.blunder != 0 {
					t.Errorf("adjustment = %+v, want randomness up only", a)
				}
			},
		},
		{
			name: "signals sum before the clamp",
			rec: store.HistoryRecord{WinStreak: 4, Recent: []store.GameOutcome{
				{Result: store.Win, MoveCount: 10},
				{Result: store.Win, MoveCount: 11},
				{Result: store.Win, MoveCount: 12},
				{Result: store.Win, MoveCount: 13},
			}},
			check: func(t *testing.T, a adjustmentView) {
				if a.depth != MaxDepthDelta {
					t.Errorf("depth = %d, want %d (3 from streak + 1 fast wins)", a.depth, MaxDepthDelta)
				}
				if a.randomness != -MaxRandomnessDelta {
					t.Errorf("randomness = %v, want clamp at %v", a.randomness, -MaxRandomnessDelta)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj := AdjustmentFor(tt.rec, 25)
			tt.check(t, adjustmentView{adj.DepthDelta, adj.RandomnessDelta, adj.BlunderDelta, adj.ThinkTimeDelta})
		})
	}
}

type adjustmentView struct {
	depth      int
	randomness float64
	blunder    float64
	think      time.Duration
}

func TestReset(t *testing.T) {
	repo := store.NewMemoryHistory()
	c := newController(t, repo)
	record(t, c, store.Win, store.Win)
	if err := c.Reset(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s := c.Snapshot(); s.WinStreak != 0 || len(s.Recent) != 0 {
		t.Fatalf("after reset: %+v", s)
	}
	if rec, _ := repo.Load(context.Background(), "p1"); len(rec.Recent) != 0 {
		t.Fatalf("stored record after reset: %+v", rec)
	}
}

func TestDetectTrick(t *testing.T) {
	c := newController(t, store.NewMemoryHistory())

	tests := []struct {
		name  string
		moves []string
		want  string
	}{
		{"scholars mate", []string{"e2e4", "e7e5", "d1h5", "b8c6", "f1c4", "g8f6"}, TrickScholarsMate},
		{"fried liver", []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1c4", "g8f6", "f3g5", "d7d5"}, TrickFriedLiver},
		{"fools mate setup", []string{"f2f3", "e7e5", "g2g4"}, TrickFoolsMateSetup},
		{"black queen out early", []string{"e2e4", "d7d5", "e4d5", "d8d5"}, TrickEarlyQueenSortie},
		{"quiet opening", []string{"d2d4", "d7d5", "c2c4", "e7e6", "b1c3", "g8f6"}, ""},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.DetectTrick(board.StartFEN, tt.moves); got != tt.want {
				t.Errorf("DetectTrick = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectTrick_LateGameSkipsNamedTricks(t *testing.T) {
	c := newController(t, store.NewMemoryHistory())
	late := "r1bqkb1r/pppp1ppp/2n2n2/4p2Q/2B1P3/8/PPPP1PPP/RNB1K1NR w KQkq - 4 20"
	if got := c.DetectTrick(late, []string{"e2e4", "e7e5", "d1h5", "b8c6", "f1c4", "g8f6"}); got != "" {
		t.Errorf("DetectTrick at move 20 = %q, want none", got)
	}
}

func TestDetectTrick_RepeatedOpening(t *testing.T) {
	c := newController(t, store.NewMemoryHistory())
	line := []string{"d2d4", "d7d5", "c2c4", "e7e6", "b1c3", "g8f6", "c1g5"}
	ctx := context.Background()

	if err := c.RecordMoves(ctx, store.Win, line, nil); err != nil {
		t.Fatal(err)
	}
	if got := c.DetectTrick(board.StartFEN, line); got != "" {
		t.Fatalf("after one game DetectTrick = %q, want none", got)
	}
	if err := c.RecordMoves(ctx, store.Win, line, nil); err != nil {
		t.Fatal(err)
	}
	want := RepeatPrefix + "d2d4 d7d5 c2c4 e7e6 b1c3 g8f6"
	if got := c.DetectTrick(board.StartFEN, line); got != want {
		t.Fatalf("DetectTrick = %q, want %q", got, want)
	}
	if got := c.DetectTrick(board.StartFEN, line[:5]); got != "" {
		t.Errorf("short move list matched %q", got)
	}
}
