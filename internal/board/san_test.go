package board

import (
	"slices"
	"testing"
)

func sansOf(t *testing.T, fen string, moves ...string) *Game {
	t.Helper()
	g, err := NewGame(fen)
	if err != nil {
		t.Fatal(err)
	}
	for _, mv := range moves {
		if err := g.Play(mv); err != nil {
			t.Fatalf("%s: %v", mv, err)
		}
	}
	return g
}

func TestSAN_ScholarsMate(t *testing.T) {
	g := sansOf(t, "", "e2e4", "e7e5", "f1c4", "b8c6", "d1h5", "g8f6", "h5f7")
	want := []string{"e4", "e5", "Bc4", "Nc6", "Qh5", "Nf6", "Qxf7#"}
	if got := g.SANs(); !slices.Equal(got, want) {
		t.Errorf("SANs = %v, want %v", got, want)
	}
	if got := g.PGN(); got != "1. e4 e5 2. Bc4 Nc6 3. Qh5 Nf6 4. Qxf7#" {
		t.Errorf("PGN = %q", got)
	}
}

func TestSAN_Special(t *testing.T) {
	tests := []struct {
		name string
		fen  string
		move string
		want string
	}{
		{"kingside castle", "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1", "e1g1", "O-O"},
		{"queenside castle", "r3k2r/8/8/8/8/8/8/R3K2R b KQkq - 0 1", "e8c8", "O-O-O"},
		{"promotion", "8/P7/8/8/8/8/8/k6K w - - 0 1", "a7a8q", "a8=Q+"},
		{"en passant", "4k3/8/8/3pP3/8/8/8/4K3 w - d6 0 2", "e5d6", "exd6"},
		{"file disambiguation", "4k3/8/8/8/8/8/8/R4RK1 w - - 0 1", "a1d1", "Rad1"},
		{"rank disambiguation", "4k3/8/R7/8/8/8/R7/4K3 w - - 0 1", "a2a4", "R2a4"},
		{"check", "4k3/8/8/8/8/8/8/R3K3 w - - 0 1", "a1a8", "Ra8+"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := sansOf(t, tt.fen, tt.move)
			if got := g.SANs()[0]; got != tt.want {
				t.Errorf("SAN = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMoveText(t *testing.T) {
	if got := MoveText([]string{"e5", "Nf3", "Nc6"}, 1, true); got != "1... e5 2. Nf3 Nc6" {
		t.Errorf("black first = %q", got)
	}
	if got := MoveText(nil, 1, false); got != "" {
		t.Errorf("empty = %q", got)
	}
	g := sansOf(t, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1", "e7e5", "g1f3")
	if got := g.PGN(); got != "1... e5 2. Nf3" {
		t.Errorf("PGN from black = %q", got)
	}
}
