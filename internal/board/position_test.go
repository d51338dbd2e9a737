package board

import (
	"errors"
	"math/rand"
	"slices"
	"testing"
)

func TestValidateFEN(t *testing.T) {
	tests := []struct {
		name    string
		fen     string
		wantErr bool
	}{
		{"start", StartFEN, false},
		{"after e4", "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1", false},
		{"empty", "", true},
		{"garbage", "not a fen at all", true},
		{"bad side", "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR x KQkq - 0 1", true},
		{"seven ranks", "rnbqkbnr/pppppppp/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateFEN(tt.fen)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateFEN(%q) error = %v, wantErr %v", tt.fen, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMalformedPosition) {
				t.Errorf("error %v does not wrap ErrMalformedPosition", err)
			}
		})
	}
}

func TestLegalUCI_StartPosition(t *testing.T) {
	pos, err := ValidateFEN(StartFEN)
	if err != nil {
		t.Fatal(err)
	}
	moves := LegalUCI(pos)
	if len(moves) != 20 {
		t.Fatalf("start position has %d legal moves, want 20", len(moves))
	}
	for _, want := range []string{"e2e4", "g1f3", "b1c3", "a2a3"} {
		if !slices.Contains(moves, want) {
			t.Errorf("legal moves missing %s", want)
		}
	}
}

func TestFindMove(t *testing.T) {
	pos, err := ValidateFEN(StartFEN)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := FindMove(pos, "E2E4 "); !ok {
		t.Error("e2e4 should be legal from the start")
	}
	if _, ok := FindMove(pos, "e2e5"); ok {
		t.Error("e2e5 should be illegal from the start")
	}
}

func TestRandomLegalMove(t *testing.T) {
	pos, err := ValidateFEN(StartFEN)
	if err != nil {
		t.Fatal(err)
	}
	legal := LegalUCI(pos)
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		mv, err := RandomLegalMove(StartFEN, rnd)
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Contains(legal, mv) {
			t.Fatalf("RandomLegalMove returned illegal %s", mv)
		}
	}
}

func TestGame_FoolsMate(t *testing.T) {
	g, err := NewGame("")
	if err != nil {
		t.Fatal(err)
	}
	for _, mv := range []string{"f2f3", "e7e5", "g2g4"} {
		if err := g.Play(mv); err != nil {
			t.Fatalf("Play(%s): %v", mv, err)
		}
		if g.Status() != StatusOngoing {
			t.Fatalf("game over too early after %s", mv)
		}
	}
	if g.SideToMove() != "b" {
		t.Fatalf("side to move = %s, want b", g.SideToMove())
	}
	if err := g.Play("d8h4"); err != nil {
		t.Fatal(err)
	}
	if g.Status() != StatusCheckmate {
		t.Fatalf("status = %v, want checkmate", g.Status())
	}
	if g.Ply() != 4 || !slices.Equal(g.Moves(), []string{"f2f3", "e7e5", "g2g4", "d8h4"}) {
		t.Errorf("unexpected move list %v", g.Moves())
	}
	if _, err := RandomLegalMove(g.FEN(), rand.New(rand.NewSource(1))); !errors.Is(err, ErrNoLegalMoves) {
		t.Errorf("RandomLegalMove after mate: err = %v, want ErrNoLegalMoves", err)
	}
}

func TestGame_RejectsIllegal(t *testing.T) {
	g, err := NewGame(StartFEN)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Play("e1e2"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("Play(e1e2) err = %v, want ErrIllegalMove", err)
	}
	if g.Ply() != 0 {
		t.Error("illegal move must not be recorded")
	}
}

func TestFullMoveNumber(t *testing.T) {
	if n := FullMoveNumber(StartFEN); n != 1 {
		t.Errorf("FullMoveNumber(start) = %d", n)
	}
	if n := FullMoveNumber("8/8/8/8/8/8/8/K6k w - - 3 42"); n != 42 {
		t.Errorf("FullMoveNumber = %d, want 42", n)
	}
	if n := FullMoveNumber("8/8/8/8/8/8/8/K6k w - -"); n != 1 {
		t.Errorf("FullMoveNumber without counters = %d, want 1", n)
	}
}

func TestStatusOf_DrawRules(t *testing.T) {
	tests := []struct {
		name string
		fen  string
		want Status
	}{
		{"bare kings", "8/8/8/4k3/8/8/8/4K3 w - - 0 1", StatusInsufficientMaterial},
		{"king and knight", "8/8/8/4k3/8/8/8/3NK3 b - - 0 1", StatusInsufficientMaterial},
		{"king and bishop", "8/8/8/4k3/8/8/8/3bK3 w - - 0 1", StatusInsufficientMaterial},
		{"two knights", "8/8/8/4k3/8/8/8/2NNK3 w - - 0 1", StatusOngoing},
		{"king and rook", "8/8/8/4k3/8/8/8/3RK3 w - - 0 1", StatusOngoing},
		{"clock at 99", "8/8/8/4k3/8/8/8/3RK3 w - - 99 80", StatusOngoing},
		{"clock at 100", "8/8/8/4k3/8/8/8/3RK3 w - - 100 80", StatusFiftyMoves},
		{"mate beats the clock", "7k/6Q1/6K1/8/8/8/8/8 b - - 100 80", StatusCheckmate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, err := ValidateFEN(tt.fen)
			if err != nil {
				t.Fatal(err)
			}
			if got := StatusOf(pos); got != tt.want {
				t.Errorf("StatusOf = %v, want %v", got, tt.want)
			}
			drawn := tt.want != StatusOngoing && tt.want != StatusCheckmate
			if tt.want.Drawn() != drawn {
				t.Errorf("%v.Drawn() = %v", tt.want, !drawn)
			}
		})
	}
}

func TestGame_CaptureToBareKings(t *testing.T) {
	g, err := NewGame("8/8/8/4k3/8/8/3r4/4K3 w - - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	if g.Status() != StatusOngoing {
		t.Fatalf("status = %v before capture", g.Status())
	}
	if err := g.Play("e1d2"); err != nil {
		t.Fatal(err)
	}
	if g.Status() != StatusInsufficientMaterial {
		t.Errorf("status = %v, want insufficient-material", g.Status())
	}
}

func TestGame_FiftyMoveRule(t *testing.T) {
	g, err := NewGame("8/8/8/4k3/8/8/8/R3K3 w - - 99 80")
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Play("a1a2"); err != nil {
		t.Fatal(err)
	}
	if g.Status() != StatusFiftyMoves {
		t.Errorf("status = %v, want fifty-moves", g.Status())
	}
}

func TestGame_ThreefoldRepetition(t *testing.T) {
	g, err := NewGame("")
	if err != nil {
		t.Fatal(err)
	}
	shuffle := []string{"g1f3", "g8f6", "f3g1", "f6g8"}
	for round := 1; round <= 2; round++ {
		for _, mv := range shuffle {
			if g.Status() != StatusOngoing {
				t.Fatalf("round %d: game over before %s", round, mv)
			}
			if err := g.Play(mv); err != nil {
				t.Fatal(err)
			}
		}
	}
	if g.Status() != StatusRepetition {
		t.Errorf("status = %v, want repetition", g.Status())
	}
	if !g.Status().Drawn() {
		t.Error("repetition should be drawn")
	}
}
