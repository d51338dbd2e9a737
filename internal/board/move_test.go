package board

import (
	"testing"
)

func TestEncodeMove(t *testing.T) {
	tests := []struct {
		name  string
		from  int
		to    int
		promo byte
	}{
		{"e2e4", 12, 28, PromoNone},
		{"e7e8q", 52, 60, PromoQueen},
		{"a1h8", 0, 63, PromoNone},
		{"b7b8n", 49, 57, PromoKnight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeMove(tt.from, tt.to, tt.promo)
			if got.From() != tt.from || got.To() != tt.to || got.Promotion() != tt.promo {
				t.Errorf("EncodeMove(%d, %d, %d) = %x, decodes to (%d, %d, %d)",
					tt.from, tt.to, tt.promo, got, got.From(), got.To(), got.Promotion())
			}
		})
	}
}

func TestEncodeMove_OutOfRange(t *testing.T) {
	if got := EncodeMove(-1, 10, PromoNone); got != 0 {
		t.Errorf("EncodeMove(-1, 10) = %x, want 0", got)
	}
	if got := EncodeMove(10, 64, PromoNone); got != 0 {
		t.Errorf("EncodeMove(10, 64) = %x, want 0", got)
	}
}

func TestMove_ToUCI(t *testing.T) {
	tests := []struct {
		name string
		move Move
		want string
	}{
		{"e2e4", EncodeMove(12, 28, PromoNone), "e2e4"},
		{"e7e8q", EncodeMove(52, 60, PromoQueen), "e7e8q"},
		{"a7a8r", EncodeMove(48, 56, PromoRook), "a7a8r"},
		{"b7b8n", EncodeMove(49, 57, PromoKnight), "b7b8n"},
		{"c7c8b", EncodeMove(50, 58, PromoBishop), "c7c8b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.move.ToUCI(); got != tt.want {
				t.Errorf("ToUCI() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseUCI(t *testing.T) {
	tests := []struct {
		name    string
		uci     string
		want    Move
		wantErr bool
	}{
		{"e2e4", "e2e4", EncodeMove(12, 28, PromoNone), false},
		{"e7e8q", "e7e8q", EncodeMove(52, 60, PromoQueen), false},
		{"upper promo", "a7a8R", EncodeMove(48, 56, PromoRook), false},
		{"invalid", "xyz", 0, true},
		{"too short", "e2e", 0, true},
		{"too long", "e2e4qq", 0, true},
		{"bad square", "i2e4", 0, true},
		{"bad promo", "e7e8k", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUCI(tt.uci)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseUCI(%s) error = %v, wantErr %v", tt.uci, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseUCI(%s) = %x, want %x", tt.uci, got, tt.want)
			}
		})
	}
}

func TestSquareName(t *testing.T) {
	for _, name := range []string{"a1", "h1", "e4", "d8", "h8"} {
		sq, err := ParseSquare(name)
		if err != nil {
			t.Fatalf("ParseSquare(%s): %v", name, err)
		}
		if got := SquareName(sq); got != name {
			t.Errorf("SquareName(ParseSquare(%s)) = %s", name, got)
		}
	}
	if SquareName(64) != "" {
		t.Error("SquareName(64) should be empty")
	}
}
