package board

import "fmt"

// Move encoding (uint32):
//   bits 0-5:   from square (0-63)
//   bits 6-11:  to square (0-63)
//   bits 12-14: promotion piece (0=none, 1=Q, 2=R, 3=B, 4=N)
type Move uint32

const (
	moveFromMask   = 0x3F   // bits 0-5
	moveToMask     = 0xFC0  // bits 6-11
	movePromoMask  = 0x7000 // bits 12-14
	movePromoShift = 12
	moveToShift    = 6
)

// Promotion piece types
const (
	PromoNone   = 0
	PromoQueen  = 1
	PromoRook   = 2
	PromoBishop = 3
	PromoKnight = 4
)

// EncodeMove creates a Move from square indices and optional promotion.
// Squares are 0-63 with A1=0, B1=1, ..., H8=63.
func EncodeMove(from, to int, promo byte) Move {
	if from < 0 || from > 63 || to < 0 || to > 63 {
		return 0
	}
	m := uint32(from) | (uint32(to) << moveToShift) | (uint32(promo) << movePromoShift)
	return Move(m)
}

// From returns the source square index (0-63).
func (m Move) From() int {
	return int(m & moveFromMask)
}

// To returns the destination square index (0-63).
func (m Move) To() int {
	return int((m & moveToMask) >> moveToShift)
}

// Promotion returns the promotion piece (0=none, 1=Q, 2=R, 3=B, 4=N).
func (m Move) Promotion() byte {
	return byte((m & movePromoMask) >> movePromoShift)
}

// ToUCI converts a Move to UCI notation (e.g., "e2e4", "e7e8q").
func (m Move) ToUCI() string {
	uci := SquareName(m.From()) + SquareName(m.To())
	if promo := m.Promotion(); promo > 0 && promo <= 4 {
		promoChars := []byte{'q', 'r', 'b', 'n'}
		uci += string(promoChars[promo-1])
	}
	return uci
}

// SquareName returns the algebraic name of a square index ("e4").
func SquareName(sq int) string {
	if sq < 0 || sq > 63 {
		return ""
	}
	return string([]byte{byte('a' + sq%8), byte('1' + sq/8)})
}

// ParseSquare parses an algebraic square name into an index.
func ParseSquare(s string) (int, error) {
	if len(s) != 2 {
		return 0, fmt.Errorf("invalid square: %q", s)
	}
	file := int(s[0] - 'a')
	rank := int(s[1] - '1')
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return 0, fmt.Errorf("invalid square: %q", s)
	}
	return rank*8 + file, nil
}

// ParseUCI parses a UCI move string into a Move.
// Examples: "e2e4", "e7e8q", "a1h8"
func ParseUCI(uci string) (Move, error) {
	if len(uci) < 4 || len(uci) > 5 {
		return 0, fmt.Errorf("UCI move has bad length: %q", uci)
	}

	from, err := ParseSquare(uci[0:2])
	if err != nil {
		return 0, fmt.Errorf("invalid from square in UCI %q: %w", uci, err)
	}
	to, err := ParseSquare(uci[2:4])
	if err != nil {
		return 0, fmt.Errorf("invalid to square in UCI %q: %w", uci, err)
	}

	var promo byte = PromoNone
	if len(uci) == 5 {
		switch uci[4] {
		case 'q', 'Q':
			promo = PromoQueen
		case 'r', 'R':
			promo = PromoRook
		case 'b', 'B':
			promo = PromoBishop
		case 'n', 'N':
			promo = PromoKnight
		default:
			return 0, fmt.Errorf("invalid promotion piece: %c", uci[4])
		}
	}

	return EncodeMove(from, to, promo), nil
}
