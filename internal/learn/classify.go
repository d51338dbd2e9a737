package learn

import "slices"

// OtherOpening is the classification of sequences matching no known prefix.
const OtherOpening = "OTHER"

// Opening is one entry of the classification table.
type Opening struct {
	Code   string
	Name   string
	Prefix []string
}

// openings is ordered: the first entry whose prefix matches wins, so longer
// prefixes come before the shorter ones they extend.
var openings = []Opening{
	{"C44", "King's Knight Opening", []string{"e2e4", "e7e5", "g1f3", "b8c6"}},
	{"C42", "Petrov's Defence", []string{"e2e4", "e7e5", "g1f3", "g8f6"}},
	{"C40", "King's Knight Opening", []string{"e2e4", "e7e5", "g1f3"}},
	{"C30", "King's Gambit", []string{"e2e4", "e7e5", "f2f4"}},
	{"C23", "Bishop's Opening", []string{"e2e4", "e7e5", "f1c4"}},
	{"C25", "Vienna Game", []string{"e2e4", "e7e5", "b1c3"}},
	{"C20", "Wayward Queen Attack", []string{"e2e4", "e7e5", "d1h5"}},
	{"C20", "King's Pawn Game", []string{"e2e4", "e7e5"}},
	{"B27", "Sicilian Defence", []string{"e2e4", "c7c5", "g1f3"}},
	{"B20", "Sicilian Defence", []string{"e2e4", "c7c5"}},
	{"C00", "French Defence", []string{"e2e4", "e7e6"}},
	{"B10", "Caro-Kann Defence", []string{"e2e4", "c7c6"}},
	{"B01", "Scandinavian Defence", []string{"e2e4", "d7d5"}},
	{"B07", "Pirc Defence", []string{"e2e4", "d7d6"}},
	{"B00", "King's Pawn Opening", []string{"e2e4"}},
	{"D06", "Queen's Gambit", []string{"d2d4", "d7d5", "c2c4"}},
	{"D00", "Queen's Pawn Game", []string{"d2d4", "d7d5"}},
	{"A45", "Indian Defence", []string{"d2d4", "g8f6"}},
	{"A40", "Queen's Pawn Opening", []string{"d2d4"}},
	{"A10", "English Opening", []string{"c2c4"}},
	{"A04", "Reti Opening", []string{"g1f3"}},
	{"A02", "Bird's Opening", []string{"f2f4"}},
}

// Classify returns the code and name of the first table entry whose prefix
// starts moves, or OtherOpening.
func Classify(moves []string) (code, name string) {
	for _, o := range openings {
		if len(moves) >= len(o.Prefix) && slices.Equal(moves[:len(o.Prefix)], o.Prefix) {
			return o.Code, o.Name
		}
	}
	return OtherOpening, "Unclassified"
}
