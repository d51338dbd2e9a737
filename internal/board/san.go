package board

import (
	"strconv"
	"strings"

	"github.com/freeeve/pgn/v3"
)

// SAN converts a legal move to standard algebraic notation in pos.
func SAN(pos *pgn.GameState, mv pgn.Mv) string {
	squares := placement(pos.ToFEN())
	fromSq := int(mv.From)
	toSq := int(mv.To)
	fromFile := fromSq % 8
	toFile := toSq % 8
	toRank := toSq / 8

	files := "abcdefgh"
	ranks := "12345678"

	// 'P', 'N', 'B', 'R', 'Q', 'K' for white, lowercase for black
	piece := squares[fromSq]
	target := squares[toSq]
	pieceChar := upper(piece)

	// Castling, encoded either as the king's two-square step or as the
	// king capturing its own rook.
	if pieceChar == 'K' && (abs(toFile-fromFile) == 2 || (target != 0 && isWhite(target) == isWhite(piece))) {
		return withCheck(pos, mv, castleSAN(toSq > fromSq))
	}

	isPawn := pieceChar == 'P'
	isCapture := target != 0 || (isPawn && fromFile != toFile) // en passant

	var san string
	if isPawn {
		if isCapture {
			san = string(files[fromFile]) + "x" + string(files[toFile]) + string(ranks[toRank])
		} else {
			san = string(files[toFile]) + string(ranks[toRank])
		}
		switch mv.Promo {
		case pgn.PromoQueen:
			san += "=Q"
		case pgn.PromoRook:
			san += "=R"
		case pgn.PromoBishop:
			san += "=B"
		case pgn.PromoKnight:
			san += "=N"
		}
	} else {
		san = string(pieceChar)

		// Another piece of the same type reaching the same square needs
		// the origin file, rank or both.
		disambig := ""
		for _, other := range pgn.GenerateLegalMoves(pos) {
			if int(other.To) != toSq || int(other.From) == fromSq {
				continue
			}
			if upper(squares[int(other.From)]) != pieceChar {
				continue
			}
			switch {
			case fromFile != int(other.From)%8:
				disambig = string(files[fromFile])
			case fromSq/8 != int(other.From)/8:
				disambig = string(ranks[fromSq/8])
			default:
				disambig = string(files[fromFile]) + string(ranks[fromSq/8])
			}
			break
		}
		san += disambig

		if isCapture {
			san += "x"
		}
		san += string(files[toFile]) + string(ranks[toRank])
	}
	return withCheck(pos, mv, san)
}

func castleSAN(kingside bool) string {
	if kingside {
		return "O-O"
	}
	return "O-O-O"
}

// withCheck appends "+" or "#" when mv gives check or mate.
func withCheck(pos *pgn.GameState, mv pgn.Mv, san string) string {
	after := clone(pos)
	if after == nil || pgn.ApplyMove(after, mv) != nil {
		return san
	}
	if after.IsInCheck() {
		if len(pgn.GenerateLegalMoves(after)) == 0 {
			return san + "#"
		}
		return san + "+"
	}
	return san
}

// placement reads the piece placement field of fen into squares indexed
// rank*8+file from a1.
func placement(fen string) [64]byte {
	var squares [64]byte
	field, _, _ := strings.Cut(fen, " ")
	rank, file := 7, 0
	for i := 0; i < len(field); i++ {
		c := field[i]
		switch {
		case c == '/':
			rank--
			file = 0
		case c >= '1' && c <= '8':
			file += int(c - '0')
		default:
			if rank >= 0 && file < 8 {
				squares[rank*8+file] = c
			}
			file++
		}
	}
	return squares
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 32
	}
	return c
}

func isWhite(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// MoveText numbers SAN moves as PGN movetext. firstMove is the full-move
// number and black reports whether black moves first.
func MoveText(sans []string, firstMove int, black bool) string {
	var sb strings.Builder
	n := firstMove
	for i, s := range sans {
		if i > 0 {
			sb.WriteByte(' ')
		}
		whiteMove := (i%2 == 0) != black
		switch {
		case i == 0 && black:
			sb.WriteString(strconv.Itoa(n) + "... ")
		case whiteMove:
			sb.WriteString(strconv.Itoa(n) + ". ")
		}
		sb.WriteString(s)
		if !whiteMove {
			n++
		}
	}
	return sb.String()
}
