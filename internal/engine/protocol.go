package engine

import (
	"fmt"
	"strings"
	"time"
)

// UCI commands without arguments.
const (
	CmdUCI     = "uci"
	CmdIsReady = "isready"
	CmdNewGame = "ucinewgame"
	CmdStop    = "stop"
	CmdQuit    = "quit"
)

// EventKind classifies a line received from the engine.
type EventKind int

const (
	EventOther EventKind = iota
	EventID
	EventOption
	EventUCIOK
	EventReadyOK
	EventInfo
	EventBestMove
	EventError
	numEventKinds
)

func (k EventKind) String() string {
	switch k {
	case EventID:
		return "id"
	case EventOption:
		return "option"
	case EventUCIOK:
		return "uciok"
	case EventReadyOK:
		return "readyok"
	case EventInfo:
		return "info"
	case EventBestMove:
		return "bestmove"
	case EventError:
		return "error"
	default:
		return "other"
	}
}

// Event is one parsed line from the engine.
type Event struct {
	Kind   EventKind
	Line   string
	Move   string // best move for EventBestMove; empty for "(none)"
	Ponder string

	// Seq is the 1-based ordinal of this event among events of the same kind
	// since the process was started. The n-th readyok answers the n-th isready.
	Seq uint64
}

// ParseLine turns a raw protocol line into an Event.
func ParseLine(line string) Event {
	line = strings.TrimSpace(line)
	ev := Event{Kind: EventOther, Line: line}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ev
	}

	switch fields[0] {
	case "id":
		ev.Kind = EventID
	case "option":
		ev.Kind = EventOption
	case "uciok":
		ev.Kind = EventUCIOK
	case "readyok":
		ev.Kind = EventReadyOK
	case "info":
		ev.Kind = EventInfo
		if len(fields) > 1 && fields[1] == "string" && strings.Contains(strings.ToLower(line), "error") {
			ev.Kind = EventError
		}
	case "bestmove":
		ev.Kind = EventBestMove
		if len(fields) > 1 && fields[1] != "(none)" && fields[1] != "0000" {
			ev.Move = fields[1]
		}
		if len(fields) > 3 && fields[2] == "ponder" {
			ev.Ponder = fields[3]
		}
	default:
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "unknown command") || strings.HasPrefix(lower, "no such option") ||
			strings.HasPrefix(lower, "error") {
			ev.Kind = EventError
		}
	}
	return ev
}

// CmdSetOption builds a setoption command.
func CmdSetOption(name string, value any) string {
	return fmt.Sprintf("setoption name %s value %v", name, value)
}

// CmdPosition builds a position command for a FEN with optional moves.
func CmdPosition(fen string, moves ...string) string {
	cmd := "position fen " + strings.TrimSpace(fen)
	if len(moves) > 0 {
		cmd += " moves " + strings.Join(moves, " ")
	}
	return cmd
}

// CmdGo builds a depth- and time-bounded search command.
func CmdGo(depth int, movetime time.Duration) string {
	cmd := "go"
	if depth > 0 {
		cmd += fmt.Sprintf(" depth %d", depth)
	}
	if movetime > 0 {
		cmd += fmt.Sprintf(" movetime %d", movetime.Milliseconds())
	}
	return cmd
}
