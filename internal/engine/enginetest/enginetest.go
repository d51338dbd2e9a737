// Package enginetest provides an in-memory UCI engine for tests of packages
// that drive an engine.Process.
package enginetest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/freeeve/chessbot/internal/engine"
)

// Engine launches scripted connections. Reply is called with the FEN of the
// last position command for every go command; an empty answer leaves the
// search unanswered. A nil Reply never answers.
type Engine struct {
	Reply func(fen string) string
	// Err fails every launch.
	Err error

	launches atomic.Int32
	mu       sync.Mutex
	last     *Conn
}

// Launch satisfies engine.Launcher.
func (e *Engine) Launch(ctx context.Context) (engine.Transport, error) {
	e.launches.Add(1)
	if e.Err != nil {
		return nil, e.Err
	}
	c := &Conn{reply: e.Reply, lines: make(chan string, 1024)}
	e.mu.Lock()
	e.last = c
	e.mu.Unlock()
	return c, nil
}

// Launches counts calls to Launch.
func (e *Engine) Launches() int {
	return int(e.launches.Load())
}

// Conn returns the most recently launched connection.
func (e *Engine) Conn() *Conn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Conn is one running fake engine.
type Conn struct {
	reply func(string) string

	mu       sync.Mutex
	lines    chan string
	closed   bool
	written  []string
	position string
}

func (c *Conn) WriteLine(line string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("enginetest: closed")
	}
	c.written = append(c.written, line)
	if fen, ok := strings.CutPrefix(line, "position fen "); ok {
		fen, _, _ = strings.Cut(fen, " moves ")
		c.position = fen
	}
	fen := c.position
	c.mu.Unlock()

	switch {
	case line == engine.CmdUCI:
		c.Emit("id name Stub", "option name Skill Level type spin default 20 min 0 max 20", "uciok")
	case line == engine.CmdIsReady:
		c.Emit("readyok")
	case strings.HasPrefix(line, "go"):
		if c.reply == nil {
			return nil
		}
		if mv := c.reply(fen); mv != "" {
			c.Emit("info depth 1 score cp 0 pv "+mv, "bestmove "+mv)
		}
	}
	return nil
}

// Emit queues engine output lines.
func (c *Conn) Emit(lines ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, l := range lines {
		c.lines <- l
	}
}

func (c *Conn) Lines() <-chan string { return c.lines }

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.lines)
	}
	return nil
}

// Written returns every command received so far.
func (c *Conn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

// Count returns how many received commands start with cmd.
func (c *Conn) Count(cmd string) int {
	n := 0
	for _, l := range c.Written() {
		if l == cmd || strings.HasPrefix(l, cmd+" ") {
			n++
		}
	}
	return n
}
