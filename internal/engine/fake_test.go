package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
)

// fakeEngine is a scripted in-memory UCI engine.
type fakeEngine struct {
	mu      sync.Mutex
	written []string
	lines   chan string
	closed  bool

	silentHandshake bool
	// onGo and onStop run synchronously inside WriteLine and may emit lines.
	onGo   func(f *fakeEngine, cmd string)
	onStop func(f *fakeEngine)
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{lines: make(chan string, 1024)}
}

func (f *fakeEngine) WriteLine(line string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return errors.New("closed")
	}
	f.written = append(f.written, line)
	f.mu.Unlock()

	switch {
	case line == CmdUCI:
		if !f.silentHandshake {
			f.emit("id name Fake 1.0", "option name Skill Level type spin default 20 min 0 max 20", "uciok")
		}
	case line == CmdIsReady:
		if !f.silentHandshake {
			f.emit("readyok")
		}
	case line == CmdStop:
		if f.onStop != nil {
			f.onStop(f)
		}
	case strings.HasPrefix(line, "go"):
		if f.onGo != nil {
			f.onGo(f, line)
		}
	}
	return nil
}

func (f *fakeEngine) emit(lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for _, l := range lines {
		f.lines <- l
	}
}

func (f *fakeEngine) Lines() <-chan string { return f.lines }

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.lines)
	}
	return nil
}

func (f *fakeEngine) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.written...)
}

func (f *fakeEngine) count(cmd string) int {
	n := 0
	for _, l := range f.sent() {
		if l == cmd || strings.HasPrefix(l, cmd+" ") {
			n++
		}
	}
	return n
}

// fakeLauncher hands out fresh fake engines configured by setup.
type fakeLauncher struct {
	launches atomic.Int32
	setup    func(f *fakeEngine)
	err      error

	mu   sync.Mutex
	last *fakeEngine
}

func (l *fakeLauncher) launch(ctx context.Context) (Transport, error) {
	l.launches.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	f := newFakeEngine()
	if l.setup != nil {
		l.setup(f)
	}
	l.mu.Lock()
	l.last = f
	l.mu.Unlock()
	return f, nil
}

func (l *fakeLauncher) current() *fakeEngine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}
