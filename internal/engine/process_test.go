package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func startedProcess(t *testing.T, l *fakeLauncher) *Process {
	t.Helper()
	p := NewProcess(ProcessConfig{
		Launcher:         l.launch,
		Options:          []Option{{Name: "Threads", Value: "1"}},
		HandshakeTimeout: time.Second,
		Logger:           zerolog.Nop(),
	})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(p.Stop)
	return p
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestProcess_Handshake(t *testing.T) {
	l := &fakeLauncher{}
	p := startedProcess(t, l)

	if !p.IsReady() {
		t.Fatalf("state = %v, want ready", p.State())
	}
	sent := l.current().sent()
	want := []string{"uci", "setoption name Threads value 1", "isready"}
	if len(sent) != len(want) {
		t.Fatalf("handshake sent %v, want %v", sent, want)
	}
	for i := range want {
		if sent[i] != want[i] {
			t.Fatalf("handshake[%d] = %q, want %q", i, sent[i], want[i])
		}
	}
	if p.Epoch() != 1 {
		t.Errorf("epoch = %d, want 1", p.Epoch())
	}
}

func TestProcess_StartIsIdempotent(t *testing.T) {
	l := &fakeLauncher{}
	p := NewProcess(ProcessConfig{Launcher: l.launch, Logger: zerolog.Nop()})
	defer p.Stop()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- p.Start(context.Background())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
	}
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start on ready process: %v", err)
	}
	if n := l.launches.Load(); n != 1 {
		t.Fatalf("launches = %d, want 1", n)
	}
}

func TestProcess_StartFailures(t *testing.T) {
	t.Run("launch error", func(t *testing.T) {
		l := &fakeLauncher{err: errors.New("no such file")}
		p := NewProcess(ProcessConfig{Launcher: l.launch, Logger: zerolog.Nop()})
		err := p.Start(context.Background())
		if !errors.Is(err, ErrEngineUnavailable) {
			t.Fatalf("err = %v, want ErrEngineUnavailable", err)
		}
		if p.State() != StateTerminated {
			t.Errorf("state = %v, want terminated", p.State())
		}
	})

	t.Run("handshake timeout", func(t *testing.T) {
		l := &fakeLauncher{setup: func(f *fakeEngine) { f.silentHandshake = true }}
		p := NewProcess(ProcessConfig{Launcher: l.launch, HandshakeTimeout: 50 * time.Millisecond, Logger: zerolog.Nop()})
		start := time.Now()
		err := p.Start(context.Background())
		if !errors.Is(err, ErrEngineUnavailable) {
			t.Fatalf("err = %v, want ErrEngineUnavailable", err)
		}
		if time.Since(start) > time.Second {
			t.Errorf("Start took %v with a 50ms handshake timeout", time.Since(start))
		}
	})

	t.Run("exit during handshake", func(t *testing.T) {
		l := &fakeLauncher{setup: func(f *fakeEngine) {
			f.silentHandshake = true
			go f.Close()
		}}
		p := NewProcess(ProcessConfig{Launcher: l.launch, Logger: zerolog.Nop()})
		if err := p.Start(context.Background()); !errors.Is(err, ErrEngineUnavailable) {
			t.Fatalf("err = %v, want ErrEngineUnavailable", err)
		}
	})

	t.Run("no launcher", func(t *testing.T) {
		p := NewProcess(ProcessConfig{Logger: zerolog.Nop()})
		if err := p.Start(context.Background()); !errors.Is(err, ErrEngineUnavailable) {
			t.Fatalf("err = %v, want ErrEngineUnavailable", err)
		}
	})
}

func TestProcess_SendBeforeStartIsDropped(t *testing.T) {
	p := NewProcess(ProcessConfig{Logger: zerolog.Nop()})
	if err := p.Send("go depth 1"); err != nil {
		t.Fatalf("Send before start = %v, want nil", err)
	}
	if _, err := p.Sync(); err == nil {
		t.Fatal("Sync before start should fail")
	}
}

func TestProcess_StopIsTerminal(t *testing.T) {
	l := &fakeLauncher{}
	p := startedProcess(t, l)
	f := l.current()

	p.Stop()
	p.Stop()

	if p.State() != StateTerminated {
		t.Fatalf("state = %v, want terminated", p.State())
	}
	if f.count(CmdQuit) != 1 {
		t.Errorf("quit sent %d times, want 1", f.count(CmdQuit))
	}
	if err := p.Send("isready"); !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("Send after Stop = %v, want ErrEngineUnavailable", err)
	}
	if _, err := p.OnLine(func(Event) {}); !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("OnLine after Stop = %v, want ErrEngineUnavailable", err)
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if !p.IsReady() || p.Epoch() != 2 || l.launches.Load() != 2 {
		t.Fatalf("restart: ready=%v epoch=%d launches=%d", p.IsReady(), p.Epoch(), l.launches.Load())
	}
}

func TestProcess_OnLineFanOutAndSequence(t *testing.T) {
	l := &fakeLauncher{}
	p := startedProcess(t, l)

	var mu sync.Mutex
	var a, b []Event
	unsubA, err := p.OnLine(func(ev Event) {
		mu.Lock()
		a = append(a, ev)
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.OnLine(func(ev Event) {
		mu.Lock()
		b = append(b, ev)
		mu.Unlock()
	}); err != nil {
		t.Fatal(err)
	}

	n, err := p.Sync()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("sync ordinal = %d, want 2 (handshake used 1)", n)
	}
	waitFor(t, "readyok", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(a) == 1 && len(b) == 1
	})
	mu.Lock()
	if a[0].Kind != EventReadyOK || a[0].Seq != n {
		t.Fatalf("event = %+v, want readyok seq %d", a[0], n)
	}
	mu.Unlock()

	unsubA()
	unsubA()
	if _, err := p.Sync(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "second readyok", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(b) == 2
	})
	mu.Lock()
	defer mu.Unlock()
	if len(a) != 1 {
		t.Errorf("unsubscribed handler got %d events, want 1", len(a))
	}
}

func TestProcess_EngineExitTerminates(t *testing.T) {
	l := &fakeLauncher{}
	p := startedProcess(t, l)

	l.current().Close()
	waitFor(t, "terminated", func() bool { return p.State() == StateTerminated })
	if err := p.Send("isready"); !errors.Is(err, ErrEngineUnavailable) {
		t.Errorf("Send after crash = %v, want ErrEngineUnavailable", err)
	}
}
