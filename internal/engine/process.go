// Package engine drives a UCI chess engine running as a separate process.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/chessbot/internal/logx"
)

// ErrEngineUnavailable is returned when the engine could not be started or
// has terminated.
var ErrEngineUnavailable = errors.New("engine unavailable")

// State is the lifecycle state of a Process.
type State int32

const (
	StateUninitialized State = iota
	StateStarting
	StateReady
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Option is an engine option sent with setoption during the handshake.
type Option struct {
	Name  string
	Value string
}

// ProcessConfig configures a Process.
type ProcessConfig struct {
	Launcher         Launcher
	Options          []Option
	HandshakeTimeout time.Duration
	Logger           zerolog.Logger
}

// Process owns one engine incarnation at a time. Lines from the engine are
// parsed, numbered per kind and fanned out to subscribers in arrival order.
type Process struct {
	cfg ProcessConfig
	log zerolog.Logger

	writeMu sync.Mutex // serializes writes so isready ordinals match wire order

	mu        sync.Mutex
	state     State
	transport Transport
	attempt   *startAttempt
	epoch     uint64
	subs      map[uint64]func(Event)
	nextSub   uint64
	seq       [numEventKinds]uint64
	syncSent  uint64
}

type startAttempt struct {
	ready chan struct{}
	once  sync.Once
	err   error
}

func (a *startAttempt) finish(err error) {
	a.once.Do(func() {
		a.err = err
		close(a.ready)
	})
}

// NewProcess creates a Process. Nothing is launched until Start.
func NewProcess(cfg ProcessConfig) *Process {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}
	return &Process{
		cfg:  cfg,
		log:  logx.Component(cfg.Logger, "engine"),
		subs: make(map[uint64]func(Event)),
	}
}

// Start launches the engine and performs the UCI handshake. Concurrent and
// repeated calls share the same launch. Start after Stop launches a fresh
// engine.
func (p *Process) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state == StateStarting || p.state == StateReady {
		attempt := p.attempt
		p.mu.Unlock()
		return waitAttempt(ctx, attempt)
	}
	if p.cfg.Launcher == nil {
		p.mu.Unlock()
		return fmt.Errorf("%w: no launcher configured", ErrEngineUnavailable)
	}

	attempt := &startAttempt{ready: make(chan struct{})}
	p.state = StateStarting
	p.attempt = attempt
	p.epoch++
	p.seq = [numEventKinds]uint64{}
	p.syncSent = 0
	p.mu.Unlock()

	go p.launch(attempt)
	return waitAttempt(ctx, attempt)
}

func waitAttempt(ctx context.Context, a *startAttempt) error {
	select {
	case <-a.ready:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Process) launch(attempt *startAttempt) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.HandshakeTimeout)
	defer cancel()

	t, err := p.cfg.Launcher(ctx)
	if err != nil {
		p.failStart(attempt, nil, fmt.Errorf("%w: launch: %v", ErrEngineUnavailable, err))
		return
	}

	p.mu.Lock()
	if p.attempt != attempt {
		p.mu.Unlock()
		_ = t.Close()
		attempt.finish(fmt.Errorf("%w: stopped during start", ErrEngineUnavailable))
		return
	}
	p.transport = t
	p.mu.Unlock()

	handshake := make(chan Event, 8)
	unsub, _ := p.OnLine(func(ev Event) {
		if ev.Kind != EventUCIOK && ev.Kind != EventReadyOK {
			return
		}
		select {
		case handshake <- ev:
		default:
		}
	})
	exited := make(chan struct{})
	go p.dispatch(t, exited)

	err = p.handshake(ctx, t, handshake, exited)
	unsub()
	if err != nil {
		p.failStart(attempt, t, fmt.Errorf("%w: handshake: %v", ErrEngineUnavailable, err))
		return
	}

	p.mu.Lock()
	if p.attempt != attempt || p.state != StateStarting {
		p.mu.Unlock()
		attempt.finish(fmt.Errorf("%w: stopped during start", ErrEngineUnavailable))
		return
	}
	p.state = StateReady
	epoch := p.epoch
	p.mu.Unlock()

	p.log.Info().Uint64("epoch", epoch).Msg("engine ready")
	attempt.finish(nil)
}

func (p *Process) handshake(ctx context.Context, t Transport, events <-chan Event, exited <-chan struct{}) error {
	await := func(kind EventKind) error {
		for {
			select {
			case ev := <-events:
				if ev.Kind == kind {
					return nil
				}
			case <-exited:
				return errors.New("engine exited")
			case <-ctx.Done():
				return fmt.Errorf("waiting for %s: %w", kind, ctx.Err())
			}
		}
	}

	if err := p.write(t, CmdUCI); err != nil {
		return err
	}
	if err := await(EventUCIOK); err != nil {
		return err
	}
	for _, opt := range p.cfg.Options {
		if err := p.write(t, CmdSetOption(opt.Name, opt.Value)); err != nil {
			return err
		}
	}
	if _, err := p.writeSync(t); err != nil {
		return err
	}
	return await(EventReadyOK)
}

func (p *Process) failStart(attempt *startAttempt, t Transport, err error) {
	p.mu.Lock()
	if p.attempt == attempt {
		p.state = StateTerminated
		p.transport = nil
		p.subs = make(map[uint64]func(Event))
	}
	p.mu.Unlock()
	if t != nil {
		_ = t.Close()
	}
	p.log.Error().Err(err).Msg("engine start failed")
	attempt.finish(err)
}

// dispatch reads lines until the transport closes. Handlers run on this
// goroutine and must not block.
func (p *Process) dispatch(t Transport, exited chan struct{}) {
	defer close(exited)

	for line := range t.Lines() {
		ev := ParseLine(line)

		p.mu.Lock()
		if p.transport != t {
			p.mu.Unlock()
			continue
		}
		p.seq[ev.Kind]++
		ev.Seq = p.seq[ev.Kind]
		handlers := make([]func(Event), 0, len(p.subs))
		for _, h := range p.subs {
			handlers = append(handlers, h)
		}
		p.mu.Unlock()

		if ev.Kind == EventError {
			p.log.Warn().Str("line", line).Msg("engine reported error")
		} else if ev.Kind != EventInfo {
			p.log.Debug().Str("line", line).Msg("engine <")
		}
		for _, h := range handlers {
			h(ev)
		}
	}

	p.mu.Lock()
	crashed := p.transport == t
	if crashed {
		p.state = StateTerminated
		p.transport = nil
		p.subs = make(map[uint64]func(Event))
	}
	p.mu.Unlock()
	if crashed {
		p.log.Error().Msg("engine exited unexpectedly")
	}
}

func (p *Process) write(t Transport, cmd string) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.log.Debug().Str("line", cmd).Msg("engine >")
	return t.WriteLine(cmd)
}

func (p *Process) writeSync(t Transport) (uint64, error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	p.syncSent++
	n := p.syncSent
	p.mu.Unlock()

	p.log.Debug().Str("line", CmdIsReady).Uint64("sync", n).Msg("engine >")
	return n, t.WriteLine(CmdIsReady)
}

// Send writes one command. Commands sent before the engine is ready are
// dropped with a warning. After termination Send returns ErrEngineUnavailable.
func (p *Process) Send(cmd string) error {
	t, err := p.readyTransport(cmd)
	if t == nil {
		return err
	}
	if err := p.write(t, cmd); err != nil {
		p.log.Warn().Err(err).Str("cmd", cmd).Msg("engine write failed")
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return nil
}

// Sync sends isready and returns its ordinal. The readyok event with the same
// Seq answers it, and every line before that readyok was produced by earlier
// commands.
func (p *Process) Sync() (uint64, error) {
	t, err := p.readyTransport(CmdIsReady)
	if t == nil {
		if err == nil {
			err = fmt.Errorf("%w: not ready", ErrEngineUnavailable)
		}
		return 0, err
	}
	n, err := p.writeSync(t)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return n, nil
}

func (p *Process) readyTransport(cmd string) (Transport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case StateReady:
		return p.transport, nil
	case StateTerminated:
		return nil, ErrEngineUnavailable
	default:
		p.log.Warn().Str("cmd", cmd).Str("state", p.state.String()).Msg("engine not ready, command dropped")
		return nil, nil
	}
}

// OnLine registers h for every subsequent event. The returned function
// unregisters it and may be called more than once.
func (p *Process) OnLine(h func(Event)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateTerminated {
		return func() {}, ErrEngineUnavailable
	}
	p.nextSub++
	id := p.nextSub
	p.subs[id] = h
	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}, nil
}

// Stop asks the engine to quit and releases it. Safe to call repeatedly.
func (p *Process) Stop() {
	p.mu.Lock()
	t := p.transport
	attempt := p.attempt
	wasRunning := p.state == StateReady || p.state == StateStarting
	p.state = StateTerminated
	p.transport = nil
	p.attempt = nil
	p.subs = make(map[uint64]func(Event))
	p.mu.Unlock()

	if t != nil {
		_ = p.write(t, CmdQuit)
		_ = t.Close()
	}
	if attempt != nil {
		attempt.finish(fmt.Errorf("%w: stopped", ErrEngineUnavailable))
	}
	if wasRunning {
		p.log.Info().Msg("engine stopped")
	}
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// IsReady reports whether the engine completed its handshake and is running.
func (p *Process) IsReady() bool {
	return p.State() == StateReady
}

// Epoch counts engine launches; it changes whenever a new engine is started.
func (p *Process) Epoch() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.epoch
}
