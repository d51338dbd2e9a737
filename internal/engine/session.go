package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/chessbot/internal/logx"
)

// DefaultDeadline is the hard cap on a single search.
const DefaultDeadline = 1200 * time.Millisecond

// Engine is the part of Process a Session needs.
type Engine interface {
	Send(cmd string) error
	Sync() (uint64, error)
	OnLine(h func(Event)) (func(), error)
}

// SearchRequest describes one best-move search.
type SearchRequest struct {
	FEN        string
	Strength   int
	Depth      int
	TimeBudget time.Duration
	Deadline   time.Duration // zero uses the session deadline
}

// SessionConfig configures a Session.
type SessionConfig struct {
	Deadline time.Duration
	Logger   zerolog.Logger
}

// SessionStats counts search outcomes.
type SessionStats struct {
	Searches   uint64 `json:"searches"`
	Resolved   uint64 `json:"resolved"`
	TimedOut   uint64 `json:"timedOut"`
	Superseded uint64 `json:"superseded"`
	Failed     uint64 `json:"failed"`
}

// Session runs one search at a time against an Engine. A new search
// supersedes a pending one; the superseded caller gets no move.
type Session struct {
	eng      Engine
	deadline time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	gen     uint64
	pending *pendingSearch

	searches, resolved, timedOut, superseded, failed atomic.Uint64
}

// NewSession creates a Session over eng.
func NewSession(eng Engine, cfg SessionConfig) *Session {
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultDeadline
	}
	return &Session{
		eng:      eng,
		deadline: cfg.Deadline,
		log:      logx.Component(cfg.Logger, "session"),
	}
}

// pendingSearch accepts a bestmove only after the readyok that answers its
// own isready, so replies to earlier searches are discarded.
type pendingSearch struct {
	mu       sync.Mutex
	barrier  uint64 // isready ordinal, zero until known
	maxReady uint64
	armed    bool
	done     bool
	woken    bool
	unsub    func()

	result     chan string
	superseded chan struct{}
}

func newPendingSearch() *pendingSearch {
	return &pendingSearch{
		result:     make(chan string, 1),
		superseded: make(chan struct{}),
	}
}

func (ps *pendingSearch) handle(ev Event) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.done {
		return
	}
	switch ev.Kind {
	case EventReadyOK:
		if ev.Seq > ps.maxReady {
			ps.maxReady = ev.Seq
		}
		if ps.barrier != 0 && ps.maxReady >= ps.barrier {
			ps.armed = true
		}
	case EventBestMove:
		if !ps.armed {
			return
		}
		ps.done = true
		ps.result <- ev.Move
	}
}

func (ps *pendingSearch) setBarrier(n uint64) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.barrier = n
	if ps.maxReady >= n {
		ps.armed = true
	}
}

// finish detaches the handler. supersede also wakes the waiting caller.
func (ps *pendingSearch) finish(supersede bool) {
	ps.mu.Lock()
	ps.done = true
	unsub := ps.unsub
	ps.unsub = nil
	if supersede && !ps.woken {
		ps.woken = true
		close(ps.superseded)
	}
	ps.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Search asks the engine for a best move. It returns ("", false) when the
// engine does not answer within the deadline, the request is superseded, ctx
// is done, or the engine reports no legal move.
func (s *Session) Search(ctx context.Context, req SearchRequest) (string, bool) {
	deadline := s.deadline
	if req.Deadline > 0 {
		deadline = req.Deadline
	}
	timer := time.NewTimer(deadline)
	defer timer.Stop()
	s.searches.Add(1)

	ps := newPendingSearch()

	s.mu.Lock()
	s.gen++
	gen := s.gen
	if prev := s.pending; prev != nil {
		prev.finish(true)
		s.superseded.Add(1)
	}
	s.pending = ps

	unsub, err := s.eng.OnLine(ps.handle)
	if err != nil {
		s.pending = nil
		s.mu.Unlock()
		s.failed.Add(1)
		s.log.Warn().Err(err).Msg("search not started")
		return "", false
	}
	ps.mu.Lock()
	ps.unsub = unsub
	ps.mu.Unlock()

	if err := s.issue(ps, req); err != nil {
		s.pending = nil
		s.mu.Unlock()
		ps.finish(false)
		s.failed.Add(1)
		s.log.Warn().Err(err).Msg("search not started")
		return "", false
	}
	s.mu.Unlock()

	select {
	case mv := <-ps.result:
		s.release(gen, ps)
		s.resolved.Add(1)
		return mv, mv != ""
	case <-ps.superseded:
		select {
		case mv := <-ps.result:
			s.resolved.Add(1)
			return mv, mv != ""
		default:
			return "", false
		}
	case <-timer.C:
	case <-ctx.Done():
	}

	if s.release(gen, ps) {
		s.timedOut.Add(1)
		_ = s.eng.Send(CmdStop)
		s.log.Warn().Dur("deadline", deadline).Str("fen", req.FEN).Msg("search deadline exceeded")
	}
	return "", false
}

// issue sends stop, then the readiness barrier, then the new search.
// Called with s.mu held so command sequences of two searches never interleave.
func (s *Session) issue(ps *pendingSearch, req SearchRequest) error {
	if err := s.eng.Send(CmdStop); err != nil {
		return err
	}
	n, err := s.eng.Sync()
	if err != nil {
		return err
	}
	ps.setBarrier(n)

	if err := s.eng.Send(CmdSetOption("Skill Level", req.Strength)); err != nil {
		return err
	}
	if err := s.eng.Send(CmdPosition(req.FEN)); err != nil {
		return err
	}
	return s.eng.Send(CmdGo(req.Depth, req.TimeBudget))
}

// release detaches ps and reports whether it was still the current search.
func (s *Session) release(gen uint64, ps *pendingSearch) bool {
	s.mu.Lock()
	current := s.gen == gen && s.pending == ps
	if current {
		s.pending = nil
	}
	s.mu.Unlock()
	ps.finish(false)
	return current
}

// Stats returns a snapshot of search counters.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		Searches:   s.searches.Load(),
		Resolved:   s.resolved.Load(),
		TimedOut:   s.timedOut.Load(),
		Superseded: s.superseded.Load(),
		Failed:     s.failed.Load(),
	}
}
