package capture

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teslashibe/llamadoc-voice/pkg/apperr"
)

const opCapture = "capture"

// ErrMechanismUnavailable is returned by Start for a mechanism that cannot
// run here.
var ErrMechanismUnavailable = apperr.New(apperr.KindUnavailable, "Speech capture is not available.")

// Session enforces a single live capture.
type Session struct {
	logger *slog.Logger

	startMu   sync.Mutex
	mu        sync.Mutex
	state     State
	cur       *run
	seq       uint64
	observers []func(State)
}

type run struct {
	id      uint64
	mech    Mechanism
	cap     Capture
	cancel  context.CancelFunc
	out     chan Outcome
	done    chan struct{}
	aborted bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession creates an idle session.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "capture.session")
	return s
}

// OnStateChange registers fn to run on every state transition.
func (s *Session) OnStateChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active reports whether a session holds the device.
func (s *Session) Active() bool {
	return s.State().Active()
}

// Start aborts any running session and starts a new one on mech. The
// returned channel delivers exactly one Outcome and is then closed. An
// unavailable mechanism fails immediately and the state stays Idle.
func (s *Session) Start(ctx context.Context, mech Mechanism) (<-chan Outcome, error) {
	if mech == nil || !mech.Available() {
		return nil, ErrMechanismUnavailable
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()
	s.Abort()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.seq++
	r := &run{
		id:     s.seq,
		mech:   mech,
		cancel: cancel,
		out:    make(chan Outcome, 1),
		done:   make(chan struct{}),
	}
	s.cur = r
	s.mu.Unlock()

	s.logger.Debug("session starting", "id", r.id, "mechanism", mech.Name())
	s.transition(r, StateStarting)
	go s.run(runCtx, r)
	return r.out, nil
}

func (s *Session) run(ctx context.Context, r *run) {
	c, err := r.mech.Begin(ctx)

	s.mu.Lock()
	aborted := r.aborted
	if err == nil && !aborted {
		r.cap = c
	}
	s.mu.Unlock()

	switch {
	case aborted:
		if err == nil {
			c.Abort()
		}
		s.finish(r, Outcome{Status: StateCancelled})
		return
	case err != nil:
		s.finish(r, Outcome{Status: StateFailed, Err: err})
		return
	}

	s.transition(r, StateListening)
	res, err := c.Wait(ctx)

	s.mu.Lock()
	aborted = r.aborted
	s.mu.Unlock()

	switch {
	case aborted:
		s.finish(r, Outcome{Status: StateCancelled})
	case err != nil:
		s.finish(r, Outcome{Status: StateFailed, Err: err})
	default:
		s.finish(r, Outcome{Status: StateSucceeded, Result: res})
	}
}

// finish delivers the outcome and returns the session to Idle.
func (s *Session) finish(r *run, o Outcome) {
	o.Mechanism = r.mech.Name()
	r.cancel()
	s.transition(r, o.Status)

	s.mu.Lock()
	current := s.cur == r
	if current {
		s.cur = nil
	}
	s.mu.Unlock()
	if current {
		s.transition(nil, StateIdle)
	}

	if o.Err != nil {
		s.logger.Info("session ended", "id", r.id, "status", o.Status, "error", o.Err)
	} else {
		s.logger.Debug("session ended", "id", r.id, "status", o.Status)
	}
	r.out <- o
	close(r.out)
	close(r.done)
}

// transition moves to st if r is still the current run (r == nil skips
// the check) and notifies observers.
func (s *Session) transition(r *run, st State) {
	s.mu.Lock()
	if r != nil && s.cur != r {
		s.mu.Unlock()
		return
	}
	s.state = st
	observers := append(([]func(State))(nil), s.observers...)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(st)
	}
}

// Stop ends the running session at the user's request. A mechanism that
// keeps its buffer on stop still finalizes it and the outcome is
// Succeeded; otherwise the in-flight result is discarded and the outcome
// is Cancelled. Stop reports whether a session was running.
func (s *Session) Stop() bool {
	s.mu.Lock()
	r := s.cur
	if r == nil {
		s.mu.Unlock()
		return false
	}
	if r.cap != nil && r.mech.KeepsOnStop() {
		c := r.cap
		s.mu.Unlock()
		c.Stop()
		return true
	}
	s.mu.Unlock()
	s.cancel(r)
	return true
}

// Abort cancels the running session, if any, and waits until its device
// is released.
func (s *Session) Abort() {
	s.mu.Lock()
	r := s.cur
	s.mu.Unlock()
	if r == nil {
		return
	}
	s.cancel(r)
	<-r.done
}

func (s *Session) cancel(r *run) {
	s.mu.Lock()
	r.aborted = true
	c := r.cap
	s.mu.Unlock()
	if c != nil {
		c.Abort()
	}
	r.cancel()
}
