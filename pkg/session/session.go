// Package session owns the lifecycle of one search: a cancellation scope, a
// uuid identity, and the accumulator that collects per-hotel results as chunks
// resolve. At most one session is active at a time; starting a new search
// supersedes and cancels the previous one.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for session lifecycle.
var (
	otaSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ota_sessions_total",
		Help: "Total search sessions by terminal state",
	}, []string{"state"})

	otaSessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ota_session_duration_seconds",
		Help:    "Wall time from session start to terminal state",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})
)

// State is a session lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// terminal reports whether no further transition is allowed from s.
func (s State) terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Session is one logical search-and-detail-retrieval operation. Its context
// is cancelled when the session is cancelled or superseded; every provider
// call made on behalf of the session must use that context.
type Session struct {
	id        string
	ctx       context.Context
	cancel    context.CancelFunc
	startedAt time.Time

	mu    sync.Mutex
	state State
}

// New creates an idle session scoped under parent.
func New(parent context.Context) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		id:        uuid.New().String(),
		ctx:       ctx,
		cancel:    cancel,
		startedAt: time.Now(),
		state:     StateIdle,
	}
}

// ID returns the session's uuid identity.
func (s *Session) ID() string {
	return s.id
}

// Context returns the session's cancellation scope.
func (s *Session) Context() context.Context {
	return s.ctx
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start transitions Idle to Running.
func (s *Session) Start() error {
	return s.transition(StateIdle, StateRunning)
}

// Complete transitions Running to Completed. Per-identifier errors inside
// chunks do not prevent completion.
func (s *Session) Complete() error {
	return s.transition(StateRunning, StateCompleted)
}

// Fail moves a non-terminal session to Failed. Only fatal pre-dispatch
// conditions fail a session, such as invalid criteria or the initial region
// search itself failing; once chunks are dispatched the session completes or
// is cancelled.
func (s *Session) Fail() error {
	s.mu.Lock()
	if s.state.terminal() {
		current := s.state
		s.mu.Unlock()
		return fmt.Errorf("invalid session transition %s -> %s", current, StateFailed)
	}
	s.state = StateFailed
	s.mu.Unlock()

	s.cancel()
	s.observeTerminal(StateFailed)
	return nil
}

// Cancel moves the session to Cancelled and fires its cancellation scope.
// Safe to call in any state; cancelling a terminal session is a no-op.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.state.terminal() {
		s.mu.Unlock()
		return
	}
	s.state = StateCancelled
	s.mu.Unlock()

	s.cancel()
	s.observeTerminal(StateCancelled)
	log.Debug().
		Str("session_id", s.id).
		Msg("Session cancelled")
}

func (s *Session) transition(from, to State) error {
	s.mu.Lock()
	if s.state != from {
		current := s.state
		s.mu.Unlock()
		return fmt.Errorf("invalid session transition %s -> %s (current state %s)", from, to, current)
	}
	s.state = to
	s.mu.Unlock()

	if to.terminal() {
		s.cancel()
		s.observeTerminal(to)
	}
	return nil
}

func (s *Session) observeTerminal(state State) {
	otaSessionsTotal.WithLabelValues(string(state)).Inc()
	otaSessionDuration.Observe(time.Since(s.startedAt).Seconds())
}

// Manager enforces the single-active-session invariant and wires each new
// session to the shared accumulator.
type Manager struct {
	mu     sync.Mutex
	active *Session
	acc    *Accumulator
}

// NewManager creates a session manager with a fresh accumulator.
func NewManager() *Manager {
	return &Manager{acc: NewAccumulator()}
}

// Accumulator returns the shared result accumulator.
func (m *Manager) Accumulator() *Accumulator {
	return m.acc
}

// Active returns the currently active session, or nil.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Begin supersedes any running session and returns a new Running session.
// The superseded session's context is cancelled before the new session is
// activated, so its late results can no longer reach the accumulator.
func (m *Manager) Begin(parent context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev := m.active; prev != nil && prev.State() == StateRunning {
		log.Info().
			Str("superseded_session_id", prev.ID()).
			Msg("Superseding running session")
		prev.Cancel()
	}

	s := New(parent)
	if err := s.Start(); err != nil {
		return nil, err
	}
	m.active = s
	m.acc.Activate(s.ID())

	log.Info().
		Str("session_id", s.ID()).
		Msg("Session started")
	return s, nil
}
