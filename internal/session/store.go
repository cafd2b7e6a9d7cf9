// Package session keeps one conversation state per session id.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"smartbudget/internal/finance"
	"smartbudget/internal/metrics"
)

// DefaultIdleTTL is how long an untouched session is kept.
const DefaultIdleTTL = 30 * time.Minute

type entry struct {
	mu       sync.Mutex
	state    *finance.State
	lastSeen time.Time
	refs     int
}

// Store maps session ids to their conversation state. It is safe for
// concurrent use; requests of one session are serialised while different
// sessions proceed independently.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	idleTTL  time.Duration
	now      func() time.Time
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewStore creates an empty store. A non-positive idleTTL uses DefaultIdleTTL.
func NewStore(idleTTL time.Duration, metrics *metrics.Metrics, logger *slog.Logger) *Store {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &Store{
		sessions: make(map[string]*entry),
		idleTTL:  idleTTL,
		now:      time.Now,
		metrics:  metrics,
		logger:   logger.With("component", "session"),
	}
}

// NewID allocates a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// Acquire returns the state for id, creating it on first use, and holds the
// session until release is called.
func (s *Store) Acquire(id string) (*finance.State, func()) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok {
		e = &entry{state: finance.NewState()}
		s.sessions[id] = e
		s.metrics.ActiveSessions.Set(float64(len(s.sessions)))
		s.logger.Debug("session created", "session_id", id)
	}
	e.refs++
	e.lastSeen = s.now()
	s.mu.Unlock()

	e.mu.Lock()
	var once sync.Once
	return e.state, func() {
		once.Do(func() {
			e.mu.Unlock()
			s.mu.Lock()
			e.refs--
			e.lastSeen = s.now()
			s.mu.Unlock()
		})
	}
}

// Len returns the number of sessions held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the idle TTL and returns how many
// were removed. Sessions currently acquired are never dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, e := range s.sessions {
		if e.refs > 0 || now.Sub(e.lastSeen) <= s.idleTTL {
			continue
		}
		delete(s.sessions, id)
		removed++
	}
	if removed > 0 {
		s.metrics.ActiveSessions.Set(float64(len(s.sessions)))
		s.logger.Debug("idle sessions evicted", "count", removed)
	}
	return removed
}

// Run sweeps idle sessions periodically until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
