package wizard

// store.go keeps the open registrations of the service.
//
// Registrations live only in memory. A sweeper discards the ones left idle
// longer than the idle timeout and closes them, which releases their
// previews the same way leaving the page does. A registration that is
// submitting is never swept.

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StoreConfig holds the limits of a Store.
type StoreConfig struct {
	IdleTimeout   time.Duration // default: 30m
	SweepInterval time.Duration // default: 1m
	MaxSessions   int           // default: 1000
}

// Store maps session ids to controllers.
type Store struct {
	rules     *Rules
	transport Transport
	cfg       StoreConfig
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Controller
}

// NewStore creates an empty store. Controllers it creates share rules and
// transport.
func NewStore(rules *Rules, transport Transport, cfg StoreConfig) *Store {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1000
	}
	return &Store{
		rules:     rules,
		transport: transport,
		cfg:       cfg,
		now:       time.Now,
		sessions:  make(map[string]*Controller),
	}
}

// Rules returns the rules shared by every controller of the store.
func (s *Store) Rules() *Rules { return s.rules }

// Create opens a registration and returns its controller.
// It fails with ErrTooManySessions when the store is full.
func (s *Store) Create(opts ...Option) (*Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) >= s.cfg.MaxSessions {
		return nil, ErrTooManySessions
	}

	id := uuid.New().String()
	opts = append([]Option{WithClock(s.now)}, opts...)
	c := New(id, s.rules, s.transport, opts...)
	s.sessions[id] = c
	return c, nil
}

// Get returns the controller for id or ErrSessionNotFound.
func (s *Store) Get(id string) (*Controller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return c, nil
}

// Remove closes and forgets the controller for id.
// Removing an unknown id is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	c, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		c.Close()
	}
}

// Len returns the number of open registrations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes every registration idle for longer than the idle timeout,
// or already closed, and returns how many were removed.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.cfg.IdleTimeout)

	s.mu.Lock()
	var expired []*Controller
	for id, c := range s.sessions {
		if c.sweepable(cutoff) {
			expired = append(expired, c)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, c := range expired {
		c.Close()
	}
	return len(expired)
}

// sweepable reports whether c has been idle since before cutoff.
// In-flight submissions are kept until they finish.
func (c *Controller) sweepable(cutoff time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseSubmitting {
		return false
	}
	return c.closed || c.lastActive.Before(cutoff)
}

// Run sweeps every SweepInterval until ctx is cancelled, then closes every
// remaining registration.
func (s *Store) Run(ctx context.Context) error {
	slog.Info("session sweeper started",
		"idle_timeout", s.cfg.IdleTimeout,
		"sweep_interval", s.cfg.SweepInterval,
		"max_sessions", s.cfg.MaxSessions,
	)

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			n := s.closeAll()
			slog.Info("session sweeper stopped", "sessions_closed", n)
			return nil
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Info("swept idle sessions", "removed", n, "open", s.Len())
			}
		}
	}
}

func (s *Store) closeAll() int {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*Controller)
	s.mu.Unlock()

	for _, c := range all {
		c.Close()
	}
	return len(all)
}
