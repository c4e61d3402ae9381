package gqlupload

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManySubmissions means every submission slot stayed taken for the
// limiter's whole wait. Retrying after a short delay is safe: nothing was
// sent.
var ErrTooManySubmissions = errors.New("too many concurrent submissions, please try again later")

const (
	// DefaultMaxConcurrent applies when NewLimiter gets a non-positive limit.
	DefaultMaxConcurrent = 5
	// DefaultMaxWaitTime applies when NewLimiter gets a non-positive wait.
	DefaultMaxWaitTime = 30 * time.Second
)

// Limiter caps how many registrations are in flight to the GraphQL endpoint
// across all sessions. A Client holding a Limiter takes a slot for the
// duration of each Submit.
type Limiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.Mutex
	active int
	idle   chan struct{} // closed while active == 0
}

// NewLimiter returns a Limiter with maxConcurrent slots. Acquire gives up
// after maxWait.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	idle := make(chan struct{})
	close(idle)
	return &Limiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		idle:    idle,
	}
}

// Acquire takes a slot, waiting at most the limiter's maxWait. It returns
// ctx's error if ctx ends first. Every nil return must be paired with one
// Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.TryAcquire() {
		return nil
	}

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.enter()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManySubmissions
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.enter()
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *Limiter) Release() {
	l.mu.Lock()
	if l.active == 0 {
		l.mu.Unlock()
		panic("gqlupload: Release without a matching Acquire")
	}
	l.active--
	if l.active == 0 {
		close(l.idle)
	}
	l.mu.Unlock()

	<-l.slots
}

func (l *Limiter) enter() {
	l.mu.Lock()
	if l.active == 0 {
		l.idle = make(chan struct{})
	}
	l.active++
	l.mu.Unlock()
}

// ActiveCount reports how many submissions hold a slot.
func (l *Limiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Available reports how many slots are free.
func (l *Limiter) Available() int {
	return cap(l.slots) - l.ActiveCount()
}

// WaitForDrain returns once no submission holds a slot, or with ctx's error.
// The server calls it on shutdown so accepted registrations reach the
// endpoint before the process exits.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LimiterStatus is reported by the health endpoint.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns a consistent snapshot of the limiter.
func (l *Limiter) Status() LimiterStatus {
	active := l.ActiveCount()
	return LimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - active,
		MaxConcurrent: cap(l.slots),
	}
}
