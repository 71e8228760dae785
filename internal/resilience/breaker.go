// Package resilience guards repeated operations against a failing dependency.
//
// [Breaker] is a three-state circuit breaker (closed, open, half-open). The
// repeater wraps its output writes in one so that a full disk or a vanished
// output directory pauses encoding for a cooldown instead of burning through
// every queued image.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker rejects calls.
var ErrOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrOpen] until the cooldown elapses.
	StateOpen

	// StateHalfOpen lets a single probe call through. Success closes the
	// breaker, failure opens it again.
	StateHalfOpen
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds the tuning knobs of a [Breaker].
type BreakerConfig struct {
	// Name labels the breaker in log lines.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 3.
	MaxFailures int

	// Cooldown is how long the breaker stays open before allowing a probe.
	// Default: 30s.
	Cooldown time.Duration

	// Now replaces time.Now, for tests.
	Now func() time.Time
}

// Breaker is a circuit breaker. Create it with [NewBreaker].
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker returns a closed breaker. Zero config fields take defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		now:         cfg.Now,
	}
}

// Do runs fn unless the breaker is open, and counts its result. While a
// half-open probe is in flight, other calls get [ErrOpen].
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	switch b.currentLocked() {
	case StateOpen:
		b.mu.Unlock()
		return ErrOpen
	case StateHalfOpen:
		if b.probing {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = StateHalfOpen
		b.probing = true
		slog.Info("circuit half-open, probing", "name", b.name)
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	probe := b.probing
	b.probing = false
	if err == nil {
		if probe {
			slog.Info("circuit closed", "name", b.name)
		}
		b.state = StateClosed
		b.failures = 0
		return nil
	}

	b.failures++
	if probe || b.failures >= b.maxFailures {
		if b.state != StateOpen {
			slog.Warn("circuit opened", "name", b.name, "consecutive_failures", b.failures, "cooldown", b.cooldown)
		}
		b.state = StateOpen
		b.openedAt = b.now()
	}
	return err
}

// State returns the current state. An open breaker whose cooldown has
// elapsed reports [StateHalfOpen].
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentLocked()
}

func (b *Breaker) currentLocked() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset closes the breaker and clears its failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probing = false
}
