// Package resilience provides fault tolerance patterns for the capture and
// storage collaborators.
package resilience

import (
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/GriffinCanCode/scrollshot/internal/errors"
)

// State represents circuit breaker state
type State uint32

const (
	Closed   State = iota // Normal operation
	Open                  // Failing fast
	HalfOpen              // Probing recovery
)

func (s State) String() string {
	return [...]string{"closed", "open", "half-open"}[s]
}

// ErrOpen is returned while the breaker is failing fast.
var ErrOpen = apperrors.New(apperrors.CodeUnavailable, "circuit breaker open")

// Stats is a snapshot of a breaker for status reporting.
type Stats struct {
	Name     string    `json:"name"`
	State    string    `json:"state"`
	Failures int       `json:"failures"`
	OpenedAt time.Time `json:"opened_at,omitzero"`
}

// Breaker stops calling a dependency after Threshold consecutive counted
// failures and lets one probe through every ResetTimeout until it recovers.
type Breaker struct {
	cfg Config

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
}

// New creates a breaker with config
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg.withDefaults()}
}

// Name identifies the protected dependency in logs.
func (b *Breaker) Name() string { return b.cfg.Name }

// Allow returns nil when a call may proceed and ErrOpen otherwise. An open
// breaker whose reset timeout has elapsed moves to half-open and admits the call.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Open {
		return nil
	}
	if b.cfg.Now().Sub(b.openedAt) < b.cfg.ResetTimeout {
		return ErrOpen
	}
	b.transitionLocked(HalfOpen)
	return nil
}

// Success records successful call
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case HalfOpen:
		b.successes++
		if b.successes >= b.cfg.HalfOpenSuccesses {
			b.transitionLocked(Closed)
		}
	case Closed:
		b.failures = 0
	}
}

// Failure records failed call
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	switch b.state {
	case HalfOpen:
		b.transitionLocked(Open)
	case Closed:
		if b.failures >= b.cfg.Threshold {
			b.transitionLocked(Open)
		}
	}
}

// Record reports the outcome of a call. Errors the config does not count,
// such as a caller's invalid argument, leave the breaker untouched.
func (b *Breaker) Record(err error) {
	switch {
	case err == nil:
		b.Success()
	case b.cfg.Counts(err):
		b.Failure()
	}
}

// State returns current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a point-in-time snapshot.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Stats{Name: b.cfg.Name, State: b.state.String(), Failures: b.failures}
	if b.state != Closed {
		s.OpenedAt = b.openedAt
	}
	return s
}

// Reset forces breaker to closed state
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitionLocked(Closed)
}

func (b *Breaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.successes = 0

	switch to {
	case Closed:
		b.failures = 0
		slog.Info("circuit breaker closed", "name", b.cfg.Name)
	case Open:
		b.openedAt = b.cfg.Now()
		slog.Warn("circuit breaker opened", "name", b.cfg.Name, "failures", b.failures)
	case HalfOpen:
		slog.Info("circuit breaker half-open", "name", b.cfg.Name)
	}

	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}

// Execute runs fn with circuit breaker protection
func (b *Breaker) Execute(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn()
	b.Record(err)
	return err
}

// ExecuteWithResult runs fn returning value and error with circuit protection
func ExecuteWithResult[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.Allow(); err != nil {
		return zero, err
	}
	result, err := fn()
	b.Record(err)
	if err != nil {
		return zero, err
	}
	return result, nil
}
