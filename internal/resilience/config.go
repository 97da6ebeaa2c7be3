package resilience

import (
	"time"

	apperrors "github.com/GriffinCanCode/scrollshot/internal/errors"
)

// Circuit breaker configuration constants
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3

	// Screen capture: a session ticks every ~500ms, so a revoked permission
	// trips quickly and is probed again a few ticks later.
	CaptureThreshold         = 4
	CaptureResetTimeout      = 3 * time.Second
	CaptureHalfOpenSuccesses = 1
)

// Config holds circuit breaker settings.
type Config struct {
	Name              string        // dependency name used in logs
	Threshold         int           // counted failures before opening
	ResetTimeout      time.Duration // wait before a half-open probe
	HalfOpenSuccesses int           // probe successes needed to close

	Counts        func(error) bool // failures that trip the breaker; nil counts all
	OnStateChange func(from, to State) // runs with the breaker locked
	Now           func() time.Time
}

// DefaultConfig returns general purpose defaults.
func DefaultConfig() Config {
	return Config{
		Name:              "default",
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// CaptureConfig returns settings tuned for the per-tick screen capture path.
// Out-of-display regions are the caller's mistake and do not count.
func CaptureConfig() Config {
	return Config{
		Name:              "screen-capture",
		Threshold:         CaptureThreshold,
		ResetTimeout:      CaptureResetTimeout,
		HalfOpenSuccesses: CaptureHalfOpenSuccesses,
		Counts:            isDependencyFailure,
	}
}

func isDependencyFailure(err error) bool {
	return !apperrors.IsCode(err, apperrors.CodeInvalidArgument)
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	if c.Counts == nil {
		c.Counts = func(error) bool { return true }
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
