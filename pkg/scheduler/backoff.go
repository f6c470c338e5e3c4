package scheduler

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Default backoff bounds
const (
	DefaultMinInterval = time.Second
	DefaultMaxInterval = 60 * time.Second
)

// Backoff is the delay between periodic sessions. It starts at min, doubles
// after every session that changed nothing and drops back to min after one
// that did. Not safe for concurrent use.
type Backoff struct {
	exp     *backoff.ExponentialBackOff
	current time.Duration
}

// NewBackoff returns a backoff within [min, max]. Invalid bounds fall back
// to the defaults.
func NewBackoff(min, max time.Duration) *Backoff {
	if min <= 0 {
		min = DefaultMinInterval
	}
	if max < min {
		max = min
	}

	// No jitter and no elapsed-time limit: the schedule is a pure function
	// of how many unchanged sessions ran in a row.
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     min,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         max,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b := &Backoff{exp: exp}
	b.Reset()
	return b
}

// Next records a session outcome and returns the following interval
func (b *Backoff) Next(changed bool) time.Duration {
	if changed {
		return b.Reset()
	}
	b.current = b.exp.NextBackOff()
	return b.current
}

// Reset returns the interval to min
func (b *Backoff) Reset() time.Duration {
	b.exp.Reset()
	// NextBackOff hands out the current step and advances to the next one
	b.current = b.exp.NextBackOff()
	return b.current
}

// Current returns the interval without changing it
func (b *Backoff) Current() time.Duration {
	return b.current
}
