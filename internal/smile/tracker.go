// Package smile decides when a per-frame smile reading becomes a state change.
package smile

import "time"

// DefaultDebounce is the minimum time between two accepted transitions.
const DefaultDebounce = time.Second

// Decision is the outcome of feeding one frame reading to a Tracker.
type Decision struct {
	Accepted bool
	Smiling  bool
	At       time.Duration
}

// Tracker holds the last accepted smile state and when it was accepted.
// It is not safe for concurrent use; the capture loop owns it.
type Tracker struct {
	debounce       time.Duration
	last           bool
	lastTransition time.Duration
	transitioned   bool
}

// NewTracker creates a Tracker in the not-smiling state.
// A negative debounce is treated as zero.
func NewTracker(debounce time.Duration) *Tracker {
	if debounce < 0 {
		debounce = 0
	}
	return &Tracker{debounce: debounce}
}

// Decide reports whether smiling at monotonic time now is a new state.
//
// A reading is accepted when it differs from the last accepted state and
// more than the debounce interval has elapsed since the last accepted
// transition. The first transition has nothing to be measured against and
// only needs to differ.
func (t *Tracker) Decide(smiling bool, now time.Duration) Decision {
	if smiling == t.last {
		return Decision{Smiling: t.last, At: now}
	}

	if t.transitioned && now-t.lastTransition <= t.debounce {
		return Decision{Smiling: t.last, At: now}
	}

	t.last = smiling
	t.lastTransition = now
	t.transitioned = true

	return Decision{Accepted: true, Smiling: smiling, At: now}
}

// Smiling returns the last accepted state.
func (t *Tracker) Smiling() bool {
	return t.last
}

// LastTransition returns when the last transition was accepted and whether
// one has happened yet.
func (t *Tracker) LastTransition() (time.Duration, bool) {
	return t.lastTransition, t.transitioned
}

// Debounce returns the configured debounce interval.
func (t *Tracker) Debounce() time.Duration {
	return t.debounce
}
