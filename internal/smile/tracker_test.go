package smile

import (
	"math/rand"
	"testing"
	"time"
)

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func TestTracker_Decide(t *testing.T) {
	tests := []struct {
		name   string
		smile  bool
		at     time.Duration
		accept bool
	}{
		{name: "first smile accepted", smile: true, at: 0, accept: true},
		{name: "quick release rejected", smile: false, at: 500 * time.Millisecond, accept: false},
		{name: "release after debounce accepted", smile: false, at: 1100 * time.Millisecond, accept: true},
		{name: "same state rejected", smile: false, at: 5 * time.Second, accept: false},
		{name: "exactly at debounce rejected", smile: true, at: 2100 * time.Millisecond, accept: false},
		{name: "just past debounce accepted", smile: true, at: 2200 * time.Millisecond, accept: true},
	}

	tracker := NewTracker(DefaultDebounce)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tracker.Decide(tt.smile, tt.at)
			if d.Accepted != tt.accept {
				t.Errorf("Decide(%v, %v).Accepted = %v, want %v", tt.smile, tt.at, d.Accepted, tt.accept)
			}
		})
	}
}

func TestTracker_RejectedLeavesStateUntouched(t *testing.T) {
	tracker := NewTracker(time.Second)

	tracker.Decide(true, seconds(10))
	before, _ := tracker.LastTransition()

	d := tracker.Decide(false, seconds(10.3))
	if d.Accepted {
		t.Fatal("transition inside the debounce window should be rejected")
	}
	if d.Smiling != true {
		t.Error("rejected decision should report the last accepted state")
	}

	after, _ := tracker.LastTransition()
	if after != before {
		t.Errorf("LastTransition() changed from %v to %v on rejection", before, after)
	}
	if !tracker.Smiling() {
		t.Error("Smiling() should still be true")
	}
}

func TestTracker_InitialState(t *testing.T) {
	tracker := NewTracker(time.Second)

	if tracker.Smiling() {
		t.Error("new tracker should not be smiling")
	}
	if _, ok := tracker.LastTransition(); ok {
		t.Error("new tracker should have no transition")
	}

	// Not smiling is the initial state, so it is never a transition.
	if d := tracker.Decide(false, 0); d.Accepted {
		t.Error("Decide(false) on a new tracker should be rejected")
	}
}

func TestTracker_NegativeDebounce(t *testing.T) {
	tracker := NewTracker(-time.Second)
	if tracker.Debounce() != 0 {
		t.Errorf("Debounce() = %v, want 0", tracker.Debounce())
	}
}

// TestTracker_MatchesReferenceModel feeds random readings to the tracker and
// checks each decision against a direct evaluation of the acceptance rule.
func TestTracker_MatchesReferenceModel(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	debounce := time.Second

	for run := 0; run < 50; run++ {
		tracker := NewTracker(debounce)

		var (
			last         bool
			lastAt       time.Duration
			transitioned bool
			now          time.Duration
		)

		for i := 0; i < 200; i++ {
			now += time.Duration(rng.Intn(700)) * time.Millisecond
			reading := rng.Intn(2) == 1

			want := reading != last && (!transitioned || now-lastAt > debounce)
			got := tracker.Decide(reading, now)

			if got.Accepted != want {
				t.Fatalf("run %d step %d: Decide(%v, %v).Accepted = %v, want %v", run, i, reading, now, got.Accepted, want)
			}
			if want {
				last = reading
				lastAt = now
				transitioned = true
			}
			if tracker.Smiling() != last {
				t.Fatalf("run %d step %d: Smiling() = %v, want %v", run, i, tracker.Smiling(), last)
			}
		}
	}
}
