package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

// fakeClock lets tests move past the cooldown without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	b := New(Config{Threshold: threshold, Cooldown: cooldown})
	b.now = clock.now
	return b, clock
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()

	if cfg.Threshold != 5 {
		t.Errorf("Expected Threshold 5, got %d", cfg.Threshold)
	}
	if cfg.Cooldown != 30*time.Second {
		t.Errorf("Expected Cooldown 30s, got %v", cfg.Cooldown)
	}
}

func TestNew_WithZeroValues(t *testing.T) {
	t.Parallel()
	b := New(Config{})

	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	if b.State() != Closed {
		t.Error("Expected closed state after 4 failures (default threshold is 5)")
	}

	b.RecordFailure()
	if b.State() != Open {
		t.Error("Expected open state after 5 failures")
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()
	b, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("expected Allow() before threshold (failure %d)", i)
		}
		b.RecordFailure()
	}

	if b.State() != Open {
		t.Errorf("expected open state, got %s", b.State())
	}
	if b.Allow() {
		t.Error("expected Allow() to return false while open")
	}
	if b.Failures() != 3 {
		t.Errorf("expected 3 failures, got %d", b.Failures())
	}
}

func TestBreaker_HalfOpenAllowsSingleProbe(t *testing.T) {
	t.Parallel()
	b, clock := newTestBreaker(1, time.Minute)
	b.RecordFailure()

	clock.advance(time.Minute + time.Second)

	if !b.Allow() {
		t.Fatal("expected probe to be allowed after cooldown")
	}
	if b.State() != HalfOpen {
		t.Errorf("expected half-open, got %s", b.State())
	}
	if b.Allow() {
		t.Error("expected second caller to be rejected while probe is in flight")
	}
}

func TestBreaker_ClosesOnSuccessInHalfOpen(t *testing.T) {
	t.Parallel()
	b, clock := newTestBreaker(1, time.Minute)
	b.RecordFailure()
	clock.advance(2 * time.Minute)
	b.Allow()

	b.RecordSuccess()

	if b.State() != Closed {
		t.Errorf("expected closed, got %s", b.State())
	}
	if !b.Allow() {
		t.Error("expected Allow() after closing")
	}
}

func TestBreaker_ReopensOnFailureInHalfOpen(t *testing.T) {
	t.Parallel()
	b, clock := newTestBreaker(3, time.Minute)
	for i := 0; i < 3; i++ {
		b.RecordFailure()
	}
	clock.advance(2 * time.Minute)
	b.Allow()

	b.RecordFailure()

	if b.State() != Open {
		t.Errorf("expected open after failed probe, got %s", b.State())
	}
	if b.Allow() {
		t.Error("expected Allow() to return false right after reopening")
	}
}

func TestBreaker_Do(t *testing.T) {
	t.Parallel()
	b, _ := newTestBreaker(2, time.Minute)
	errBoom := errors.New("boom")

	calls := 0
	fail := func() error { calls++; return errBoom }

	if err := b.Do(fail); !errors.Is(err, errBoom) {
		t.Errorf("Do() error = %v, want boom", err)
	}
	if err := b.Do(fail); !errors.Is(err, errBoom) {
		t.Errorf("Do() error = %v, want boom", err)
	}
	if err := b.Do(fail); !errors.Is(err, ErrOpen) {
		t.Errorf("Do() error = %v, want ErrOpen", err)
	}
	if calls != 2 {
		t.Errorf("expected fn to run twice, ran %d", calls)
	}
}

func TestBreaker_Reset(t *testing.T) {
	t.Parallel()
	b, _ := newTestBreaker(1, time.Minute)
	b.RecordFailure()

	b.Reset()

	if b.State() != Closed || b.Failures() != 0 {
		t.Errorf("expected closed with 0 failures, got %s with %d", b.State(), b.Failures())
	}
}

func TestBreaker_StateString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		state State
		want  string
	}{
		{Closed, "closed"},
		{Open, "open"},
		{HalfOpen, "half-open"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
