// Package testutil provides a scripted fake job-control server and helpers
// for waiting on asynchronous test conditions.
package testutil

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

// WaitOptions configures WaitFor behavior.
type WaitOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

// WaitOption is a functional option for WaitFor.
type WaitOption func(*WaitOptions)

// WithTimeout sets the maximum wait time (default: 5s).
func WithTimeout(d time.Duration) WaitOption {
	return func(o *WaitOptions) {
		o.Timeout = d
	}
}

// WithInterval sets the polling interval (default: 10ms).
func WithInterval(d time.Duration) WaitOption {
	return func(o *WaitOptions) {
		o.Interval = d
	}
}

func defaultOptions() WaitOptions {
	return WaitOptions{
		Timeout:  5 * time.Second,
		Interval: 10 * time.Millisecond,
	}
}

// WaitFor polls until condition returns true or timeout is reached.
// Returns true if condition was met, false on timeout.
func WaitFor(tb testing.TB, condition func() bool, opts ...WaitOption) bool {
	tb.Helper()

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	deadline := time.Now().Add(o.Timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(o.Interval)
	}
	return condition()
}

// MustWaitFor polls until condition returns true or fails the test on timeout.
func MustWaitFor(tb testing.TB, condition func() bool, opts ...WaitOption) {
	tb.Helper()
	if !WaitFor(tb, condition, opts...) {
		tb.Fatal("timed out waiting for condition")
	}
}

// MustWaitForCalls waits until path on s has received at least n requests.
func MustWaitForCalls(tb testing.TB, s *FlowServer, path string, n int, opts ...WaitOption) {
	tb.Helper()
	if !WaitFor(tb, func() bool { return s.Calls(path) >= n }, opts...) {
		tb.Fatalf("timed out waiting for %d calls on %s (current: %d)", n, path, s.Calls(path))
	}
}

// SyncBuffer is a bytes.Buffer safe for one writer and concurrent readers.
type SyncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// MustWaitForOutput waits until b contains substr.
func MustWaitForOutput(tb testing.TB, b *SyncBuffer, substr string, opts ...WaitOption) {
	tb.Helper()
	if !WaitFor(tb, func() bool { return strings.Contains(b.String(), substr) }, opts...) {
		tb.Fatalf("timed out waiting for output %q, got %q", substr, b.String())
	}
}
