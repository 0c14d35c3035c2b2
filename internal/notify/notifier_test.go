package notify

import (
	"context"
	"encoding/json"
	"errors"
	"flowclient/internal/flow"
	"flowclient/pkg/backoff"
	"flowclient/pkg/circuitbreaker"
	"flowclient/pkg/cloudevent"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type webhook struct {
	*httptest.Server
	calls  atomic.Int64
	status atomic.Int64
	bodies chan []byte
	sigs   chan string
}

func newWebhook(t *testing.T, status int) *webhook {
	t.Helper()
	w := &webhook{bodies: make(chan []byte, 16), sigs: make(chan string, 16)}
	w.status.Store(int64(status))
	w.Server = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		w.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		w.bodies <- body
		w.sigs <- r.Header.Get(cloudevent.SignatureHeader)
		rw.WriteHeader(int(w.status.Load()))
	}))
	t.Cleanup(w.Close)
	return w
}

func newTestNotifier(url string, retries int, threshold int) *Notifier {
	return New(Config{
		URL:     url,
		Key:     "secret",
		Retries: retries,
		Backoff: &backoff.Config{Initial: time.Millisecond, Max: 2 * time.Millisecond},
		Breaker: circuitbreaker.Config{Threshold: threshold, Cooldown: time.Hour},
	}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestNotify_DeliversSignedEvent(t *testing.T) {
	t.Parallel()
	hook := newWebhook(t, http.StatusOK)
	n := newTestNotifier(hook.URL, 2, 5)

	event := NewEventBuilder("j1", "").BuildExitEvent("guest", "9999", flow.StatusSuccess)
	if err := n.Notify(context.Background(), event); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	body := <-hook.bodies
	sig := <-hook.sigs
	if !cloudevent.Verify(body, sig, "secret") {
		t.Errorf("signature %q does not verify", sig)
	}

	var got cloudevent.CloudEvent
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if got.Type != EventTypeExit || got.Subject != "j1" || got.Source != DefaultSource {
		t.Errorf("unexpected event %+v", got)
	}
	if got.Data["status"] != "SUCCESS" || got.Data["partyId"] != "9999" {
		t.Errorf("unexpected data %v", got.Data)
	}
}

func TestNotify_RetriesServerErrors(t *testing.T) {
	t.Parallel()
	hook := newWebhook(t, http.StatusServiceUnavailable)
	n := newTestNotifier(hook.URL, 2, 5)

	err := n.Notify(context.Background(), NewEventBuilder("j1", "").BuildSubmittedEvent(nil))
	var he *cloudevent.HTTPError
	if !errors.As(err, &he) || he.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Notify() error = %v, want HTTP 503", err)
	}
	if got := hook.calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestNotify_DoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()
	hook := newWebhook(t, http.StatusBadRequest)
	n := newTestNotifier(hook.URL, 3, 5)

	if err := n.Notify(context.Background(), NewEventBuilder("j1", "").BuildSubmittedEvent(nil)); err == nil {
		t.Fatal("expected error")
	}
	if got := hook.calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestNotify_CircuitOpens(t *testing.T) {
	t.Parallel()
	hook := newWebhook(t, http.StatusInternalServerError)
	n := newTestNotifier(hook.URL, 0, 2)
	event := NewEventBuilder("j1", "").BuildSubmittedEvent(nil)

	for range 2 {
		_ = n.Notify(context.Background(), event)
	}
	if n.BreakerState() != circuitbreaker.Open {
		t.Fatalf("breaker state = %v, want open", n.BreakerState())
	}

	if err := n.Notify(context.Background(), event); !errors.Is(err, circuitbreaker.ErrOpen) {
		t.Fatalf("Notify() error = %v, want ErrOpen", err)
	}
	if got := hook.calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestNotify_RecoversAfterSuccess(t *testing.T) {
	t.Parallel()
	hook := newWebhook(t, http.StatusInternalServerError)
	n := newTestNotifier(hook.URL, 0, 3)
	event := NewEventBuilder("j1", "").BuildSubmittedEvent(nil)

	_ = n.Notify(context.Background(), event)
	hook.status.Store(http.StatusAccepted)
	if err := n.Notify(context.Background(), event); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if n.BreakerState() != circuitbreaker.Closed {
		t.Errorf("breaker state = %v, want closed", n.BreakerState())
	}
}

func TestNotify_Disabled(t *testing.T) {
	t.Parallel()
	var nilNotifier *Notifier
	if nilNotifier.Enabled() {
		t.Error("nil notifier reports enabled")
	}
	if err := nilNotifier.Notify(context.Background(), NewEventBuilder("j1", "").BuildSubmittedEvent(nil)); err != nil {
		t.Errorf("nil Notify() error = %v", err)
	}

	n := New(Config{})
	if n.Enabled() {
		t.Error("notifier without URL reports enabled")
	}
	if err := n.Notify(context.Background(), NewEventBuilder("j1", "").BuildSubmittedEvent(nil)); err != nil {
		t.Errorf("Notify() error = %v", err)
	}
}
