package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pithecene-io/flight/adapter"
	"github.com/pithecene-io/flight/iox"
)

func testEvent() *adapter.StreamCompletedEvent {
	ev := adapter.NewStreamCompletedEvent("s-001", "fixture", "2026-10-19", adapter.OutcomeSuccess,
		time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC), 1500*time.Millisecond)
	ev.ChunkCount = 42
	return ev
}

func TestPublish_Success(t *testing.T) {
	var received *adapter.StreamCompletedEvent
	var authHeader, streamHeader, outcomeHeader string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s", ct)
		}
		authHeader = r.Header.Get("Authorization")
		streamHeader = r.Header.Get(HeaderStreamID)
		outcomeHeader = r.Header.Get(HeaderOutcome)
		body, _ := io.ReadAll(r.Body)
		ev, err := adapter.Unmarshal(body)
		if err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		received = ev
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a, err := New(Config{URL: ts.URL, Headers: map[string]string{
		"Authorization": "Bearer tok",
		HeaderOutcome:   "overridden",
	}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if received == nil || received.StreamID != "s-001" || received.Outcome != adapter.OutcomeSuccess {
		t.Errorf("received = %+v", received)
	}
	if authHeader != "Bearer tok" {
		t.Errorf("Authorization = %q", authHeader)
	}
	if streamHeader != "s-001" || outcomeHeader != adapter.OutcomeSuccess {
		t.Errorf("routing headers = %q, %q", streamHeader, outcomeHeader)
	}
}

func TestPublish_StatusHandling(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		retries   int
		wantCalls int32
		wantErr   bool
		wantCode  int
	}{
		{"202 accepted", []int{http.StatusAccepted}, 0, 1, false, 0},
		{"204 no content", []int{http.StatusNoContent}, 0, 1, false, 0},
		{"retry then success", []int{500, 503, 200}, 3, 3, false, 0},
		{"5xx exhausts retries", []int{500, 500, 500}, 2, 3, true, 500},
		{"4xx fails immediately", []int{404}, 3, 1, true, 404},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				n := calls.Add(1)
				w.WriteHeader(tt.statuses[min(int(n)-1, len(tt.statuses)-1)])
			}))
			defer ts.Close()

			a, err := New(Config{URL: ts.URL, Retries: tt.retries, Backoff: time.Millisecond})
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			defer iox.DiscardClose(a)

			err = a.Publish(t.Context(), testEvent())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
			if tt.wantCode != 0 {
				var se *StatusError
				if !errors.As(err, &se) || se.Code != tt.wantCode {
					t.Errorf("err = %v, want StatusError %d", err, tt.wantCode)
				}
			}
		})
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a, err := New(Config{URL: ts.URL, Retries: 5, Backoff: time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	if err := a.Publish(ctx, testEvent()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestNew(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := New(Config{URL: "http://x", Retries: -1}); err == nil {
		t.Error("expected error for negative retries")
	}

	a, err := New(Config{URL: "http://x", Retries: DefaultRetries})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.config.Timeout != DefaultTimeout || a.client.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v / %v, want %v", a.config.Timeout, a.client.Timeout, DefaultTimeout)
	}
	if a.config.Retries != DefaultRetries {
		t.Errorf("Retries = %d", a.config.Retries)
	}
}
