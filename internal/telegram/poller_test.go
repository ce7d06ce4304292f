package telegram

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPollerReceivesUpdates(t *testing.T) {
	var callCount atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := callCount.Add(1)
		if n == 1 {
			writeJSON(t, w, APIResponse[[]Update]{
				OK: true,
				Result: []Update{
					{
						UpdateID: 1,
						BusinessMessage: &Message{
							MessageID:            10,
							From:                 &User{ID: 100, FirstName: "Alice"},
							Chat:                 Chat{ID: 200, Type: "private"},
							Text:                 "hello",
							BusinessConnectionID: "conn-1",
						},
					},
				},
			})
			return
		}
		// Second call: empty (give poller time to stop).
		writeJSON(t, w, APIResponse[[]Update]{OK: true, Result: []Update{}})
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient("TOKEN", srv.URL)

	var mu sync.Mutex
	var received []*Update

	poller := NewPoller(client, func(u *Update) {
		mu.Lock()
		received = append(received, u)
		mu.Unlock()
	}, discardLogger(), Config{
		PollingTimeout: 0, // No long-polling timeout in tests.
		AllowedUpdates: []string{"business_message"},
	})

	poller.Start()
	// Wait for at least one update to be processed.
	time.Sleep(500 * time.Millisecond)
	poller.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("received %d updates, want 1", len(received))
	}
	if received[0].BusinessMessage == nil || received[0].BusinessMessage.BusinessConnectionID != "conn-1" {
		t.Errorf("update = %+v, want business message on conn-1", received[0])
	}
}

func TestPollerAdvancesOffset(t *testing.T) {
	var callCount atomic.Int32
	var mu sync.Mutex
	var offsets []int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GetUpdatesRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		offsets = append(offsets, req.Offset)
		mu.Unlock()

		if callCount.Add(1) == 1 {
			writeJSON(t, w, APIResponse[[]Update]{
				OK:     true,
				Result: []Update{{UpdateID: 41}, {UpdateID: 42}},
			})
			return
		}
		writeJSON(t, w, APIResponse[[]Update]{OK: true, Result: []Update{}})
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient("TOKEN", srv.URL)
	poller := NewPoller(client, func(*Update) {}, discardLogger(), Config{})

	poller.Start()
	time.Sleep(300 * time.Millisecond)
	poller.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(offsets) < 2 {
		t.Fatalf("got %d polls, want at least 2", len(offsets))
	}
	if offsets[0] != 0 {
		t.Errorf("first offset = %d, want 0", offsets[0])
	}
	if offsets[1] != 43 {
		t.Errorf("second offset = %d, want 43", offsets[1])
	}
}

func TestPollerStopIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, APIResponse[[]Update]{OK: true, Result: []Update{}})
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient("TOKEN", srv.URL)
	poller := NewPoller(client, func(*Update) {}, discardLogger(), Config{})

	poller.Start()
	time.Sleep(100 * time.Millisecond)
	poller.Stop()
	poller.Stop()
}
