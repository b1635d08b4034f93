package ingestion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"pump-vision/internal/observability"
)

func fastConfig() *ClientConfig {
	return &ClientConfig{
		ReconnectDelay:       10 * time.Millisecond,
		MaxReconnectAttempts: 2,
		PingInterval:         time.Second,
		ReadTimeout:          time.Second,
		WriteTimeout:         time.Second,
	}
}

func TestClientSubscribesAndDeliversFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan string, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		// Expect both subscription messages before pushing data.
		for i := 0; i < 2; i++ {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg map[string]any
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Errorf("decode subscribe: %v", err)
				return
			}
			method, _ := msg["method"].(string)
			subscribed <- method
		}

		conn.WriteMessage(websocket.TextMessage, []byte(`{"txType":"heartbeat"}`))

		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewClient(endpoint, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- client.Run(ctx) }()

	methods := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case m := <-subscribed:
			methods[m] = true
		case <-time.After(2 * time.Second):
			t.Fatal("subscribe messages never arrived")
		}
	}
	if !methods["subscribeNewToken"] || !methods["subscribeTokenTrades"] {
		t.Errorf("methods = %v", methods)
	}

	select {
	case frame := <-client.Frames():
		if !strings.Contains(string(frame), "heartbeat") {
			t.Errorf("frame = %s", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frame never delivered")
	}

	if !client.Connected() {
		t.Error("client not reporting connected")
	}

	client.Close()
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestClientReconnectBudgetExhausted(t *testing.T) {
	// Nothing listens here; dials fail immediately.
	client := NewClient("ws://127.0.0.1:1", fastConfig())

	err := client.Run(context.Background())
	if err == nil {
		t.Fatal("expected error after exhausted reconnect budget")
	}
	if !strings.Contains(err.Error(), "reconnect budget exhausted") {
		t.Errorf("err = %v", err)
	}

	// The frames channel is closed so consumers drain and stop.
	if _, ok := <-client.Frames(); ok {
		t.Error("frames channel still open")
	}
}

func TestClientDropUsesFullReconnectBudget(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var dials atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if dials.Add(1) > 1 {
			// Refuse the handshake so every reconnect dial fails.
			http.Error(w, "gone", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		for i := 0; i < 2; i++ {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
		conn.Close()
	}))
	defer srv.Close()

	obs := observability.NewMetrics("pump_vision_clienttest")
	cfg := fastConfig()
	cfg.Metrics = obs

	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewClient(endpoint, cfg)

	err := client.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "reconnect budget exhausted") {
		t.Fatalf("err = %v, want budget exhausted", err)
	}

	// One successful dial, then MaxReconnectAttempts+1 failed dials. The
	// retry scheduled right after the drop must not pre-consume a slot.
	if got := dials.Load(); got != 4 {
		t.Errorf("dials = %d, want 4", got)
	}
	if got := testutil.ToFloat64(obs.WSReconnects); got != 3 {
		t.Errorf("ws reconnects = %v, want 3", got)
	}
}

func TestClientCloseIdempotent(t *testing.T) {
	client := NewClient("ws://127.0.0.1:1", fastConfig())
	client.Close()
	client.Close()
}

func TestClientRunRespectsContextCancel(t *testing.T) {
	client := NewClient("ws://127.0.0.1:1", &ClientConfig{
		ReconnectDelay:       time.Hour, // would block without cancellation
		MaxReconnectAttempts: 100,
	})

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- client.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-runDone:
		if err != context.Canceled {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
