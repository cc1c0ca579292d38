package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ayusman/smilecast/internal/store"
)

func TestServer_Health(t *testing.T) {
	s := New(Config{}, zerolog.Nop())

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}

		var response map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}
		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			req := httptest.NewRequest(method, "/api/health", nil)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_OptionalRoutes(t *testing.T) {
	s := New(Config{}, zerolog.Nop())

	for _, path := range []string{"/api/status", "/api/latest", "/api/events", "/api/uploads", "/ws", "/publish", "/api/nonexistent"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d without configuration, got %d", path, http.StatusNotFound, rec.Code)
		}
	}
}

func TestServer_Status(t *testing.T) {
	s := New(Config{
		Status: func() any {
			return map[string]any{"smiling": true, "pending": 2}
		},
	}, zerolog.Nop())

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got["smiling"] != true || got["pending"] != float64(2) {
		t.Errorf("status body = %v", got)
	}
}

func TestServer_Latest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smile_detected.jpg")
	s := New(Config{LatestImage: path}, zerolog.Nop())

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/latest", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("before any capture: status = %d, want 404", rec.Code)
	}

	if err := os.WriteFile(path, []byte("\xff\xd8jpeg"), 0644); err != nil {
		t.Fatal(err)
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/latest", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %s, want image/jpeg", ct)
	}
	if rec.Body.String() != "\xff\xd8jpeg" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestServer_Events(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer st.Close()
	st.Events().Create(&store.Event{Detected: true, Monotonic: 1})

	s := New(Config{Store: st}, zerolog.Nop())
	ts := httptest.NewServer(s)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatalf("GET /api/events error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/events status = %d", resp.StatusCode)
	}

	var listed struct {
		Events []store.Event `json:"events"`
	}
	json.NewDecoder(resp.Body).Decode(&listed)
	if len(listed.Events) != 1 || !listed.Events[0].Detected {
		t.Errorf("events = %+v", listed.Events)
	}
}

func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitViewers(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for h.Viewers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Viewers() = %d, want %d", h.Viewers(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_Relay(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	s := New(Config{Hub: hub}, zerolog.Nop())
	ts := httptest.NewServer(s)
	defer ts.Close()

	v1 := dial(t, ts, "/ws")
	v2 := dial(t, ts, "/ws")
	waitViewers(t, hub, 2)

	pub := dial(t, ts, "/publish")
	msg := `{"event":"smile_status","timestamp":"1.5","detected":true}`
	if err := pub.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for i, v := range []*websocket.Conn{v1, v2} {
		v.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := v.ReadMessage()
		if err != nil {
			t.Fatalf("viewer %d read: %v", i, err)
		}
		if string(data) != msg {
			t.Errorf("viewer %d got %s, want %s", i, data, msg)
		}
	}

	// A late viewer receives the last message on connect.
	v3 := dial(t, ts, "/ws")
	v3.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := v3.ReadMessage()
	if err != nil {
		t.Fatalf("late viewer read: %v", err)
	}
	if string(data) != msg {
		t.Errorf("late viewer got %s, want %s", data, msg)
	}

	v1.Close()
	waitViewers(t, hub, 2)

	hub.Close()
	if hub.Viewers() != 0 {
		t.Errorf("Viewers() after Close = %d, want 0", hub.Viewers())
	}
}

func TestNew(t *testing.T) {
	t.Run("server implements http.Handler", func(t *testing.T) {
		s := New(Config{}, zerolog.Nop())
		var _ http.Handler = s
		if s.Router() == nil {
			t.Error("Router() returned nil")
		}
	})
}

func TestHub_SlowViewerDoesNotBlockBroadcast(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	s := New(Config{Hub: hub}, zerolog.Nop())
	ts := httptest.NewServer(s)
	defer ts.Close()
	defer hub.Close()

	// Never reads, so its socket buffers fill up.
	dial(t, ts, "/ws")
	waitViewers(t, hub, 1)

	msg := []byte(strings.Repeat("x", 256*1024))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 256; i++ {
			hub.Broadcast(msg)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a viewer that is not reading")
	}
	if hub.Viewers() != 0 {
		t.Errorf("Viewers() = %d, want the stalled viewer dropped", hub.Viewers())
	}
}
