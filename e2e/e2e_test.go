package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/ayusman/smilecast/internal/app"
	"github.com/ayusman/smilecast/internal/capture"
	"github.com/ayusman/smilecast/internal/config"
	"github.com/ayusman/smilecast/internal/detector"
	"github.com/ayusman/smilecast/internal/notify"
	"github.com/ayusman/smilecast/internal/server"
	"github.com/ayusman/smilecast/internal/store"
	"github.com/ayusman/smilecast/internal/upload"
)

type driveStub struct {
	mu    sync.Mutex
	files []string
}

func (d *driveStub) Authenticate(ctx context.Context) (upload.Session, error) {
	return d, nil
}

func (d *driveStub) Upload(ctx context.Context, path, folderID, contentType string) (upload.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	name := filepath.Base(path)
	d.files = append(d.files, folderID+"/"+name)
	return upload.File{ID: "drive-" + name, Name: name, Link: "https://drive.example/" + name}, nil
}

func (d *driveStub) uploaded() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.files...)
}

func frames(t *testing.T, n int) []*gocv.Mat {
	t.Helper()
	out := make([]*gocv.Mat, n)
	for i := range out {
		m := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
		out[i] = &m
		t.Cleanup(func() { m.Close() })
	}
	return out
}

func clock(step time.Duration) func() time.Duration {
	var now time.Duration
	return func() time.Duration {
		t := now
		now += step
		return t
	}
}

func wsURL(httpURL, path string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + path
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	hub := server.NewHub(zerolog.Nop())
	srv := server.New(server.Config{Hub: hub, Store: s}, zerolog.Nop())
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer hub.Close()

	viewer, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/ws"), nil)
	if err != nil {
		t.Fatalf("viewer dial error = %v", err)
	}
	defer viewer.Close()

	received := make(chan notify.Notification, 8)
	go func() {
		for {
			_, data, err := viewer.ReadMessage()
			if err != nil {
				close(received)
				return
			}
			var n notify.Notification
			if json.Unmarshal(data, &n) == nil {
				received <- n
			}
		}
	}()

	cfg := config.Default()
	cfg.Output.Dir = filepath.Join(tmpDir, "captures")
	cfg.Notify.URI = wsURL(ts.URL, "")
	cfg.Upload.FolderID = "smiles"
	cfg.Upload.BatchSize = 3
	cfg.Upload.DrainTimeout = 5 * time.Second

	det := detector.NewMockDetector()
	// Accepted: smile at 1s, end at 3s, smile at 5s.
	det.SetSmiles(false, true, true, false, false, true)
	drv := &driveStub{}

	application, err := app.New(cfg, app.Deps{
		Camera:   capture.NewMockCamera(frames(t, 6), false),
		Detector: det,
		Uploader: drv,
		Store:    s,
		Clock:    clock(time.Second),
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}

	t.Run("RunSession", func(t *testing.T) {
		err := application.Run(context.Background())
		if !errors.Is(err, capture.ErrReadFailed) {
			t.Fatalf("Run() error = %v, want ErrReadFailed", err)
		}
	})

	t.Run("NotificationsRelayed", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			select {
			case n, ok := <-received:
				if !ok {
					t.Fatal("viewer connection closed early")
				}
				if n.Event != notify.EventName || !n.Detected || n.Image == "" {
					t.Errorf("notification %d = %+v, want smile start with image", i, n)
				}
			case <-time.After(5 * time.Second):
				t.Fatalf("timed out waiting for notification %d", i)
			}
		}
	})

	t.Run("BatchUploaded", func(t *testing.T) {
		got := drv.uploaded()
		want := []string{"smiles/smile_detected1.jpg", "smiles/smile_detected2.jpg", "smiles/smile_detected3.jpg"}
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("uploaded = %v, want %v", got, want)
		}
	})

	t.Run("EventsAPI", func(t *testing.T) {
		resp, err := ts.Client().Get(ts.URL + "/api/events")
		if err != nil {
			t.Fatalf("GET /api/events error = %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var body struct {
			Events []store.Event `json:"events"`
			Total  int           `json:"total"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if body.Total != 3 {
			t.Errorf("total = %d, want 3", body.Total)
		}
		if len(body.Events) != 3 || !body.Events[0].Detected || body.Events[0].Monotonic != 5 {
			t.Errorf("events = %+v, want newest smile at 5s first", body.Events)
		}
	})

	t.Run("UploadLedger", func(t *testing.T) {
		records, err := s.Uploads().List(10)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(records) != 3 {
			t.Errorf("ledger has %d records, want 3", len(records))
		}
	})

	t.Run("APIStillWorks", func(t *testing.T) {
		resp, err := ts.Client().Get(ts.URL + "/api/health")
		if err != nil {
			t.Fatalf("health error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("health check failed after session")
		}
	})
}

func TestE2E_PausedSessionRecordsNothing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	cfg := config.Default()
	cfg.Output.Dir = filepath.Join(tmpDir, "captures")
	cfg.Notify.URI = "ws://127.0.0.1:1"

	det := detector.NewMockDetector()
	det.SetSmiles(true, true, true)
	drv := &driveStub{}

	application, err := app.New(cfg, app.Deps{
		Camera:   capture.NewMockCamera(frames(t, 3), false),
		Detector: det,
		Uploader: drv,
		Store:    s,
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	application.SetEnabled(false)

	if err := application.Run(context.Background()); !errors.Is(err, capture.ErrReadFailed) {
		t.Fatalf("Run() error = %v, want ErrReadFailed", err)
	}

	if det.Calls() != 0 {
		t.Errorf("detector called %d times while paused", det.Calls())
	}
	if n, _ := s.Events().Count(); n != 0 {
		t.Errorf("events = %d, want 0", n)
	}
	if len(drv.uploaded()) != 0 {
		t.Errorf("uploaded = %v, want none", drv.uploaded())
	}
}
