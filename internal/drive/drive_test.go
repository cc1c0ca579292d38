package drive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type driveRequest struct {
	name        string
	parents     []string
	contentType string
	body        string
}

// fakeDrive answers multipart file creation requests on any path.
func fakeDrive(t *testing.T, status int) (*httptest.Server, *[]driveRequest) {
	t.Helper()
	var mu sync.Mutex
	var reqs []driveRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			io.WriteString(w, `{"error":{"code":403,"message":"forbidden"}}`)
			return
		}

		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
			http.Error(w, "expected multipart body", http.StatusBadRequest)
			return
		}
		mr := multipart.NewReader(r.Body, params["boundary"])

		metaPart, err := mr.NextPart()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var meta struct {
			Name    string   `json:"name"`
			Parents []string `json:"parents"`
		}
		if err := json.NewDecoder(metaPart).Decode(&meta); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		mediaPart, err := mr.NextPart()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(mediaPart)

		mu.Lock()
		reqs = append(reqs, driveRequest{
			name:        meta.Name,
			parents:     meta.Parents,
			contentType: mediaPart.Header.Get("Content-Type"),
			body:        string(body),
		})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"id":          "file-123",
			"name":        meta.Name,
			"webViewLink": "https://drive.google.com/file/d/file-123/view",
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func testUploader(srv *httptest.Server) *Uploader {
	return New("",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
		option.WithoutAuthentication(),
	)
}

func TestUploader_Upload(t *testing.T) {
	srv, reqs := fakeDrive(t, http.StatusOK)

	path := filepath.Join(t.TempDir(), "smile_detected1.jpg")
	if err := os.WriteFile(path, []byte("jpeg-bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	session, err := testUploader(srv).Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	f, err := session.Upload(context.Background(), path, "folder-1", "image/jpeg")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if f.ID != "file-123" || f.Name != "smile_detected1.jpg" || f.Link == "" {
		t.Errorf("Upload() = %+v", f)
	}

	if len(*reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(*reqs))
	}
	got := (*reqs)[0]
	if len(got.parents) != 1 || got.parents[0] != "folder-1" {
		t.Errorf("parents = %v, want [folder-1]", got.parents)
	}
	if got.contentType != "image/jpeg" {
		t.Errorf("media content type = %q, want image/jpeg", got.contentType)
	}
	if got.body != "jpeg-bytes" {
		t.Errorf("media body = %q", got.body)
	}
}

func TestUploader_UploadError(t *testing.T) {
	srv, _ := fakeDrive(t, http.StatusForbidden)

	path := filepath.Join(t.TempDir(), "a.jpg")
	os.WriteFile(path, []byte("x"), 0644)

	session, err := testUploader(srv).Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}

	_, err = session.Upload(context.Background(), path, "folder", "image/jpeg")
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("Upload() error = %v, want *googleapi.Error", err)
	}
	if apiErr.Code != http.StatusForbidden {
		t.Errorf("error code = %d, want 403", apiErr.Code)
	}
}

func TestUploader_MissingFile(t *testing.T) {
	srv, _ := fakeDrive(t, http.StatusOK)

	session, err := testUploader(srv).Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	_, err = session.Upload(context.Background(), filepath.Join(t.TempDir(), "gone.jpg"), "f", "image/jpeg")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Upload() error = %v, want ErrNotExist", err)
	}
}

func TestAuthenticate_MissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(t.TempDir(), "credentials.json")},
		{name: "no credentials configured", path: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.path).Authenticate(context.Background())
			if !errors.Is(err, ErrCredentialsNotFound) {
				t.Errorf("Authenticate() error = %v, want ErrCredentialsNotFound", err)
			}
		})
	}
}
