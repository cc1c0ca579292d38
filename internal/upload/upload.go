// Package upload batches captured images and uploads them to a cloud drive
// folder from a background worker.
package upload

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// Result describes one uploaded file.
type Result struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Link     string `json:"link"`
	FilePath string `json:"file_path"`
}

// Callback receives the outcome of a Task exactly once: either every
// result in task order, or an error and no results.
type Callback func(results []Result, err error)

// Task is one batch of files destined for a folder.
type Task struct {
	FilePaths []string
	FolderID  string
	Callback  Callback
}

// File is the remote file metadata returned by a Session.
type File struct {
	ID   string
	Name string
	Link string
}

// Uploader opens authenticated sessions against the remote drive.
type Uploader interface {
	Authenticate(ctx context.Context) (Session, error)
}

// Session uploads files once authenticated.
type Session interface {
	Upload(ctx context.Context, path, folderID, contentType string) (File, error)
}

// Ledger remembers which file contents already reached the drive.
type Ledger interface {
	Lookup(ctx context.Context, checksum string) (Result, bool, error)
	Record(ctx context.Context, checksum, batchID string, r Result) error
}

// ErrEmptyTask is returned for a task without files.
var ErrEmptyTask = errors.New("upload task has no files")

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
}

// ContentType maps a file extension to its MIME type.
func ContentType(path string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}
