// Package drive uploads files to a Google Drive folder with a service account.
package drive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ayusman/smilecast/internal/upload"
)

// ErrCredentialsNotFound is returned when the service account file is missing.
var ErrCredentialsNotFound = errors.New("drive credentials file not found")

// Uploader authenticates against Google Drive. It implements upload.Uploader.
type Uploader struct {
	credentialsPath string
	opts            []option.ClientOption
}

// New creates an Uploader for the service account key at credentialsPath.
// Extra client options are appended after the credentials; with an empty
// credentialsPath they must supply authentication themselves.
func New(credentialsPath string, opts ...option.ClientOption) *Uploader {
	return &Uploader{credentialsPath: credentialsPath, opts: opts}
}

// Authenticate builds a Drive service. A missing credentials file only
// fails the upload path, never the capture loop.
func (u *Uploader) Authenticate(ctx context.Context) (upload.Session, error) {
	opts := []option.ClientOption{option.WithScopes(gdrive.DriveScope)}

	switch {
	case u.credentialsPath != "":
		if _, err := os.Stat(u.credentialsPath); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, u.credentialsPath)
			}
			return nil, fmt.Errorf("stat credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsFile(u.credentialsPath))
	case len(u.opts) == 0:
		return nil, ErrCredentialsNotFound
	}
	opts = append(opts, u.opts...)

	svc, err := gdrive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &session{svc: svc}, nil
}

type session struct {
	svc *gdrive.Service
}

// Upload creates the file inside folderID and returns its id, name and
// web link.
func (s *session) Upload(ctx context.Context, path, folderID, contentType string) (upload.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return upload.File{}, err
	}
	defer f.Close()

	meta := &gdrive.File{Name: filepath.Base(path)}
	if folderID != "" {
		meta.Parents = []string{folderID}
	}

	created, err := s.svc.Files.Create(meta).
		Media(f, googleapi.ContentType(contentType)).
		Fields("id", "name", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return upload.File{}, fmt.Errorf("drive create: %w", err)
	}

	return upload.File{
		ID:   created.Id,
		Name: created.Name,
		Link: created.WebViewLink,
	}, nil
}
