package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"time"

	"github.com/ayusman/smilecast/internal/upload"
)

// UploadRecord is a file confirmed on the drive.
type UploadRecord struct {
	Checksum   string    `json:"checksum"`
	FileName   string    `json:"file_name"`
	DriveID    string    `json:"drive_id"`
	Name       string    `json:"name"`
	Link       string    `json:"link"`
	BatchID    string    `json:"batch_id"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// UploadRepository is the upload ledger. It implements upload.Ledger.
type UploadRepository struct {
	db *sql.DB
}

var _ upload.Ledger = (*UploadRepository)(nil)

// Uploads returns the upload ledger for this store.
func (s *Store) Uploads() *UploadRepository {
	return &UploadRepository{db: s.db}
}

// Lookup finds a previous upload of the same contents.
func (r *UploadRepository) Lookup(ctx context.Context, checksum string) (upload.Result, bool, error) {
	var res upload.Result
	err := r.db.QueryRowContext(ctx,
		`SELECT drive_id, name, link, file_name FROM uploads WHERE checksum = ?`,
		checksum,
	).Scan(&res.ID, &res.Name, &res.Link, &res.FilePath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return upload.Result{}, false, nil
		}
		return upload.Result{}, false, err
	}
	return res, true, nil
}

// Record stores an upload. Re-recording the same contents replaces the entry.
func (r *UploadRepository) Record(ctx context.Context, checksum, batchID string, res upload.Result) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO uploads (checksum, file_name, drive_id, name, link, batch_id, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		checksum, filepath.Base(res.FilePath), res.ID, res.Name, res.Link, batchID, time.Now().UTC(),
	)
	return err
}

// List returns up to limit uploads, newest first.
func (r *UploadRepository) List(limit int) ([]*UploadRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.Query(
		`SELECT checksum, file_name, drive_id, name, link, batch_id, uploaded_at
		 FROM uploads ORDER BY rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*UploadRecord
	for rows.Next() {
		u := &UploadRecord{}
		if err := rows.Scan(&u.Checksum, &u.FileName, &u.DriveID, &u.Name, &u.Link, &u.BatchID, &u.UploadedAt); err != nil {
			return nil, err
		}
		records = append(records, u)
	}
	return records, rows.Err()
}
