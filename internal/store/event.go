package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultListLimit caps List results when no limit is given.
const DefaultListLimit = 50

// Event is an accepted smile transition.
type Event struct {
	ID        string    `json:"id"`
	Detected  bool      `json:"detected"`
	Monotonic float64   `json:"monotonic_seconds"`
	ImagePath string    `json:"image_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventRepository stores smile events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Create inserts an event, assigning an ID when it has none.
func (r *EventRepository) Create(e *Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now().UTC()

	_, err := r.db.Exec(
		`INSERT INTO smile_events (id, detected, monotonic_seconds, image_path, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Detected, e.Monotonic, e.ImagePath, e.CreatedAt,
	)
	return err
}

// Latest returns the most recent event.
func (r *EventRepository) Latest() (*Event, error) {
	events, err := r.List(1)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return events[0], nil
}

// List returns up to limit events, newest first.
func (r *EventRepository) List(limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.Query(
		`SELECT id, detected, monotonic_seconds, image_path, created_at
		 FROM smile_events ORDER BY rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.Detected, &e.Monotonic, &e.ImagePath, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Count returns the number of stored events.
func (r *EventRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM smile_events`).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}
