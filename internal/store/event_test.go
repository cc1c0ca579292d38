package store

import (
	"errors"
	"testing"
)

func TestEventRepository_CreateAndList(t *testing.T) {
	repo := newTestStore(t).Events()

	if _, err := repo.Latest(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Latest() on empty store error = %v, want ErrNotFound", err)
	}

	events := []*Event{
		{Detected: true, Monotonic: 0, ImagePath: "out/smile_detected1.jpg"},
		{Detected: false, Monotonic: 1.5, ImagePath: "out/smile_detected2.jpg"},
		{Detected: true, Monotonic: 3.25, ImagePath: "out/smile_detected3.jpg"},
	}
	for _, e := range events {
		if err := repo.Create(e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if e.ID == "" {
			t.Error("Create() should assign an ID")
		}
		if e.CreatedAt.IsZero() {
			t.Error("Create() should set CreatedAt")
		}
	}

	got, err := repo.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("List() returned %d events, want 3", len(got))
	}
	// Newest first.
	for i, want := range []*Event{events[2], events[1], events[0]} {
		if got[i].ID != want.ID || got[i].Detected != want.Detected || got[i].Monotonic != want.Monotonic || got[i].ImagePath != want.ImagePath {
			t.Errorf("List()[%d] = %+v, want %+v", i, got[i], want)
		}
	}

	limited, err := repo.List(2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d events", len(limited))
	}

	latest, err := repo.Latest()
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.ID != events[2].ID {
		t.Errorf("Latest().ID = %s, want %s", latest.ID, events[2].ID)
	}

	n, err := repo.Count()
	if err != nil || n != 3 {
		t.Errorf("Count() = %d, %v, want 3", n, err)
	}
}

func TestEventRepository_KeepsGivenID(t *testing.T) {
	repo := newTestStore(t).Events()

	e := &Event{ID: "fixed-id", Detected: true}
	if err := repo.Create(e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if e.ID != "fixed-id" {
		t.Errorf("ID = %s, want fixed-id", e.ID)
	}

	if err := repo.Create(&Event{ID: "fixed-id"}); err == nil {
		t.Error("Create() with a duplicate ID should fail")
	}
}
