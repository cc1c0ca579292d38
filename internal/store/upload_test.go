package store

import (
	"context"
	"testing"

	"github.com/ayusman/smilecast/internal/upload"
)

func TestUploadRepository_Ledger(t *testing.T) {
	ctx := context.Background()
	ledger := newTestStore(t).Uploads()

	if _, ok, err := ledger.Lookup(ctx, "abc"); err != nil || ok {
		t.Fatalf("Lookup() on empty ledger = %v, %v, want miss", ok, err)
	}

	res := upload.Result{
		ID:       "drive-1",
		Name:     "smile_detected1.jpg",
		Link:     "https://drive.google.com/file/d/drive-1/view",
		FilePath: "/tmp/out/smile_detected1.jpg",
	}
	if err := ledger.Record(ctx, "abc", "batch-1", res); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, ok, err := ledger.Lookup(ctx, "abc")
	if err != nil || !ok {
		t.Fatalf("Lookup() = %v, %v, want hit", ok, err)
	}
	if got.ID != res.ID || got.Name != res.Name || got.Link != res.Link {
		t.Errorf("Lookup() = %+v, want %+v", got, res)
	}
	if got.FilePath != "smile_detected1.jpg" {
		t.Errorf("Lookup().FilePath = %s, want the base file name", got.FilePath)
	}

	res.ID = "drive-2"
	if err := ledger.Record(ctx, "abc", "batch-2", res); err != nil {
		t.Fatalf("Record() again error = %v", err)
	}
	if err := ledger.Record(ctx, "def", "batch-2", upload.Result{ID: "drive-3", Name: "b.jpg", FilePath: "b.jpg"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	records, err := ledger.List(10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("List() returned %d records, want 2", len(records))
	}
	if records[0].Checksum != "def" || records[1].DriveID != "drive-2" || records[1].BatchID != "batch-2" {
		t.Errorf("List() = %+v %+v", records[0], records[1])
	}
}
