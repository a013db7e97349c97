package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tutorhq/tutorbook/internal/model"
)

func sample() []model.Appointment {
	return []model.Appointment{
		{
			ID:               "11111111-1111-1111-1111-111111111111",
			RequesterName:    "Alex",
			RequesterContact: "alex@example.com",
			Subject:          "Algebra",
			Timezone:         "Europe/Berlin",
			Start:            time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
			Status:           model.StatusApproved,
			CreatedAt:        time.Date(2025, 3, 8, 9, 30, 0, 0, time.UTC),
			ReminderSent:     true,
		},
		{
			ID:               "22222222-2222-2222-2222-222222222222",
			RequesterName:    "Brook",
			RequesterContact: "brook@example.com",
			Start:            time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC),
			Status:           model.StatusPending,
			CreatedAt:        time.Date(2025, 3, 8, 10, 0, 0, 0, time.UTC),
		},
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appointments.json")
	store := NewFileStore(path)
	ctx := context.Background()

	want := sample()
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d appointments, got %d", len(want), len(got))
	}
	for i := range want {
		w, g := want[i], got[i]
		if g.ID != w.ID ||
			g.RequesterName != w.RequesterName ||
			g.RequesterContact != w.RequesterContact ||
			g.Subject != w.Subject ||
			g.Timezone != w.Timezone ||
			!g.Start.Equal(w.Start) ||
			g.Status != w.Status ||
			!g.CreatedAt.Equal(w.CreatedAt) ||
			g.ReminderSent != w.ReminderSent {
			t.Fatalf("record %d did not round-trip: %+v != %+v", i, g, w)
		}
	}
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nope.json"))

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty store, got %d records", len(got))
	}
}

func TestFileStore_SaveReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "appointments.json")
	store := NewFileStore(path)
	ctx := context.Background()

	if err := store.Save(ctx, sample()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, sample()[:1]); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record after overwrite, got %d", len(got))
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the store file in %s, found %d entries", dir, len(entries))
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appointments.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := NewFileStore(path).Load(context.Background()); err == nil {
		t.Fatal("expected error for corrupt store file")
	}
}
