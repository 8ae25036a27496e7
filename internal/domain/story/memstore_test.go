package story

import (
	"context"
	"testing"
	"time"
)

func seedRecord(t *testing.T, m *MemStore, id, owner string) *Record {
	t.Helper()
	rec := &Record{
		ID:          id,
		OwnerID:     owner,
		SubjectName: "Mia",
		Theme:       "space",
		Title:       "Mia in Orbit",
		TextRef:     TextKey(id),
		AudioStatus: StatusPending,
		ImageStatus: StatusPending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := m.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return rec
}

func TestMemStoreTerminalFieldsStayPut(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	seedRecord(t, m, "s1", "u1")

	if err := m.MarkArtifactComplete(ctx, "s1", FieldAudio, AudioKey("s1")); err != nil {
		t.Fatalf("MarkArtifactComplete: %v", err)
	}
	// Redelivery after a terminal status must be a no-op.
	if err := m.MarkArtifactError(ctx, "s1", FieldAudio); err != nil {
		t.Fatalf("MarkArtifactError: %v", err)
	}
	rec, err := m.GetByID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec.AudioStatus != StatusComplete || rec.AudioRef != AudioKey("s1") {
		t.Fatalf("audio field regressed: %+v", rec)
	}
	if rec.ImageStatus != StatusPending {
		t.Fatalf("sibling field touched: %+v", rec)
	}
}

func TestMemStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	seedRecord(t, m, "s1", "u1")

	rec, _ := m.GetByID(ctx, "s1")
	rec.Title = "mutated"
	again, _ := m.GetByID(ctx, "s1")
	if again.Title != "Mia in Orbit" {
		t.Fatalf("store leaked internal pointer: %+v", again)
	}
}

func TestMemStoreListByOwner(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	seedRecord(t, m, "s1", "u1")
	seedRecord(t, m, "s2", "u2")
	seedRecord(t, m, "s3", "u1")

	out, err := m.ListByOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}
	for _, rec := range out {
		if rec.OwnerID != "u1" {
			t.Fatalf("wrong owner in result: %+v", rec)
		}
	}

	if _, err := m.GetByID(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("GetByID(missing) = %v, want ErrNotFound", err)
	}
}
