package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"storyteller/internal/domain/story"
	"storyteller/internal/storage"
)

type stubBlobs struct {
	data map[string][]byte
	err  error
}

func (b stubBlobs) Read(ctx context.Context, key string) ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	data, ok := b.data[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

type stubSigner struct {
	failKeys map[string]bool
}

func (s stubSigner) Sign(key, op string, ttl time.Duration) (storage.SignedURL, error) {
	if s.failKeys[key] {
		return storage.SignedURL{}, errors.New("signing backend down")
	}
	return storage.SignedURL{
		URL:       fmt.Sprintf("https://cdn.test/%s?op=%s", key, op),
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

func seed(t *testing.T, store *story.MemStore, id, owner string, mutate func(*story.Record)) *story.Record {
	t.Helper()
	rec := &story.Record{
		ID:          id,
		OwnerID:     owner,
		Title:       "T " + id,
		TextRef:     story.TextKey(id),
		AudioStatus: story.StatusPending,
		ImageStatus: story.StatusPending,
	}
	if mutate != nil {
		mutate(rec)
	}
	if err := store.Create(context.Background(), rec); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return rec
}

func TestGetByIDResolvesCompletedArtifacts(t *testing.T) {
	store := story.NewMemStore()
	seed(t, store, "s1", "u1", func(r *story.Record) {
		r.AudioStatus = story.StatusComplete
		r.AudioRef = story.AudioKey("s1")
	})
	blobs := stubBlobs{data: map[string][]byte{
		story.TextKey("s1"): []byte("Title: T s1\nOnce upon a time..."),
	}}
	svc := NewService(store, blobs, stubSigner{}, time.Hour, zerolog.Nop())

	view, err := svc.GetByID(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if view.Text != "Once upon a time..." {
		t.Fatalf("text = %q", view.Text)
	}
	if !strings.Contains(view.AudioURL, story.AudioKey("s1")) {
		t.Fatalf("audio url = %q", view.AudioURL)
	}
	if view.ImageURL != "" {
		t.Fatalf("image url set for pending artifact: %q", view.ImageURL)
	}
	if view.AudioStatus != story.StatusComplete || view.ImageStatus != story.StatusPending {
		t.Fatalf("statuses = %q %q", view.AudioStatus, view.ImageStatus)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	svc := NewService(story.NewMemStore(), stubBlobs{}, stubSigner{}, time.Hour, zerolog.Nop())
	if _, err := svc.GetByID(context.Background(), "nope"); !errors.Is(err, story.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetByIDDegradesWhenTextUnreadable(t *testing.T) {
	store := story.NewMemStore()
	seed(t, store, "s1", "u1", nil)
	svc := NewService(store, stubBlobs{err: errors.New("blob store down")}, stubSigner{}, time.Hour, zerolog.Nop())

	view, err := svc.GetByID(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if view.Text != "" {
		t.Fatalf("text = %q, want empty", view.Text)
	}
	if view.Title != "T s1" {
		t.Fatalf("title = %q", view.Title)
	}
}

func TestGetByIDDegradesWhenSigningFails(t *testing.T) {
	store := story.NewMemStore()
	seed(t, store, "s1", "u1", func(r *story.Record) {
		r.AudioStatus = story.StatusComplete
		r.AudioRef = story.AudioKey("s1")
		r.ImageStatus = story.StatusComplete
		r.ImageRef = story.ImageKey("s1")
	})
	signer := stubSigner{failKeys: map[string]bool{story.AudioKey("s1"): true}}
	svc := NewService(store, stubBlobs{data: map[string][]byte{}}, signer, time.Hour, zerolog.Nop())

	view, err := svc.GetByID(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	// One URL degrades, the other still resolves.
	if view.AudioURL != "" {
		t.Fatalf("audio url = %q, want empty", view.AudioURL)
	}
	if !strings.Contains(view.ImageURL, story.ImageKey("s1")) {
		t.Fatalf("image url = %q", view.ImageURL)
	}
	if view.AudioStatus != story.StatusComplete {
		t.Fatalf("audio status = %q, degradation must not rewrite state", view.AudioStatus)
	}
}

func TestListByOwnerResolvesAll(t *testing.T) {
	store := story.NewMemStore()
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("s%d", i)
		seed(t, store, id, "u1", func(r *story.Record) {
			r.ImageStatus = story.StatusComplete
			r.ImageRef = story.ImageKey(id)
		})
	}
	seed(t, store, "other", "u2", nil)
	svc := NewService(store, stubBlobs{}, stubSigner{}, time.Hour, zerolog.Nop())

	views, err := svc.ListByOwner(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(views) != 12 {
		t.Fatalf("got %d views", len(views))
	}
	for _, v := range views {
		if v.OwnerID != "u1" {
			t.Fatalf("foreign record in listing: %+v", v)
		}
		if v.ImageURL == "" {
			t.Fatalf("unresolved image url for %s", v.ID)
		}
		if v.Text != "" {
			t.Fatalf("list view carries text for %s", v.ID)
		}
	}
}

func TestListByOwnerEmpty(t *testing.T) {
	svc := NewService(story.NewMemStore(), stubBlobs{}, stubSigner{}, time.Hour, zerolog.Nop())
	views, err := svc.ListByOwner(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(views) != 0 {
		t.Fatalf("got %d views, want 0", len(views))
	}
}
