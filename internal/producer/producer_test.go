package producer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"storyteller/internal/domain/story"
	"storyteller/internal/providers/textgen"
)

type stubTextGen struct {
	text string
	err  error
}

func (s stubTextGen) Generate(ctx context.Context, p textgen.Params) (string, error) {
	return s.text, s.err
}

type memBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMemBlobs() *memBlobs { return &memBlobs{data: map[string][]byte{}} }

func (m *memBlobs) Write(ctx context.Context, key string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return key, nil
}

// recordingBus captures publishes and runs an optional check at publish time,
// which is how the record-before-event ordering is asserted.
type recordingBus struct {
	events  []story.FanOutEvent
	err     error
	onEvent func(story.FanOutEvent)
}

func (b *recordingBus) Publish(ctx context.Context, evt story.FanOutEvent) error {
	if b.err != nil {
		return b.err
	}
	if b.onEvent != nil {
		b.onEvent(evt)
	}
	b.events = append(b.events, evt)
	return nil
}

func validRequest() story.GenerationRequest {
	return story.GenerationRequest{
		OwnerID:     "u1",
		SubjectName: "Mia",
		Theme:       "space",
		LengthClass: story.LengthShort,
	}
}

func newTestProducer(store story.Store, blobs *memBlobs, gen stubTextGen, b *recordingBus) *Producer {
	p := New(store, blobs, gen, b, zerolog.Nop())
	p.NewID = func() string { return "story-1" }
	return p
}

func TestInitiateCreatesPendingRecordAndPublishes(t *testing.T) {
	ctx := context.Background()
	store := story.NewMemStore()
	blobs := newMemBlobs()
	busStub := &recordingBus{}
	busStub.onEvent = func(evt story.FanOutEvent) {
		// The record must exist before the event goes out.
		if _, err := store.GetByID(ctx, evt.RecordID); err != nil {
			t.Errorf("record missing at publish time: %v", err)
		}
	}
	p := newTestProducer(store, blobs, stubTextGen{text: "Title: Mia in Orbit\nOnce upon a time..."}, busStub)

	id, err := p.Initiate(ctx, validRequest())
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if id != "story-1" {
		t.Fatalf("id = %q", id)
	}

	rec, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec.Title != "Mia in Orbit" {
		t.Fatalf("title = %q", rec.Title)
	}
	if rec.AudioStatus != story.StatusPending || rec.ImageStatus != story.StatusPending {
		t.Fatalf("statuses not pending: %+v", rec)
	}
	if rec.AudioRef != "" || rec.ImageRef != "" {
		t.Fatalf("refs set prematurely: %+v", rec)
	}
	if rec.TextRef != story.TextKey(id) {
		t.Fatalf("text ref = %q", rec.TextRef)
	}
	if got := string(blobs.data[rec.TextRef]); !strings.HasPrefix(got, "Title: Mia in Orbit") {
		t.Fatalf("stored text = %q", got)
	}
	if len(busStub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(busStub.events))
	}
	if evt := busStub.events[0]; evt.RecordID != id || evt.TextArtifactKey != rec.TextRef {
		t.Fatalf("event = %+v", evt)
	}
}

func TestInitiateValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*story.GenerationRequest)
		field  string
	}{
		{"missing owner", func(r *story.GenerationRequest) { r.OwnerID = " " }, "ownerId"},
		{"missing subject", func(r *story.GenerationRequest) { r.SubjectName = "" }, "subjectName"},
		{"missing theme", func(r *story.GenerationRequest) { r.Theme = "" }, "theme"},
		{"bad length class", func(r *story.GenerationRequest) { r.LengthClass = "epic" }, "lengthClass"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestProducer(story.NewMemStore(), newMemBlobs(), stubTextGen{text: "x"}, &recordingBus{})
			req := validRequest()
			tc.mutate(&req)
			_, err := p.Initiate(context.Background(), req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("field = %q, want %q", verr.Field, tc.field)
			}
		})
	}
}

func TestInitiateClampsAge(t *testing.T) {
	store := story.NewMemStore()
	p := newTestProducer(store, newMemBlobs(), stubTextGen{text: "Title: T\nbody"}, &recordingBus{})
	req := validRequest()
	req.SubjectAge = 99
	if _, err := p.Initiate(context.Background(), req); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	rec, _ := store.GetByID(context.Background(), "story-1")
	if rec.SubjectAge != maxSubjectAge {
		t.Fatalf("age = %d, want %d", rec.SubjectAge, maxSubjectAge)
	}
}

func TestInitiateUpstreamFailure(t *testing.T) {
	for _, tc := range []struct {
		name string
		gen  stubTextGen
	}{
		{"backend error", stubTextGen{err: errors.New("boom")}},
		{"empty content", stubTextGen{text: "   \n "}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store := story.NewMemStore()
			busStub := &recordingBus{}
			p := newTestProducer(store, newMemBlobs(), tc.gen, busStub)
			_, err := p.Initiate(context.Background(), validRequest())
			var uerr *UpstreamError
			if !errors.As(err, &uerr) {
				t.Fatalf("err = %v, want UpstreamError", err)
			}
			// No partial record or event may be left behind.
			if _, err := store.GetByID(context.Background(), "story-1"); err != story.ErrNotFound {
				t.Fatalf("partial record left behind: %v", err)
			}
			if len(busStub.events) != 0 {
				t.Fatalf("event published despite failure")
			}
		})
	}
}

func TestInitiatePublishFailureSurfaces(t *testing.T) {
	store := story.NewMemStore()
	p := newTestProducer(store, newMemBlobs(), stubTextGen{text: "Title: T\nbody"}, &recordingBus{err: errors.New("broker down")})
	_, err := p.Initiate(context.Background(), validRequest())
	if err == nil {
		t.Fatal("Initiate succeeded despite publish failure")
	}
	// The record stays behind in pending; it is the staleness policy's
	// problem now, not a rollback.
	rec, getErr := store.GetByID(context.Background(), "story-1")
	if getErr != nil {
		t.Fatalf("record missing after publish failure: %v", getErr)
	}
	if rec.AudioStatus != story.StatusPending || rec.ImageStatus != story.StatusPending {
		t.Fatalf("statuses mutated: %+v", rec)
	}
}
