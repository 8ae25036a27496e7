package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"storyteller/internal/bus"
	"storyteller/internal/domain/story"
	"storyteller/internal/producer"
	"storyteller/internal/providers/genai"
	"storyteller/internal/providers/textgen"
	"storyteller/internal/query"
	"storyteller/internal/storage"
)

type testEnv struct {
	app    *App
	store  *story.MemStore
	blobs  *storage.FileStore
	signer *storage.Signer
	bus    *bus.MemoryBus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := story.NewMemStore()
	blobs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	signer, err := storage.NewSigner("test-secret", "http://storyteller.test")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	memBus := bus.NewMemoryBus()
	t.Cleanup(func() { _ = memBus.Close() })

	// No API key configured: the genai client produces deterministic
	// synthetic stories, which is exactly what handler tests need.
	gen, err := genai.NewClient(genai.Options{})
	if err != nil {
		t.Fatalf("genai: %v", err)
	}

	app := &App{
		Logger:   zerolog.Nop(),
		Producer: producer.New(store, blobs, textgen.NewGemini(gen), memBus, zerolog.Nop()),
		Query:    query.NewService(store, blobs, signer, time.Hour, zerolog.Nop()),
		Store:    store,
		Blobs:    blobs,
		Signer:   signer,
		URLTTL:   time.Hour,
	}
	return &testEnv{app: app, store: store, blobs: blobs, signer: signer, bus: memBus}
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestCreateStoryAccepted(t *testing.T) {
	env := newTestEnv(t)
	body := `{"ownerId":"u1","subjectName":"Mia","subjectAge":6,"theme":"space","lengthClass":"short"}`
	req := httptest.NewRequest(http.MethodPost, "/story", strings.NewReader(body))
	rec := httptest.NewRecorder()

	env.app.CreateStory(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var out map[string]string
	decodeJSON(t, rec, &out)
	if out["id"] == "" {
		t.Fatal("no id in response")
	}
	if _, err := env.store.GetByID(context.Background(), out["id"]); err != nil {
		t.Fatalf("record missing: %v", err)
	}
}

type failingTextGen struct{}

func (failingTextGen) Generate(ctx context.Context, p textgen.Params) (string, error) {
	return "", errors.New("backend down")
}

func TestCreateStoryUpstreamFailureAnswers500(t *testing.T) {
	env := newTestEnv(t)
	env.app.Producer = producer.New(env.store, env.blobs, failingTextGen{}, env.bus, zerolog.Nop())

	body := `{"ownerId":"u1","subjectName":"Mia","theme":"space","lengthClass":"short"}`
	req := httptest.NewRequest(http.MethodPost, "/story", strings.NewReader(body))
	rec := httptest.NewRecorder()

	env.app.CreateStory(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var out map[string]string
	decodeJSON(t, rec, &out)
	if out["error"] == "" {
		t.Fatal("no error message in response")
	}
}

func TestCreateStoryValidation(t *testing.T) {
	env := newTestEnv(t)
	for name, body := range map[string]string{
		"malformed json": `{"ownerId":`,
		"missing fields": `{"ownerId":"u1"}`,
		"bad length":     `{"ownerId":"u1","subjectName":"Mia","theme":"space","lengthClass":"epic"}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/story", strings.NewReader(body))
			rec := httptest.NewRecorder()
			env.app.CreateStory(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGetStory(t *testing.T) {
	env := newTestEnv(t)
	rec := &story.Record{
		ID:          "s1",
		OwnerID:     "u1",
		Title:       "T",
		TextRef:     story.TextKey("s1"),
		AudioStatus: story.StatusPending,
		ImageStatus: story.StatusPending,
	}
	if err := env.store.Create(context.Background(), rec); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := env.blobs.Write(context.Background(), rec.TextRef, []byte("Title: T\nbody text")); err != nil {
		t.Fatalf("seed blob: %v", err)
	}

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/metadata/s1", nil), "id", "s1")
	w := httptest.NewRecorder()
	env.app.GetStory(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var view story.View
	decodeJSON(t, w, &view)
	if view.ID != "s1" || view.Text != "body text" {
		t.Fatalf("view = %+v", view)
	}

	req = withURLParam(httptest.NewRequest(http.MethodGet, "/metadata/nope", nil), "id", "nope")
	w = httptest.NewRecorder()
	env.app.GetStory(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestListStoriesRequiresOwner(t *testing.T) {
	env := newTestEnv(t)
	w := httptest.NewRecorder()
	env.app.ListStories(w, httptest.NewRequest(http.MethodGet, "/metadata", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	w = httptest.NewRecorder()
	env.app.ListStories(w, httptest.NewRequest(http.MethodGet, "/metadata?ownerId=u1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var views []*story.View
	decodeJSON(t, w, &views)
	if len(views) != 0 {
		t.Fatalf("views = %+v, want empty array", views)
	}
}

func TestSignURL(t *testing.T) {
	env := newTestEnv(t)

	w := httptest.NewRecorder()
	env.app.SignURL(w, httptest.NewRequest(http.MethodPost, "/url",
		strings.NewReader(`{"key":"stories/s1/audio.mp3"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var signed storage.SignedURL
	decodeJSON(t, w, &signed)
	if !strings.Contains(signed.URL, "stories/s1/audio.mp3") || signed.ExpiresAt.IsZero() {
		t.Fatalf("signed = %+v", signed)
	}

	// put without a content type is rejected.
	w = httptest.NewRecorder()
	env.app.SignURL(w, httptest.NewRequest(http.MethodPost, "/url",
		strings.NewReader(`{"key":"stories/s1/story.txt","operation":"put"}`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	w = httptest.NewRecorder()
	env.app.SignURL(w, httptest.NewRequest(http.MethodPost, "/url",
		strings.NewReader(`{"key":"stories/s1/story.txt","operation":"delete"}`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown op", w.Code)
	}
}

func signedQuery(t *testing.T, env *testEnv, key, op string) string {
	t.Helper()
	signed, err := env.signer.Sign(key, op, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	u, err := url.Parse(signed.URL)
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	return u.RawQuery
}

func TestArtifactRoundTripThroughSignedURLs(t *testing.T) {
	env := newTestEnv(t)
	key := "stories/s1/audio.mp3"

	// Upload through a signed put URL.
	q := signedQuery(t, env, key, storage.OpPut)
	req := withURLParam(httptest.NewRequest(http.MethodPut, "/artifacts/"+key+"?"+q,
		bytes.NewReader([]byte("mp3 bytes"))), "*", key)
	w := httptest.NewRecorder()
	env.app.PutArtifact(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("put status = %d body = %s", w.Code, w.Body.String())
	}

	// Fetch through a signed get URL.
	q = signedQuery(t, env, key, storage.OpGet)
	req = withURLParam(httptest.NewRequest(http.MethodGet, "/artifacts/"+key+"?"+q, nil), "*", key)
	w = httptest.NewRecorder()
	env.app.GetArtifact(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if w.Body.String() != "mp3 bytes" {
		t.Fatalf("body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestArtifactRejectsBadSignatures(t *testing.T) {
	env := newTestEnv(t)
	key := "stories/s1/story.txt"
	if _, err := env.blobs.Write(context.Background(), key, []byte("text")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cases := map[string]string{
		"no signature": "",
		"tampered":     signedQuery(t, env, key, storage.OpGet) + "x",
		"wrong op":     strings.Replace(signedQuery(t, env, key, storage.OpPut), "op=put", "op=get", 1),
		"put with get": signedQuery(t, env, key, storage.OpGet),
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			method, handler := http.MethodGet, env.app.GetArtifact
			if name == "put with get" {
				method, handler = http.MethodPut, env.app.PutArtifact
			}
			req := withURLParam(httptest.NewRequest(method, "/artifacts/"+key+"?"+q, nil), "*", key)
			w := httptest.NewRecorder()
			handler(w, req)
			if w.Code != http.StatusForbidden {
				t.Fatalf("status = %d, want 403", w.Code)
			}
		})
	}
}

func TestDownloadBundle(t *testing.T) {
	env := newTestEnv(t)
	rec := &story.Record{
		ID:          "s1",
		OwnerID:     "u1",
		Title:       "T",
		TextRef:     story.TextKey("s1"),
		AudioStatus: story.StatusComplete,
		AudioRef:    story.AudioKey("s1"),
		ImageStatus: story.StatusPending,
	}
	if err := env.store.Create(context.Background(), rec); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ctx := context.Background()
	_, _ = env.blobs.Write(ctx, rec.TextRef, []byte("Title: T\nbody"))
	_, _ = env.blobs.Write(ctx, rec.AudioRef, []byte("mp3"))

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/story/s1/bundle", nil), "id", "s1")
	w := httptest.NewRecorder()
	env.app.DownloadBundle(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("content type = %q", ct)
	}
	// Zip archives start with the PK magic.
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Fatal("response is not a zip archive")
	}
}
