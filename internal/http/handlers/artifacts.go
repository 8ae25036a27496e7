package handlers

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"storyteller/internal/storage"
)

// maxUploadBytes caps PUT bodies; generated artifacts stay well under this.
const maxUploadBytes = 64 << 20

// GetArtifact serves artifact bytes to holders of a valid signed URL.
func (a *App) GetArtifact(w http.ResponseWriter, r *http.Request) {
	key, ok := a.verifySignedRequest(w, r, storage.OpGet)
	if !ok {
		return
	}
	data, err := a.Blobs.Read(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			a.error(w, http.StatusNotFound, "artifact not found")
			return
		}
		a.Logger.Error().Err(err).Str("key", key).Msg("artifact read failed")
		a.error(w, http.StatusInternalServerError, "failed to read artifact")
		return
	}
	w.Header().Set("Content-Type", contentTypeForKey(key))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// PutArtifact accepts an upload for holders of a valid signed put URL.
func (a *App) PutArtifact(w http.ResponseWriter, r *http.Request) {
	key, ok := a.verifySignedRequest(w, r, storage.OpPut)
	if !ok {
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		a.error(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(data) > maxUploadBytes {
		a.error(w, http.StatusRequestEntityTooLarge, "artifact too large")
		return
	}
	if _, err := a.Blobs.Write(r.Context(), key, data); err != nil {
		a.Logger.Error().Err(err).Str("key", key).Msg("artifact write failed")
		a.error(w, http.StatusInternalServerError, "failed to store artifact")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// verifySignedRequest checks op, expiry, and signature query parameters for
// the wildcard artifact key. Failures answer 403 and return ok=false.
func (a *App) verifySignedRequest(w http.ResponseWriter, r *http.Request, wantOp string) (string, bool) {
	key := chi.URLParam(r, "*")
	if key == "" {
		a.error(w, http.StatusBadRequest, "key required")
		return "", false
	}
	q := r.URL.Query()
	op := q.Get("op")
	if op != wantOp {
		a.error(w, http.StatusForbidden, "operation not permitted")
		return "", false
	}
	expires, err := strconv.ParseInt(q.Get("exp"), 10, 64)
	if err != nil {
		a.error(w, http.StatusForbidden, "invalid signature")
		return "", false
	}
	if err := a.Signer.Verify(key, op, expires, q.Get("sig")); err != nil {
		a.error(w, http.StatusForbidden, "invalid signature")
		return "", false
	}
	return key, true
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".mp3":
		return "audio/mpeg"
	case ".png":
		return "image/png"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
