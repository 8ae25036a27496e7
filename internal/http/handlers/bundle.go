package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"storyteller/internal/domain/story"
	"storyteller/pkg/zip"
)

// DownloadBundle streams a zip of every artifact the story has so far: the
// text always, audio and image when their stages have completed.
func (a *App) DownloadBundle(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		a.error(w, http.StatusBadRequest, "id required")
		return
	}
	rec, err := a.Store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, story.ErrNotFound) {
			a.error(w, http.StatusNotFound, "story not found")
			return
		}
		a.Logger.Error().Err(err).Str("story_id", id).Msg("story read failed")
		a.error(w, http.StatusInternalServerError, "failed to load story")
		return
	}

	var assets []zip.Asset
	add := func(ref, filename, mime string) {
		if ref == "" {
			return
		}
		data, err := a.Blobs.Read(r.Context(), ref)
		if err != nil {
			a.Logger.Warn().Err(err).Str("story_id", id).Str("ref", ref).Msg("bundle member unreadable")
			return
		}
		assets = append(assets, zip.Asset{Filename: filename, MIME: mime, Data: data})
	}
	add(rec.TextRef, "story.txt", "text/plain")
	if rec.AudioStatus == story.StatusComplete {
		add(rec.AudioRef, "audio.mp3", "audio/mpeg")
	}
	if rec.ImageStatus == story.StatusComplete {
		add(rec.ImageRef, "cover.png", "image/png")
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "no artifacts available yet")
		return
	}

	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.Logger.Error().Err(err).Str("story_id", id).Msg("bundle build failed")
		a.error(w, http.StatusInternalServerError, "failed to build bundle")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "story-"+id+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
