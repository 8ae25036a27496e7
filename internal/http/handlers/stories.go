package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"storyteller/internal/domain/story"
	"storyteller/internal/middleware"
	"storyteller/internal/producer"
)

// CreateStory runs the synchronous producer stage and answers 202 with the
// record id; audio and image continue in the background.
func (a *App) CreateStory(w http.ResponseWriter, r *http.Request) {
	var req story.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	req.Locale = middleware.LocaleFromContext(r.Context())

	id, err := a.Producer.Initiate(r.Context(), req)
	if err != nil {
		var verr *producer.ValidationError
		var uerr *producer.UpstreamError
		switch {
		case errors.As(err, &verr):
			a.error(w, http.StatusBadRequest, verr.Error())
		case errors.As(err, &uerr):
			a.Logger.Error().Err(err).Msg("story initiation failed upstream")
			a.error(w, http.StatusInternalServerError, "story generation failed")
		default:
			a.Logger.Error().Err(err).Msg("story initiation failed")
			a.error(w, http.StatusInternalServerError, "failed to create story")
		}
		return
	}
	a.json(w, http.StatusAccepted, map[string]string{"id": id})
}

// GetStory returns the aggregated view for one story.
func (a *App) GetStory(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		a.error(w, http.StatusBadRequest, "id required")
		return
	}
	view, err := a.Query.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, story.ErrNotFound) {
			a.error(w, http.StatusNotFound, "story not found")
			return
		}
		a.Logger.Error().Err(err).Str("story_id", id).Msg("story read failed")
		a.error(w, http.StatusInternalServerError, "failed to load story")
		return
	}
	a.json(w, http.StatusOK, view)
}

// ListStories returns every story owned by ownerId, newest first.
func (a *App) ListStories(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(r.URL.Query().Get("ownerId"))
	if ownerID == "" {
		a.error(w, http.StatusBadRequest, "ownerId required")
		return
	}
	views, err := a.Query.ListByOwner(r.Context(), ownerID)
	if err != nil {
		a.Logger.Error().Err(err).Str("owner_id", ownerID).Msg("story listing failed")
		a.error(w, http.StatusInternalServerError, "failed to list stories")
		return
	}
	if views == nil {
		views = []*story.View{}
	}
	a.json(w, http.StatusOK, views)
}
