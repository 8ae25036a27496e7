// Package handlers implements the story API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"storyteller/internal/domain/story"
	"storyteller/internal/producer"
	"storyteller/internal/query"
	"storyteller/internal/storage"
)

type App struct {
	Logger   zerolog.Logger
	Producer *producer.Producer
	Query    *query.Service
	Store    story.Store
	Blobs    *storage.FileStore
	Signer   *storage.Signer
	URLTTL   time.Duration
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, map[string]string{"error": msg})
}
