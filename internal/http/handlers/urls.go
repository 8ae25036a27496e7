package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"storyteller/internal/storage"
)

type signURLRequest struct {
	Key         string `json:"key"`
	Operation   string `json:"operation"`
	ContentType string `json:"contentType,omitempty"`
}

// SignURL mints a time-limited URL granting one operation on one artifact key.
func (a *App) SignURL(w http.ResponseWriter, r *http.Request) {
	var req signURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		a.error(w, http.StatusBadRequest, "key required")
		return
	}
	op := strings.ToLower(strings.TrimSpace(req.Operation))
	if op == "" {
		op = storage.OpGet
	}
	switch op {
	case storage.OpGet:
	case storage.OpPut:
		if strings.TrimSpace(req.ContentType) == "" {
			a.error(w, http.StatusBadRequest, "contentType required for put")
			return
		}
	default:
		a.error(w, http.StatusBadRequest, "operation must be get or put")
		return
	}

	signed, err := a.Signer.Sign(req.Key, op, a.URLTTL)
	if err != nil {
		a.error(w, http.StatusBadRequest, "key cannot be signed")
		return
	}
	a.json(w, http.StatusOK, signed)
}
