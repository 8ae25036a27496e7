// Package story holds the shared job record, its lifecycle rules, and the
// store contract every pipeline component coordinates through.
package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status tracks one artifact's progress on the record. Transitions only move
// forward: pending -> complete or pending -> error, never back.
type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Terminal reports whether no further transition is allowed for the field.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// ArtifactField names one of the asynchronously produced artifacts. Each
// worker owns exactly one field and never writes the other.
type ArtifactField string

const (
	FieldAudio ArtifactField = "audio"
	FieldImage ArtifactField = "image"
)

// Length classes accepted at the producer boundary.
const (
	LengthShort  = "short"
	LengthMedium = "medium"
	LengthLong   = "long"
)

// ErrNotFound is returned by stores when no record exists for an id.
var ErrNotFound = errors.New("story not found")

// GenerationRequest is the validated input for a new story job.
type GenerationRequest struct {
	OwnerID     string `json:"ownerId"`
	SubjectName string `json:"subjectName"`
	SubjectAge  int    `json:"subjectAge,omitempty"`
	Theme       string `json:"theme"`
	LengthClass string `json:"lengthClass"`

	// Locale is derived from the request transport, not the body.
	Locale string `json:"-"`
}

// Record is the single source of truth for one generation job. The producer
// creates it and sets title/text_ref once; afterwards each worker updates
// only its own status/ref pair.
type Record struct {
	ID          string
	OwnerID     string
	SubjectName string
	SubjectAge  int
	Theme       string
	Title       string
	TextRef     string
	AudioStatus Status
	AudioRef    string
	ImageStatus Status
	ImageRef    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FieldStatus returns the status of the given artifact field.
func (r *Record) FieldStatus(field ArtifactField) Status {
	if field == FieldAudio {
		return r.AudioStatus
	}
	return r.ImageStatus
}

// FanOutEvent is published once per record after the text artifact exists.
// Both workers receive it independently, possibly more than once.
type FanOutEvent struct {
	RecordID        string `json:"recordId"`
	TextArtifactKey string `json:"textArtifactKey"`
}

// View is the client-visible merge of a record and its resolved artifacts.
// Optional fields stay empty until the corresponding stage completes and the
// reference resolves.
type View struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Title       string    `json:"title"`
	Text        string    `json:"text,omitempty"`
	AudioURL    string    `json:"audioUrl,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	AudioStatus Status    `json:"audioStatus"`
	ImageStatus Status    `json:"imageStatus"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Store is the record store contract. MarkArtifact* are field-scoped and
// conditional: they apply only while the field is still pending, which makes
// event redelivery and concurrent sibling writers safe without locking.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id string) (*Record, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Record, error)
	MarkArtifactComplete(ctx context.Context, id string, field ArtifactField, ref string) error
	MarkArtifactError(ctx context.Context, id string, field ArtifactField) error
}

const keyPrefix = "stories"

// TextKey returns the storage key of the story text for a record id.
func TextKey(id string) string { return fmt.Sprintf("%s/%s/story.txt", keyPrefix, id) }

// AudioKey returns the storage key of the narration audio for a record id.
func AudioKey(id string) string { return fmt.Sprintf("%s/%s/audio.mp3", keyPrefix, id) }

// ImageKey returns the storage key of the cover image for a record id.
func ImageKey(id string) string { return fmt.Sprintf("%s/%s/cover.png", keyPrefix, id) }

// ParseTextKey extracts the record id from a text artifact key. It returns
// false for any key that does not match stories/{id}/story.txt, which is how
// workers recognize unrelated or malformed deliveries.
func ParseTextKey(key string) (string, bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != keyPrefix || parts[2] != "story.txt" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
