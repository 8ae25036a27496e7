// Package producer handles the synchronous half of a story job: it generates
// the text, creates the shared record, and publishes the fan-out event that
// triggers the asynchronous workers.
package producer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"storyteller/internal/bus"
	"storyteller/internal/domain/story"
	"storyteller/internal/providers/textgen"
)

// ValidationError reports a rejected request field. It maps to a 4xx at the
// HTTP boundary and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UpstreamError reports a generation backend failure during the synchronous
// path.
type UpstreamError struct {
	Stage string
	Err   error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Stage, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// BlobWriter persists artifact bytes.
type BlobWriter interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Producer validates requests and initiates story jobs.
type Producer struct {
	Store  story.Store
	Blobs  BlobWriter
	Text   textgen.Generator
	Bus    bus.Publisher
	Logger zerolog.Logger

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

// New wires a Producer with real clock and id source.
func New(store story.Store, blobs BlobWriter, text textgen.Generator, publisher bus.Publisher, logger zerolog.Logger) *Producer {
	return &Producer{
		Store:  store,
		Blobs:  blobs,
		Text:   text,
		Bus:    publisher,
		Logger: logger,
		Now:    time.Now,
		NewID:  uuid.NewString,
	}
}

const maxSubjectAge = 17

// Initiate runs the synchronous stage and returns the new record id without
// waiting for any downstream work. The record is created before the fan-out
// event is published, so a consumer can never observe a missing record.
func (p *Producer) Initiate(ctx context.Context, req story.GenerationRequest) (string, error) {
	req, err := validate(req)
	if err != nil {
		return "", err
	}

	text, err := p.Text.Generate(ctx, textgen.Params{
		SubjectName: req.SubjectName,
		SubjectAge:  req.SubjectAge,
		Theme:       req.Theme,
		LengthClass: req.LengthClass,
		Locale:      req.Locale,
	})
	if err != nil {
		return "", &UpstreamError{Stage: "text", Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &UpstreamError{Stage: "text", Err: fmt.Errorf("backend returned empty content")}
	}

	id := p.NewID()
	now := p.Now().UTC()

	textKey, err := p.Blobs.Write(ctx, story.TextKey(id), []byte(text))
	if err != nil {
		return "", fmt.Errorf("persist story text: %w", err)
	}

	rec := &story.Record{
		ID:          id,
		OwnerID:     req.OwnerID,
		SubjectName: req.SubjectName,
		SubjectAge:  req.SubjectAge,
		Theme:       req.Theme,
		Title:       story.ExtractTitle(text),
		TextRef:     textKey,
		AudioStatus: story.StatusPending,
		ImageStatus: story.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.Store.Create(ctx, rec); err != nil {
		return "", fmt.Errorf("create story record: %w", err)
	}

	evt := story.FanOutEvent{RecordID: id, TextArtifactKey: textKey}
	if err := p.Bus.Publish(ctx, evt); err != nil {
		// The record stays pending; staleness handling downstream will
		// surface it as abandoned.
		p.Logger.Error().Err(err).Str("story_id", id).Msg("fan-out publish failed")
		return "", fmt.Errorf("publish fan-out event: %w", err)
	}

	p.Logger.Info().Str("story_id", id).Str("owner_id", req.OwnerID).Msg("story initiated")
	return id, nil
}

func validate(req story.GenerationRequest) (story.GenerationRequest, error) {
	req.OwnerID = strings.TrimSpace(req.OwnerID)
	req.SubjectName = strings.TrimSpace(req.SubjectName)
	req.Theme = strings.TrimSpace(req.Theme)
	req.LengthClass = strings.TrimSpace(req.LengthClass)

	if req.OwnerID == "" {
		return req, &ValidationError{Field: "ownerId", Reason: "required"}
	}
	if req.SubjectName == "" {
		return req, &ValidationError{Field: "subjectName", Reason: "required"}
	}
	if req.Theme == "" {
		return req, &ValidationError{Field: "theme", Reason: "required"}
	}
	switch req.LengthClass {
	case "":
		req.LengthClass = story.LengthShort
	case story.LengthShort, story.LengthMedium, story.LengthLong:
	default:
		return req, &ValidationError{Field: "lengthClass", Reason: "must be short, medium, or long"}
	}
	if req.SubjectAge < 0 {
		req.SubjectAge = 0
	}
	if req.SubjectAge > maxSubjectAge {
		req.SubjectAge = maxSubjectAge
	}
	return req, nil
}
