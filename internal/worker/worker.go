// Package worker runs the asynchronous consumers. Audio and image share one
// harness; a Stage supplies the per-artifact behavior. Each worker owns
// exactly one record field and treats everything else on the record as
// read-only.
package worker

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"storyteller/internal/domain/story"
)

// Blobs is the artifact store surface a worker needs.
type Blobs interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Stage produces one artifact for a record. It returns the storage key to
// write and the artifact bytes.
type Stage interface {
	Field() story.ArtifactField
	Generate(ctx context.Context, rec *story.Record, text string) (string, []byte, error)
}

// Worker consumes fan-out events for a single stage.
type Worker struct {
	Store  story.Store
	Blobs  Blobs
	Stage  Stage
	Logger zerolog.Logger
}

// New wires a Worker for the given stage.
func New(store story.Store, blobs Blobs, stage Stage, logger zerolog.Logger) *Worker {
	return &Worker{Store: store, Blobs: blobs, Stage: stage, Logger: logger}
}

// HandleFanOut processes one delivery. It never returns an error and never
// panics past this boundary: every failure after the point read ends in a
// field-level error write, and deliveries that do not concern this pipeline
// are dropped silently. Redelivery of an already-terminal record is a no-op,
// which is what makes the at-least-once bus safe.
func (w *Worker) HandleFanOut(ctx context.Context, evt story.FanOutEvent) {
	field := w.Stage.Field()
	log := w.Logger.With().Str("stage", string(field)).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("stage panicked")
		}
	}()

	id, ok := story.ParseTextKey(evt.TextArtifactKey)
	if !ok {
		log.Debug().Str("key", evt.TextArtifactKey).Msg("ignoring event with unexpected key shape")
		return
	}
	if evt.RecordID != "" && evt.RecordID != id {
		log.Warn().Str("record_id", evt.RecordID).Str("key", evt.TextArtifactKey).Msg("ignoring event with mismatched record id")
		return
	}
	log = log.With().Str("story_id", id).Logger()

	rec, err := w.Store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, story.ErrNotFound) {
			log.Warn().Msg("record not found, dropping event")
		} else {
			// Storage trouble before the point read: drop and rely on
			// transport-level redelivery.
			log.Error().Err(err).Msg("record read failed, dropping event")
		}
		return
	}
	if rec.FieldStatus(field).Terminal() {
		log.Debug().Msg("field already terminal, redelivery no-op")
		return
	}

	text, err := w.Blobs.Read(ctx, evt.TextArtifactKey)
	if err != nil {
		w.markError(ctx, log, id, field, "text artifact read failed", err)
		return
	}

	key, data, err := w.Stage.Generate(ctx, rec, string(text))
	if err != nil {
		w.markError(ctx, log, id, field, "generation failed", err)
		return
	}

	ref, err := w.Blobs.Write(ctx, key, data)
	if err != nil {
		w.markError(ctx, log, id, field, "artifact write failed", err)
		return
	}

	if err := w.Store.MarkArtifactComplete(ctx, id, field, ref); err != nil {
		// The artifact exists but the record does not say so; only a
		// redrive can recover this job.
		log.Error().Err(err).Msg("complete write failed, dropping")
		return
	}
	log.Info().Str("ref", ref).Msg("artifact complete")
}

func (w *Worker) markError(ctx context.Context, log zerolog.Logger, id string, field story.ArtifactField, msg string, cause error) {
	log.Error().Err(cause).Msg(msg)
	if err := w.Store.MarkArtifactError(ctx, id, field); err != nil {
		log.Error().Err(err).Msg("error write failed, dropping")
	}
}
