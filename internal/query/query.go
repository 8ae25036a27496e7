// Package query assembles client-facing story views: record state merged with
// short-lived signed URLs for whichever artifacts exist.
package query

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"storyteller/internal/domain/story"
	"storyteller/internal/storage"
)

// BlobReader fetches artifact bytes by key.
type BlobReader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// URLSigner mints time-limited artifact URLs.
type URLSigner interface {
	Sign(key, op string, ttl time.Duration) (storage.SignedURL, error)
}

// resolveLimit bounds concurrent per-record resolution during listing.
const resolveLimit = 8

// Service answers read queries. Resolution degrades per artifact: a ref that
// fails to sign leaves its URL empty while the rest of the view is served.
type Service struct {
	Store  story.Store
	Blobs  BlobReader
	Signer URLSigner
	TTL    time.Duration
	Logger zerolog.Logger
}

func NewService(store story.Store, blobs BlobReader, signer URLSigner, ttl time.Duration, logger zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{Store: store, Blobs: blobs, Signer: signer, TTL: ttl, Logger: logger}
}

// GetByID returns the full view for one story, including the story text.
func (s *Service) GetByID(ctx context.Context, id string) (*story.View, error) {
	rec, err := s.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := s.resolve(rec)
	if rec.TextRef != "" {
		raw, err := s.Blobs.Read(ctx, rec.TextRef)
		if err != nil {
			// Text stays empty rather than failing the whole view.
			s.Logger.Warn().Err(err).Str("story_id", rec.ID).Msg("text artifact unreadable")
		} else {
			view.Text = story.Body(string(raw))
		}
	}
	return view, nil
}

// ListByOwner returns views for all of an owner's stories, newest first. List
// views carry signed URLs but not the story text. URL resolution runs
// concurrently across records.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]*story.View, error) {
	recs, err := s.Store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	views := make([]*story.View, len(recs))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(resolveLimit)
	for i, rec := range recs {
		i, rec := i, rec
		g.Go(func() error {
			views[i] = s.resolve(rec)
			return nil
		})
	}
	_ = g.Wait()
	return views, nil
}

// resolve builds the view skeleton and signs URLs for completed artifacts.
func (s *Service) resolve(rec *story.Record) *story.View {
	view := &story.View{
		ID:          rec.ID,
		OwnerID:     rec.OwnerID,
		Title:       rec.Title,
		AudioStatus: rec.AudioStatus,
		ImageStatus: rec.ImageStatus,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
	if rec.AudioStatus == story.StatusComplete && rec.AudioRef != "" {
		view.AudioURL = s.signOrEmpty(rec.ID, rec.AudioRef)
	}
	if rec.ImageStatus == story.StatusComplete && rec.ImageRef != "" {
		view.ImageURL = s.signOrEmpty(rec.ID, rec.ImageRef)
	}
	return view
}

func (s *Service) signOrEmpty(id, ref string) string {
	signed, err := s.Signer.Sign(ref, storage.OpGet, s.TTL)
	if err != nil {
		s.Logger.Warn().Err(err).Str("story_id", id).Str("ref", ref).Msg("artifact url signing failed")
		return ""
	}
	return signed.URL
}
