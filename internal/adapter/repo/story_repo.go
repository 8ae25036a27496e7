// Package repo implements the record store contracts on Postgres.
package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"storyteller/internal/domain/story"
	"storyteller/internal/infra"
	"storyteller/internal/sqlinline"
)

// StoryRepo is the Postgres-backed story.Store. Field updates are expressed
// as conditional single-column UPDATEs, so concurrent workers writing
// disjoint fields of the same row never need coordination.
type StoryRepo struct {
	SQL    infra.SQLExecutor
	Logger zerolog.Logger

	// Now is overridable so tests can pin updated_at values.
	Now func() time.Time
}

// NewStoryRepo wires a StoryRepo over the given executor.
func NewStoryRepo(sql infra.SQLExecutor, logger zerolog.Logger) *StoryRepo {
	return &StoryRepo{SQL: sql, Logger: logger, Now: time.Now}
}

func (r *StoryRepo) Create(ctx context.Context, rec *story.Record) error {
	_, err := r.SQL.Exec(ctx, sqlinline.QInsertStory,
		rec.ID,
		rec.OwnerID,
		rec.SubjectName,
		rec.SubjectAge,
		rec.Theme,
		rec.Title,
		rec.TextRef,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create story %s: %w", rec.ID, err)
	}
	return nil
}

func (r *StoryRepo) GetByID(ctx context.Context, id string) (*story.Record, error) {
	row := r.SQL.QueryRow(ctx, sqlinline.QSelectStoryByID, id)
	rec, err := scanRecord(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, story.ErrNotFound
		}
		return nil, fmt.Errorf("get story %s: %w", id, err)
	}
	return rec, nil
}

// ListByOwner prefers the indexed owner query and falls back to a full scan
// filtered in-process when the query path fails, keeping the output contract
// identical either way.
func (r *StoryRepo) ListByOwner(ctx context.Context, ownerID string) ([]*story.Record, error) {
	rows, err := r.SQL.Query(ctx, sqlinline.QListStoriesByOwner, ownerID)
	if err != nil {
		r.Logger.Warn().Err(err).Msg("owner query failed, falling back to scan")
		return r.scanByOwner(ctx, ownerID)
	}
	defer rows.Close()
	var out []*story.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan story row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stories for %s: %w", ownerID, err)
	}
	return out, nil
}

func (r *StoryRepo) scanByOwner(ctx context.Context, ownerID string) ([]*story.Record, error) {
	rows, err := r.SQL.Query(ctx, sqlinline.QScanStories)
	if err != nil {
		return nil, fmt.Errorf("scan stories: %w", err)
	}
	defer rows.Close()
	var out []*story.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan story row: %w", err)
		}
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan stories for %s: %w", ownerID, err)
	}
	return out, nil
}

func (r *StoryRepo) MarkArtifactComplete(ctx context.Context, id string, field story.ArtifactField, ref string) error {
	stmt := sqlinline.QMarkAudioComplete
	if field == story.FieldImage {
		stmt = sqlinline.QMarkImageComplete
	}
	if _, err := r.SQL.Exec(ctx, stmt, id, ref, r.Now()); err != nil {
		return fmt.Errorf("mark %s complete for %s: %w", field, id, err)
	}
	return nil
}

func (r *StoryRepo) MarkArtifactError(ctx context.Context, id string, field story.ArtifactField) error {
	stmt := sqlinline.QMarkAudioError
	if field == story.FieldImage {
		stmt = sqlinline.QMarkImageError
	}
	if _, err := r.SQL.Exec(ctx, stmt, id, r.Now()); err != nil {
		return fmt.Errorf("mark %s error for %s: %w", field, id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*story.Record, error) {
	var rec story.Record
	err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.SubjectName,
		&rec.SubjectAge,
		&rec.Theme,
		&rec.Title,
		&rec.TextRef,
		&rec.AudioStatus,
		&rec.AudioRef,
		&rec.ImageStatus,
		&rec.ImageRef,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

var _ story.Store = (*StoryRepo)(nil)
