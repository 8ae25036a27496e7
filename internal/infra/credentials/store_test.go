package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubRow struct {
	value string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if ptr, ok := dest[0].(*string); ok {
		*ptr = r.value
		return nil
	}
	return errors.New("unsupported scan target")
}

type stubExecutor struct {
	row stubRow
}

func (s stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not implemented")
}

func (s stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (s stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return s.row
}

func TestLookupTrimsValue(t *testing.T) {
	store := NewStore(stubExecutor{row: stubRow{value: "  key-123  "}})
	got, err := store.Lookup(context.Background(), NameGeminiAPIKey)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != "key-123" {
		t.Fatalf("Lookup = %q", got)
	}
}

type recordingExecutor struct {
	stubExecutor
	lastQuery string
	lastArgs  []any
}

func (s *recordingExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.lastQuery = query
	s.lastArgs = args
	return pgconn.CommandTag{}, nil
}

func TestSetTrimsValue(t *testing.T) {
	rec := &recordingExecutor{}
	store := NewStore(rec)
	if err := store.Set(context.Background(), NameSpeechAPIKey, "  key-456  "); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(rec.lastArgs) != 2 || rec.lastArgs[0] != NameSpeechAPIKey || rec.lastArgs[1] != "key-456" {
		t.Fatalf("args = %v", rec.lastArgs)
	}
}

func TestLookupMissingIsEmpty(t *testing.T) {
	store := NewStore(stubExecutor{row: stubRow{err: pgx.ErrNoRows}})
	got, err := store.Lookup(context.Background(), NameSpeechAPIKey)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != "" {
		t.Fatalf("Lookup = %q, want empty", got)
	}
}
