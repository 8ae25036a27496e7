package story

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store. It backs development mode when no database
// is configured and doubles as the test fixture for components that only need
// the Store contract. Conditional update semantics match the SQL repository:
// a terminal field is never overwritten.
type MemStore struct {
	mu      sync.Mutex
	records map[string]*Record

	// Now is overridable so tests can pin timestamps.
	Now func() time.Time
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]*Record), Now: time.Now}
}

func (m *MemStore) Create(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[rec.ID] = &cp
	return nil
}

func (m *MemStore) GetByID(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemStore) ListByOwner(ctx context.Context, ownerID string) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Record
	for _, rec := range m.records {
		if rec.OwnerID == ownerID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) MarkArtifactComplete(ctx context.Context, id string, field ArtifactField, ref string) error {
	return m.transition(ctx, id, field, StatusComplete, ref)
}

func (m *MemStore) MarkArtifactError(ctx context.Context, id string, field ArtifactField) error {
	return m.transition(ctx, id, field, StatusError, "")
}

func (m *MemStore) transition(ctx context.Context, id string, field ArtifactField, next Status, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.FieldStatus(field).Terminal() {
		return nil
	}
	switch field {
	case FieldAudio:
		rec.AudioStatus = next
		rec.AudioRef = ref
	case FieldImage:
		rec.ImageStatus = next
		rec.ImageRef = ref
	}
	rec.UpdatedAt = m.Now()
	return nil
}

var _ Store = (*MemStore)(nil)
