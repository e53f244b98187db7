package journal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, item Item) (string, error) {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	s.records[id] = &Record{
		ID:        id,
		CreatedAt: now,
		Timestamp: FormatTime(now),
		Entries:   []Item{cloneItem(item)},
	}
	s.order = append(s.order, id)

	return id, nil
}

func (s *MemoryStore) Append(ctx context.Context, id string, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.Entries = append(rec.Entries, cloneItem(item))
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *MemoryStore) Latest(ctx context.Context) (*Record, error) {
	recs, err := s.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return &recs[0], nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// newest insertion first, then a stable sort keeps that as the tie break
	sorted := make([]*Record, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		sorted = append(sorted, s.records[s.order[i]])
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]Record, 0, len(sorted))
	for _, rec := range sorted {
		out = append(out, *cloneRecord(rec))
	}
	return out, nil
}
