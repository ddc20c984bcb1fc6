package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/storage"
)

// MemoryStorage backs all repositories with in-process maps. Used in tests
// and when no redis/database is configured.
type MemoryStorage struct {
	mu        sync.RWMutex
	lifecycle map[string]domain.LifecycleRecord
	cases     map[string]domain.TriageCase
	episodes  []domain.Episode
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		lifecycle: make(map[string]domain.LifecycleRecord),
		cases:     make(map[string]domain.TriageCase),
	}
}

// LifecycleStore implements storage.LifecycleStore on MemoryStorage.
type LifecycleStore struct {
	store *MemoryStorage
}

// NewLifecycleStore creates an in-memory lifecycle store.
func NewLifecycleStore(store *MemoryStorage) *LifecycleStore {
	return &LifecycleStore{store: store}
}

func (s *LifecycleStore) Get(
	ctx context.Context,
	exceptionID string,
) (*domain.LifecycleRecord, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	rec, ok := s.store.lifecycle[exceptionID]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	out := rec
	return &out, nil
}

func (s *LifecycleStore) Create(ctx context.Context, rec *domain.LifecycleRecord) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if _, ok := s.store.lifecycle[rec.ExceptionID]; ok {
		return storage.ErrRecordExists
	}
	s.store.lifecycle[rec.ExceptionID] = *rec
	return nil
}

func (s *LifecycleStore) Update(
	ctx context.Context,
	rec *domain.LifecycleRecord,
	expectState domain.LifecycleState,
) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	current, ok := s.store.lifecycle[rec.ExceptionID]
	if !ok {
		return storage.ErrRecordNotFound
	}
	if current.State != expectState {
		return storage.ErrStateConflict
	}
	s.store.lifecycle[rec.ExceptionID] = *rec
	return nil
}

func (s *LifecycleStore) ListOverdue(
	ctx context.Context,
	now time.Time,
) ([]*domain.LifecycleRecord, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	var overdue []*domain.LifecycleRecord
	for _, rec := range s.store.lifecycle {
		if rec.State.Terminal() {
			continue
		}
		if rec.SLADeadline.Before(now) {
			out := rec
			overdue = append(overdue, &out)
		}
	}
	sort.Slice(overdue, func(i, j int) bool {
		return overdue[i].SLADeadline.Before(overdue[j].SLADeadline)
	})
	return overdue, nil
}

// DeleteOlderThan removes terminal records resolved before the cutoff.
func (s *LifecycleStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	var n int64
	for id, rec := range s.store.lifecycle {
		if rec.State.Terminal() && rec.ResolvedAt != nil && rec.ResolvedAt.Before(cutoff) {
			delete(s.store.lifecycle, id)
			n++
		}
	}
	return n, nil
}

// CaseRepo implements storage.CaseRepository on MemoryStorage.
type CaseRepo struct {
	store *MemoryStorage
}

// NewCaseRepo creates an in-memory case repository.
func NewCaseRepo(store *MemoryStorage) *CaseRepo {
	return &CaseRepo{store: store}
}

func (r *CaseRepo) Save(ctx context.Context, c *domain.TriageCase) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.cases[c.ExceptionID] = *c
	return nil
}

func (r *CaseRepo) Get(ctx context.Context, exceptionID string) (*domain.TriageCase, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	c, ok := r.store.cases[exceptionID]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	out := c
	return &out, nil
}

// EpisodeRepo implements storage.EpisodeRepository on MemoryStorage.
type EpisodeRepo struct {
	store *MemoryStorage
}

// NewEpisodeRepo creates an in-memory episode repository.
func NewEpisodeRepo(store *MemoryStorage) *EpisodeRepo {
	return &EpisodeRepo{store: store}
}

func (r *EpisodeRepo) Append(ctx context.Context, ep *domain.Episode) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.episodes = append(r.store.episodes, *ep)
	return nil
}

func (r *EpisodeRepo) ListRecent(ctx context.Context, limit int) ([]*domain.Episode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	n := len(r.store.episodes)
	if limit > n {
		limit = n
	}
	out := make([]*domain.Episode, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		ep := r.store.episodes[i]
		out = append(out, &ep)
	}
	return out, nil
}

// DeleteOlderThan removes episodes recorded before the cutoff.
func (r *EpisodeRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	kept := r.store.episodes[:0]
	var n int64
	for _, ep := range r.store.episodes {
		if ep.RecordedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, ep)
	}
	r.store.episodes = kept
	return n, nil
}
