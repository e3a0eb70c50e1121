package record

import (
	"context"
	"sync"
	"time"

	"github.com/SFitz911/sfitz911-avatar-generator/internal/domain"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is a fully in-memory Store with per-key expiry. Safe for
// concurrent use. Intended for unit tests and single-node development
// setups where Redis is not configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord

	// now is swappable so expiry can be tested without sleeping.
	now func() time.Time
}

type memoryRecord struct {
	job       domain.Job
	expiresAt time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]memoryRecord),
		now:     time.Now,
	}
}

func (m *MemoryStore) Put(_ context.Context, job *domain.Job, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = m.now().Add(ttl)
	}
	m.records[job.ID] = memoryRecord{job: *job, expiresAt: expires}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok || m.expired(rec) {
		return nil, domain.ErrNotFound
	}
	cp := rec.job
	return &cp, nil
}

func (m *MemoryStore) Scan(_ context.Context) ([]*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*domain.Job, 0, len(m.records))
	for _, rec := range m.records {
		if m.expired(rec) {
			continue
		}
		cp := rec.job
		jobs = append(jobs, &cp)
	}
	return jobs, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) expired(rec memoryRecord) bool {
	return !rec.expiresAt.IsZero() && m.now().After(rec.expiresAt)
}

// SetClock overrides the store's time source. Test hook.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}
