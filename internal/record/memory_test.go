package record

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SFitz911/sfitz911-avatar-generator/internal/domain"
)

func TestMemoryStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	job := &domain.Job{ID: "job-1", State: domain.JobStateQueued, SubmittedAt: time.Now()}
	if err := store.Put(ctx, job, time.Hour); err != nil {
		t.Fatalf("Put() = %v, want nil", err)
	}

	got, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get() = %v, want nil", err)
	}
	if got.State != domain.JobStateQueued {
		t.Fatalf("State = %q, want %q", got.State, domain.JobStateQueued)
	}

	// Mutating the returned record must not affect the stored copy.
	got.State = domain.JobStateFailed
	again, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get() = %v, want nil", err)
	}
	if again.State != domain.JobStateQueued {
		t.Fatalf("stored record mutated through returned pointer")
	}

	if err := store.Delete(ctx, "job-1"); err != nil {
		t.Fatalf("Delete() = %v, want nil", err)
	}
	if _, err := store.Get(ctx, "job-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get() after delete = %v, want ErrNotFound", err)
	}
	// Deleting a missing record is not an error.
	if err := store.Delete(ctx, "job-1"); err != nil {
		t.Fatalf("Delete() missing = %v, want nil", err)
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	now := time.Now()
	store.SetClock(func() time.Time { return now })

	if err := store.Put(ctx, &domain.Job{ID: "job-ttl"}, time.Minute); err != nil {
		t.Fatalf("Put() = %v, want nil", err)
	}
	if _, err := store.Get(ctx, "job-ttl"); err != nil {
		t.Fatalf("Get() before expiry = %v, want nil", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, "job-ttl"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get() after expiry = %v, want ErrNotFound", err)
	}
	jobs, err := store.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan() = %v, want nil", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("Scan() returned %d expired records, want 0", len(jobs))
	}
}

func TestMemoryStoreScan(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Put(ctx, &domain.Job{ID: id}, 0); err != nil {
			t.Fatalf("Put(%s) = %v, want nil", id, err)
		}
	}
	jobs, err := store.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan() = %v, want nil", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("Scan() returned %d records, want 3", len(jobs))
	}
}
