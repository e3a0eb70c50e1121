// Package record provides the durable job record store: a key-value
// contract with per-record expiry. Records disappear from Get and Scan
// once their TTL elapses, whether or not they were explicitly deleted.
package record

import (
	"context"
	"time"

	"github.com/SFitz911/sfitz911-avatar-generator/internal/domain"
)

// Store is the job record contract the orchestrator writes through.
// Implementations must make writes visible to subsequent reads from any
// caller; no client-side caching.
type Store interface {
	// Put writes the record and (re)arms its TTL.
	Put(ctx context.Context, job *domain.Job, ttl time.Duration) error
	// Get returns the record or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Job, error)
	// Scan returns all live records, in no particular order.
	Scan(ctx context.Context) ([]*domain.Job, error)
	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, id string) error
	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}
