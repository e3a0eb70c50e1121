package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/SFitz911/sfitz911-avatar-generator/internal/domain"
)

// Key naming: all records live under "avatar:job:{id}" so a single SCAN
// pattern enumerates them without colliding with other tenants of the
// same Redis database.
const keyPrefix = "avatar:job:"

func jobKey(id string) string { return keyPrefix + id }

var _ Store = (*RedisStore)(nil)

// RedisStore persists job records as JSON strings with a native Redis TTL.
// The caller owns the client lifecycle.
type RedisStore struct {
	client goredis.Cmdable
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client goredis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, job *domain.Job, ttl time.Duration) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("record: marshal job %s: %w", job.ID, err)
	}
	if err := s.client.Set(ctx, jobKey(job.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: record: put %s: %v", domain.ErrTransient, job.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	data, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: record: get %s: %v", domain.ErrTransient, id, err)
	}
	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("record: decode job %s: %w", id, err)
	}
	return &job, nil
}

func (s *RedisStore) Scan(ctx context.Context) ([]*domain.Job, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: record: scan: %v", domain.ErrTransient, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: record: scan fetch: %v", domain.ErrTransient, err)
	}
	jobs := make([]*domain.Job, 0, len(values))
	for _, v := range values {
		// Keys can expire between SCAN and MGET.
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var job domain.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, jobKey(id)).Err(); err != nil {
		return fmt.Errorf("%w: record: delete %s: %v", domain.ErrTransient, id, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: record: ping: %v", domain.ErrTransient, err)
	}
	return nil
}
