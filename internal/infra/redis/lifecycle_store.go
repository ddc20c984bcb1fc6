package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/triage/internal/core/domain"
	"github.com/vietddude/triage/internal/infra/storage"
)

// LifecycleStore implements storage.LifecycleStore on Redis. Records are
// JSON values keyed by exception ID; a sorted set indexed by SLA deadline
// supports the overdue sweep. Conditional updates use WATCH so a concurrent
// status event loses cleanly instead of overwriting.
type LifecycleStore struct {
	client *Client
}

// NewLifecycleStore creates a Redis-backed lifecycle store.
func NewLifecycleStore(client *Client) *LifecycleStore {
	return &LifecycleStore{client: client}
}

// Get retrieves the lifecycle record for an exception.
func (s *LifecycleStore) Get(
	ctx context.Context,
	exceptionID string,
) (*domain.LifecycleRecord, error) {
	data, err := s.client.rdb.Get(ctx, recordKey(exceptionID)).Bytes()
	if err == redis.Nil {
		return nil, storage.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}

	var rec domain.LifecycleRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt lifecycle record %s: %w", exceptionID, err)
	}
	return &rec, nil
}

// Create stores a new record; fails if one already exists.
func (s *LifecycleStore) Create(ctx context.Context, rec *domain.LifecycleRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal lifecycle record: %w", err)
	}

	ok, err := s.client.rdb.SetNX(ctx, recordKey(rec.ExceptionID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("setnx failed: %w", err)
	}
	if !ok {
		return storage.ErrRecordExists
	}

	if !rec.State.Terminal() {
		err = s.client.rdb.ZAdd(ctx, slaIndexKey, redis.Z{
			Score:  float64(rec.SLADeadline.Unix()),
			Member: rec.ExceptionID,
		}).Err()
		if err != nil {
			return fmt.Errorf("zadd failed: %w", err)
		}
	}
	return nil
}

// Update replaces the record only if its stored state still matches
// expectState.
func (s *LifecycleStore) Update(
	ctx context.Context,
	rec *domain.LifecycleRecord,
	expectState domain.LifecycleState,
) error {
	key := recordKey(rec.ExceptionID)

	txErr := s.client.rdb.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return storage.ErrRecordNotFound
		}
		if err != nil {
			return fmt.Errorf("get failed: %w", err)
		}

		var current domain.LifecycleRecord
		if err := json.Unmarshal(data, &current); err != nil {
			return fmt.Errorf("corrupt lifecycle record %s: %w", rec.ExceptionID, err)
		}
		if current.State != expectState {
			return storage.ErrStateConflict
		}

		updated, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal lifecycle record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			if rec.State.Terminal() {
				pipe.ZRem(ctx, slaIndexKey, rec.ExceptionID)
			} else {
				pipe.ZAdd(ctx, slaIndexKey, redis.Z{
					Score:  float64(rec.SLADeadline.Unix()),
					Member: rec.ExceptionID,
				})
			}
			return nil
		})
		return err
	}, key)

	if txErr == redis.TxFailedErr {
		return storage.ErrStateConflict
	}
	return txErr
}

// ListOverdue returns non-terminal records whose SLA deadline has passed.
func (s *LifecycleStore) ListOverdue(
	ctx context.Context,
	now time.Time,
) ([]*domain.LifecycleRecord, error) {
	ids, err := s.client.rdb.ZRangeByScore(ctx, slaIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.Unix()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore failed: %w", err)
	}

	var overdue []*domain.LifecycleRecord
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err == storage.ErrRecordNotFound {
			// Index entry outlived the record; drop it
			s.client.rdb.ZRem(ctx, slaIndexKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if rec.State.Terminal() {
			continue
		}
		overdue = append(overdue, rec)
	}
	return overdue, nil
}
