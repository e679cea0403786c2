package selection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each selection as a JSON value under
// <prefix>:<viewer>:<cabinID>.  Entries expire after TTL so abandoned
// selections do not pile up.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns a store bound to rdb.  A non-positive ttl falls
// back to 24 hours.
func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "selection"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(viewer string, cabinID uint64) string {
	return fmt.Sprintf("%s:%s:%d", s.prefix, viewer, cabinID)
}

func (s *RedisStore) Get(ctx context.Context, viewer string, cabinID uint64) (Selection, error) {
	sel := Selection{CabinID: cabinID}
	bs, err := s.rdb.Get(ctx, s.key(viewer, cabinID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return sel, nil
	}
	if err != nil {
		return sel, err
	}
	if err := json.Unmarshal(bs, &sel); err != nil {
		return Selection{CabinID: cabinID}, fmt.Errorf("decode selection: %w", err)
	}
	sel.CabinID = cabinID
	return sel, nil
}

func (s *RedisStore) Set(ctx context.Context, viewer string, sel Selection) error {
	if sel.Range.IsEmpty() {
		return s.Reset(ctx, viewer, sel.CabinID)
	}
	bs, err := json.Marshal(sel)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(viewer, sel.CabinID), bs, s.ttl).Err()
}

func (s *RedisStore) Reset(ctx context.Context, viewer string, cabinID uint64) error {
	return s.rdb.Del(ctx, s.key(viewer, cabinID)).Err()
}
