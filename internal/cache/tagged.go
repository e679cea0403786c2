// Package cache stores rendered views in Redis under invalidation tags.
// Every cached key is added to one Redis set per tag; invalidating a tag
// deletes all keys in its set.
package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tagged is a Redis-backed view cache.  A nil *Tagged is a valid, disabled
// cache: lookups miss and invalidation does nothing.
type Tagged struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewTagged returns a cache writing under prefix.  A nil client yields nil.
func NewTagged(rdb *redis.Client, prefix string, ttl time.Duration) *Tagged {
	if rdb == nil {
		return nil
	}
	if prefix == "" {
		prefix = "cache"
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Tagged{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (t *Tagged) entryKey(key string) string { return t.prefix + ":entry:" + key }
func (t *Tagged) tagKey(tag string) string   { return t.prefix + ":tag:" + tag }

// Get returns the cached value for key.  The bool is false on a miss.
func (t *Tagged) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if t == nil {
		return nil, false, nil
	}
	b, err := t.rdb.Get(ctx, t.entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set stores val under key and registers key with every tag.
func (t *Tagged) Set(ctx context.Context, key string, val []byte, tags []string) error {
	if t == nil {
		return nil
	}
	ek := t.entryKey(key)
	_, err := t.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, ek, val, t.ttl)
		for _, tag := range tags {
			tk := t.tagKey(tag)
			p.SAdd(ctx, tk, ek)
			p.Expire(ctx, tk, t.ttl)
		}
		return nil
	})
	return err
}

// Invalidate drops every entry registered under any of tags.
func (t *Tagged) Invalidate(ctx context.Context, tags ...string) error {
	if t == nil || len(tags) == 0 {
		return nil
	}
	var errs []error
	for _, tag := range tags {
		tk := t.tagKey(tag)
		keys, err := t.rdb.SMembers(ctx, tk).Result()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := t.rdb.Del(ctx, append(keys, tk)...).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CabinTag covers every view derived from one cabin's bookings.
func CabinTag(cabinID uint64) string { return "cabin:" + strconv.FormatUint(cabinID, 10) }

// ReservationsTag covers a guest's reservation list.
func ReservationsTag(guestID uint64) string {
	return "reservations:" + strconv.FormatUint(guestID, 10)
}

// ReservationTag covers the edit view of one booking.
func ReservationTag(bookingID uint64) string {
	return "reservation:" + strconv.FormatUint(bookingID, 10)
}

// ProfileTag covers a guest's profile view.
func ProfileTag(guestID uint64) string { return "profile:" + strconv.FormatUint(guestID, 10) }
