package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-fulfillment/pkg/redis"
)

// RedisDeduplicator shares processed event ids across instances through Redis keys
// that expire after ttl.
type RedisDeduplicator struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewRedisDeduplicator(store redis.IdempotencyStore, ttl time.Duration, scope string) (*RedisDeduplicator, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &RedisDeduplicator{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

func (g *RedisDeduplicator) HasProcessed(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errEventIDRequired
	}
	ok, err := g.store.Exists(ctx, g.store.IdempotencyKey(g.scope, eventID))
	if err != nil {
		return false, fmt.Errorf("read idempotency key: %w", err)
	}
	return ok, nil
}

func (g *RedisDeduplicator) MarkProcessed(ctx context.Context, eventID string) error {
	_, err := g.CheckAndMark(ctx, eventID)
	return err
}

func (g *RedisDeduplicator) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errEventIDRequired
	}
	key := g.store.IdempotencyKey(g.scope, eventID)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

func (g *RedisDeduplicator) Forget(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errEventIDRequired
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(g.scope, eventID))
}
