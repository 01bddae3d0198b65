package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotKey = "fx:rates:daily"

// Cache shares the daily snapshot between horizontally scaled instances so
// only one of them has to hit the external feed per refresh.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

type cachedSnapshot struct {
	Reference string            `json:"reference"`
	Rates     map[string]string `json:"rates"`
	FetchedAt time.Time         `json:"fetched_at"`
}

func (c *Cache) Get(ctx context.Context) (*cachedSnapshot, error) {
	raw, err := c.rdb.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	var cached cachedSnapshot
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, fmt.Errorf("Get: decode: %w", err)
	}
	return &cached, nil
}

func (c *Cache) Set(ctx context.Context, cached *cachedSnapshot) error {
	raw, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("Set: encode: %w", err)
	}
	if err := c.rdb.Set(ctx, snapshotKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("Set: %w", err)
	}
	return nil
}
