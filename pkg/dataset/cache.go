package dataset

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/1F47E/geo-media-map/pkg/models"
	"github.com/redis/go-redis/v9"
)

// Cached serves snapshots from redis and falls back to Source on a miss.
// Cache failures are logged and never fail the load.
type Cached struct {
	Source Provider
	Client *redis.Client
	Key    string
	TTL    time.Duration
	Logger *slog.Logger
}

func (c *Cached) log() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Cached) Load(ctx context.Context) ([]models.MediaPoint, error) {
	if c.Client == nil {
		return c.Source.Load(ctx)
	}
	if s, _ := c.Client.Get(ctx, c.Key).Result(); s != "" {
		var points []models.MediaPoint
		if err := json.Unmarshal([]byte(s), &points); err == nil {
			c.log().Debug("dataset_cache_hit", "key", c.Key, "points", len(points))
			return points, nil
		}
	}

	points, err := c.Source.Load(ctx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(points); err == nil {
		if err := c.Client.Set(ctx, c.Key, string(b), c.TTL).Err(); err != nil {
			c.log().Warn("dataset_cache_store_failed", "key", c.Key, "error", err)
		}
	}
	return points, nil
}

// Invalidate drops the cached snapshot
func (c *Cached) Invalidate(ctx context.Context) error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Del(ctx, c.Key).Err()
}
