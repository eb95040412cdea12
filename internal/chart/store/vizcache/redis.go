// Package vizcache caches visualization payloads in Redis. Keys embed the
// chart revision, so a concurrent edit can never serve a stale payload —
// superseded entries simply age out via TTL.
package vizcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"orgchart/internal/chart/viz"
	id "orgchart/pkg/domain"
)

const keyPrefix = "viz:chart:"

// Redis is a revision-keyed payload cache.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs the cache. A zero ttl defaults to ten minutes.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Redis{client: client, ttl: ttl}
}

func key(chartID id.ChartID, revision int64) string {
	return fmt.Sprintf("%s%s:%d", keyPrefix, chartID, revision)
}

// Get returns the cached payload for (chartID, revision), or ok=false on a
// miss. Decode failures count as misses; the caller rebuilds.
func (c *Redis) Get(ctx context.Context, chartID id.ChartID, revision int64) (*viz.Payload, bool) {
	data, err := c.client.Get(ctx, key(chartID, revision)).Bytes()
	if err != nil {
		return nil, false
	}
	var payload viz.Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, false
	}
	return &payload, true
}

// Put stores the payload. Cache write failures are not surfaced; the next
// request rebuilds.
func (c *Redis) Put(ctx context.Context, chartID id.ChartID, revision int64, payload *viz.Payload) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key(chartID, revision), data, c.ttl).Err()
}

// Health pings the backing Redis so readiness checks can include the cache.
func (c *Redis) Health(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("viz cache ping: %w", err)
	}
	return nil
}
