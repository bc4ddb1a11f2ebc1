// FilePath: internal/cache/cache.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"

	"github.com/opensensemap/osem/internal/models"
)

const latestKeyPrefix = "osem:latest:"

// LatestMeasurements caches the newest measurement per sensor so box detail
// pages do not hit the timeseries database. Misses fall through to the
// repository; failures are logged and treated as misses.
type LatestMeasurements struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewLatestMeasurements(rdb *redis.Client, ttl time.Duration) *LatestMeasurements {
	return &LatestMeasurements{rdb: rdb, ttl: ttl}
}

func (c *LatestMeasurements) Set(ctx context.Context, m *models.Measurement) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode measurement: %w", err)
	}

	if err := c.rdb.Set(ctx, latestKeyPrefix+m.SensorID, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache latest measurement: %w", err)
	}
	return nil
}

// Get returns nil, nil on a cache miss.
func (c *LatestMeasurements) Get(ctx context.Context, sensorID string) (*models.Measurement, error) {
	payload, err := c.rdb.Get(ctx, latestKeyPrefix+sensorID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest measurement cache: %w", err)
	}

	m := &models.Measurement{}
	if err := json.Unmarshal(payload, m); err != nil {
		// A corrupt entry is a miss, not an error.
		nuts.L.Warnf("[Cache] Dropping corrupt latest entry for sensor %s: %v", sensorID, err)
		c.rdb.Del(ctx, latestKeyPrefix+sensorID)
		return nil, nil
	}
	return m, nil
}

func (c *LatestMeasurements) Invalidate(ctx context.Context, sensorIDs ...string) {
	keys := make([]string, len(sensorIDs))
	for i, id := range sensorIDs {
		keys[i] = latestKeyPrefix + id
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		nuts.L.Warnf("[Cache] Failed to invalidate %d latest entries: %v", len(keys), err)
	}
}
