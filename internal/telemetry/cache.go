package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/nerrad567/rcp-core/internal/rcp"
)

// ErrNotCached is returned by Load for a device with no cached status.
var ErrNotCached = errors.New("telemetry: status not cached")

// DefaultCachePrefix namespaces cache keys.
const DefaultCachePrefix = "rcp:status:"

// StatusCache keeps the last status of every device in Redis so dashboards
// can read it without subscribing to MQTT.
//
// Keys: {prefix}{deviceID} holds the status JSON; {prefix}index is a set of
// cached device ids.
type StatusCache struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	logger Logger
}

// CacheOption configures a StatusCache.
type CacheOption func(*StatusCache)

// WithTTL sets the expiry of cached entries. Zero keeps them.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *StatusCache) {
		c.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) CacheOption {
	return func(c *StatusCache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithCacheLogger sets the logger used by Run.
func WithCacheLogger(logger Logger) CacheOption {
	return func(c *StatusCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewStatusCache creates a cache over an existing client.
func NewStatusCache(client *backend.Client, opts ...CacheOption) *StatusCache {
	c := &StatusCache{
		client: client,
		prefix: DefaultCachePrefix,
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *StatusCache) key(deviceID string) string {
	return c.prefix + deviceID
}

func (c *StatusCache) indexKey() string {
	return c.prefix + "index"
}

// Save stores st as the device's last status.
func (c *StatusCache) Save(ctx context.Context, st rcp.Status) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshalling status: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, c.key(st.ID), data, c.ttl)
	pipe.SAdd(ctx, c.indexKey(), st.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving status to redis: %w", err)
	}
	return nil
}

// Load returns the cached status of a device.
func (c *StatusCache) Load(ctx context.Context, deviceID string) (rcp.Status, error) {
	val, err := c.client.Get(ctx, c.key(deviceID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return rcp.Status{}, fmt.Errorf("%w: %s", ErrNotCached, deviceID)
		}
		return rcp.Status{}, fmt.Errorf("loading status from redis: %w", err)
	}

	var st rcp.Status
	if err := json.Unmarshal(val, &st); err != nil {
		return rcp.Status{}, fmt.Errorf("unmarshalling status: %w", err)
	}
	return st, nil
}

// List returns the ids with a live cache entry, dropping expired ones from
// the index.
func (c *StatusCache) List(ctx context.Context) ([]string, error) {
	ids, err := c.client.SMembers(ctx, c.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("listing cached statuses: %w", err)
	}

	live := ids[:0]
	for _, id := range ids {
		n, err := c.client.Exists(ctx, c.key(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("checking cached status: %w", err)
		}
		if n == 0 {
			c.client.SRem(ctx, c.indexKey(), id)
			continue
		}
		live = append(live, id)
	}
	return live, nil
}

// Delete removes a device from the cache.
func (c *StatusCache) Delete(ctx context.Context, deviceID string) error {
	pipe := c.client.Pipeline()
	pipe.Del(ctx, c.key(deviceID))
	pipe.SRem(ctx, c.indexKey(), deviceID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting cached status: %w", err)
	}
	return nil
}

// Run saves every snapshot from updates. Failures are logged and skipped.
func (c *StatusCache) Run(ctx context.Context, updates <-chan rcp.Status) {
	consume(ctx, updates, func(st rcp.Status) {
		if err := c.Save(ctx, st); err != nil {
			c.logger.Warn("status cache write failed", "device_id", st.ID, "error", err)
		}
	})
}
