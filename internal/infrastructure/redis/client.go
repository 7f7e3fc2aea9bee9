package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/nerrad567/rcp-core/internal/infrastructure/config"
)

const defaultPingTimeout = 5 * time.Second

var (
	// ErrDisabled indicates the Redis cache is disabled in config.
	ErrDisabled = errors.New("redis: disabled in configuration")

	// ErrConnectionFailed indicates the initial ping failed.
	ErrConnectionFailed = errors.New("redis: connection failed")
)

// Connect opens a client for the configured server and verifies it with a
// ping. The returned client is closed by the caller.
func Connect(cfg config.RedisConfig) (*backend.Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := NewClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return client, nil
}

// NewClient builds a client without contacting the server.
func NewClient(cfg config.RedisConfig) *backend.Client {
	return backend.NewClient(&backend.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// HealthCheck pings the server.
func HealthCheck(ctx context.Context, client *backend.Client) error {
	if client == nil {
		return ErrDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
