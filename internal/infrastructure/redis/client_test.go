package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/nerrad567/rcp-core/internal/infrastructure/config"
)

func TestConnect(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client, err := Connect(config.RedisConfig{Enabled: true, Address: mr.Addr()})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := HealthCheck(context.Background(), client); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	mr.Close()
	if err := HealthCheck(context.Background(), client); err == nil {
		t.Error("HealthCheck() after server stop should fail")
	}
}

func TestConnect_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.RedisConfig
		want error
	}{
		{"disabled", config.RedisConfig{Address: "127.0.0.1:6379"}, ErrDisabled},
		{"unreachable", config.RedisConfig{Enabled: true, Address: "127.0.0.1:1"}, ErrConnectionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Connect(tt.cfg); !errors.Is(err, tt.want) {
				t.Errorf("Connect() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHealthCheck_NilClient(t *testing.T) {
	if err := HealthCheck(context.Background(), nil); !errors.Is(err, ErrDisabled) {
		t.Errorf("HealthCheck(nil) error = %v, want ErrDisabled", err)
	}
}
