package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-persistence/cacheclient"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Backend != BackendMemory {
		t.Errorf("expected memory backend, got %q", cfg.Backend)
	}
	if cfg.EarlyRefresh != nil {
		t.Error("expected early refresh to be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestConfig_UnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "memcached"

	if _, err := New(cfg, nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestNew_Memory(t *testing.T) {
	service, err := New(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	calls := 0
	for i := 0; i < 2; i++ {
		v, err := GetOrFetch(ctx, service, "k", func(ctx context.Context) (int, error) {
			calls++
			return 5, nil
		})
		if err != nil || v != 5 {
			t.Fatalf("expected 5, got %v, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("expected one fetch, got %d", calls)
	}
}

func TestNew_RedisRequiresSetup(t *testing.T) {
	srv := miniredis.RunT(t)
	ccfg := cacheclient.DefaultConfig()
	ccfg.URL = "redis://" + srv.Addr() + "/0"
	ccfg.DefaultTTL = time.Minute
	manager := cacheclient.New(ccfg, nil)

	service, err := New(Config{Backend: BackendRedis}, manager)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	fetch := func(ctx context.Context) (string, error) { return "v", nil }

	if _, err := GetOrFetch(ctx, service, "k", fetch); !errors.Is(err, cacheclient.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized before setup, got %v", err)
	}

	if err := manager.Setup(ctx); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	defer manager.Close(ctx)

	v, err := GetOrFetch(ctx, service, "k", fetch)
	if err != nil || v != "v" {
		t.Fatalf("expected v, got %v, %v", v, err)
	}
	if !srv.Exists(ccfg.KeyPrefix + ":k") {
		t.Errorf("expected key to be written under the configured prefix")
	}
}

func TestNewRedisCacheService_NilManager(t *testing.T) {
	if _, err := NewRedisCacheService(nil); err == nil {
		t.Error("expected error for nil manager")
	}
}
