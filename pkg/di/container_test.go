package di

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-persistence/cache"
	"github.com/goliatone/go-persistence/cacheclient"
	"github.com/goliatone/go-persistence/config"
	"github.com/goliatone/go-persistence/dao"
	"github.com/goliatone/go-persistence/entity"
	"github.com/goliatone/go-persistence/session"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.URL = "sqlite:///" + filepath.Join(t.TempDir(), "di.db")
	return cfg
}

func newTestContainer(t *testing.T, cfg config.Config) *Container {
	t.Helper()
	ctx := context.Background()

	container, err := NewContainer(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	t.Cleanup(func() { _ = container.Close(ctx) })

	if err := container.Factory().CreateSchema(ctx); err != nil {
		t.Fatalf("CreateSchema() failed: %v", err)
	}
	return container
}

func TestNewContainer(t *testing.T) {
	cfg := testConfig(t)
	container := newTestContainer(t, cfg)

	if container.Factory() == nil {
		t.Error("Container should have a session factory")
	}
	if container.CacheService() == nil {
		t.Error("Container should have a non-nil cache service")
	}
	if container.Users() == nil || container.Messages() == nil {
		t.Error("Container should build the accessors")
	}
	if container.Logger() == nil {
		t.Error("Container should fall back to a discarding logger")
	}

	if got := container.Config().Database.URL; got != cfg.Database.URL {
		t.Errorf("Expected database URL %q, got %q", cfg.Database.URL, got)
	}
	if state := container.CacheClient().State(); state != cacheclient.StateUninitialized {
		t.Errorf("memory backend should leave the cache client uninitialized, got %s", state)
	}
}

func TestNewContainerWithDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := os.Mkdir("data", 0o755); err != nil {
		t.Fatalf("failed to create data dir: %v", err)
	}

	ctx := context.Background()
	container, err := NewContainerWithDefaults(ctx, nil)
	if err != nil {
		t.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close(ctx)

	if container.Config().MemoryCache.Backend != cache.BackendMemory {
		t.Errorf("Expected memory backend by default, got %q", container.Config().MemoryCache.Backend)
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.URL = "mysql://localhost/db"

	_, err := NewContainer(context.Background(), cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "config database") {
		t.Errorf("Expected a database config error, got %v", err)
	}
}

func TestNewContainer_RedisBackend(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.MemoryCache.Backend = cache.BackendRedis
	cfg.Cache.URL = "redis://" + srv.Addr() + "/0"

	previous := cacheclient.SetDefault(nil)
	t.Cleanup(func() { cacheclient.SetDefault(previous) })

	container := newTestContainer(t, cfg)
	ctx := context.Background()

	if state := container.CacheClient().State(); state != cacheclient.StateReady {
		t.Fatalf("Expected ready cache client, got %s", state)
	}
	if cacheclient.Default() != container.CacheClient() {
		t.Error("Container should install its cache client as the default")
	}

	err := session.Scope(ctx, container.Factory(), func(ctx context.Context, s *session.Session) error {
		user, err := container.Users().Create(ctx, s, 42, "Ana", nil)
		if err != nil {
			return err
		}
		_, err = container.Users().FindByID(ctx, s, user.ID)
		return err
	})
	if err != nil {
		t.Fatalf("Scope() failed: %v", err)
	}

	keys := srv.Keys()
	if len(keys) != 1 {
		t.Fatalf("Expected one cached key, got %v", keys)
	}

	if err := container.Close(ctx); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if state := container.CacheClient().State(); state != cacheclient.StateClosed {
		t.Errorf("Expected closed cache client, got %s", state)
	}
	if err := container.Close(ctx); err != nil {
		t.Errorf("second Close() should be a no-op, got %v", err)
	}
}

func TestNewContainer_RedisUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	cfg := testConfig(t)
	cfg.MemoryCache.Backend = cache.BackendRedis
	cfg.Cache.URL = "redis://" + addr + "/0"

	_, err := NewContainer(context.Background(), cfg, nil)
	if !errors.Is(err, cacheclient.ErrConnectivity) {
		t.Errorf("Expected ErrConnectivity, got %v", err)
	}
}

func TestNewCachedAccessor(t *testing.T) {
	container := newTestContainer(t, testConfig(t))
	ctx := context.Background()

	messages := NewCachedAccessor(container, dao.New[entity.Message](nil))
	if messages.Uncached().Table() != entity.TableOf((*entity.Message)(nil)) {
		t.Errorf("unexpected table %q", messages.Uncached().Table())
	}

	err := session.Scope(ctx, container.Factory(), func(ctx context.Context, s *session.Session) error {
		found, err := messages.FindByID(ctx, s, 1)
		if err != nil {
			return err
		}
		if found.IsPresent() {
			t.Error("Expected no message in an empty store")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Scope() failed: %v", err)
	}
	if messages.Tracked() != 1 {
		t.Errorf("Expected one tracked key, got %d", messages.Tracked())
	}
}
