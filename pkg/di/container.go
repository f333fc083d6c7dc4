package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/goliatone/go-persistence/cache"
	"github.com/goliatone/go-persistence/cacheclient"
	"github.com/goliatone/go-persistence/config"
	"github.com/goliatone/go-persistence/dao"
	"github.com/goliatone/go-persistence/entity"
	"github.com/goliatone/go-persistence/internal/logging"
	"github.com/goliatone/go-persistence/repositorycache"
	"github.com/goliatone/go-persistence/session"
)

// Container owns the long lived components of the persistence layer: the
// session factory, the cache client and the cache service, plus the
// accessors built on them.
type Container struct {
	config       config.Config
	logger       *slog.Logger
	factory      *session.Factory
	cacheClient  *cacheclient.Manager
	cacheService cache.CacheService
	users        *repositorycache.CachedUsers
	messages     *dao.MessageAccessor
}

// NewContainer opens the store pool and builds the cache service selected by
// cfg.MemoryCache.Backend. For the Redis backend the cache client is set up
// here and installed as cacheclient.Default. On error everything opened so
// far is released.
func NewContainer(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Container, error) {
	logger = logging.OrDiscard(logger)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	factory, err := session.NewFactory(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	client := cacheclient.New(cfg.Cache, logger)
	if cfg.MemoryCache.Backend == cache.BackendRedis {
		if err := client.Setup(ctx); err != nil {
			_ = factory.Close()
			return nil, fmt.Errorf("cache client: %w", err)
		}
		cacheclient.SetDefault(client)
	}

	service, err := cache.New(cfg.MemoryCache, client)
	if err != nil {
		_ = client.Close(ctx)
		_ = factory.Close()
		return nil, err
	}

	return &Container{
		config:       cfg,
		logger:       logger,
		factory:      factory,
		cacheClient:  client,
		cacheService: service,
		users:        repositorycache.NewCachedUsers(dao.NewUserAccessor(logger), service, nil, logger),
		messages:     dao.NewMessageAccessor(logger),
	}, nil
}

// NewContainerWithDefaults builds a container from config.Default.
func NewContainerWithDefaults(ctx context.Context, logger *slog.Logger) (*Container, error) {
	return NewContainer(ctx, config.Default(), logger)
}

// Factory returns the session factory.
func (c *Container) Factory() *session.Factory { return c.factory }

// CacheClient returns the cache client manager. It is only set up when the
// Redis backend is configured.
func (c *Container) CacheClient() *cacheclient.Manager { return c.cacheClient }

// CacheService returns the shared cache service.
func (c *Container) CacheService() cache.CacheService { return c.cacheService }

// Users returns the cached user accessor.
func (c *Container) Users() *repositorycache.CachedUsers { return c.users }

// Messages returns the message accessor. Message queries are not cached.
func (c *Container) Messages() *dao.MessageAccessor { return c.messages }

// Config returns a copy of the configuration the container was built from.
func (c *Container) Config() config.Config { return c.config }

func (c *Container) Logger() *slog.Logger { return c.logger }

// Close releases the cache client and the store pool. It is safe to call
// more than once.
func (c *Container) Close(ctx context.Context) error {
	if cacheclient.Default() == c.cacheClient {
		cacheclient.SetDefault(nil)
	}
	return errors.Join(c.cacheClient.Close(ctx), c.factory.Close())
}

// NewCachedAccessor wraps an accessor for another entity type with the
// container's cache service. Keys are namespaced by the accessor table.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: NewCachedAccessor(container, dao.New[entity.Message](logger))
func NewCachedAccessor[T any, PT interface {
	*T
	entity.Record
}](c *Container, base *dao.Accessor[T, PT]) *repositorycache.CachedAccessor[T, PT] {
	return repositorycache.New(base, c.cacheService, nil, c.logger)
}
