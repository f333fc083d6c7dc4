package repositorycache

import (
	"context"
	"log/slog"

	"github.com/goliatone/go-persistence/cache"
	"github.com/goliatone/go-persistence/dao"
	"github.com/goliatone/go-persistence/entity"
	"github.com/goliatone/go-persistence/internal/logging"
	"github.com/goliatone/go-persistence/session"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

const methodFindByID = "FindByID"

// CachedAccessor decorates a dao.Accessor with a read-through cache for
// FindByID. Writes go straight to the accessor and drop the keys they make
// stale once they have committed.
type CachedAccessor[T any, PT interface {
	*T
	entity.Record
}] struct {
	base          *dao.Accessor[T, PT]
	cache         cache.CacheService
	keySerializer cache.KeySerializer
	keyRegistry   *xsync.MapOf[string, struct{}]
	logger        *slog.Logger

	// related returns the keys of other lookups that resolve to record.
	related func(record *T) []string
	// methods lists every cached method, for Purge.
	methods []string
}

// New wraps base. A nil keySerializer uses the default one namespaced by the
// accessor table.
func New[T any, PT interface {
	*T
	entity.Record
}](base *dao.Accessor[T, PT], cacheService cache.CacheService, keySerializer cache.KeySerializer, logger *slog.Logger) *CachedAccessor[T, PT] {
	if keySerializer == nil {
		keySerializer = cache.NewDefaultKeySerializer(base.Table())
	}
	return &CachedAccessor[T, PT]{
		base:          base,
		cache:         cacheService,
		keySerializer: keySerializer,
		keyRegistry:   xsync.NewMapOf[string, struct{}](),
		logger:        logging.OrDiscard(logger).With("component", "repositorycache", "table", base.Table()),
		methods:       []string{methodFindByID},
	}
}

// Uncached returns the wrapped accessor.
func (c *CachedAccessor[T, PT]) Uncached() *dao.Accessor[T, PT] { return c.base }

// FindByID reads through the cache. Misses are filled from the store, not
// from what the session has loaded before. Absent records are cached too,
// and are dropped when a record with that id is inserted. Hits return a copy
// of the cached record.
func (c *CachedAccessor[T, PT]) FindByID(ctx context.Context, s *session.Session, id int64) (mo.Option[*T], error) {
	key := c.keySerializer.SerializeKey(methodFindByID, id)
	return c.lookup(ctx, s, key, func(ctx context.Context) (mo.Option[*T], error) {
		return c.base.Load(ctx, s, id)
	})
}

// Insert passes through and drops the keys the new record makes stale.
func (c *CachedAccessor[T, PT]) Insert(ctx context.Context, s *session.Session, values T) (*T, error) {
	record, err := c.base.Insert(ctx, s, values)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, c.keysOf(record)...)
	return record, nil
}

// InsertMany passes through and drops the keys of every inserted record.
func (c *CachedAccessor[T, PT]) InsertMany(ctx context.Context, s *session.Session, values []T) ([]*T, error) {
	records, err := c.base.InsertMany(ctx, s, values)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, lo.FlatMap(records, func(record *T, _ int) []string {
		return c.keysOf(record)
	})...)
	return records, nil
}

// DeleteByID passes through and drops the keys of the deleted record.
func (c *CachedAccessor[T, PT]) DeleteByID(ctx context.Context, s *session.Session, id int64) (mo.Option[*T], error) {
	deleted, err := c.base.DeleteByID(ctx, s, id)
	if err != nil {
		return deleted, err
	}
	keys := []string{c.keySerializer.SerializeKey(methodFindByID, id)}
	if record, ok := deleted.Get(); ok {
		keys = c.keysOf(record)
	}
	c.invalidate(ctx, keys...)
	return deleted, nil
}

// Invalidate drops every key this decorator has populated.
func (c *CachedAccessor[T, PT]) Invalidate(ctx context.Context) error {
	keys := make([]string, 0, c.keyRegistry.Size())
	c.keyRegistry.Range(func(key string, _ struct{}) bool {
		keys = append(keys, key)
		return true
	})
	if err := c.cache.InvalidateKeys(ctx, keys); err != nil {
		return err
	}
	for _, key := range keys {
		c.keyRegistry.Delete(key)
	}
	return nil
}

// Purge drops every cached lookup of this accessor, including keys written
// by other processes sharing the store.
func (c *CachedAccessor[T, PT]) Purge(ctx context.Context) error {
	for _, method := range c.methods {
		if err := c.cache.DeleteByPrefix(ctx, c.keySerializer.Prefix(method)); err != nil {
			return err
		}
	}
	c.keyRegistry.Clear()
	return nil
}

// Tracked reports how many keys this decorator has populated and not yet
// dropped.
func (c *CachedAccessor[T, PT]) Tracked() int { return c.keyRegistry.Size() }

// lookup runs fetch behind key. The store holds *T with nil for absent.
// A session with uncommitted writes reads past the cache so they are never
// shared.
func (c *CachedAccessor[T, PT]) lookup(ctx context.Context, s *session.Session, key string, fetch func(context.Context) (mo.Option[*T], error)) (mo.Option[*T], error) {
	if s.InTransaction() {
		c.logger.DebugContext(ctx, "cache bypassed", "key", key, "session_id", s.ID())
		return fetch(ctx)
	}

	c.keyRegistry.Store(key, struct{}{})

	record, err := cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) (*T, error) {
		found, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return found.OrEmpty(), nil
	})
	if err != nil {
		c.keyRegistry.Delete(key)
		return mo.None[*T](), err
	}
	if record == nil {
		return mo.None[*T](), nil
	}

	clone := *record
	return mo.Some(&clone), nil
}

func (c *CachedAccessor[T, PT]) keysOf(record *T) []string {
	keys := []string{c.keySerializer.SerializeKey(methodFindByID, PT(record).RecordID())}
	if c.related != nil {
		keys = append(keys, c.related(record)...)
	}
	return keys
}

// invalidate drops keys after a committed write. The write already
// succeeded, so a failing store is logged and not returned.
func (c *CachedAccessor[T, PT]) invalidate(ctx context.Context, keys ...string) {
	keys = lo.Uniq(keys)
	if len(keys) == 0 {
		return
	}
	if err := c.cache.InvalidateKeys(ctx, keys); err != nil {
		c.logger.ErrorContext(ctx, "cache invalidation failed", "keys", keys, "error", err)
		return
	}
	for _, key := range keys {
		c.keyRegistry.Delete(key)
	}
}
