// Package cache provides the read-through cache used in front of the record
// accessors.
//
// # Services
//
// CacheService has two implementations:
//
//   - NewCacheService: in-process, backed by sturdyc. Concurrent misses on one
//     key share a single fetch.
//   - NewRedisCacheService: shared between processes, backed by the client of
//     a cacheclient.Manager. Values are stored as msgpack, or as JSON when the
//     client config sets DecodeResponses.
//
// New picks one from Config.Backend.
//
//	service, err := cache.New(cfg.MemoryCache, manager)
//	user, err := cache.GetOrFetch(ctx, service, key, func(ctx context.Context) (*entity.User, error) {
//		return load(ctx)
//	})
//
// # Keys
//
// NewDefaultKeySerializer renders namespace::method::arg::arg keys from
// argument values. Functions are rendered by symbol name, so only named
// functions give keys that are stable across processes. Keys longer than
// MaxKeyLength keep their namespace and method and hash the rest, which
// keeps Prefix based invalidation working.
//
// # Redis values
//
// The Redis store decodes into the result type of the fetch function. All
// callers of one key must therefore ask for the same type, and changing the
// cached type needs a new namespace or a flush.
package cache
