// Package repositorycache adds a read-through cache in front of the dao
// accessors.
//
// # Usage
//
//	users := repositorycache.NewCachedUsers(dao.NewUserAccessor(logger), service, nil, logger)
//
//	err := session.Scope(ctx, factory, func(ctx context.Context, s *session.Session) error {
//		found, err := users.FindByExternalID(ctx, s, 42)
//		...
//	})
//
// # Cached and pass-through operations
//
// FindByID and, on CachedUsers, FindByExternalID are cached. Absent records
// are cached as well. Insert, InsertMany, Create and DeleteByID go to the
// accessor and, after they commit, drop the keys of every lookup that
// resolves to the written record. Everything else is reached through
// Uncached.
//
// A failed invalidation is logged and the write result is still returned,
// since the write itself has committed.
//
// # Consistency
//
// Lookups run in the caller's session but the cached value is shared by all
// sessions. Writes made outside the decorators, or through a session that
// is later rolled back, are not seen until the entry expires or Invalidate
// or Purge is called. Invalidate drops the keys this process populated;
// Purge drops every key of the accessor namespace in the store.
//
// Hits return copies, so callers may modify the records they get back.
package repositorycache
