package repositorycache

import (
	"context"
	"log/slog"

	"github.com/goliatone/go-persistence/cache"
	"github.com/goliatone/go-persistence/dao"
	"github.com/goliatone/go-persistence/entity"
	"github.com/goliatone/go-persistence/session"
	"github.com/samber/mo"
)

const methodFindByExternalID = "FindByExternalID"

// CachedUsers caches the user lookups by id and by external id.
type CachedUsers struct {
	*CachedAccessor[entity.User, *entity.User]
	users *dao.UserAccessor
}

func NewCachedUsers(users *dao.UserAccessor, cacheService cache.CacheService, keySerializer cache.KeySerializer, logger *slog.Logger) *CachedUsers {
	c := &CachedUsers{
		CachedAccessor: New(users.Accessor, cacheService, keySerializer, logger),
		users:          users,
	}
	c.methods = append(c.methods, methodFindByExternalID)
	c.related = func(u *entity.User) []string {
		return []string{c.externalIDKey(u.ExternalID)}
	}
	return c
}

// Create inserts a user and drops the lookups it makes stale.
func (c *CachedUsers) Create(ctx context.Context, s *session.Session, externalID int64, firstName string, username *string) (*entity.User, error) {
	user, err := c.users.Create(ctx, s, externalID, firstName, username)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, c.keysOf(user)...)
	return user, nil
}

// FindByExternalID reads through the cache.
func (c *CachedUsers) FindByExternalID(ctx context.Context, s *session.Session, externalID int64) (mo.Option[*entity.User], error) {
	return c.lookup(ctx, s, c.externalIDKey(externalID), func(ctx context.Context) (mo.Option[*entity.User], error) {
		return c.users.FindByExternalID(ctx, s, externalID)
	})
}

func (c *CachedUsers) externalIDKey(externalID int64) string {
	return c.keySerializer.SerializeKey(methodFindByExternalID, externalID)
}
