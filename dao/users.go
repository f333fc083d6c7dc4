package dao

import (
	"context"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-persistence/entity"
	"github.com/goliatone/go-persistence/session"
	"github.com/samber/mo"
)

// UserAccessor adds user specific queries to the generic accessor.
type UserAccessor struct {
	*Accessor[entity.User, *entity.User]
}

func NewUserAccessor(logger *slog.Logger) *UserAccessor {
	return &UserAccessor{Accessor: New[entity.User](logger)}
}

// NewUser holds the caller supplied fields of a user.
type NewUser struct {
	ExternalID int64
	FirstName  string
	Username   *string
}

func (u NewUser) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.ExternalID, validation.Required),
		validation.Field(&u.FirstName, validation.Required),
	)
}

// Create validates and inserts a user. username may be nil. Invalid input
// fails with ErrInvalidInput before the store is touched.
func (a *UserAccessor) Create(ctx context.Context, s *session.Session, externalID int64, firstName string, username *string) (*entity.User, error) {
	u := NewUser{ExternalID: externalID, FirstName: firstName, Username: username}
	if err := invalid(u.Validate(), "invalid user"); err != nil {
		return nil, err
	}
	return a.Insert(ctx, s, entity.User{
		ExternalID: u.ExternalID,
		FirstName:  u.FirstName,
		Username:   u.Username,
	})
}

// FindByExternalID looks a user up by the messenger side identifier.
func (a *UserAccessor) FindByExternalID(ctx context.Context, s *session.Session, externalID int64) (mo.Option[*entity.User], error) {
	return a.FindOne(ctx, s, WhereEq("external_id", externalID))
}
