package dao

import (
	"context"
	"log/slog"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-persistence/entity"
	"github.com/goliatone/go-persistence/session"
)

// DefaultRecentLimit is the page size of Recent when no limit is given.
const DefaultRecentLimit = 30

// NewMessage holds the caller supplied fields of a message. MessageType
// defaults to entity.DefaultMessageType and SentAt to the insert time.
type NewMessage struct {
	UserID      int64
	SessionID   string
	Role        string
	Content     string
	MessageType string
	SentAt      time.Time
}

// Validate requires the owning user, the conversation and the role, and
// restricts MessageType to the known types. An empty type is allowed and
// gets the default.
func (m NewMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.UserID, validation.Required),
		validation.Field(&m.SessionID, validation.Required),
		validation.Field(&m.Role, validation.Required),
		validation.Field(&m.MessageType, validation.In(entity.MessageTypeText, entity.MessageTypeVoice)),
	)
}

// MessageAccessor adds conversation queries to the generic accessor.
type MessageAccessor struct {
	*Accessor[entity.Message, *entity.Message]
}

func NewMessageAccessor(logger *slog.Logger) *MessageAccessor {
	return &MessageAccessor{Accessor: New[entity.Message](logger)}
}

// Create validates and inserts one message. Invalid input fails with
// ErrInvalidInput before the store is touched.
func (a *MessageAccessor) Create(ctx context.Context, s *session.Session, m NewMessage) (*entity.Message, error) {
	if err := invalid(m.Validate(), "invalid message"); err != nil {
		return nil, err
	}
	return a.Insert(ctx, s, entity.Message{
		UserID:      m.UserID,
		SessionID:   m.SessionID,
		Role:        m.Role,
		Content:     m.Content,
		MessageType: m.MessageType,
		SentAt:      m.SentAt,
	})
}

// Recent returns the last limit messages of a conversation, oldest first.
// limit <= 0 uses DefaultRecentLimit.
func (a *MessageAccessor) Recent(ctx context.Context, s *session.Session, sessionID string, limit int) ([]*entity.Message, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	// newest first so the limit keeps the tail of the conversation
	messages, err := a.List(ctx, s,
		WhereEq("session_id", sessionID),
		OrderDesc("sent_at"),
		OrderDesc("id"),
		Limit(limit),
	)
	if err != nil {
		return nil, err
	}

	slices.Reverse(messages)
	return messages, nil
}

// ByUser returns every message of a user in send order.
func (a *MessageAccessor) ByUser(ctx context.Context, s *session.Session, userID int64) ([]*entity.Message, error) {
	return a.List(ctx, s, WhereEq("user_id", userID), OrderAsc("sent_at"), OrderAsc("id"))
}

// BySession returns every message of a conversation in send order.
func (a *MessageAccessor) BySession(ctx context.Context, s *session.Session, sessionID string) ([]*entity.Message, error) {
	return a.List(ctx, s, WhereEq("session_id", sessionID), OrderAsc("sent_at"), OrderAsc("id"))
}
