package entity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Message types accepted on create.
const (
	MessageTypeText  = "text"
	MessageTypeVoice = "voice"
)

// DefaultMessageType is stored when a message is created without a type.
const DefaultMessageType = MessageTypeText

// Message is one turn of a conversation. UserID references users.id and
// SessionID groups the turns of a single conversation.
type Message struct {
	Base

	UserID      int64     `bun:"user_id,notnull" json:"user_id" msgpack:"user_id"`
	SessionID   string    `bun:"session_id,notnull" json:"session_id" msgpack:"session_id"`
	Role        string    `bun:"role,notnull" json:"role" msgpack:"role"`
	Content     string    `bun:"content,notnull" json:"content" msgpack:"content"`
	MessageType string    `bun:"message_type,notnull,default:'text'" json:"message_type" msgpack:"message_type"`
	SentAt      time.Time `bun:"sent_at,notnull" json:"sent_at" msgpack:"sent_at"`
}

var _ bun.BeforeAppendModelHook = (*Message)(nil)

// BeforeAppendModel fills the message defaults on insert and then stamps
// the audit columns.
func (m *Message) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if err := m.Base.BeforeAppendModel(ctx, query); err != nil {
		return err
	}
	if _, ok := query.(*bun.InsertQuery); ok {
		if m.MessageType == "" {
			m.MessageType = DefaultMessageType
		}
		if m.SentAt.IsZero() {
			m.SentAt = m.CreatedAt
		}
	}
	return nil
}

func (m *Message) String() string {
	return fmt.Sprintf("Message(id=%d, user_id=%d, session_id=%q, role=%q, sent_at=%s, message_type=%q)",
		m.ID, m.UserID, m.SessionID, m.Role, m.SentAt.Format(time.RFC3339Nano), m.MessageType)
}

// NewConversationID returns a time ordered identifier for a new conversation.
func NewConversationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
