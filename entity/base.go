package entity

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Record is implemented by every persisted entity through the embedded Base.
type Record interface {
	RecordID() int64
	Timestamps() (createdAt, updatedAt time.Time)
}

// Base carries the identity and audit columns shared by all entities.
// ID is assigned by the store on insert and is never reused.
type Base struct {
	ID        int64     `bun:"id,pk,autoincrement" json:"id" msgpack:"id"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at" msgpack:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at" msgpack:"updated_at"`
}

var _ bun.BeforeAppendModelHook = (*Base)(nil)

// RecordID returns the store assigned identity, zero before insert.
func (b *Base) RecordID() int64 { return b.ID }

// Timestamps returns the audit timestamps.
func (b *Base) Timestamps() (time.Time, time.Time) { return b.CreatedAt, b.UpdatedAt }

// BeforeAppendModel stamps audit columns. Inserts set both timestamps to the
// same instant; updates refresh UpdatedAt and never let it fall behind
// CreatedAt.
func (b *Base) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		if b.CreatedAt.IsZero() {
			b.CreatedAt = Now()
		}
		b.UpdatedAt = b.CreatedAt
	case *bun.UpdateQuery:
		b.UpdatedAt = Now()
		if b.UpdatedAt.Before(b.CreatedAt) {
			b.UpdatedAt = b.CreatedAt
		}
	}
	return nil
}

// Now is the clock used for audit columns. Values are UTC with microsecond
// precision so they survive a round trip through sqlite and postgres.
var Now = func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
