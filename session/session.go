package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/goliatone/go-persistence/entity"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type identityKey struct {
	table string
	id    int64
}

// Session is a single-owner handle on one leased connection. Writes are
// staged with Add and Delete, sent to the store by Flush, and made durable
// by Commit. The transaction starts with the first flushed write; reads
// issued before that run in autocommit mode and hold no locks between
// statements.
//
// Sessions must not be shared between goroutines; open one per unit of work.
type Session struct {
	id      string
	factory *Factory
	conn    bun.Conn
	logger  *slog.Logger

	tx   bun.Tx
	inTx bool

	pending  []any
	deleted  []any
	identity map[identityKey]any

	closed atomic.Bool
}

func newSession(f *Factory, conn bun.Conn) *Session {
	id := uuid.NewString()
	s := &Session{
		id:       id,
		factory:  f,
		conn:     conn,
		logger:   f.logger.With("session_id", id),
		identity: make(map[identityKey]any),
	}
	s.logger.Debug("session opened")
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Closed reports whether Close has been called.
func (s *Session) Closed() bool { return s.closed.Load() }

// Add stages records for insertion on the next flush.
func (s *Session) Add(records ...any) error {
	if err := s.check(); err != nil {
		return err
	}
	s.pending = append(s.pending, records...)
	return nil
}

// Delete stages a loaded record for deletion on the next flush.
func (s *Session) Delete(record any) error {
	if err := s.check(); err != nil {
		return err
	}
	s.deleted = append(s.deleted, record)
	return nil
}

// Flush sends staged inserts, then staged deletes, inside the session
// transaction. Inserted records receive their store assigned columns.
func (s *Session) Flush(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.flush(ctx)
}

func (s *Session) flush(ctx context.Context) error {
	if len(s.pending) == 0 && len(s.deleted) == 0 {
		return nil
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}

	pending, deleted := s.pending, s.deleted
	s.pending, s.deleted = nil, nil

	for _, record := range pending {
		if _, err := tx.NewInsert().Model(record).Returning("*").Exec(ctx); err != nil {
			return fmt.Errorf("insert into %s: %w", entity.TableOf(record), err)
		}
		s.remember(record)
	}

	for _, record := range deleted {
		res, err := tx.NewDelete().Model(record).WherePK().Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete from %s: %w", entity.TableOf(record), err)
		}
		s.forget(record)
		if err := repository.SQLExpectedCount(res, 1); err != nil {
			return fmt.Errorf("delete from %s: %w: %w", entity.TableOf(record), ErrStaleRecord, err)
		}
	}

	return nil
}

// Query returns the handle to build custom statements on: the open
// transaction, or the session connection when nothing has been written yet.
// Staged writes are flushed first when Autoflush is enabled.
func (s *Session) Query(ctx context.Context) (bun.IDB, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if s.factory.cfg.Autoflush {
		if err := s.flush(ctx); err != nil {
			return nil, err
		}
	}
	if s.inTx {
		return s.tx, nil
	}
	return s.conn, nil
}

// InTransaction reports whether the session holds flushed writes that are
// not committed yet.
func (s *Session) InTransaction() bool { return s.inTx }

// DB returns the pool the session was opened from.
func (s *Session) DB() *bun.DB { return s.factory.db }

// Get loads the record with the given primary key into dst, which must be a
// pointer to an entity struct. Records already known to the session are
// served from its identity map. A missing row yields false and no error.
func (s *Session) Get(ctx context.Context, dst any, id int64) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}

	key := identityKey{table: entity.TableOf(dst), id: id}
	if known, ok := s.identity[key]; ok && copyRecord(dst, known) {
		return true, nil
	}

	return s.load(ctx, dst, id)
}

// Load reads the record with the given primary key from the store into dst,
// ignoring the identity map, and refreshes the map with the result. A
// missing row yields false and no error.
func (s *Session) Load(ctx context.Context, dst any, id int64) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	return s.load(ctx, dst, id)
}

func (s *Session) load(ctx context.Context, dst any, id int64) (bool, error) {
	db, err := s.Query(ctx)
	if err != nil {
		return false, err
	}

	err = db.NewSelect().Model(dst).Where("? = ?", bun.Ident("id"), id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		delete(s.identity, identityKey{table: entity.TableOf(dst), id: id})
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.remember(dst)
	return true, nil
}

// Commit flushes staged writes and commits the transaction. With
// ExpireOnCommit the identity map is cleared afterwards.
func (s *Session) Commit(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := s.flush(ctx); err != nil {
		return err
	}

	if s.inTx {
		s.inTx = false
		if err := s.tx.Commit(); err != nil {
			s.expire()
			return fmt.Errorf("commit: %w", err)
		}
	}

	if s.factory.cfg.ExpireOnCommit {
		s.expire()
	}
	return nil
}

// Rollback discards staged writes, rolls the transaction back and clears
// the identity map.
func (s *Session) Rollback(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.rollback()
}

func (s *Session) rollback() error {
	s.pending, s.deleted = nil, nil
	s.expire()

	if !s.inTx {
		return nil
	}
	s.inTx = false
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Close rolls back any open transaction and returns the connection to the
// pool. Only the first call has an effect.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	rbErr := s.rollback()
	connErr := s.conn.Close()
	if errors.Is(connErr, sql.ErrConnDone) {
		connErr = nil
	}

	s.logger.Debug("session closed")
	return errors.Join(rbErr, connErr)
}

func (s *Session) check() error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) begin(ctx context.Context) (bun.Tx, error) {
	if s.inTx {
		return s.tx, nil
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return bun.Tx{}, fmt.Errorf("begin: %w", err)
	}
	s.tx, s.inTx = tx, true
	return tx, nil
}

func (s *Session) remember(record any) {
	r, ok := record.(entity.Record)
	if !ok || r.RecordID() == 0 {
		return
	}
	s.identity[identityKey{table: entity.TableOf(record), id: r.RecordID()}] = record
}

func (s *Session) forget(record any) {
	r, ok := record.(entity.Record)
	if !ok {
		return
	}
	delete(s.identity, identityKey{table: entity.TableOf(record), id: r.RecordID()})
}

func (s *Session) expire() {
	clear(s.identity)
}

// copyRecord copies *src into *dst when both point at the same type.
func copyRecord(dst, src any) bool {
	dv, sv := reflect.ValueOf(dst), reflect.ValueOf(src)
	if dv.Kind() != reflect.Ptr || sv.Kind() != reflect.Ptr || dv.IsNil() || sv.IsNil() {
		return false
	}
	if dv.Type() != sv.Type() {
		return false
	}
	if dv.Pointer() != sv.Pointer() {
		dv.Elem().Set(sv.Elem())
	}
	return true
}
