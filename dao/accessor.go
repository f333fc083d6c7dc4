package dao

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/goliatone/go-persistence/entity"
	"github.com/goliatone/go-persistence/internal/logging"
	"github.com/goliatone/go-persistence/session"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Accessor implements create, read and delete for one entity type T.
// Mutating calls commit the session on success and roll it back on failure;
// reads never commit.
type Accessor[T any, PT interface {
	*T
	entity.Record
}] struct {
	table    string
	logger   *slog.Logger
	handlers repository.ModelHandlers[PT]
}

// New returns an accessor bound to the entity type T. A nil logger discards
// output.
func New[T any, PT interface {
	*T
	entity.Record
}](logger *slog.Logger) *Accessor[T, PT] {
	table := entity.TableOf((*T)(nil))
	return &Accessor[T, PT]{
		table:  table,
		logger: logging.OrDiscard(logger).With("component", "dao", "table", table),
		handlers: repository.ModelHandlers[PT]{
			NewRecord: func() PT { return PT(new(T)) },
		},
	}
}

// Table returns the table the accessor reads and writes.
func (a *Accessor[T, PT]) Table() string { return a.table }

// Insert stores a new record built from values and commits. Store assigned
// columns (id and timestamps) are filled in on the returned record.
func (a *Accessor[T, PT]) Insert(ctx context.Context, s *session.Session, values T) (*T, error) {
	record := new(T)
	*record = values

	if err := s.Add(PT(record)); err != nil {
		return nil, a.fail(ctx, s, "insert", err)
	}
	if err := s.Commit(ctx); err != nil {
		return nil, a.fail(ctx, s, "insert", err)
	}

	a.logger.DebugContext(ctx, "inserted", "id", PT(record).RecordID())
	return record, nil
}

// InsertMany stores every record in one transaction. Either all of them are
// committed or none is.
func (a *Accessor[T, PT]) InsertMany(ctx context.Context, s *session.Session, values []T) ([]*T, error) {
	if len(values) == 0 {
		return []*T{}, nil
	}

	records := lo.Map(values, func(v T, _ int) *T {
		record := v
		return &record
	})

	for _, record := range records {
		if err := s.Add(PT(record)); err != nil {
			return nil, a.fail(ctx, s, "insert many", err)
		}
	}
	if err := s.Commit(ctx); err != nil {
		return nil, a.fail(ctx, s, "insert many", err)
	}

	a.logger.DebugContext(ctx, "inserted batch", "count", len(records))
	return records, nil
}

// FindByID looks a record up by primary key. A missing row is mo.None, not
// an error.
func (a *Accessor[T, PT]) FindByID(ctx context.Context, s *session.Session, id int64) (mo.Option[*T], error) {
	record := new(T)
	found, err := s.Get(ctx, PT(record), id)
	if err != nil {
		return mo.None[*T](), Classify(err)
	}
	if !found {
		return mo.None[*T](), nil
	}
	return mo.Some(record), nil
}

// Load reads a record by primary key from the store, ignoring what the
// session has already loaded. Shared caches are filled through Load so a
// long lived session cannot publish a row another session has deleted.
func (a *Accessor[T, PT]) Load(ctx context.Context, s *session.Session, id int64) (mo.Option[*T], error) {
	db, err := s.Query(ctx)
	if err != nil {
		return mo.None[*T](), Classify(err)
	}

	record, err := a.repo(s).GetTx(ctx, db, WhereEq("id", id))
	if repository.IsRecordNotFound(err) {
		return mo.None[*T](), nil
	}
	if err != nil {
		return mo.None[*T](), Classify(fmt.Errorf("load %s: %w", a.table, err))
	}
	return mo.Some((*T)(record)), nil
}

// DeleteByID removes the record with the given id and commits. It returns
// the state the record had before deletion, or mo.None if there was no such
// row, in which case the store is left untouched. A record the session still
// knows but another session has already deleted also yields mo.None.
func (a *Accessor[T, PT]) DeleteByID(ctx context.Context, s *session.Session, id int64) (mo.Option[*T], error) {
	record := new(T)
	found, err := s.Get(ctx, PT(record), id)
	if err != nil {
		return mo.None[*T](), a.fail(ctx, s, "delete", err)
	}
	if !found {
		return mo.None[*T](), nil
	}

	if err := s.Delete(PT(record)); err != nil {
		return mo.None[*T](), a.fail(ctx, s, "delete", err)
	}
	if err := s.Commit(ctx); err != nil {
		if errors.Is(err, session.ErrStaleRecord) {
			if rbErr := s.Rollback(ctx); rbErr != nil {
				a.logger.ErrorContext(ctx, "rollback failed", "op", "delete", "error", rbErr)
			}
			a.logger.DebugContext(ctx, "record already deleted", "id", id)
			return mo.None[*T](), nil
		}
		return mo.None[*T](), a.fail(ctx, s, "delete", err)
	}

	a.logger.DebugContext(ctx, "deleted", "id", id)
	return mo.Some(record), nil
}

// List returns the records matching criteria. Unlike the repository default
// of 25 rows, no limit applies unless one of the criteria sets it.
func (a *Accessor[T, PT]) List(ctx context.Context, s *session.Session, criteria ...repository.SelectCriteria) ([]*T, error) {
	db, err := s.Query(ctx)
	if err != nil {
		return nil, Classify(err)
	}

	criteria = append([]repository.SelectCriteria{unlimited}, criteria...)
	records, _, err := a.repo(s).ListTx(ctx, db, criteria...)
	if err != nil {
		return nil, Classify(fmt.Errorf("list %s: %w", a.table, err))
	}
	return lo.Map(records, func(record PT, _ int) *T { return record }), nil
}

// FindOne returns the single record matching criteria. More than one match
// fails with ErrMultipleRows.
func (a *Accessor[T, PT]) FindOne(ctx context.Context, s *session.Session, criteria ...repository.SelectCriteria) (mo.Option[*T], error) {
	records, err := a.List(ctx, s, append(criteria[:len(criteria):len(criteria)], Limit(2))...)
	if err != nil {
		return mo.None[*T](), err
	}

	switch len(records) {
	case 0:
		return mo.None[*T](), nil
	case 1:
		return mo.Some(records[0]), nil
	default:
		a.logger.ErrorContext(ctx, "unique lookup matched several rows")
		return mo.None[*T](), fmt.Errorf("%s: %w", a.table, ErrMultipleRows)
	}
}

// Count returns the number of records matching criteria.
func (a *Accessor[T, PT]) Count(ctx context.Context, s *session.Session, criteria ...repository.SelectCriteria) (int, error) {
	db, err := s.Query(ctx)
	if err != nil {
		return 0, Classify(err)
	}

	n, err := a.repo(s).CountTx(ctx, db, criteria...)
	if err != nil {
		return 0, Classify(fmt.Errorf("count %s: %w", a.table, err))
	}
	return n, nil
}

// repo binds the go-repository-bun query helpers to the session pool. The
// statements themselves run on the handle returned by Session.Query.
func (a *Accessor[T, PT]) repo(s *session.Session) repository.Repository[PT] {
	return repository.NewRepository[PT](s.DB(), a.handlers)
}

// fail rolls the session back and returns the classified error. A failing
// rollback is logged; the original error is still the one returned.
func (a *Accessor[T, PT]) fail(ctx context.Context, s *session.Session, op string, err error) error {
	if rbErr := s.Rollback(ctx); rbErr != nil {
		a.logger.ErrorContext(ctx, "rollback failed", "op", op, "error", rbErr)
	}
	err = Classify(err)
	a.logger.WarnContext(ctx, op+" rolled back", "error", err)
	return err
}
