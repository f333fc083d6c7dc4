package session

import (
	"context"
	"net/http"
)

// UnitOfWork is a function run against an injected session.
type UnitOfWork func(ctx context.Context, s *Session) error

// Scope opens a session, runs fn with it and always closes it.
//
// Scope does not commit: accessor calls commit their own work, so a
// successful fn needs nothing beyond the close. When fn returns an error or
// panics the session is rolled back before closing; a failing rollback is
// logged and the original error (or panic) still propagates.
func Scope(ctx context.Context, f *Factory, fn UnitOfWork) error {
	_, err := Run(ctx, f, func(ctx context.Context, s *Session) (struct{}, error) {
		return struct{}{}, fn(ctx, s)
	})
	return err
}

// Run is Scope for units of work that produce a value.
func Run[T any](ctx context.Context, f *Factory, fn func(ctx context.Context, s *Session) (T, error)) (result T, err error) {
	s, err := f.Open(ctx)
	if err != nil {
		return result, err
	}

	defer func() {
		if p := recover(); p != nil {
			s.abort(ctx, "panic in unit of work")
			s.release(ctx)
			panic(p)
		}
		if err != nil {
			s.abort(ctx, "unit of work failed")
		}
		if closeErr := s.release(ctx); err == nil {
			err = closeErr
		}
	}()

	return fn(WithSession(ctx, s), s)
}

// Acquire opens a session for a caller managing its own scope, such as a
// framework dependency hook. The release func closes the session and is safe
// to call more than once.
func (f *Factory) Acquire(ctx context.Context) (*Session, func(), error) {
	s, err := f.Open(ctx)
	if err != nil {
		return nil, func() {}, err
	}
	return s, func() { _ = s.release(ctx) }, nil
}

// Middleware opens one session per request, makes it available through
// FromContext and closes it once the handler returns, whatever happened.
func (f *Factory) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s, release, err := f.Acquire(ctx)
		if err != nil {
			f.logger.ErrorContext(ctx, "open request session", "error", err)
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		defer release()
		next.ServeHTTP(w, r.WithContext(WithSession(ctx, s)))
	})
}

func (s *Session) abort(ctx context.Context, reason string) {
	if s.Closed() {
		return
	}
	if err := s.rollback(); err != nil {
		s.logger.ErrorContext(ctx, "rollback failed", "reason", reason, "error", err)
	}
}

func (s *Session) release(ctx context.Context) error {
	err := s.Close()
	if err != nil {
		s.logger.ErrorContext(ctx, "close failed", "error", err)
	}
	return err
}

type sessionContextKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// FromContext returns the session injected by Scope, Run or Middleware.
func FromContext(ctx context.Context) (*Session, error) {
	if ctx == nil {
		return nil, ErrNoSession
	}
	s, ok := ctx.Value(sessionContextKey{}).(*Session)
	if !ok || s == nil {
		return nil, ErrNoSession
	}
	return s, nil
}
