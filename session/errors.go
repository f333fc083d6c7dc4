package session

import "errors"

var (
	// ErrSessionClosed is returned by every operation on a closed session.
	ErrSessionClosed = errors.New("session closed")

	// ErrFactoryClosed is returned when opening a session after Factory.Close.
	ErrFactoryClosed = errors.New("session factory closed")

	// ErrUnsupportedDriver is returned for store URLs with an unknown scheme.
	ErrUnsupportedDriver = errors.New("unsupported store driver")

	// ErrStaleRecord is returned by Flush when a staged delete matched no
	// row, because another session removed the record first.
	ErrStaleRecord = errors.New("stale record")

	// ErrNoSession is returned by FromContext when no session was injected.
	ErrNoSession = errors.New("no session in context")
)

// IsConstraintViolation reports whether err is an integrity constraint
// failure (unique, foreign key, not null) raised by any supported driver.
func IsConstraintViolation(err error) bool {
	return err != nil && isConstraintViolation(err)
}
