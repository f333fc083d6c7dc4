package dao

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-persistence/session"
	repository "github.com/goliatone/go-repository-bun"
)

var (
	// ErrConstraint marks a write rejected by a unique, foreign key or not
	// null constraint. The driver error stays in the chain.
	ErrConstraint = errors.New("constraint violation")

	// ErrConnectivity marks a failure to reach the store.
	ErrConnectivity = errors.New("store unreachable")

	// ErrMultipleRows is returned when a lookup on a unique key matches more
	// than one row, which means the uniqueness invariant is broken.
	ErrMultipleRows = errors.New("multiple rows for unique lookup")

	// ErrInvalidInput marks a create rejected before reaching the store. The
	// field errors are available through goerrors.GetValidationErrors.
	ErrInvalidInput = errors.New("invalid input")
)

// Classify tags err with ErrConstraint or ErrConnectivity when it matches
// one of those classes. Both raw driver errors and the categorised errors of
// go-repository-bun are recognised. Other errors are returned unchanged.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConstraint), errors.Is(err, ErrConnectivity):
		return err
	case session.IsConstraintViolation(err), repository.IsConstraintViolation(err):
		return fmt.Errorf("%w: %w", ErrConstraint, err)
	case isConnectivity(err):
		return fmt.Errorf("%w: %w", ErrConnectivity, err)
	default:
		return err
	}
}

func isConnectivity(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if repository.IsConnectionError(err) || goerrors.IsCategory(err, goerrors.CategoryExternal) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// invalid wraps an ozzo validation failure as ErrInvalidInput.
func invalid(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidInput, goerrors.FromOzzoValidation(err, message))
}
