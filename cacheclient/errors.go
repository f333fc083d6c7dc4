package cacheclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
)

var (
	// ErrNotInitialized is returned by Client before a successful Setup. It
	// is a programming error and never wraps a connectivity failure.
	ErrNotInitialized = errors.New("cache client not initialized, call Setup first")

	// ErrAuthentication is returned when the server rejects the credentials.
	ErrAuthentication = errors.New("cache authentication failed")

	// ErrConnectivity is returned when the server cannot be reached.
	ErrConnectivity = errors.New("cache unreachable")

	// ErrUnexpected wraps any other Setup failure.
	ErrUnexpected = errors.New("unexpected cache setup failure")

	// ErrAlreadyInitialized is returned by Setup on a Ready manager.
	ErrAlreadyInitialized = errors.New("cache client already initialized")

	// ErrClosed is returned by Setup once the manager has been closed.
	ErrClosed = errors.New("cache client closed")
)

var authReplies = []string{"NOAUTH", "WRONGPASS", "INVALID PASSWORD", "INVALID USERNAME-PASSWORD"}

// classify tags a Setup failure with its error class. The original error is
// kept in the chain.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case isAuth(err):
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	case isConnectivity(err):
		return fmt.Errorf("%w: %w", ErrConnectivity, err)
	default:
		return fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
}

func isAuth(err error) bool {
	msg := strings.ToUpper(err.Error())
	for _, reply := range authReplies {
		if strings.Contains(msg, reply) {
			return true
		}
	}
	return false
}

func isConnectivity(err error) bool {
	if errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
