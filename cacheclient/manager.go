package cacheclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-persistence/internal/logging"
	"github.com/redis/go-redis/v9"
)

// State is the lifecycle phase of a Manager.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Manager owns the process wide cache client. It moves from Uninitialized
// to Ready on a successful Setup and from Ready to Closed on Close. A failed
// Setup leaves it Uninitialized so Setup can be retried. Closed is final.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	client *redis.Client
}

// New returns an Uninitialized manager. A nil logger discards output.
func New(cfg Config, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logging.OrDiscard(logger).With("component", "cacheclient"),
	}
}

// Setup builds the client pool and verifies the server with PING.
//
// Failures are tagged ErrAuthentication, ErrConnectivity or ErrUnexpected;
// in every case the pool is released and the manager stays Uninitialized.
func (m *Manager) Setup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateReady:
		return ErrAlreadyInitialized
	case StateClosed:
		return ErrClosed
	}

	if err := m.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: cache config: %w", ErrUnexpected, err)
	}

	opts, err := m.cfg.options()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpected, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		err = classify(err)
		m.logger.ErrorContext(ctx, "cache setup failed", "addr", opts.Addr, "db", opts.DB, "error", err)
		return err
	}

	m.client = client
	m.state = StateReady
	m.logger.InfoContext(ctx, "cache client ready", "addr", opts.Addr, "db", opts.DB)
	return nil
}

// Client returns the live client. It fails with ErrNotInitialized unless the
// manager is Ready.
func (m *Manager) Client() (*redis.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateReady {
		return nil, ErrNotInitialized
	}
	return m.client, nil
}

// Close releases the pool of a Ready manager and marks it Closed. On any
// other state it does nothing.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateReady {
		return nil
	}

	err := m.client.Close()
	m.client = nil
	m.state = StateClosed
	if err != nil {
		m.logger.WarnContext(ctx, "cache client close", "error", err)
		return err
	}
	m.logger.InfoContext(ctx, "cache client closed")
	return nil
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Config() Config {
	return m.cfg
}

// Logger returns the manager logger, for stores built on its client.
func (m *Manager) Logger() *slog.Logger {
	return m.logger
}

var defaultManager atomic.Pointer[Manager]

// Default returns the manager installed with SetDefault. Before that it
// returns an Uninitialized manager with DefaultConfig, whose Client reports
// ErrNotInitialized.
func Default() *Manager {
	if m := defaultManager.Load(); m != nil {
		return m
	}
	defaultManager.CompareAndSwap(nil, New(DefaultConfig(), nil))
	return defaultManager.Load()
}

// SetDefault installs m as the process wide manager and returns the previous
// one.
func SetDefault(m *Manager) *Manager {
	return defaultManager.Swap(m)
}
