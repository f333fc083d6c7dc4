package session

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/goliatone/go-persistence/entity"
	"github.com/goliatone/go-persistence/internal/logging"
	"github.com/uptrace/bun"
)

// Factory produces sessions bound to connections drawn from one pool.
// It is safe for concurrent use; the sessions it hands out are not.
type Factory struct {
	cfg    Config
	db     *bun.DB
	logger *slog.Logger

	// checkConn is the liveness check run on leased connections when
	// PoolPrePing is enabled.
	checkConn func(ctx context.Context, conn bun.Conn) error

	discarded atomic.Int64
	closed    atomic.Bool
}

// Stats extends the pool statistics with the number of connections dropped
// by the pre-ping check.
type Stats struct {
	sql.DBStats
	Discarded int64
}

// NewFactory opens the pool described by cfg and verifies the store answers.
// A nil logger discards output.
func NewFactory(ctx context.Context, cfg Config, logger *slog.Logger) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}
	logger = logging.OrDiscard(logger).With("component", "session")

	drv, dsn, err := resolve(cfg.URL)
	if err != nil {
		return nil, err
	}
	if err := prepareStore(cfg.URL); err != nil {
		return nil, err
	}

	sqldb, err := sql.Open(drv.name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", redact(cfg.URL), err)
	}
	sqldb.SetMaxIdleConns(cfg.PoolSize)
	sqldb.SetMaxOpenConns(cfg.maxOpen())
	if cfg.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	db := bun.NewDB(sqldb, drv.dialect())
	if cfg.Echo {
		db.AddQueryHook(&queryLogger{logger: logger})
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", redact(cfg.URL), err)
	}

	logger.Info("store pool ready",
		"url", redact(cfg.URL),
		"pool_size", cfg.PoolSize,
		"max_overflow", cfg.MaxOverflow,
		"pre_ping", cfg.PoolPrePing,
	)

	return &Factory{
		cfg:    cfg,
		db:     db,
		logger: logger,
		checkConn: func(ctx context.Context, conn bun.Conn) error {
			return conn.PingContext(ctx)
		},
	}, nil
}

// Open leases a connection and wraps it in a new session. With PoolPrePing
// enabled, connections failing the ping are discarded from the pool and the
// next one is tried. The caller must Close the returned session.
func (f *Factory) Open(ctx context.Context) (*Session, error) {
	if f.closed.Load() {
		return nil, ErrFactoryClosed
	}

	var lastErr error
	attempts := f.cfg.leaseAttempts()
	for i := 0; i < attempts; i++ {
		conn, err := f.db.Conn(ctx)
		if err != nil {
			return nil, fmt.Errorf("lease connection: %w", err)
		}

		if !f.cfg.PoolPrePing {
			return newSession(f, conn), nil
		}

		if err := f.checkConn(ctx, conn); err != nil {
			lastErr = err
			f.discard(conn)
			f.logger.WarnContext(ctx, "discarded stale connection", "attempt", i+1, "error", err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		return newSession(f, conn), nil
	}

	return nil, fmt.Errorf("no live connection after %d attempts: %w", attempts, lastErr)
}

// discard closes conn and tells database/sql not to return it to the pool.
func (f *Factory) discard(conn bun.Conn) {
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	_ = conn.Close()
	f.discarded.Add(1)
}

// CreateSchema creates the tables and indexes of every registered entity if
// they do not exist yet.
func (f *Factory) CreateSchema(ctx context.Context) error {
	for _, def := range entity.Definitions() {
		q := f.db.NewCreateTable().Model(def.Model).IfNotExists()
		for _, fk := range def.ForeignKeys {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create table %s: %w", def.Table(), err)
		}

		for _, ix := range def.Indexes {
			_, err := f.db.NewCreateIndex().
				Model(def.Model).
				Index(ix.Name).
				Column(ix.Columns...).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("create index %s: %w", ix.Name, err)
			}
		}
	}
	f.logger.InfoContext(ctx, "schema ready", "tables", len(entity.Definitions()))
	return nil
}

// Ping checks the store is reachable.
func (f *Factory) Ping(ctx context.Context) error {
	return f.db.PingContext(ctx)
}

// DB exposes the underlying bun handle for maintenance tasks. Accessors
// always go through sessions.
func (f *Factory) DB() *bun.DB {
	return f.db
}

// Config returns the configuration the factory was built with.
func (f *Factory) Config() Config {
	return f.cfg
}

// Stats reports pool usage.
func (f *Factory) Stats() Stats {
	return Stats{DBStats: f.db.Stats(), Discarded: f.discarded.Load()}
}

// Close releases the pool. Sessions still open will fail on their next call.
func (f *Factory) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	f.logger.Info("store pool closed")
	return f.db.Close()
}
