package session

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
)

// queryLogger echoes statements through slog when Config.Echo is set.
type queryLogger struct {
	logger *slog.Logger
}

var _ bun.QueryHook = (*queryLogger)(nil)

func (h *queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLogger) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	attrs := []any{
		"query", event.Query,
		"duration", time.Since(event.StartTime),
	}
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		h.logger.ErrorContext(ctx, "sql failed", append(attrs, "error", event.Err)...)
		return
	}
	h.logger.DebugContext(ctx, "sql", attrs...)
}
