package sqlite

import (
	"context"
	"log/slog"
	"time"

	"github.com/garnizeh/folio/internal/db"
	"github.com/garnizeh/folio/internal/notify"
	"github.com/garnizeh/folio/pkg/repository"
)

// SQLiteRepo implements repository interfaces using the internal DB wrapper.
type SQLiteRepo struct {
	conn   *db.DB
	logger *slog.Logger
	pub    notify.Publisher
	schema string
}

// Ensure SQLiteRepo implements the public interfaces.
var _ repository.Provider = (*SQLiteRepo)(nil)
var _ repository.Writer = (*SQLiteRepo)(nil)
var _ repository.SubmissionRepo = (*SQLiteRepo)(nil)

func New(conn *db.DB, logger *slog.Logger) *SQLiteRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteRepo{conn: conn, logger: logger, schema: "public"}
}

// WithPublisher makes every successful write emit a change event on pub for
// the written collection.
func (r *SQLiteRepo) WithPublisher(pub notify.Publisher, schema string) *SQLiteRepo {
	r.pub = pub
	if schema != "" {
		r.schema = schema
	}
	return r
}

func (r *SQLiteRepo) publish(ctx context.Context, ev notify.EventType, table string) {
	if r.pub == nil {
		return
	}
	if err := r.pub.Publish(ctx, notify.ChangeEvent{Event: ev, Schema: r.schema, Table: table}); err != nil {
		r.logger.Warn("publish change event", slog.String("table", table), slog.String("event", string(ev)), slog.Any("err", err))
	}
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}
