package notify

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"
)

// PostgresSource listens for NOTIFY messages on one channel per table. Each
// Open starts its own pq.Listener connection.
type PostgresSource struct {
	dsn    string
	prefix string
	schema string

	MinReconnect time.Duration
	MaxReconnect time.Duration
	PingInterval time.Duration
}

var _ Source = (*PostgresSource)(nil)

func NewPostgresSource(dsn, prefix, schema string) *PostgresSource {
	return &PostgresSource{
		dsn:          dsn,
		prefix:       prefix,
		schema:       schema,
		MinReconnect: 10 * time.Second,
		MaxReconnect: time.Minute,
		PingInterval: 90 * time.Second,
	}
}

type pgChannel struct {
	l      *pq.Listener
	events chan ChangeEvent
	done   chan struct{}
	once   sync.Once
}

func (s *PostgresSource) Open(ctx context.Context, table string) (Channel, error) {
	name := ChannelName(s.prefix, table)
	l := pq.NewListener(s.dsn, s.MinReconnect, s.MaxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("postgres listener event", slog.String("channel", name), slog.Int("event", int(ev)), slog.Any("err", err))
		}
	})
	if err := l.Listen(name); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("listen %s: %w", name, err)
	}

	c := &pgChannel{l: l, events: make(chan ChangeEvent, channelBuffer), done: make(chan struct{})}
	go c.loop(ctx, s.schema, table, s.PingInterval)
	return c, nil
}

func (c *pgChannel) loop(ctx context.Context, schema, table string, pingEvery time.Duration) {
	defer close(c.events)
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	for {
		select {
		case n, ok := <-c.l.Notify:
			if !ok {
				return
			}
			// a nil notification follows a reconnect; changes may have been
			// missed so it is reported as an update
			var ev ChangeEvent
			if n == nil {
				ev = Decode("", schema, table)
			} else {
				ev = Decode(n.Extra, schema, table)
			}
			select {
			case c.events <- ev:
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		case <-ticker.C:
			if err := c.l.Ping(); err != nil {
				logger.Warn("postgres listener ping", slog.String("table", table), slog.Any("err", err))
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *pgChannel) Events() <-chan ChangeEvent { return c.events }

func (c *pgChannel) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.l.Close()
	})
	return err
}

// PostgresPublisher emits change events with pg_notify.
type PostgresPublisher struct {
	db     *sql.DB
	prefix string
}

var _ Publisher = (*PostgresPublisher)(nil)

func OpenPostgresPublisher(ctx context.Context, dsn, prefix string) (*PostgresPublisher, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresPublisher(db, prefix), nil
}

func NewPostgresPublisher(db *sql.DB, prefix string) *PostgresPublisher {
	return &PostgresPublisher{db: db, prefix: prefix}
}

func (p *PostgresPublisher) Publish(ctx context.Context, ev ChangeEvent) error {
	payload, err := Encode(ev)
	if err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, ChannelName(p.prefix, ev.Table), payload); err != nil {
		return fmt.Errorf("pg_notify %s: %w", ev.Table, err)
	}
	return nil
}

func (p *PostgresPublisher) Close() error {
	return p.db.Close()
}
