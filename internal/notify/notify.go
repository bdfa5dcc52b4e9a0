// Package notify delivers table change events to subscribers. All consumers
// of one table share a single underlying channel that lives exactly as long as
// at least one subscription is held.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/garnizeh/folio/internal/metrics"
)

var ErrClosed = errors.New("notify: closed")

type EventType string

const (
	Insert EventType = "insert"
	Update EventType = "update"
	Delete EventType = "delete"
)

func (t EventType) Valid() bool {
	return t == Insert || t == Update || t == Delete
}

// ChangeEvent reports that a row of Table changed. No payload is carried.
type ChangeEvent struct {
	Event  EventType `json:"event"`
	Schema string    `json:"schema"`
	Table  string    `json:"table"`
}

// Channel is one open listener on a table.
type Channel interface {
	// Events is closed once the channel is closed or its source fails.
	Events() <-chan ChangeEvent
	Close() error
}

// Source opens listeners on tables.
type Source interface {
	Open(ctx context.Context, table string) (Channel, error)
}

// Publisher emits change events to a Source's listeners.
type Publisher interface {
	Publish(ctx context.Context, ev ChangeEvent) error
}

var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger installs a logger for the notify package. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Registry reference-counts subscriptions per table.
type Registry struct {
	src     Source
	metrics *metrics.Metrics

	mu     sync.Mutex
	tables map[string]*tableSub
	nextID uint64
	closed bool
	wg     sync.WaitGroup
}

type tableSub struct {
	ch     Channel
	cancel context.CancelFunc
	subs   map[uint64]func(ChangeEvent)
}

func NewRegistry(src Source, m *metrics.Metrics) *Registry {
	return &Registry{src: src, metrics: m, tables: make(map[string]*tableSub)}
}

// Subscribe registers onChange for table. The first subscriber opens the
// table's channel; the returned unsubscribe releases this subscription and
// closes the channel when it was the last one. Unsubscribe is idempotent.
// onChange runs on the table's dispatch goroutine and must not block.
func (r *Registry) Subscribe(table string, onChange func(ChangeEvent)) (func(), error) {
	if onChange == nil {
		return nil, errors.New("notify: nil callback")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	ts, ok := r.tables[table]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		ch, err := r.src.Open(ctx, table)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("open channel %s: %w", table, err)
		}
		ts = &tableSub{ch: ch, cancel: cancel, subs: make(map[uint64]func(ChangeEvent))}
		r.tables[table] = ts
		r.metrics.ChannelOpened()
		logger.Info("channel opened", slog.String("table", table))

		r.wg.Add(1)
		go r.dispatch(table, ts)
	}

	r.nextID++
	id := r.nextID
	ts.subs[id] = onChange

	var once sync.Once
	return func() {
		once.Do(func() { r.release(table, ts, id) })
	}, nil
}

func (r *Registry) release(table string, ts *tableSub, id uint64) {
	r.mu.Lock()
	delete(ts.subs, id)
	last := len(ts.subs) == 0 && r.tables[table] == ts
	if last {
		delete(r.tables, table)
	}
	r.mu.Unlock()

	if last {
		r.teardown(table, ts)
	}
}

func (r *Registry) teardown(table string, ts *tableSub) {
	ts.cancel()
	if err := ts.ch.Close(); err != nil {
		logger.Warn("close channel", slog.String("table", table), slog.Any("err", err))
	}
	r.metrics.ChannelClosed()
	logger.Info("channel closed", slog.String("table", table))
}

func (r *Registry) dispatch(table string, ts *tableSub) {
	defer r.wg.Done()
	for ev := range ts.ch.Events() {
		r.metrics.ChangeReceived(table, string(ev.Event))

		r.mu.Lock()
		ids := make([]uint64, 0, len(ts.subs))
		for id := range ts.subs {
			ids = append(ids, id)
		}
		r.mu.Unlock()
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			r.mu.Lock()
			fn, ok := ts.subs[id]
			r.mu.Unlock()
			if ok {
				fn(ev)
			}
		}
	}
}

// Tables lists tables with an open channel.
func (r *Registry) Tables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.tables))
	for t := range r.tables {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Subscribers reports how many subscriptions table currently holds.
func (r *Registry) Subscribers(table string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ts, ok := r.tables[table]; ok {
		return len(ts.subs)
	}
	return 0
}

// Close releases every channel and waits for dispatch goroutines to exit.
// It must not be called from inside a callback.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	tables := r.tables
	r.tables = make(map[string]*tableSub)
	r.mu.Unlock()

	for table, ts := range tables {
		r.teardown(table, ts)
	}
	r.wg.Wait()
	return nil
}
