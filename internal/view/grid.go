// Package view drives a searchable grid through its loading, empty, populated
// and error states.
package view

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/garnizeh/folio/internal/cache"
	"github.com/garnizeh/folio/internal/notify"
	"github.com/garnizeh/folio/internal/search"
	"github.com/garnizeh/folio/internal/urlsync"
)

type State string

const (
	Loading   State = "loading"
	Empty     State = "empty"
	Populated State = "populated"
	Error     State = "error"
)

var (
	ErrMounted    = errors.New("view: already mounted")
	ErrNotMounted = errors.New("view: not mounted")
)

// Snapshot is a copy of the grid at one transition. Version increases with
// every transition.
type Snapshot[T any] struct {
	Version uint64 `json:"version"`
	State   State  `json:"state"`
	Query   string `json:"query"`
	Items   []T    `json:"items"`
	Total   int    `json:"total"`
	Err     string `json:"error,omitempty"`
	URL     string `json:"url"`
}

// Config wires a Grid to its data. Fetch and Fields are required. Without a
// Cache every load calls Fetch directly; without a Registry the grid never
// refetches on its own.
type Config[T any] struct {
	Key       string
	Table     string
	// Related tables refetch the grid too; Fetch reads them.
	Related   []string
	Fetch     func(ctx context.Context) ([]T, error)
	Fields    func(T) string
	Registry  cache.Subscriber
	Cache     *cache.Cache
	Debounce  time.Duration
	MinChars  int
	Navigator urlsync.Navigator
	Logger    *slog.Logger
}

// Grid is one mounted view over a collection. It may be mounted again after
// Unmount.
type Grid[T any] struct {
	cfg    Config[T]
	logger *slog.Logger

	mu       sync.Mutex
	mounted  bool
	base     context.Context
	stop     context.CancelFunc
	cancel   context.CancelFunc
	gen      uint64
	loading  bool
	unsub    func()
	box      *search.Box[T]
	sync     *urlsync.Sync
	snap     Snapshot[T]
	fetches  int
	watchers []func(Snapshot[T])
	wg       sync.WaitGroup

	emitMu  sync.Mutex
	emitted uint64

	// held for a whole committed pass; Unmount waits on it
	passMu sync.Mutex
}

func NewGrid[T any](cfg Config[T]) *Grid[T] {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Grid[T]{cfg: cfg, logger: logger, snap: Snapshot[T]{State: Loading}}
}

// Mount reads the query from u, subscribes to the grid's tables and starts
// the first fetch.
func (g *Grid[T]) Mount(ctx context.Context, u *url.URL) error {
	g.mu.Lock()
	if g.mounted {
		g.mu.Unlock()
		return ErrMounted
	}
	g.mounted = true
	g.base, g.stop = context.WithCancel(ctx)
	g.sync = urlsync.New(u, g.cfg.Navigator)
	g.box = search.NewBox[T](nil, g.cfg.Fields, search.Options[T]{
		Debounce: g.cfg.Debounce,
		MinChars: g.cfg.MinChars,
		Initial:  g.sync.Initial(),
		OnCommit: g.onCommit,
	})
	g.mu.Unlock()

	if g.cfg.Registry != nil && g.cfg.Table != "" {
		unsub, err := g.subscribe()
		if err != nil {
			g.Unmount()
			return err
		}
		g.mu.Lock()
		if !g.mounted {
			g.mu.Unlock()
			unsub()
			return ErrNotMounted
		}
		g.unsub = unsub
		g.mu.Unlock()
	}

	g.mu.Lock()
	snap, ok := g.startFetch()
	g.mu.Unlock()
	if ok {
		g.emit(snap)
	}
	return nil
}

// subscribe registers onChange for Table and every Related table. On error
// the subscriptions made so far are released.
func (g *Grid[T]) subscribe() (func(), error) {
	tables := append([]string{g.cfg.Table}, g.cfg.Related...)
	unsubs := make([]func(), 0, len(tables))
	release := func() {
		for _, u := range unsubs {
			u()
		}
	}
	for _, table := range tables {
		u, err := g.cfg.Registry.Subscribe(table, g.onChange)
		if err != nil {
			release()
			return nil, err
		}
		unsubs = append(unsubs, u)
	}
	return release, nil
}

// startFetch moves to loading and supersedes any fetch in flight. Callers
// hold g.mu.
func (g *Grid[T]) startFetch() (Snapshot[T], bool) {
	if !g.mounted {
		return Snapshot[T]{}, false
	}
	if g.cancel != nil {
		g.cancel()
	}
	g.gen++
	gen := g.gen
	ctx, cancel := context.WithCancel(g.base)
	g.cancel = cancel
	g.loading = true
	g.fetches++

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer cancel()
		items, err := g.load(ctx)
		g.finish(gen, items, err)
	}()
	return g.transition(Loading, g.snap.Items, ""), true
}

func (g *Grid[T]) load(ctx context.Context) ([]T, error) {
	if g.cfg.Cache == nil || g.cfg.Key == "" {
		return g.cfg.Fetch(ctx)
	}
	return cache.Fetch(ctx, g.cfg.Cache, g.cfg.Key, g.cfg.Fetch)
}

func (g *Grid[T]) finish(gen uint64, items []T, err error) {
	g.mu.Lock()
	if !g.mounted || gen != g.gen {
		g.mu.Unlock()
		return
	}
	g.loading = false
	g.cancel = nil
	var snap Snapshot[T]
	if err != nil {
		g.logger.Warn("grid fetch failed", slog.String("key", g.cfg.Key), slog.Any("err", err))
		snap = g.transition(Error, nil, err.Error())
	} else {
		snap = g.settle(g.box.SetItems(items))
	}
	g.mu.Unlock()
	g.emit(snap)
}

// settle picks empty or populated for results. Callers hold g.mu.
func (g *Grid[T]) settle(results []T) Snapshot[T] {
	if len(results) == 0 {
		return g.transition(Empty, results, "")
	}
	return g.transition(Populated, results, "")
}

// transition records a new snapshot. Callers hold g.mu.
func (g *Grid[T]) transition(s State, items []T, errMsg string) Snapshot[T] {
	st := g.box.State()
	g.snap = Snapshot[T]{
		Version: g.snap.Version + 1,
		State:   s,
		Query:   st.Committed,
		Items:   items,
		Total:   st.Total,
		Err:     errMsg,
		URL:     g.sync.URL().String(),
	}
	return g.snap
}

func (g *Grid[T]) onChange(ev notify.ChangeEvent) {
	g.mu.Lock()
	if !g.mounted {
		g.mu.Unlock()
		return
	}
	if g.cfg.Cache != nil && g.cfg.Key != "" {
		g.cfg.Cache.Invalidate(g.cfg.Key)
	}
	g.logger.Debug("grid refetch", slog.String("table", ev.Table), slog.String("event", string(ev.Event)))
	snap, ok := g.startFetch()
	g.mu.Unlock()
	if ok {
		g.emit(snap)
	}
}

func (g *Grid[T]) onCommit(q string, _ []T) {
	g.passMu.Lock()
	defer g.passMu.Unlock()

	g.mu.Lock()
	if !g.mounted {
		g.mu.Unlock()
		return
	}
	us := g.sync
	g.mu.Unlock()

	us.Commit(q)

	g.mu.Lock()
	if !g.mounted {
		g.mu.Unlock()
		return
	}
	switch {
	case g.loading:
		// the fetch in flight applies the new query when it lands
		snap := g.transition(Loading, g.snap.Items, "")
		g.mu.Unlock()
		g.emit(snap)
		return
	case g.snap.State == Error:
		snap, ok := g.startFetch()
		g.mu.Unlock()
		if ok {
			g.emit(snap)
		}
		return
	}
	loading := g.transition(Loading, g.snap.Items, "")
	settled := g.settle(g.box.Results())
	g.mu.Unlock()
	g.emit(loading)
	g.emit(settled)
}

// SetQuery feeds the search box; the grid updates once the query commits.
func (g *Grid[T]) SetQuery(q string) {
	g.mu.Lock()
	box := g.box
	mounted := g.mounted
	g.mu.Unlock()
	if mounted {
		box.SetQuery(q)
	}
}

// Refresh invalidates the grid's cache key and refetches.
func (g *Grid[T]) Refresh() {
	g.onChange(notify.ChangeEvent{Event: notify.Update, Table: g.cfg.Table})
}

// Snapshot returns the current state.
func (g *Grid[T]) Snapshot() Snapshot[T] {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snap
}

// Fetches reports how many loads the grid has started.
func (g *Grid[T]) Fetches() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetches
}

// Watch registers fn for every transition from now on. fn runs on the
// goroutine that caused the transition and must not call Unmount.
func (g *Grid[T]) Watch(fn func(Snapshot[T])) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.watchers = append(g.watchers, fn)
}

func (g *Grid[T]) emit(s Snapshot[T]) {
	g.emitMu.Lock()
	defer g.emitMu.Unlock()
	if s.Version <= g.emitted {
		return
	}
	g.emitted = s.Version

	g.mu.Lock()
	watchers := append([]func(Snapshot[T]){}, g.watchers...)
	g.mu.Unlock()
	for _, fn := range watchers {
		fn(s)
	}
}

// Unmount releases the subscription, stops the debouncer, cancels the fetch
// in flight and waits for it to return. A committed pass already running,
// including its URL replace, finishes before Unmount returns. Late results
// are dropped. Calling it on an unmounted grid is a no-op.
func (g *Grid[T]) Unmount() {
	g.mu.Lock()
	if !g.mounted {
		g.mu.Unlock()
		return
	}
	g.mounted = false
	unsub := g.unsub
	g.unsub = nil
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.stop()
	g.loading = false
	box := g.box
	g.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	box.Close()
	g.passMu.Lock()
	g.passMu.Unlock()
	g.wg.Wait()
}
