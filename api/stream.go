package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/garnizeh/folio/internal/cache"
	"github.com/garnizeh/folio/internal/models"
	"github.com/garnizeh/folio/internal/notify"
	"github.com/garnizeh/folio/internal/portfolio"
	"github.com/garnizeh/folio/internal/view"
	"github.com/garnizeh/folio/pkg/repository"
	"github.com/gin-contrib/sse"
	"github.com/gorilla/mux"
)

// keepAlive is the interval of comment lines sent on idle streams.
var keepAlive = 25 * time.Second

// StreamHandler serves server-sent event streams of change events and of live
// grid snapshots.
type StreamHandler struct {
	svc      *portfolio.Service
	registry cache.Subscriber
	debounce time.Duration
	minChars int
}

func NewStreamHandler(svc *portfolio.Service, registry cache.Subscriber, debounce time.Duration, minChars int) *StreamHandler {
	return &StreamHandler{svc: svc, registry: registry, debounce: debounce, minChars: minChars}
}

// startStream writes the event-stream headers. It reports false when w cannot
// flush.
func startStream(w http.ResponseWriter) (http.Flusher, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return nil, false
	}
	sse.Event{}.WriteContentType(w)
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	f.Flush()
	return f, true
}

func send(w http.ResponseWriter, f http.Flusher, ev sse.Event) error {
	if err := sse.Encode(w, ev); err != nil {
		return err
	}
	f.Flush()
	return nil
}

func ping(w http.ResponseWriter, f http.Flusher) error {
	if _, err := w.Write([]byte(": ping\n\n")); err != nil {
		return err
	}
	f.Flush()
	return nil
}

// Events serves GET /v1/events?table=. The subscription is released when the
// client goes away.
func (h *StreamHandler) Events(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	if _, err := models.ParseCollection(table); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events := make(chan notify.ChangeEvent, 16)
	unsub, err := h.registry.Subscribe(table, func(ev notify.ChangeEvent) {
		select {
		case events <- ev:
		default:
			logger.Warn("event stream lagging, dropping event", slog.String("table", table))
		}
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer unsub()

	f, ok := startStream(w)
	if !ok {
		return
	}
	if err := send(w, f, sse.Event{Event: "ready", Data: table}); err != nil {
		return
	}

	tick := time.NewTicker(keepAlive)
	defer tick.Stop()
	var seq uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			seq++
			if err := send(w, f, sse.Event{Event: "change", Id: strconv.FormatUint(seq, 10), Data: ev}); err != nil {
				return
			}
		case <-tick.C:
			if err := ping(w, f); err != nil {
				return
			}
		}
	}
}

// Live serves GET /v1/live/{grid}?q=. A grid is mounted for the connection
// and every snapshot it emits is sent as a "snapshot" event. Grids read
// through the service's provider, which is already cached.
func (h *StreamHandler) Live(w http.ResponseWriter, r *http.Request) {
	switch mux.Vars(r)["grid"] {
	case string(models.Projects):
		runGrid(w, r, h.projectsGrid())
	case string(models.Members):
		runGrid(w, r, gridConfig(h, models.Members, portfolio.MemberSearchText))
	default:
		writeError(w, http.StatusNotFound, "unknown grid")
	}
}

func gridConfig[T any](h *StreamHandler, c models.Collection, fields func(*T) string) view.Config[*T] {
	return view.Config[*T]{
		Table: string(c),
		Fetch: func(ctx context.Context) ([]*T, error) {
			return repository.List[T](ctx, h.svc.Provider(), c)
		},
		Fields:   fields,
		Registry: h.registry,
		Debounce: h.debounce,
		MinChars: h.minChars,
		Logger:   logger,
	}
}

// projectsGrid searches technology names too. They are reloaded with every
// fetch, and changes to either technology table refetch the grid.
func (h *StreamHandler) projectsGrid() view.Config[*models.Project] {
	var names atomic.Pointer[map[string][]string]
	cfg := gridConfig(h, models.Projects, func(p *models.Project) string {
		var m map[string][]string
		if cur := names.Load(); cur != nil {
			m = *cur
		}
		return portfolio.ProjectSearchText(m)(p)
	})
	cfg.Related = []string{string(models.Technologies), string(models.ProjectTechnologies)}
	list := cfg.Fetch
	cfg.Fetch = func(ctx context.Context) ([]*models.Project, error) {
		m, err := h.svc.TechnologyNames(ctx)
		if err != nil {
			return nil, err
		}
		names.Store(&m)
		return list(ctx)
	}
	return cfg
}

func runGrid[T any](w http.ResponseWriter, r *http.Request, cfg view.Config[T]) {
	snaps := make(chan view.Snapshot[T], 1)
	grid := view.NewGrid(cfg)
	// keep only the newest snapshot when the client reads slowly
	grid.Watch(func(s view.Snapshot[T]) {
		for {
			select {
			case snaps <- s:
				return
			default:
			}
			select {
			case <-snaps:
			default:
			}
		}
	})

	f, ok := startStream(w)
	if !ok {
		return
	}
	if err := grid.Mount(r.Context(), r.URL); err != nil {
		logger.Error("mount live grid", slog.String("table", cfg.Table), slog.Any("err", err))
		_ = send(w, f, sse.Event{Event: "error", Data: err.Error()})
		return
	}
	defer grid.Unmount()

	tick := time.NewTicker(keepAlive)
	defer tick.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case s := <-snaps:
			if err := send(w, f, sse.Event{Event: "snapshot", Id: strconv.FormatUint(s.Version, 10), Data: s}); err != nil {
				return
			}
		case <-tick.C:
			if err := ping(w, f); err != nil {
				return
			}
		}
	}
}
