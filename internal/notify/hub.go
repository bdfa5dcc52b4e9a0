package notify

import (
	"context"
	"log/slog"
	"sync"
)

const channelBuffer = 64

// Hub is an in-process Source and Publisher.
type Hub struct {
	mu        sync.Mutex
	listeners map[string]map[*hubChannel]struct{}
	opened    int
}

var (
	_ Source    = (*Hub)(nil)
	_ Publisher = (*Hub)(nil)
)

func NewHub() *Hub {
	return &Hub{listeners: make(map[string]map[*hubChannel]struct{})}
}

type hubChannel struct {
	hub    *Hub
	table  string
	events chan ChangeEvent
	once   sync.Once
}

func (h *Hub) Open(ctx context.Context, table string) (Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := &hubChannel{hub: h, table: table, events: make(chan ChangeEvent, channelBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.listeners[table]
	if !ok {
		set = make(map[*hubChannel]struct{})
		h.listeners[table] = set
	}
	set[c] = struct{}{}
	h.opened++
	return c, nil
}

// Publish fans ev out to every open channel on ev.Table. A listener whose
// buffer is full misses the event.
func (h *Hub) Publish(ctx context.Context, ev ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.listeners[ev.Table] {
		select {
		case c.events <- ev:
		default:
			logger.Warn("listener buffer full, event dropped", slog.String("table", ev.Table))
		}
	}
	return nil
}

// Listeners reports how many channels are open on table.
func (h *Hub) Listeners(table string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners[table])
}

// Opened is the total number of channels ever opened.
func (h *Hub) Opened() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opened
}

func (c *hubChannel) Events() <-chan ChangeEvent { return c.events }

func (c *hubChannel) Close() error {
	c.once.Do(func() {
		c.hub.mu.Lock()
		delete(c.hub.listeners[c.table], c)
		if len(c.hub.listeners[c.table]) == 0 {
			delete(c.hub.listeners, c.table)
		}
		close(c.events)
		c.hub.mu.Unlock()
	})
	return nil
}
