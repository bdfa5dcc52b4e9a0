package search

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period a search box waits for before it
// commits a query.
const DefaultDebounce = 300 * time.Millisecond

// Debouncer runs fn with the last value pushed once no new value has arrived
// for delay. Passes never overlap, and a pass superseded by a newer Push is
// dropped before it runs.
type Debouncer[T any] struct {
	delay time.Duration
	fn    func(T)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending bool
	stopped bool

	run sync.Mutex
}

func NewDebouncer[T any](delay time.Duration, fn func(T)) *Debouncer[T] {
	if delay < 0 {
		delay = 0
	}
	return &Debouncer[T]{delay: delay, fn: fn}
}

// Push schedules v, cancelling any pass still waiting for its timer.
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.gen++
	g := d.gen
	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(g, v) })
}

func (d *Debouncer[T]) fire(g uint64, v T) {
	d.run.Lock()
	defer d.run.Unlock()

	d.mu.Lock()
	current := !d.stopped && g == d.gen
	if current {
		d.pending = false
	}
	d.mu.Unlock()
	if current {
		d.fn(v)
	}
}

// Pending reports whether a pushed value has not run yet.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop cancels any pending pass and ignores further pushes. A pass that is
// already running is not interrupted.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = false
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
