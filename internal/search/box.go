package search

import (
	"sync"
	"time"
	"unicode/utf8"
)

// Options configures a Box.
type Options[T any] struct {
	// Debounce defaults to DefaultDebounce when zero. Negative commits on the
	// next timer tick.
	Debounce time.Duration
	// MinChars is the shortest query that filters; shorter ones show every
	// item. Zero means 1.
	MinChars int
	// Initial is the committed query at construction, usually read from ?q=.
	Initial string
	// OnCommit runs after each committed pass, outside the box's lock.
	OnCommit func(query string, results []T)
}

// State is a point-in-time copy of a box.
type State[T any] struct {
	Input     string
	Committed string
	Results   []T
	Total     int
}

// Box is one search input bound to a collection. Input is recorded at once;
// filtering happens on the debounced commit.
type Box[T any] struct {
	fields   func(T) string
	minChars int
	onCommit func(string, []T)
	deb      *Debouncer[string]

	mu        sync.Mutex
	items     []T
	input     string
	committed string
	results   []T
	closed    bool
}

func NewBox[T any](items []T, fields func(T) string, opts Options[T]) *Box[T] {
	delay := opts.Debounce
	if delay == 0 {
		delay = DefaultDebounce
	}
	minChars := opts.MinChars
	if minChars <= 0 {
		minChars = 1
	}
	b := &Box[T]{
		fields:    fields,
		minChars:  minChars,
		onCommit:  opts.OnCommit,
		items:     items,
		input:     opts.Initial,
		committed: opts.Initial,
	}
	b.results = b.filter(items, opts.Initial)
	b.deb = NewDebouncer(delay, b.commit)
	return b
}

func (b *Box[T]) filter(items []T, q string) []T {
	if utf8.RuneCountInString(q) < b.minChars {
		return items
	}
	return Filter(items, q, b.fields)
}

// SetQuery records q as the current input and schedules a commit.
func (b *Box[T]) SetQuery(q string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.input = q
	b.mu.Unlock()
	b.deb.Push(q)
}

func (b *Box[T]) commit(q string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.committed = q
	b.results = b.filter(b.items, q)
	results := b.results
	b.mu.Unlock()

	if b.onCommit != nil {
		b.onCommit(q, results)
	}
}

// SetItems replaces the collection and refilters it with the committed query
// without waiting for the debounce.
func (b *Box[T]) SetItems(items []T) []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = items
	b.results = b.filter(items, b.committed)
	return b.results
}

// Results returns the last committed result.
func (b *Box[T]) Results() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.results
}

func (b *Box[T]) Query() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed
}

func (b *Box[T]) State() State[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return State[T]{Input: b.input, Committed: b.committed, Results: b.results, Total: len(b.items)}
}

// Searching reports whether the input is non-empty.
func (b *Box[T]) Searching() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.input != ""
}

// Pending reports whether an input change has not been committed yet.
func (b *Box[T]) Pending() bool {
	return b.deb.Pending()
}

// Close cancels any pending commit. A closed box ignores further input.
func (b *Box[T]) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.deb.Stop()
}
