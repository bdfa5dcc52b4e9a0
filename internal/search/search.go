// Package search filters in-memory collections by free text and facets.
package search

import (
	"sort"
	"strings"
)

// Join concatenates the searchable parts of a record. Parts are separated by
// a newline so a query never matches across two fields.
func Join(parts ...string) string {
	return strings.Join(parts, "\n")
}

// Matches reports whether text contains query, ignoring case.
func Matches(text, query string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(query))
}

// Filter returns the items whose extracted text contains query, ignoring
// case, in their original order. An empty query returns items unchanged.
func Filter[T any](items []T, query string, fields func(T) string) []T {
	if query == "" {
		return items
	}
	q := strings.ToLower(query)
	out := make([]T, 0, len(items))
	for _, it := range items {
		if strings.Contains(strings.ToLower(fields(it)), q) {
			out = append(out, it)
		}
	}
	return out
}

// Where keeps the items accepted by every predicate, in order.
func Where[T any](items []T, preds ...func(T) bool) []T {
	if len(preds) == 0 {
		return items
	}
	out := make([]T, 0, len(items))
next:
	for _, it := range items {
		for _, p := range preds {
			if !p(it) {
				continue next
			}
		}
		out = append(out, it)
	}
	return out
}

// SortStable returns a sorted copy of items; equal items keep their order.
func SortStable[T any](items []T, less func(a, b T) bool) []T {
	out := make([]T, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Limit returns at most n items. n <= 0 means no limit.
func Limit[T any](items []T, n int) []T {
	if n <= 0 || n >= len(items) {
		return items
	}
	return items[:n]
}
