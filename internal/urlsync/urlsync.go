// Package urlsync mirrors a committed search query into the ?q= parameter of
// the current URL.
package urlsync

import (
	"net/url"
	"sync"
)

// Param is the query-string key holding the search text.
const Param = "q"

// Read returns the search text carried by u, or "" when there is none.
func Read(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.Query().Get(Param)
}

// Apply returns a copy of u with q set. An empty q removes the parameter;
// other parameters are kept.
func Apply(u *url.URL, q string) *url.URL {
	out := &url.URL{}
	if u != nil {
		*out = *u
		if u.User != nil {
			user := *u.User
			out.User = &user
		}
	}
	vals := out.Query()
	if q == "" {
		vals.Del(Param)
	} else {
		vals.Set(Param, q)
	}
	out.RawQuery = vals.Encode()
	return out
}

// Navigator updates the address without a full navigation and without adding
// a history entry.
type Navigator interface {
	Replace(u *url.URL)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(u *url.URL)

func (f NavigatorFunc) Replace(u *url.URL) { f(u) }

// Sync holds the current URL. The URL seeds the query once, on mount; after
// that every committed query is written back through the Navigator.
type Sync struct {
	nav Navigator

	mu  sync.Mutex
	cur *url.URL
}

func New(u *url.URL, nav Navigator) *Sync {
	return &Sync{nav: nav, cur: Apply(u, Read(u))}
}

// Initial is the query read from the URL at mount.
func (s *Sync) Initial() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Read(s.cur)
}

// Commit records q and replaces the URL when it changed.
func (s *Sync) Commit(q string) *url.URL {
	s.mu.Lock()
	if Read(s.cur) == q {
		u := s.cur
		s.mu.Unlock()
		return u
	}
	s.cur = Apply(s.cur, q)
	u := s.cur
	s.mu.Unlock()

	if s.nav != nil {
		s.nav.Replace(u)
	}
	return u
}

// URL returns the current URL.
func (s *Sync) URL() *url.URL {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}
