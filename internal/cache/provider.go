package cache

import (
	"context"
	"strings"

	"github.com/garnizeh/folio/internal/models"
	"github.com/garnizeh/folio/internal/notify"
	"github.com/garnizeh/folio/pkg/repository"
)

// Key helpers for the CachedProvider key scheme.
func CollectionKey(c models.Collection) string { return string(c) }

func IDKey(c models.Collection, id string) string { return string(c) + "/id/" + id }

func OwnerKey(c models.Collection, o models.Owner) string {
	return string(c) + "/owner/" + string(o.Type) + "/" + o.ID
}

func ProjectKey(c models.Collection, projectID string) string {
	return string(c) + "/project/" + projectID
}

// CachedProvider memoizes a repository.Provider. Slices handed out are copies;
// the records they point to are shared and must not be mutated.
type CachedProvider struct {
	next  repository.Provider
	cache *Cache
}

var _ repository.Provider = (*CachedProvider)(nil)

func NewProvider(next repository.Provider, c *Cache) *CachedProvider {
	return &CachedProvider{next: next, cache: c}
}

func (p *CachedProvider) Cache() *Cache { return p.cache }

func (p *CachedProvider) FetchCollection(ctx context.Context, c models.Collection) ([]models.Entity, error) {
	es, err := Fetch(ctx, p.cache, CollectionKey(c), func(ctx context.Context) ([]models.Entity, error) {
		return p.next.FetchCollection(ctx, c)
	})
	return clone(es), err
}

func (p *CachedProvider) FetchByID(ctx context.Context, c models.Collection, id string) (models.Entity, error) {
	return Fetch(ctx, p.cache, IDKey(c, id), func(ctx context.Context) (models.Entity, error) {
		return p.next.FetchByID(ctx, c, id)
	})
}

func (p *CachedProvider) FetchByOwner(ctx context.Context, c models.Collection, owner models.Owner) ([]models.Entity, error) {
	es, err := Fetch(ctx, p.cache, OwnerKey(c, owner), func(ctx context.Context) ([]models.Entity, error) {
		return p.next.FetchByOwner(ctx, c, owner)
	})
	return clone(es), err
}

func (p *CachedProvider) FetchByProject(ctx context.Context, c models.Collection, projectID string) ([]models.Entity, error) {
	es, err := Fetch(ctx, p.cache, ProjectKey(c, projectID), func(ctx context.Context) ([]models.Entity, error) {
		return p.next.FetchByProject(ctx, c, projectID)
	})
	return clone(es), err
}

// BindAll subscribes to every collection. A change invalidates the
// collection's keys; owner and project changes also invalidate the lookups
// that resolve through them.
func (p *CachedProvider) BindAll(sub Subscriber) (func(), error) {
	var unsubs []func()
	release := func() {
		for _, u := range unsubs {
			u()
		}
	}
	for _, c := range models.Collections {
		c := c
		u, err := p.cache.Bind(sub, string(c), CollectionKey(c))
		if err != nil {
			release()
			return nil, err
		}
		unsubs = append(unsubs, u)

		var marker string
		switch c {
		case models.Organizations, models.Members:
			marker = "/owner/"
		case models.Projects:
			marker = "/project/"
		default:
			continue
		}
		u, err = sub.Subscribe(string(c), func(notify.ChangeEvent) {
			p.cache.InvalidateMatching(func(k string) bool { return strings.Contains(k, marker) })
		})
		if err != nil {
			release()
			return nil, err
		}
		unsubs = append(unsubs, u)
	}
	return release, nil
}

func clone(es []models.Entity) []models.Entity {
	if es == nil {
		return nil
	}
	out := make([]models.Entity, len(es))
	copy(out, es)
	return out
}
