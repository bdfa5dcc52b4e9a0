package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/garnizeh/folio/internal/models"
)

// List fetches a collection and asserts every record to *T.
func List[T any](ctx context.Context, p Provider, c models.Collection) ([]*T, error) {
	es, err := p.FetchCollection(ctx, c)
	if err != nil {
		return nil, err
	}
	return cast[T](c, es)
}

// Get fetches one record and asserts it to *T.
func Get[T any](ctx context.Context, p Provider, c models.Collection, id string) (*T, error) {
	e, err := p.FetchByID(ctx, c, id)
	if err != nil {
		return nil, err
	}
	v, ok := any(e).(*T)
	if !ok {
		return nil, fmt.Errorf("%s/%s: unexpected record type %T", c, id, e)
	}
	return v, nil
}

func ListByOwner[T any](ctx context.Context, p Provider, c models.Collection, owner models.Owner) ([]*T, error) {
	es, err := p.FetchByOwner(ctx, c, owner)
	if err != nil {
		return nil, err
	}
	return cast[T](c, es)
}

func ListByProject[T any](ctx context.Context, p Provider, c models.Collection, projectID string) ([]*T, error) {
	es, err := p.FetchByProject(ctx, c, projectID)
	if err != nil {
		return nil, err
	}
	return cast[T](c, es)
}

func cast[T any](c models.Collection, es []models.Entity) ([]*T, error) {
	out := make([]*T, 0, len(es))
	for _, e := range es {
		v, ok := any(e).(*T)
		if !ok {
			return nil, fmt.Errorf("%s: unexpected record type %T", c, e)
		}
		out = append(out, v)
	}
	return out, nil
}

// OwnerExists resolves owner through its dispatch collection. An unknown
// owner type or a missing owner record reports false without an error.
func OwnerExists(ctx context.Context, p Provider, owner models.Owner) (bool, error) {
	oc, err := owner.Collection()
	if err != nil {
		return false, nil
	}
	if _, err := p.FetchByID(ctx, oc, owner.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
