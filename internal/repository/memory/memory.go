// Package memory serves the portfolio dataset straight from a loaded fixture.
package memory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/garnizeh/folio/internal/fixtures"
	"github.com/garnizeh/folio/internal/models"
	"github.com/garnizeh/folio/pkg/repository"
)

// Provider is a read-only repository.Provider over a fixtures.Dataset.
type Provider struct {
	ds     *fixtures.Dataset
	logger *slog.Logger
}

var _ repository.Provider = (*Provider)(nil)

func New(ds *fixtures.Dataset, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{ds: ds, logger: logger}
}

func (p *Provider) FetchCollection(ctx context.Context, c models.Collection) ([]models.Entity, error) {
	if err := p.check(ctx, c); err != nil {
		return nil, err
	}
	es := p.ds.Entities(c)
	out := make([]models.Entity, len(es))
	copy(out, es)
	return out, nil
}

func (p *Provider) FetchByID(ctx context.Context, c models.Collection, id string) (models.Entity, error) {
	if err := p.check(ctx, c); err != nil {
		return nil, err
	}
	e, ok := p.ds.Lookup(c, id)
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", c, id, repository.ErrNotFound)
	}
	return e, nil
}

func (p *Provider) FetchByOwner(ctx context.Context, c models.Collection, owner models.Owner) ([]models.Entity, error) {
	if err := p.check(ctx, c); err != nil {
		return nil, err
	}
	ok, err := repository.OwnerExists(ctx, p, owner)
	if err != nil {
		return nil, err
	}
	out := []models.Entity{}
	if !ok {
		p.logger.Debug("owner does not resolve", slog.String("owner", owner.String()), slog.String("collection", string(c)))
		return out, nil
	}
	for _, e := range p.ds.Entities(c) {
		if o, isOwned := e.(models.Owned); isOwned && o.OwnerRef() == owner {
			out = append(out, e)
		}
	}
	return out, nil
}

func (p *Provider) FetchByProject(ctx context.Context, c models.Collection, projectID string) ([]models.Entity, error) {
	if err := p.check(ctx, c); err != nil {
		return nil, err
	}
	out := []models.Entity{}
	if _, ok := p.ds.Lookup(models.Projects, projectID); !ok {
		return out, nil
	}
	for _, e := range p.ds.Entities(c) {
		if pc, isChild := e.(models.ProjectChild); isChild && pc.ProjectRef() == projectID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (p *Provider) check(ctx context.Context, c models.Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := models.ParseCollection(string(c)); err != nil {
		return err
	}
	return nil
}
