package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/garnizeh/folio/internal/models"
	"github.com/garnizeh/folio/pkg/repository"
)

// Provider is a scripted repository.Provider for tests. Records are served in
// the order they were added. Err, when set, is returned by every fetch.
type Provider struct {
	mu      sync.Mutex
	data    map[models.Collection][]models.Entity
	err     error
	gate    chan struct{}
	calls   map[string]int
	Fetched chan string
}

var _ repository.Provider = (*Provider)(nil)

func NewProvider() *Provider {
	return &Provider{
		data:  make(map[models.Collection][]models.Entity),
		calls: make(map[string]int),
	}
}

// Set replaces the records of c.
func (p *Provider) Set(c models.Collection, es ...models.Entity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[c] = append([]models.Entity(nil), es...)
}

// SetErr makes every subsequent fetch fail with err. nil clears it.
func (p *Provider) SetErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Hold blocks fetches until Release is called or their context ends.
func (p *Provider) Hold() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gate == nil {
		p.gate = make(chan struct{})
	}
}

func (p *Provider) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gate != nil {
		close(p.gate)
		p.gate = nil
	}
}

// Calls reports how many times op ("collection", "id", "owner", "project")
// was invoked.
func (p *Provider) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *Provider) enter(ctx context.Context, op string, c models.Collection) ([]models.Entity, error) {
	p.mu.Lock()
	p.calls[op]++
	gate := p.gate
	fetched := p.Fetched
	p.mu.Unlock()

	if fetched != nil {
		select {
		case fetched <- op + ":" + string(c):
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, &repository.FetchError{Op: op, Collection: c, Err: p.err}
	}
	return p.data[c], nil
}

func (p *Provider) FetchCollection(ctx context.Context, c models.Collection) ([]models.Entity, error) {
	es, err := p.enter(ctx, "collection", c)
	if err != nil {
		return nil, err
	}
	return append([]models.Entity{}, es...), nil
}

func (p *Provider) FetchByID(ctx context.Context, c models.Collection, id string) (models.Entity, error) {
	es, err := p.enter(ctx, "id", c)
	if err != nil {
		return nil, err
	}
	for _, e := range es {
		if e.EntityID() == id {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%s/%s: %w", c, id, repository.ErrNotFound)
}

func (p *Provider) FetchByOwner(ctx context.Context, c models.Collection, owner models.Owner) ([]models.Entity, error) {
	es, err := p.enter(ctx, "owner", c)
	if err != nil {
		return nil, err
	}
	out := []models.Entity{}
	for _, e := range es {
		if o, ok := e.(models.Owned); ok && o.OwnerRef() == owner {
			out = append(out, e)
		}
	}
	return out, nil
}

func (p *Provider) FetchByProject(ctx context.Context, c models.Collection, projectID string) ([]models.Entity, error) {
	es, err := p.enter(ctx, "project", c)
	if err != nil {
		return nil, err
	}
	out := []models.Entity{}
	for _, e := range es {
		if pc, ok := e.(models.ProjectChild); ok && pc.ProjectRef() == projectID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Submissions records contact messages and document requests in memory.
type Submissions struct {
	mu        sync.Mutex
	Contacts  []*models.ContactMessage
	Requests  []*models.DocumentRequest
	Statuses  map[string]string
	CreateErr error
}

var _ repository.SubmissionRepo = (*Submissions)(nil)

func NewSubmissions() *Submissions {
	return &Submissions{Statuses: make(map[string]string)}
}

func (s *Submissions) CreateContactMessage(ctx context.Context, m *models.ContactMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}
	s.Contacts = append(s.Contacts, m)
	s.Statuses[repository.KindContact+"/"+m.ID] = m.Status
	return nil
}

func (s *Submissions) CreateDocumentRequest(ctx context.Context, r *models.DocumentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}
	s.Requests = append(s.Requests, r)
	s.Statuses[repository.KindDocumentRequest+"/"+r.ID] = r.Status
	return nil
}

func (s *Submissions) UpdateSubmissionStatus(ctx context.Context, kind, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := kind + "/" + id
	if _, ok := s.Statuses[key]; !ok {
		return fmt.Errorf("%s: %w", key, repository.ErrNotFound)
	}
	s.Statuses[key] = status
	return nil
}

// Status returns the recorded status of a submission.
func (s *Submissions) Status(kind, id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Statuses[kind+"/"+id]
}
