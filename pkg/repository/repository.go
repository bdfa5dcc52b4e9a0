package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/garnizeh/folio/internal/models"
)

// Repository interfaces for the portfolio dataset. These are the public
// contracts consumers should depend on; concrete implementations live under
// internal/.

var (
	// ErrNotFound reports an id lookup miss. It is distinct from an empty
	// collection, which is never an error.
	ErrNotFound = errors.New("not found")
	// ErrReadOnly is returned by providers that do not accept writes.
	ErrReadOnly = errors.New("provider is read-only")
)

// FetchError wraps a backend failure so callers can tell it apart from a miss.
type FetchError struct {
	Op         string
	Collection models.Collection
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchFailure reports whether err is a backend failure rather than a miss.
func IsFetchFailure(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// Provider reads the dataset. All methods are side-effect free and
// idempotent; results are returned in source order.
type Provider interface {
	FetchCollection(ctx context.Context, c models.Collection) ([]models.Entity, error)
	FetchByID(ctx context.Context, c models.Collection, id string) (models.Entity, error)
	// FetchByOwner returns an empty result, not an error, when the owner
	// does not resolve to an existing organization or member.
	FetchByOwner(ctx context.Context, c models.Collection, owner models.Owner) ([]models.Entity, error)
	FetchByProject(ctx context.Context, c models.Collection, projectID string) ([]models.Entity, error)
}

// Writer mutates the dataset. Implementations publish a change event for the
// collection after every successful write.
type Writer interface {
	Upsert(ctx context.Context, c models.Collection, e models.Entity) (inserted bool, err error)
	Delete(ctx context.Context, c models.Collection, id string) error
}

type SubmissionRepo interface {
	CreateContactMessage(ctx context.Context, m *models.ContactMessage) error
	CreateDocumentRequest(ctx context.Context, r *models.DocumentRequest) error
	UpdateSubmissionStatus(ctx context.Context, kind, id, status string) error
}

// Submission kinds accepted by UpdateSubmissionStatus.
const (
	KindContact         = "contact"
	KindDocumentRequest = "document_request"
)
