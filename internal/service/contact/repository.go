package contact

import (
	"context"
	"time"

	"github.com/ignite/listkeeper/internal/domain"
)

// Repository defines the data access contract for contacts.
type Repository interface {
	// GetByID returns the contact or ErrNotFound.
	GetByID(ctx context.Context, id string) (*domain.Contact, error)

	// GetByEmail returns the contact for a normalized email or ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*domain.Contact, error)

	// Create inserts a new contact. The email must be unique; a conflicting
	// insert returns the existing row instead of an error (idempotent).
	Create(ctx context.Context, c *domain.Contact) (*domain.Contact, error)

	// RecordBounce increments the bounce counter and stamps the last bounce
	// type and time. Counters never decrease.
	RecordBounce(ctx context.Context, id string, bounceType domain.BounceType, at time.Time) error

	// UpdateStatus sets the contact status.
	UpdateStatus(ctx context.Context, id string, status domain.ContactStatus) error
}
