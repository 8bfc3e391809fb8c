package suppression

import (
	"context"
	"time"

	"github.com/ignite/listkeeper/internal/domain"
)

// Repository defines the data access contract for the suppression history.
type Repository interface {
	// CreateEntry appends a new active history entry.
	CreateEntry(ctx context.Context, e *domain.SuppressionEntry) error

	// ActiveEntry returns the contact's active entry, or ErrNotFound.
	ActiveEntry(ctx context.Context, contactID string) (*domain.SuppressionEntry, error)

	// DeactivateEntries marks all active entries for the contact inactive,
	// stamping who reactivated them and when. Entries are never deleted.
	DeactivateEntries(ctx context.Context, contactID, reactivatedBy string, at time.Time) error

	// History returns all entries for a contact, newest first.
	History(ctx context.Context, contactID string) ([]domain.SuppressionEntry, error)

	// CountByReason returns active entry counts grouped by reason.
	CountByReason(ctx context.Context) (map[string]int, error)
}
