package list

import (
	"context"

	"github.com/ignite/listkeeper/internal/domain"
)

// Repository defines the data access contract for lists and memberships.
//
// AppendMembership must assign position = max(position)+1 within the list
// under a single counter advance (row lock or sequence), so concurrent
// appends still produce strictly increasing positions.
type Repository interface {
	// GetList returns the list or ErrListNotFound.
	GetList(ctx context.Context, listID string) (*domain.ContactList, error)

	// CreateList inserts a new list. At most one non-retired list may exist
	// per round number; a conflict returns ErrDuplicateRound.
	CreateList(ctx context.Context, l *domain.ContactList) error

	// ActiveRoundLists returns all non-retired campaign-round lists ordered
	// by round number ascending.
	ActiveRoundLists(ctx context.Context) ([]domain.ContactList, error)

	// GetMembership returns the membership row for (contactID, listID),
	// active or not, or ErrMembershipNotFound.
	GetMembership(ctx context.Context, contactID, listID string) (*domain.ListMembership, error)

	// AppendMembership creates an active membership at the tail of the list
	// and returns it.
	AppendMembership(ctx context.Context, contactID, listID string) (*domain.ListMembership, error)

	// ReactivateMembership flips an inactive membership back to active,
	// keeping its original position.
	ReactivateMembership(ctx context.Context, membershipID string) error

	// DeactivateMembership soft-deletes the active membership for
	// (contactID, listID). Positions are never renumbered.
	DeactivateMembership(ctx context.Context, contactID, listID string) error

	// ActiveMembers returns active memberships ordered by position
	// ascending, paged.
	ActiveMembers(ctx context.Context, listID string, limit, offset int) ([]domain.ListMembership, error)

	// CountActiveMembers recomputes the live member count from the
	// membership rows.
	CountActiveMembers(ctx context.Context, listID string) (int, error)

	// CountBouncedMembers counts active members whose contact has bounced
	// at all, and the subset with a hard bounce or suppression.
	CountBouncedMembers(ctx context.Context, listID string) (bounced, hard int, err error)

	// UpdateListMetrics persists a recomputed contact count and the derived
	// delivery-health rates on the list row.
	UpdateListMetrics(ctx context.Context, listID string, count int, bounceRate, deliveryRate, healthScore float64) error
}
