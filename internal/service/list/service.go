package list

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ignite/listkeeper/internal/domain"
	"github.com/ignite/listkeeper/internal/pkg/logger"
)

// ContactDirectory is the slice of the contact service the list service
// needs for bulk imports.
type ContactDirectory interface {
	CreateOrGet(ctx context.Context, email, externalID string) (*domain.Contact, error)
}

// MetadataCache is the best-effort cache for list metadata. Implementations
// swallow their own errors; callers treat the cache as advisory.
type MetadataCache interface {
	InvalidateList(ctx context.Context, listID string)
	SetListMetadata(ctx context.Context, meta domain.ListMetadata)
}

// Service implements list membership business logic. It is safe for
// concurrent use.
type Service struct {
	repo     Repository
	contacts ContactDirectory
	cache    MetadataCache
	validate *validator.Validate
}

// NewService creates a list service backed by the given repository. cache
// may be nil (metadata is then always recomputed from the store).
func NewService(repo Repository, contacts ContactDirectory, cache MetadataCache) *Service {
	return &Service{
		repo:     repo,
		contacts: contacts,
		cache:    cache,
		validate: validator.New(),
	}
}

// GetList returns a list by id.
func (s *Service) GetList(ctx context.Context, listID string) (*domain.ContactList, error) {
	return s.repo.GetList(ctx, listID)
}

// CreateRoundList creates the campaign-round list for the given round
// number. Exactly one non-retired list may exist per round.
func (s *Service) CreateRoundList(ctx context.Context, name string, round int) (*domain.ContactList, error) {
	l := &domain.ContactList{
		Name:        name,
		Type:        domain.ListCampaignRound,
		RoundNumber: &round,
	}
	if err := s.repo.CreateList(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// ActiveRoundLists returns all non-retired campaign-round lists in round
// order.
func (s *Service) ActiveRoundLists(ctx context.Context) ([]domain.ContactList, error) {
	return s.repo.ActiveRoundLists(ctx)
}

// AddContact adds a contact to a list, preserving FIFO order. Idempotent:
// an already-active membership is returned unchanged, an inactive one is
// reactivated at its original position, and only a brand-new contact is
// appended at the tail.
func (s *Service) AddContact(ctx context.Context, contactID, listID string) (*domain.ListMembership, error) {
	m, err := s.repo.GetMembership(ctx, contactID, listID)
	switch err {
	case nil:
		if m.IsActive {
			return m, nil
		}
		if err := s.repo.ReactivateMembership(ctx, m.ID); err != nil {
			return nil, fmt.Errorf("reactivate membership %s: %w", m.ID, err)
		}
		m.IsActive = true
		m.RemovedAt = nil
	case ErrMembershipNotFound:
		m, err = s.repo.AppendMembership(ctx, contactID, listID)
		if err != nil {
			return nil, fmt.Errorf("append membership: %w", err)
		}
	default:
		return nil, fmt.Errorf("lookup membership: %w", err)
	}

	if s.cache != nil {
		s.cache.InvalidateList(ctx, listID)
	}
	return m, nil
}

// RemoveContact soft-deletes the contact's active membership and recomputes
// the list's cached count and rates from the store. Remaining positions are
// never renumbered.
func (s *Service) RemoveContact(ctx context.Context, contactID, listID string) error {
	if err := s.repo.DeactivateMembership(ctx, contactID, listID); err != nil {
		return err
	}
	s.refreshMetrics(ctx, listID)
	return nil
}

// refreshMetrics recomputes the member count and delivery-health rates and
// pushes them to the list row and cache. Recompute-from-store, never
// increment-in-place: concurrent writers converge on the true values
// instead of losing updates. Rates are 0-100 percentages; hard bouncers
// count double against the health score.
func (s *Service) refreshMetrics(ctx context.Context, listID string) {
	count, err := s.repo.CountActiveMembers(ctx, listID)
	if err != nil {
		logger.Warn("count refresh failed", "list_id", listID, "error", err.Error())
		return
	}
	bounced, hard, err := s.repo.CountBouncedMembers(ctx, listID)
	if err != nil {
		logger.Warn("bounce count refresh failed", "list_id", listID, "error", err.Error())
		return
	}

	bounceRate, deliveryRate, healthScore := 0.0, 100.0, 100.0
	if count > 0 {
		bounceRate = float64(bounced) / float64(count) * 100
		deliveryRate = 100 - bounceRate
		healthScore = 100 - float64(bounced+hard)/float64(count)*100
		if healthScore < 0 {
			healthScore = 0
		}
	}

	if err := s.repo.UpdateListMetrics(ctx, listID, count, bounceRate, deliveryRate, healthScore); err != nil {
		logger.Warn("metrics persist failed", "list_id", listID, "error", err.Error())
		return
	}
	if s.cache != nil {
		s.cache.SetListMetadata(ctx, domain.ListMetadata{
			ListID:       listID,
			ContactCount: count,
			BounceRate:   bounceRate,
			DeliveryRate: deliveryRate,
			HealthScore:  healthScore,
			SyncedAt:     time.Now().UTC(),
		})
	}
}

// BulkImport creates-or-gets a contact for each record and adds it to the
// list. Per-record failures are collected; a bad record never aborts the
// batch.
func (s *Service) BulkImport(ctx context.Context, listID string, records []domain.ImportRecord) (*domain.ImportResult, error) {
	if _, err := s.repo.GetList(ctx, listID); err != nil {
		return nil, err
	}

	result := &domain.ImportResult{}
	for i, rec := range records {
		if err := s.importOne(ctx, listID, rec); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, domain.ImportError{
				Index: i,
				Email: rec.Email,
				Err:   err.Error(),
			})
			continue
		}
		result.Imported++
	}

	s.refreshMetrics(ctx, listID)
	logger.Info("bulk import finished",
		"list_id", listID,
		"imported", result.Imported,
		"failed", result.Failed)
	return result, nil
}

func (s *Service) importOne(ctx context.Context, listID string, rec domain.ImportRecord) error {
	if err := s.validate.Struct(rec); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	c, err := s.contacts.CreateOrGet(ctx, rec.Email, rec.ExternalID)
	if err != nil {
		return err
	}
	_, err = s.AddContact(ctx, c.ID, listID)
	return err
}

// Contacts returns one page of active members in FIFO order (position
// ascending). This ordering is the contract every consumer depends on.
func (s *Service) Contacts(ctx context.Context, listID string, page, pageSize int) ([]domain.ListMembership, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 100
	}
	return s.repo.ActiveMembers(ctx, listID, pageSize, (page-1)*pageSize)
}

// AllContacts walks every page of a list in FIFO order. Used by the
// rebalance planner, which needs the full surviving population.
func (s *Service) AllContacts(ctx context.Context, listID string) ([]domain.ListMembership, error) {
	const pageSize = 1000
	var all []domain.ListMembership
	for page := 1; ; page++ {
		batch, err := s.Contacts(ctx, listID, page, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < pageSize {
			return all, nil
		}
	}
}
