package suppression

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/listkeeper/internal/domain"
	"github.com/ignite/listkeeper/internal/pkg/logger"
	"github.com/ignite/listkeeper/internal/service/contact"
)

// DefaultSoftBounceThreshold is the number of soft bounces after which a
// contact is promoted to permanent suppression. Override via Config.
const DefaultSoftBounceThreshold = 3

// ContactStore is the slice of the contact service the engine needs.
type ContactStore interface {
	GetByID(ctx context.Context, id string) (*domain.Contact, error)
	GetByEmail(ctx context.Context, email string) (*domain.Contact, error)
	UpdateStatus(ctx context.Context, id string, status domain.ContactStatus) error
}

// Roster mirrors suppressed contacts onto the suppression list. Failures
// here never fail a suppression; the history entry is authoritative.
type Roster interface {
	AddContact(ctx context.Context, contactID, listID string) (*domain.ListMembership, error)
	RemoveContact(ctx context.Context, contactID, listID string) error
}

// StatusCache caches per-contact suppression verdicts. The second return of
// Get reports whether the cache had an answer at all.
type StatusCache interface {
	GetSuppression(ctx context.Context, contactID string) (suppressed, found bool)
	SetSuppression(ctx context.Context, contactID string, suppressed bool)
	InvalidateSuppression(ctx context.Context, contactID string)
}

// Config tunes the engine.
type Config struct {
	// SoftBounceThreshold promotes repeated soft bounces to permanent
	// suppression. Zero means DefaultSoftBounceThreshold.
	SoftBounceThreshold int
	// SuppressionListID is the mirror list; empty disables mirroring.
	SuppressionListID string
}

// Engine implements the suppression rules. It is safe for concurrent use.
type Engine struct {
	repo      Repository
	contacts  ContactStore
	roster    Roster
	cache     StatusCache
	threshold int
	listID    string
}

// NewEngine creates a suppression engine. roster and cache may be nil.
func NewEngine(repo Repository, contacts ContactStore, roster Roster, cache StatusCache, cfg Config) *Engine {
	threshold := cfg.SoftBounceThreshold
	if threshold <= 0 {
		threshold = DefaultSoftBounceThreshold
	}
	return &Engine{
		repo:      repo,
		contacts:  contacts,
		roster:    roster,
		cache:     cache,
		threshold: threshold,
		listID:    cfg.SuppressionListID,
	}
}

// SoftBounceThreshold returns the configured promotion threshold.
func (e *Engine) SoftBounceThreshold() int { return e.threshold }

// Classify maps a contact's bounce state to a suppression reason, if any.
// Hard bounces and complaints are always permanent; soft bounces qualify
// once the counter reaches the threshold.
func (e *Engine) Classify(c *domain.Contact) (domain.SuppressionReason, bool) {
	if c.LastBounceType == nil {
		return "", false
	}
	switch *c.LastBounceType {
	case domain.BounceHard:
		return domain.ReasonHardBounce, true
	case domain.BounceComplaint:
		return domain.ReasonComplaint, true
	case domain.BounceSoft:
		if c.BounceCount >= e.threshold {
			return domain.ReasonSoftBounceExceeded, true
		}
	}
	return "", false
}

// Suppress creates a new active history entry and marks the contact
// suppressed. Adding the contact to the suppression mirror list is
// best-effort; the entry and the status change are authoritative.
func (e *Engine) Suppress(ctx context.Context, req domain.SuppressionRequest) error {
	if req.ContactID == "" {
		return ErrContactRequired
	}
	if req.SuppressedBy == "" {
		req.SuppressedBy = "system"
	}

	// One active entry per contact: retire any earlier entry first.
	if err := e.repo.DeactivateEntries(ctx, req.ContactID, req.SuppressedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("retire previous entries: %w", err)
	}

	entry := &domain.SuppressionEntry{
		ContactID:        req.ContactID,
		Reason:           req.Reason,
		SuppressedBy:     req.SuppressedBy,
		Rationale:        req.Rationale,
		Confidence:       req.Confidence,
		SourceCampaignID: req.SourceCampaignID,
		IsActive:         true,
		SuppressedAt:     time.Now().UTC(),
	}
	if err := e.repo.CreateEntry(ctx, entry); err != nil {
		return fmt.Errorf("create suppression entry: %w", err)
	}

	if err := e.contacts.UpdateStatus(ctx, req.ContactID, domain.ContactSuppressed); err != nil {
		return fmt.Errorf("mark contact suppressed: %w", err)
	}

	if e.roster != nil && e.listID != "" {
		if _, err := e.roster.AddContact(ctx, req.ContactID, e.listID); err != nil {
			logger.Warn("suppression list mirror failed",
				"contact_id", req.ContactID, "error", err.Error())
		}
	}

	if e.cache != nil {
		e.cache.InvalidateSuppression(ctx, req.ContactID)
	}
	return nil
}

// BulkSuppress applies Suppress per request. One failing contact does not
// block the others.
func (e *Engine) BulkSuppress(ctx context.Context, reqs []domain.SuppressionRequest) *domain.BulkResult {
	result := &domain.BulkResult{}
	for _, req := range reqs {
		if err := e.Suppress(ctx, req); err != nil {
			result.Failed++
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s: %v", req.ContactID, err))
			continue
		}
		result.Succeeded++
	}
	return result
}

// Reactivate deactivates the contact's history entries and restores ACTIVE
// status. It does not re-add the contact to any round list; re-inclusion is
// a separate, explicit act.
func (e *Engine) Reactivate(ctx context.Context, contactID, reactivatedBy string) error {
	if contactID == "" {
		return ErrContactRequired
	}
	if reactivatedBy == "" {
		reactivatedBy = "system"
	}

	if err := e.repo.DeactivateEntries(ctx, contactID, reactivatedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate entries: %w", err)
	}
	if err := e.contacts.UpdateStatus(ctx, contactID, domain.ContactActive); err != nil {
		return fmt.Errorf("restore contact status: %w", err)
	}

	if e.roster != nil && e.listID != "" {
		if err := e.roster.RemoveContact(ctx, contactID, e.listID); err != nil {
			logger.Warn("suppression list unmirror failed",
				"contact_id", contactID, "error", err.Error())
		}
	}

	if e.cache != nil {
		e.cache.InvalidateSuppression(ctx, contactID)
	}
	return nil
}

// IsSuppressed reports whether the contact may not receive mail. Accepts a
// contact id or an email address. Cache-first: id keys are answered from
// the cache without touching the store, email keys resolve to an id first.
// On a miss the verdict is derived from contact status OR an active history
// entry (the two can disagree briefly across error recovery, and either is
// sufficient), then cached. Any read error fails OPEN.
func (e *Engine) IsSuppressed(ctx context.Context, contactIDOrEmail string) bool {
	byEmail := strings.Contains(contactIDOrEmail, "@")
	if e.cache != nil && !byEmail {
		if suppressed, found := e.cache.GetSuppression(ctx, contactIDOrEmail); found {
			return suppressed
		}
	}

	c, err := e.resolve(ctx, contactIDOrEmail)
	if err != nil {
		// Unknown contact or read failure: sendable either way.
		logger.Debug("suppression lookup failed open",
			"key", contactIDOrEmail, "error", err.Error())
		return false
	}

	if e.cache != nil && byEmail {
		if suppressed, found := e.cache.GetSuppression(ctx, c.ID); found {
			return suppressed
		}
	}

	suppressed := c.Status == domain.ContactSuppressed
	if !suppressed {
		_, err := e.repo.ActiveEntry(ctx, c.ID)
		switch err {
		case nil:
			suppressed = true
		case ErrNotFound:
			// no active entry
		default:
			logger.Warn("suppression history read failed open",
				"contact_id", c.ID, "error", err.Error())
			return false
		}
	}

	if e.cache != nil {
		e.cache.SetSuppression(ctx, c.ID, suppressed)
	}
	return suppressed
}

// resolve turns an id-or-email key into a contact. Email keys go through
// the same normalization as every other entry into contact identity, so a
// mixed-case address finds its contact instead of failing open.
func (e *Engine) resolve(ctx context.Context, key string) (*domain.Contact, error) {
	if strings.Contains(key, "@") {
		return e.contacts.GetByEmail(ctx, contact.NormalizeEmail(key))
	}
	return e.contacts.GetByID(ctx, key)
}

// History returns the full audit trail for a contact, newest first.
func (e *Engine) History(ctx context.Context, contactID string) ([]domain.SuppressionEntry, error) {
	return e.repo.History(ctx, contactID)
}

// Stats returns active suppression counts grouped by reason.
func (e *Engine) Stats(ctx context.Context) (map[string]int, error) {
	return e.repo.CountByReason(ctx)
}
