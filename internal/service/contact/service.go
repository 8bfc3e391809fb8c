package contact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/listkeeper/internal/domain"
)

// Service implements contact business logic. It is safe for concurrent use.
type Service struct {
	repo Repository
}

// NewService creates a contact service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NormalizeEmail lowercases and trims an email address. Every entry point
// into contact identity goes through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashEmail creates a SHA256 hash of a normalized email address.
func HashEmail(email string) string {
	h := sha256.Sum256([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(h[:])
}

// GetByID returns a contact by internal id.
func (s *Service) GetByID(ctx context.Context, id string) (*domain.Contact, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByEmail returns a contact by email address.
func (s *Service) GetByEmail(ctx context.Context, email string) (*domain.Contact, error) {
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

// CreateOrGet returns the contact for the given email, creating it on first
// sighting. Races on the unique email index resolve to the existing row.
func (s *Service) CreateOrGet(ctx context.Context, email, externalID string) (*domain.Contact, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if err != ErrNotFound {
		return nil, fmt.Errorf("lookup contact: %w", err)
	}

	c := &domain.Contact{
		Email:      email,
		EmailHash:  HashEmail(email),
		ExternalID: externalID,
		Status:     domain.ContactActive,
	}
	return s.repo.Create(ctx, c)
}

// RecordBounce applies one provider bounce event to a contact, creating the
// contact if the email is unknown. This is pure enrichment: it updates
// counters and bounce status but never suppresses.
func (s *Service) RecordBounce(ctx context.Context, ev domain.BounceEvent) (*domain.Contact, error) {
	c, err := s.CreateOrGet(ctx, ev.Email, ev.ContactExternalID)
	if err != nil {
		return nil, err
	}

	at := ev.BouncedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if err := s.repo.RecordBounce(ctx, c.ID, ev.BounceType, at); err != nil {
		return nil, fmt.Errorf("record bounce for %s: %w", c.ID, err)
	}

	// Suppressed contacts keep their status; bounce state is still tracked.
	if c.Status != domain.ContactSuppressed {
		status := domain.ContactBouncedSoft
		if ev.BounceType == domain.BounceHard || ev.BounceType == domain.BounceComplaint {
			status = domain.ContactBouncedHard
		}
		if err := s.repo.UpdateStatus(ctx, c.ID, status); err != nil {
			return nil, fmt.Errorf("update contact status: %w", err)
		}
		c.Status = status
	}

	c.BounceCount++
	c.LastBounceAt = &at
	bt := ev.BounceType
	c.LastBounceType = &bt
	return c, nil
}
