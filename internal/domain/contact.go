package domain

import "time"

// ContactStatus enumerates the states a contact can be in.
type ContactStatus string

const (
	ContactActive      ContactStatus = "active"
	ContactBouncedSoft ContactStatus = "bounced_soft"
	ContactBouncedHard ContactStatus = "bounced_hard"
	ContactSuppressed  ContactStatus = "suppressed"
)

// BounceType classifies a delivery failure reported by the provider.
type BounceType string

const (
	BounceHard      BounceType = "hard"
	BounceSoft      BounceType = "soft"
	BounceComplaint BounceType = "complaint"
)

// IsPermanent returns true for bounce types that warrant immediate,
// permanent suppression regardless of counters.
func (b BounceType) IsPermanent() bool {
	return b == BounceHard || b == BounceComplaint
}

// Contact represents a single email recipient. One row per unique address;
// contacts are never hard-deleted.
type Contact struct {
	ID             string        `json:"id" db:"id"`
	Email          string        `json:"email" db:"email"`
	EmailHash      string        `json:"-" db:"email_hash"`
	ExternalID     string        `json:"external_id,omitempty" db:"external_id"`
	Status         ContactStatus `json:"status" db:"status"`
	BounceCount    int           `json:"bounce_count" db:"bounce_count"`
	LastBounceAt   *time.Time    `json:"last_bounce_at" db:"last_bounce_at"`
	LastBounceType *BounceType   `json:"last_bounce_type" db:"last_bounce_type"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// BounceEvent is a single bounce or complaint reported by the delivery
// provider for a list.
type BounceEvent struct {
	Email             string     `json:"email"`
	ContactExternalID string     `json:"contact_external_id,omitempty"`
	BounceType        BounceType `json:"bounce_type"`
	BouncedAt         time.Time  `json:"bounced_at"`
	Diagnostic        string     `json:"diagnostic,omitempty"`
}
