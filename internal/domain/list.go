package domain

import "time"

// ListType enumerates the kinds of contact lists the system tracks.
type ListType string

const (
	// ListMaster is the superset of all real contacts.
	ListMaster ListType = "master"
	// ListCampaignRound holds the contacts targeted by one send round.
	ListCampaignRound ListType = "campaign_round"
	// ListSuppression mirrors the set of suppressed contacts.
	ListSuppression ListType = "suppression"
)

// ContactList is a named, typed collection of contacts. The count/rate
// fields are derived cache values and never the source of truth for
// membership.
type ContactList struct {
	ID           string     `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	Type         ListType   `json:"type" db:"type"`
	RoundNumber  *int       `json:"round_number" db:"round_number"`
	ExternalID   string     `json:"external_id,omitempty" db:"external_id"`
	ContactCount int        `json:"contact_count" db:"contact_count"`
	BounceRate   float64    `json:"bounce_rate" db:"bounce_rate"`
	DeliveryRate float64    `json:"delivery_rate" db:"delivery_rate"`
	HealthScore  float64    `json:"health_score" db:"health_score"`
	Retired      bool       `json:"retired" db:"retired"`
	LastSyncedAt *time.Time `json:"last_synced_at" db:"last_synced_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// ListMembership links a contact to a list at a FIFO position. Position
// values within one list are unique and increase in insertion order;
// removal is a soft delete and never renumbers remaining members.
type ListMembership struct {
	ID        string     `json:"id" db:"id"`
	ContactID string     `json:"contact_id" db:"contact_id"`
	ListID    string     `json:"list_id" db:"list_id"`
	Position  int64      `json:"position" db:"position"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	AddedAt   time.Time  `json:"added_at" db:"added_at"`
	RemovedAt *time.Time `json:"removed_at" db:"removed_at"`
}

// ListMetadata is the cacheable slice of ContactList health and count
// data.
type ListMetadata struct {
	ListID       string    `json:"list_id"`
	ContactCount int       `json:"contact_count"`
	BounceRate   float64   `json:"bounce_rate"`
	DeliveryRate float64   `json:"delivery_rate"`
	HealthScore  float64   `json:"health_score"`
	SyncedAt     time.Time `json:"synced_at"`
}

// ImportRecord is one row of a bulk contact import.
type ImportRecord struct {
	Email      string `json:"email" validate:"required,email"`
	ExternalID string `json:"external_id,omitempty"`
}

// ImportError captures a single failed record in a bulk import. The batch
// as a whole continues past individual failures.
type ImportError struct {
	Index int    `json:"index"`
	Email string `json:"email"`
	Err   string `json:"error"`
}

// ImportResult summarizes a bulk import: partial success by design.
type ImportResult struct {
	Imported int           `json:"imported"`
	Failed   int           `json:"failed"`
	Errors   []ImportError `json:"errors,omitempty"`
}
