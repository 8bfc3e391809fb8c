package domain

import "time"

// SuppressionReason enumerates why a contact was suppressed.
type SuppressionReason string

const (
	ReasonHardBounce         SuppressionReason = "hard_bounce"
	ReasonSoftBounceExceeded SuppressionReason = "soft_bounce_threshold"
	ReasonComplaint          SuppressionReason = "spam_complaint"
	ReasonManual             SuppressionReason = "manual"
	ReasonRecommended        SuppressionReason = "ai_recommended"
)

// IsPermanent reports whether the reason can never be downgraded by
// further bounce activity. Only explicit reactivation clears it.
func (r SuppressionReason) IsPermanent() bool {
	return r == ReasonHardBounce || r == ReasonComplaint
}

// SuppressionEntry is one append-only record of why and when a contact was
// suppressed. A contact has at most one active entry at a time; reactivation
// deactivates the entry rather than deleting it.
type SuppressionEntry struct {
	ID               string            `json:"id" db:"id"`
	ContactID        string            `json:"contact_id" db:"contact_id"`
	Reason           SuppressionReason `json:"reason" db:"reason"`
	SuppressedBy     string            `json:"suppressed_by" db:"suppressed_by"`
	Rationale        string            `json:"rationale,omitempty" db:"rationale"`
	Confidence       float64           `json:"confidence" db:"confidence"`
	SourceCampaignID string            `json:"source_campaign_id,omitempty" db:"source_campaign_id"`
	IsActive         bool              `json:"is_active" db:"is_active"`
	SuppressedAt     time.Time         `json:"suppressed_at" db:"suppressed_at"`
	ReactivatedAt    *time.Time        `json:"reactivated_at" db:"reactivated_at"`
	ReactivatedBy    string            `json:"reactivated_by,omitempty" db:"reactivated_by"`
}

// SuppressionRequest is one unit of work for the suppression engine.
type SuppressionRequest struct {
	ContactID        string            `json:"contact_id"`
	Reason           SuppressionReason `json:"reason"`
	SuppressedBy     string            `json:"suppressed_by"`
	Rationale        string            `json:"rationale,omitempty"`
	Confidence       float64           `json:"confidence,omitempty"`
	SourceCampaignID string            `json:"source_campaign_id,omitempty"`
}

// BulkResult accumulates per-item outcomes of a bulk mutation. One failing
// item never blocks the others.
type BulkResult struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}
