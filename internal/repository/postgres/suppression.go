package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/listkeeper/internal/domain"
	"github.com/ignite/listkeeper/internal/service/suppression"
)

// SuppressionRepo implements suppression.Repository against PostgreSQL.
// The history table is append-only: rows are flipped inactive, never
// deleted.
type SuppressionRepo struct{ db *sql.DB }

// NewSuppressionRepo creates a Postgres-backed suppression repository.
func NewSuppressionRepo(db *sql.DB) *SuppressionRepo { return &SuppressionRepo{db: db} }

const entryColumns = `id, contact_id, reason, suppressed_by, rationale, confidence, source_campaign_id, is_active, suppressed_at, reactivated_at, reactivated_by`

func scanEntry(row interface{ Scan(...any) error }) (*domain.SuppressionEntry, error) {
	var e domain.SuppressionEntry
	var rationale, sourceCampaign, reactivatedBy sql.NullString
	err := row.Scan(&e.ID, &e.ContactID, &e.Reason, &e.SuppressedBy,
		&rationale, &e.Confidence, &sourceCampaign, &e.IsActive,
		&e.SuppressedAt, &e.ReactivatedAt, &reactivatedBy)
	if err != nil {
		return nil, err
	}
	e.Rationale = rationale.String
	e.SourceCampaignID = sourceCampaign.String
	e.ReactivatedBy = reactivatedBy.String
	return &e, nil
}

func (r *SuppressionRepo) CreateEntry(ctx context.Context, e *domain.SuppressionEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.SuppressedAt.IsZero() {
		e.SuppressedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO suppression_history
			(id, contact_id, reason, suppressed_by, rationale, confidence, source_campaign_id, is_active, suppressed_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), true, $8)
	`, e.ID, e.ContactID, e.Reason, e.SuppressedBy, e.Rationale,
		e.Confidence, e.SourceCampaignID, e.SuppressedAt)
	if err != nil {
		return fmt.Errorf("create suppression entry: %w", err)
	}
	return nil
}

func (r *SuppressionRepo) ActiveEntry(ctx context.Context, contactID string) (*domain.SuppressionEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM suppression_history
		WHERE contact_id = $1 AND is_active = true
		ORDER BY suppressed_at DESC
		LIMIT 1
	`, contactID))
	if err == sql.ErrNoRows {
		return nil, suppression.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("active suppression entry: %w", err)
	}
	return e, nil
}

func (r *SuppressionRepo) DeactivateEntries(ctx context.Context, contactID, reactivatedBy string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE suppression_history
		SET is_active = false, reactivated_by = $2, reactivated_at = $3
		WHERE contact_id = $1 AND is_active = true
	`, contactID, reactivatedBy, at)
	if err != nil {
		return fmt.Errorf("deactivate suppression entries: %w", err)
	}
	return nil
}

func (r *SuppressionRepo) History(ctx context.Context, contactID string) ([]domain.SuppressionEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM suppression_history
		WHERE contact_id = $1
		ORDER BY suppressed_at DESC
	`, contactID)
	if err != nil {
		return nil, fmt.Errorf("suppression history: %w", err)
	}
	defer rows.Close()

	var out []domain.SuppressionEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan suppression entry: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *SuppressionRepo) CountByReason(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT reason, COUNT(*)
		FROM suppression_history
		WHERE is_active = true
		GROUP BY reason
	`)
	if err != nil {
		return nil, fmt.Errorf("count by reason: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, err
		}
		out[reason] = n
	}
	return out, rows.Err()
}
