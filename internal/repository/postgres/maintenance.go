package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/listkeeper/internal/domain"
)

// MaintenanceLogRepo persists maintenance run audit records. Logs are
// created before any side effect and only ever updated forward; nothing
// here deletes.
type MaintenanceLogRepo struct{ db *sql.DB }

// NewMaintenanceLogRepo creates a Postgres-backed maintenance log repository.
func NewMaintenanceLogRepo(db *sql.DB) *MaintenanceLogRepo { return &MaintenanceLogRepo{db: db} }

const maintenanceColumns = `id, campaign_schedule_id, list_id, maintenance_type, stage, status, contacts_suppressed, contacts_rebalanced, suppression_plan, rebalance_plan, recommendation, confidence, error, executed_at, completed_at`

func scanMaintenanceLog(row interface{ Scan(...any) error }) (*domain.MaintenanceLog, error) {
	var l domain.MaintenanceLog
	var recommendation, errMsg sql.NullString
	err := row.Scan(&l.ID, &l.CampaignScheduleID, &l.ListID, &l.MaintenanceType,
		&l.Stage, &l.Status, &l.ContactsSuppressed, &l.ContactsRebalanced,
		&l.SuppressionPlan, &l.RebalancePlan, &recommendation, &l.Confidence,
		&errMsg, &l.ExecutedAt, &l.CompletedAt)
	if err != nil {
		return nil, err
	}
	l.Recommendation = recommendation.String
	l.Error = errMsg.String
	return &l, nil
}

// Create inserts the initial audit record for a run.
func (r *MaintenanceLogRepo) Create(ctx context.Context, l *domain.MaintenanceLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.ExecutedAt.IsZero() {
		l.ExecutedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO maintenance_logs
			(id, campaign_schedule_id, list_id, maintenance_type, stage, status, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, l.ID, l.CampaignScheduleID, l.ListID, l.MaintenanceType, l.Stage, l.Status, l.ExecutedAt)
	if err != nil {
		return fmt.Errorf("create maintenance log: %w", err)
	}
	return nil
}

// UpdateStage advances the stage marker for an in-flight run.
func (r *MaintenanceLogRepo) UpdateStage(ctx context.Context, id string, stage domain.MaintenanceStage) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE maintenance_logs SET stage = $2 WHERE id = $1`, id, stage)
	if err != nil {
		return fmt.Errorf("update maintenance stage: %w", err)
	}
	return nil
}

// SaveSuppressionPlan stores the raw suppression plan and its provenance.
func (r *MaintenanceLogRepo) SaveSuppressionPlan(ctx context.Context, id string, plan []byte, recommendation string, confidence float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE maintenance_logs
		SET suppression_plan = $2, recommendation = $3, confidence = $4
		WHERE id = $1
	`, id, plan, recommendation, confidence)
	if err != nil {
		return fmt.Errorf("save suppression plan: %w", err)
	}
	return nil
}

// SaveRebalancePlan stores the raw rebalance plan.
func (r *MaintenanceLogRepo) SaveRebalancePlan(ctx context.Context, id string, plan []byte) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE maintenance_logs SET rebalance_plan = $2 WHERE id = $1`, id, plan)
	if err != nil {
		return fmt.Errorf("save rebalance plan: %w", err)
	}
	return nil
}

// UpdateCounts records how many contacts each executed stage touched.
func (r *MaintenanceLogRepo) UpdateCounts(ctx context.Context, id string, suppressed, rebalanced int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE maintenance_logs
		SET contacts_suppressed = $2, contacts_rebalanced = $3
		WHERE id = $1
	`, id, suppressed, rebalanced)
	if err != nil {
		return fmt.Errorf("update maintenance counts: %w", err)
	}
	return nil
}

// Finalize marks a run finished. errMsg is empty for successful runs.
func (r *MaintenanceLogRepo) Finalize(ctx context.Context, id string, status domain.MaintenanceStatus, stage domain.MaintenanceStage, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE maintenance_logs
		SET status = $2, stage = $3, error = NULLIF($4, ''), completed_at = NOW()
		WHERE id = $1
	`, id, status, stage, errMsg)
	if err != nil {
		return fmt.Errorf("finalize maintenance log: %w", err)
	}
	return nil
}

// Get fetches one audit record.
func (r *MaintenanceLogRepo) Get(ctx context.Context, id string) (*domain.MaintenanceLog, error) {
	l, err := scanMaintenanceLog(r.db.QueryRowContext(ctx,
		`SELECT `+maintenanceColumns+` FROM maintenance_logs WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("maintenance log %s: not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get maintenance log: %w", err)
	}
	return l, nil
}

// RecentForList returns the newest runs for a list, newest first.
func (r *MaintenanceLogRepo) RecentForList(ctx context.Context, listID string, limit int) ([]domain.MaintenanceLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+maintenanceColumns+`
		FROM maintenance_logs
		WHERE list_id = $1
		ORDER BY executed_at DESC
		LIMIT $2
	`, listID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent maintenance logs: %w", err)
	}
	defer rows.Close()

	var out []domain.MaintenanceLog
	for rows.Next() {
		l, err := scanMaintenanceLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan maintenance log: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}
