package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/listkeeper/internal/domain"
	"github.com/ignite/listkeeper/internal/service/list"
)

// ListRepo implements list.Repository against PostgreSQL.
//
// FIFO positions come from a per-list counter column advanced inside the
// append transaction; the row lock on the list serializes concurrent
// appends, so positions are strictly increasing per list.
type ListRepo struct{ db *sql.DB }

// NewListRepo creates a Postgres-backed list repository.
func NewListRepo(db *sql.DB) *ListRepo { return &ListRepo{db: db} }

const listColumns = `id, name, type, round_number, external_id, contact_count, bounce_rate, delivery_rate, health_score, retired, last_synced_at, created_at, updated_at`

func scanList(row interface{ Scan(...any) error }) (*domain.ContactList, error) {
	var l domain.ContactList
	var externalID sql.NullString
	err := row.Scan(&l.ID, &l.Name, &l.Type, &l.RoundNumber, &externalID,
		&l.ContactCount, &l.BounceRate, &l.DeliveryRate, &l.HealthScore,
		&l.Retired, &l.LastSyncedAt, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.ExternalID = externalID.String
	return &l, nil
}

func (r *ListRepo) GetList(ctx context.Context, listID string) (*domain.ContactList, error) {
	l, err := scanList(r.db.QueryRowContext(ctx,
		`SELECT `+listColumns+` FROM contact_lists WHERE id = $1`, listID))
	if err == sql.ErrNoRows {
		return nil, list.ErrListNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}
	return l, nil
}

// CreateList inserts a list. A partial unique index on round_number for
// non-retired campaign-round lists turns a duplicate round into a silent
// conflict, which is surfaced as ErrDuplicateRound.
func (r *ListRepo) CreateList(ctx context.Context, l *domain.ContactList) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO contact_lists (id, name, type, round_number, external_id, contact_count, retired, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), 0, false, NOW(), NOW())
		ON CONFLICT DO NOTHING
	`, l.ID, l.Name, l.Type, l.RoundNumber, l.ExternalID)
	if err != nil {
		return fmt.Errorf("create list: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return list.ErrDuplicateRound
	}
	return nil
}

func (r *ListRepo) ActiveRoundLists(ctx context.Context) ([]domain.ContactList, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+listColumns+`
		FROM contact_lists
		WHERE type = 'campaign_round' AND retired = false
		ORDER BY round_number ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("active round lists: %w", err)
	}
	defer rows.Close()

	var out []domain.ContactList
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

const membershipColumns = `id, contact_id, list_id, position, is_active, added_at, removed_at`

func scanMembership(row interface{ Scan(...any) error }) (*domain.ListMembership, error) {
	var m domain.ListMembership
	err := row.Scan(&m.ID, &m.ContactID, &m.ListID, &m.Position,
		&m.IsActive, &m.AddedAt, &m.RemovedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *ListRepo) GetMembership(ctx context.Context, contactID, listID string) (*domain.ListMembership, error) {
	m, err := scanMembership(r.db.QueryRowContext(ctx, `
		SELECT `+membershipColumns+`
		FROM list_memberships
		WHERE contact_id = $1 AND list_id = $2
	`, contactID, listID))
	if err == sql.ErrNoRows {
		return nil, list.ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return m, nil
}

// AppendMembership assigns position under the list row lock: the UPDATE on
// next_position serializes concurrent appends for the same list while
// leaving appends to other lists unblocked.
func (r *ListRepo) AppendMembership(ctx context.Context, contactID, listID string) (*domain.ListMembership, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var position int64
	err = tx.QueryRowContext(ctx, `
		UPDATE contact_lists
		SET next_position = next_position + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING next_position
	`, listID).Scan(&position)
	if err == sql.ErrNoRows {
		return nil, list.ErrListNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("advance position counter: %w", err)
	}

	m, err := scanMembership(tx.QueryRowContext(ctx, `
		INSERT INTO list_memberships (id, contact_id, list_id, position, is_active, added_at)
		VALUES ($1, $2, $3, $4, true, NOW())
		RETURNING `+membershipColumns,
		uuid.New().String(), contactID, listID, position))
	if err != nil {
		return nil, fmt.Errorf("insert membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return m, nil
}

func (r *ListRepo) ReactivateMembership(ctx context.Context, membershipID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE list_memberships
		SET is_active = true, removed_at = NULL
		WHERE id = $1
	`, membershipID)
	if err != nil {
		return fmt.Errorf("reactivate membership: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return list.ErrMembershipNotFound
	}
	return nil
}

func (r *ListRepo) DeactivateMembership(ctx context.Context, contactID, listID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE list_memberships
		SET is_active = false, removed_at = NOW()
		WHERE contact_id = $1 AND list_id = $2 AND is_active = true
	`, contactID, listID)
	if err != nil {
		return fmt.Errorf("deactivate membership: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return list.ErrMembershipNotFound
	}
	return nil
}

func (r *ListRepo) ActiveMembers(ctx context.Context, listID string, limit, offset int) ([]domain.ListMembership, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+membershipColumns+`
		FROM list_memberships
		WHERE list_id = $1 AND is_active = true
		ORDER BY position ASC
		LIMIT $2 OFFSET $3
	`, listID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("active members: %w", err)
	}
	defer rows.Close()

	var out []domain.ListMembership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *ListRepo) CountActiveMembers(ctx context.Context, listID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM list_memberships WHERE list_id = $1 AND is_active = true`,
		listID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return n, nil
}

func (r *ListRepo) CountBouncedMembers(ctx context.Context, listID string) (bounced, hard int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE c.bounce_count > 0),
			COUNT(*) FILTER (WHERE c.status IN ('bounced_hard', 'suppressed'))
		FROM list_memberships m
		JOIN contacts c ON c.id = m.contact_id
		WHERE m.list_id = $1 AND m.is_active = true
	`, listID).Scan(&bounced, &hard)
	if err != nil {
		return 0, 0, fmt.Errorf("count bounced members: %w", err)
	}
	return bounced, hard, nil
}

func (r *ListRepo) UpdateListMetrics(ctx context.Context, listID string, count int, bounceRate, deliveryRate, healthScore float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE contact_lists
		SET contact_count = $2, bounce_rate = $3, delivery_rate = $4,
		    health_score = $5, last_synced_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, listID, count, bounceRate, deliveryRate, healthScore)
	if err != nil {
		return fmt.Errorf("update list metrics: %w", err)
	}
	return nil
}
