package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/listkeeper/internal/domain"
	"github.com/ignite/listkeeper/internal/service/contact"
)

// ContactRepo implements contact.Repository against PostgreSQL.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact repository.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

const contactColumns = `id, email, email_hash, external_id, status, bounce_count, last_bounce_at, last_bounce_type, created_at, updated_at`

func scanContact(row interface{ Scan(...any) error }) (*domain.Contact, error) {
	var c domain.Contact
	var externalID sql.NullString
	var lastBounceType sql.NullString
	err := row.Scan(&c.ID, &c.Email, &c.EmailHash, &externalID, &c.Status,
		&c.BounceCount, &c.LastBounceAt, &lastBounceType, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.ExternalID = externalID.String
	if lastBounceType.Valid {
		bt := domain.BounceType(lastBounceType.String)
		c.LastBounceType = &bt
	}
	return &c, nil
}

func (r *ContactRepo) GetByID(ctx context.Context, id string) (*domain.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, contact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

func (r *ContactRepo) GetByEmail(ctx context.Context, email string) (*domain.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE email = $1`, email))
	if err == sql.ErrNoRows {
		return nil, contact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact by email: %w", err)
	}
	return c, nil
}

// Create inserts a contact. Racing inserts on the unique email index
// resolve to the existing row, so first-sighting creation is idempotent.
func (r *ContactRepo) Create(ctx context.Context, c *domain.Contact) (*domain.Contact, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	created, err := scanContact(r.db.QueryRowContext(ctx, `
		INSERT INTO contacts (id, email, email_hash, external_id, status, bounce_count, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, 0, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE SET updated_at = NOW()
		RETURNING `+contactColumns,
		c.ID, c.Email, c.EmailHash, c.ExternalID, c.Status))
	if err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}
	return created, nil
}

func (r *ContactRepo) RecordBounce(ctx context.Context, id string, bounceType domain.BounceType, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE contacts
		SET bounce_count = bounce_count + 1,
		    last_bounce_at = $2,
		    last_bounce_type = $3,
		    updated_at = NOW()
		WHERE id = $1
	`, id, at, bounceType)
	if err != nil {
		return fmt.Errorf("record bounce: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return contact.ErrNotFound
	}
	return nil
}

func (r *ContactRepo) UpdateStatus(ctx context.Context, id string, status domain.ContactStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE contacts SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("update contact status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return contact.ErrNotFound
	}
	return nil
}
