package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dtroode/gophdate-session/internal/model"
)

var _ model.Backing = (*Backing)(nil)

// Backing stores the credential record as one row of the credentials table.
type Backing struct {
	db        *sql.DB
	namespace string
}

// NewBacking creates a backing bound to the given namespace row.
func NewBacking(db *sql.DB, namespace string) *Backing {
	return &Backing{db: db, namespace: namespace}
}

// Name returns the backing name.
func (b *Backing) Name() string {
	return "postgres"
}

// Read loads the namespace row. A missing row yields an empty record.
func (b *Backing) Read(ctx context.Context) (model.Record, error) {
	const query = `
        SELECT auth_token, refresh_token, user_json, user_id
        FROM credentials WHERE namespace = $1
    `
	var rec model.Record
	err := b.db.QueryRowContext(ctx, query, b.namespace).Scan(
		&rec.AuthToken, &rec.RefreshToken, &rec.User, &rec.UserID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Record{}, nil
		}
		return model.Record{}, fmt.Errorf("failed to read credentials: %w", err)
	}
	return rec, nil
}

// Write upserts the namespace row in a single statement.
func (b *Backing) Write(ctx context.Context, record model.Record) error {
	const query = `
        INSERT INTO credentials (namespace, auth_token, refresh_token, user_json, user_id, updated_at)
        VALUES ($1,$2,$3,$4,$5,NOW())
        ON CONFLICT (namespace) DO UPDATE SET
            auth_token = EXCLUDED.auth_token,
            refresh_token = EXCLUDED.refresh_token,
            user_json = EXCLUDED.user_json,
            user_id = EXCLUDED.user_id,
            updated_at = NOW()
    `
	_, err := b.db.ExecContext(ctx, query,
		b.namespace, record.AuthToken, record.RefreshToken, record.User, record.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// Clear deletes the namespace row.
func (b *Backing) Clear(ctx context.Context) error {
	const query = `DELETE FROM credentials WHERE namespace = $1`
	if _, err := b.db.ExecContext(ctx, query, b.namespace); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}
