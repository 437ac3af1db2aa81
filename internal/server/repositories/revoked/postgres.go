package revoked

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/confideapp/confide/internal/dbx"
)

// PostgresRepository stores the denylist in the revoked_tokens table.
// Expiry is enforced at read time; DeleteExpired is pure housekeeping.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, token, principalID string, expiresAt time.Time) error {
	query := `
		INSERT INTO revoked_tokens (token, principal_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, token, principalID, expiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Contains(ctx context.Context, token string) (bool, error) {
	query := `
		SELECT 1 FROM revoked_tokens
		WHERE token = $1 AND expires_at > now()
	`
	var one int
	err := r.db.QueryRowContext(ctx, query, token).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM revoked_tokens
		WHERE expires_at <= now()
	`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
