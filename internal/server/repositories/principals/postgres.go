package principals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/confideapp/confide/internal/dbx"
	"github.com/confideapp/confide/internal/errs"
	"github.com/confideapp/confide/internal/server/models"
)

const uniqueViolation = "23505"

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, p *models.Principal) (*models.Principal, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Role == "" {
		p.Role = models.RoleUser
	}
	if p.Status == "" {
		p.Status = models.StatusActive
	}

	query := `
		INSERT INTO principals (id, username, email, password_hash, role, status, email_confirmed,
			confirm_otp, confirm_otp_expires_at, profile_image_url, profile_image_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	var confirmCode sql.NullString
	var confirmExpires sql.NullTime
	if p.ConfirmOTP != nil {
		confirmCode = sql.NullString{String: p.ConfirmOTP.Code, Valid: true}
		confirmExpires = sql.NullTime{Time: p.ConfirmOTP.ExpiresAt, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		p.ID, p.Username, p.Email, p.PasswordHash, p.Role, p.Status, p.EmailConfirmed,
		confirmCode, confirmExpires, p.ProfileImage.URL, p.ProfileImage.PublicID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, errs.Wrap(errs.Conflict, "username or email already taken", err)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

const principalColumns = `
	id, username, email, password_hash, role, status, email_confirmed,
	confirm_otp, confirm_otp_expires_at, reset_otp, reset_otp_expires_at,
	profile_image_url, profile_image_id, cover_image_url, cover_image_id,
	created_at, updated_at`

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Principal, error) {
	return r.getBy(ctx, "id", id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Principal, error) {
	return r.getBy(ctx, "email", email)
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.Principal, error) {
	return r.getBy(ctx, "username", username)
}

func (r *PostgresRepository) getBy(ctx context.Context, column, value string) (*models.Principal, error) {
	query := fmt.Sprintf(`SELECT %s FROM principals WHERE %s = $1`, principalColumns, column)

	p := &models.Principal{}
	var confirmCode, resetCode sql.NullString
	var confirmExpires, resetExpires sql.NullTime

	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&p.ID, &p.Username, &p.Email, &p.PasswordHash, &p.Role, &p.Status, &p.EmailConfirmed,
		&confirmCode, &confirmExpires, &resetCode, &resetExpires,
		&p.ProfileImage.URL, &p.ProfileImage.PublicID, &p.CoverImage.URL, &p.CoverImage.PublicID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.New(errs.NotFound, "principal not found")
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if confirmCode.Valid {
		p.ConfirmOTP = &models.OTPChallenge{Code: confirmCode.String, ExpiresAt: confirmExpires.Time}
	}
	if resetCode.Valid {
		p.ResetOTP = &models.OTPChallenge{Code: resetCode.String, ExpiresAt: resetExpires.Time}
	}

	if err := r.loadRefreshTokens(ctx, p); err != nil {
		return nil, err
	}
	if err := r.loadIdentities(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

func (r *PostgresRepository) loadRefreshTokens(ctx context.Context, p *models.Principal) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT token FROM refresh_tokens WHERE principal_id = $1 ORDER BY created_at`, p.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		p.RefreshTokens = append(p.RefreshTokens, token)
	}
	return rows.Err()
}

func (r *PostgresRepository) loadIdentities(ctx context.Context, p *models.Principal) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT provider, subject FROM federated_identities WHERE principal_id = $1`, p.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ident models.FederatedIdentity
		if err := rows.Scan(&ident.Provider, &ident.Subject); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		p.Identities = append(p.Identities, ident)
	}
	return rows.Err()
}

func (r *PostgresRepository) SetOTP(ctx context.Context, id string, purpose models.OTPPurpose, code string, expiresAt time.Time) error {
	query := `
		UPDATE principals
		SET confirm_otp = $2, confirm_otp_expires_at = $3, updated_at = now()
		WHERE id = $1
	`
	if purpose == models.PurposePasswordReset {
		query = `
			UPDATE principals
			SET reset_otp = $2, reset_otp_expires_at = $3, updated_at = now()
			WHERE id = $1
		`
	}
	return r.exec(ctx, query, id, code, expiresAt)
}

func (r *PostgresRepository) ClearOTP(ctx context.Context, id string, purpose models.OTPPurpose) error {
	query := `
		UPDATE principals
		SET confirm_otp = NULL, confirm_otp_expires_at = NULL, updated_at = now()
		WHERE id = $1
	`
	if purpose == models.PurposePasswordReset {
		query = `
			UPDATE principals
			SET reset_otp = NULL, reset_otp_expires_at = NULL, updated_at = now()
			WHERE id = $1
		`
	}
	return r.exec(ctx, query, id)
}

// ConfirmEmail flips the flag and destroys the challenge atomically, so
// there is no window where confirmation succeeded but the flag is unset.
func (r *PostgresRepository) ConfirmEmail(ctx context.Context, id string) error {
	query := `
		UPDATE principals
		SET email_confirmed = true, confirm_otp = NULL, confirm_otp_expires_at = NULL, updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id)
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	query := `
		UPDATE principals
		SET password_hash = $2, reset_otp = NULL, reset_otp_expires_at = NULL, updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, hash)
}

func (r *PostgresRepository) AppendRefreshToken(ctx context.Context, id, token string) error {
	query := `
		INSERT INTO refresh_tokens (principal_id, token)
		VALUES ($1, $2)
		ON CONFLICT (token) DO NOTHING
	`
	return r.exec(ctx, query, id, token)
}

func (r *PostgresRepository) RemoveRefreshToken(ctx context.Context, id, token string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE principal_id = $1 AND token = $2
	`
	return r.exec(ctx, query, id, token)
}

func (r *PostgresRepository) ClearRefreshTokens(ctx context.Context, id string) ([]string, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE principal_id = $1
		RETURNING token
	`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var purged []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		purged = append(purged, token)
	}
	return purged, rows.Err()
}

func (r *PostgresRepository) SetStatus(ctx context.Context, id, status string) error {
	query := `
		UPDATE principals
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, status)
}

func (r *PostgresRepository) LinkIdentity(ctx context.Context, id string, ident models.FederatedIdentity) error {
	query := `
		INSERT INTO federated_identities (provider, subject, principal_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider, subject) DO NOTHING
	`
	return r.exec(ctx, query, ident.Provider, ident.Subject, id)
}

func (r *PostgresRepository) SetProfileImage(ctx context.Context, id string, img models.ImageRef) error {
	query := `
		UPDATE principals
		SET profile_image_url = $2, profile_image_id = $3, updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, img.URL, img.PublicID)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
