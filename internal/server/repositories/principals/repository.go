// Package principals provides the durable store for principal records.
// Every mutating operation is a single statement (or runs on the caller's
// transaction via dbx.DBTX), so concurrent logins and logouts for the
// same principal never lose updates to a read-modify-write race.
package principals

import (
	"context"
	"time"

	"github.com/confideapp/confide/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, p *models.Principal) (*models.Principal, error)

	GetByID(ctx context.Context, id string) (*models.Principal, error)
	GetByEmail(ctx context.Context, email string) (*models.Principal, error)
	GetByUsername(ctx context.Context, username string) (*models.Principal, error)

	// SetOTP installs a challenge for the purpose, overwriting any prior
	// one. ClearOTP removes it. ConfirmEmail sets the confirmation flag
	// and clears the email-confirm challenge in the same statement.
	SetOTP(ctx context.Context, id string, purpose models.OTPPurpose, code string, expiresAt time.Time) error
	ClearOTP(ctx context.Context, id string, purpose models.OTPPurpose) error
	ConfirmEmail(ctx context.Context, id string) error

	// UpdatePassword stores the new hash and clears the password-reset
	// challenge. Emptying the refresh-token list is a separate call so
	// the lifecycle can run both on one transaction.
	UpdatePassword(ctx context.Context, id, hash string) error

	AppendRefreshToken(ctx context.Context, id, token string) error
	RemoveRefreshToken(ctx context.Context, id, token string) error
	// ClearRefreshTokens empties the list and returns the purged raw
	// tokens so the caller can denylist each one.
	ClearRefreshTokens(ctx context.Context, id string) ([]string, error)

	SetStatus(ctx context.Context, id, status string) error

	// LinkIdentity is idempotent for an already-linked identity.
	LinkIdentity(ctx context.Context, id string, ident models.FederatedIdentity) error

	SetProfileImage(ctx context.Context, id string, img models.ImageRef) error
}
