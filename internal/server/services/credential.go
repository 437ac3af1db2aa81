// Package services contains server-side business logic. This file implements
// CredentialService, which orchestrates the account lifecycle: signup, email
// confirmation, login, token refresh, logout, password reset, and account
// freeze/restore.
package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/confideapp/confide/internal/cryptox"
	"github.com/confideapp/confide/internal/dbx"
	"github.com/confideapp/confide/internal/errs"
	"github.com/confideapp/confide/internal/logging"
	"github.com/confideapp/confide/internal/server/config"
	"github.com/confideapp/confide/internal/server/models"
	"github.com/confideapp/confide/internal/server/repositories/repomanager"
	"github.com/confideapp/confide/internal/server/token"
)

// Session bundles an authenticated principal with its freshly minted
// token pair. The principal is always redacted.
type Session struct {
	Principal    *models.Principal
	AccessToken  string
	RefreshToken string
}

// ExternalIdentity is a provider-verified identity handed in by the
// federated-login transport. Verifying the provider's own token is the
// caller's job; by the time it reaches here the identity is trusted.
type ExternalIdentity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

// CredentialService implements the account lifecycle on top of the
// principal store, the token service, and the crypto primitives.
type CredentialService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *token.Service
	hasher      *cryptox.Hasher
	notifier    Notifier
	log         logging.Logger

	confirmOTPTTL time.Duration
	resetOTPTTL   time.Duration
}

// NewCredentialService constructs a CredentialService using repositories
// and server config.
func NewCredentialService(db *sql.DB, m repomanager.RepositoryManager, tokens *token.Service,
	hasher *cryptox.Hasher, notifier Notifier, log logging.Logger, cfg *config.Config) *CredentialService {
	return &CredentialService{
		db:            db,
		repomanager:   m,
		tokens:        tokens,
		hasher:        hasher,
		notifier:      notifier,
		log:           log,
		confirmOTPTTL: cfg.ConfirmOTPTTL,
		resetOTPTTL:   cfg.ResetOTPTTL,
	}
}

// Signup creates an unconfirmed principal, installs an email-confirmation
// code, and reports it through the notifier. Username and email uniqueness
// violations surface as a single Conflict error.
func (s *CredentialService) Signup(ctx context.Context, username, email, password string) (*models.Principal, error) {
	if username == "" || email == "" {
		return nil, errs.New(errs.Validation, "username and email are required")
	}
	if password == "" {
		return nil, errs.New(errs.Validation, "password is required")
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, err
	}

	code, err := cryptox.GenerateOTP(cryptox.DefaultOTPLength)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Principals(s.db)
	created, err := repo.Create(ctx, &models.Principal{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		ConfirmOTP: &models.OTPChallenge{
			Code:      code,
			ExpiresAt: time.Now().Add(s.confirmOTPTTL),
		},
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifier.ConfirmationCode(ctx, created, code); err != nil {
		s.log.Warn(ctx, "confirmation code delivery failed", "principal_id", created.ID, "error", err)
	}

	return created.Redacted(), nil
}

// ConfirmEmail verifies the email-confirmation code. The challenge is
// single-use: success clears it together with the flag set, and a correct
// code past its window clears it too so the same code can never land later.
func (s *CredentialService) ConfirmEmail(ctx context.Context, email, code string) error {
	repo := s.repomanager.Principals(s.db)
	p, err := repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if p.EmailConfirmed {
		return errs.New(errs.Validation, "email is already confirmed")
	}
	if err := checkChallenge(p.ConfirmOTP, code); err != nil {
		if errors.Is(err, errChallengeExpired) {
			if clearErr := repo.ClearOTP(ctx, p.ID, models.PurposeEmailConfirm); clearErr != nil {
				return clearErr
			}
		}
		return err
	}

	return repo.ConfirmEmail(ctx, p.ID)
}

// uniform login rejection; must not reveal whether the email exists
var errBadCredentials = errs.New(errs.Authentication, "invalid email or password")

// Login verifies the password and mints a token pair. Unknown email and
// wrong password are indistinguishable; unconfirmed and frozen accounts
// are rejected with distinct messages after the password check.
func (s *CredentialService) Login(ctx context.Context, email, password string) (*Session, error) {
	repo := s.repomanager.Principals(s.db)
	p, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errs.IsKind(err, errs.NotFound) {
			return nil, errBadCredentials
		}
		return nil, err
	}

	ok, err := s.hasher.Compare(ctx, password, p.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errBadCredentials
	}

	if !p.EmailConfirmed {
		return nil, errs.New(errs.Authentication, "email is not confirmed")
	}
	if p.Frozen() {
		return nil, errs.New(errs.Authentication, "account is frozen")
	}

	return s.issueSession(ctx, p)
}

// Refresh mints a new access token for a live refresh token. The raw token
// must verify as refresh kind, be absent from the denylist, and still be
// present in the principal's stored list. No rotation: the refresh token
// stays valid until its own expiry, logout, or reset.
func (s *CredentialService) Refresh(ctx context.Context, rawRefresh string) (string, error) {
	claims, err := s.tokens.Verify(rawRefresh, token.KindRefresh)
	if err != nil {
		return "", err
	}

	revoked, err := s.tokens.IsRevoked(ctx, rawRefresh)
	if err != nil {
		return "", err
	}
	if revoked {
		return "", errs.New(errs.Authentication, "token has been revoked")
	}

	repo := s.repomanager.Principals(s.db)
	p, err := repo.GetByID(ctx, claims.Subject)
	if err != nil {
		if errs.IsKind(err, errs.NotFound) {
			return "", token.ErrInvalid
		}
		return "", err
	}

	// a reset or freeze empties the list without touching the denylist,
	// so membership is checked separately from revocation
	if !p.HasRefreshToken(rawRefresh) {
		return "", token.ErrInvalid
	}

	return s.tokens.IssueAccess(p)
}

// Logout revokes the access token unconditionally. A supplied refresh
// token is only removed from the principal's list, not denylisted; it dies
// by losing list membership.
func (s *CredentialService) Logout(ctx context.Context, principalID, accessToken, refreshToken string) error {
	if err := s.tokens.Revoke(ctx, accessToken); err != nil {
		return err
	}

	if refreshToken == "" {
		return nil
	}
	repo := s.repomanager.Principals(s.db)
	return repo.RemoveRefreshToken(ctx, principalID, refreshToken)
}

// ForgotPassword installs a password-reset code for the account, if one
// exists. The outcome is identical either way so the endpoint cannot be
// used to probe which emails are registered.
func (s *CredentialService) ForgotPassword(ctx context.Context, email string) error {
	repo := s.repomanager.Principals(s.db)
	p, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errs.IsKind(err, errs.NotFound) {
			return nil
		}
		return err
	}

	code, err := cryptox.GenerateOTP(cryptox.DefaultOTPLength)
	if err != nil {
		return err
	}
	if err := repo.SetOTP(ctx, p.ID, models.PurposePasswordReset, code, time.Now().Add(s.resetOTPTTL)); err != nil {
		return err
	}

	if err := s.notifier.PasswordResetCode(ctx, p, code); err != nil {
		s.log.Warn(ctx, "password reset code delivery failed", "principal_id", p.ID, "error", err)
	}
	return nil
}

// ResetPassword verifies the reset code, stores the new hash, and empties
// the refresh-token list on one transaction. Every session dies with the
// old password.
func (s *CredentialService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if newPassword == "" {
		return errs.New(errs.Validation, "password is required")
	}

	repo := s.repomanager.Principals(s.db)
	p, err := repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := checkChallenge(p.ResetOTP, code); err != nil {
		if errors.Is(err, errChallengeExpired) {
			if clearErr := repo.ClearOTP(ctx, p.ID, models.PurposePasswordReset); clearErr != nil {
				return clearErr
			}
		}
		return err
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.Principals(tx)
		if err := repoTx.UpdatePassword(ctx, p.ID, hash); err != nil {
			return err
		}
		_, err := repoTx.ClearRefreshTokens(ctx, p.ID)
		return err
	})
}

// FreezeAccount sets the frozen status, purges the refresh-token list, and
// best-effort denylists each purged token. A failed revocation is logged
// and never aborts the freeze.
func (s *CredentialService) FreezeAccount(ctx context.Context, principalID string) error {
	repo := s.repomanager.Principals(s.db)
	p, err := repo.GetByID(ctx, principalID)
	if err != nil {
		return err
	}
	if p.Frozen() {
		return errs.New(errs.Conflict, "account is already frozen")
	}

	var purged []string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.Principals(tx)
		if err := repoTx.SetStatus(ctx, p.ID, models.StatusFrozen); err != nil {
			return err
		}
		purged, err = repoTx.ClearRefreshTokens(ctx, p.ID)
		return err
	})
	if err != nil {
		return err
	}

	for _, raw := range purged {
		if err := s.tokens.Revoke(ctx, raw); err != nil {
			s.log.Warn(ctx, "could not revoke refresh token during freeze", "principal_id", p.ID, "error", err)
		}
	}

	if err := s.notifier.AccountStatusChanged(ctx, p, models.StatusFrozen); err != nil {
		s.log.Warn(ctx, "status change notification failed", "principal_id", p.ID, "error", err)
	}
	return nil
}

// RestoreAccount lifts a freeze. Restoring an active account is a Conflict.
func (s *CredentialService) RestoreAccount(ctx context.Context, principalID string) error {
	repo := s.repomanager.Principals(s.db)
	p, err := repo.GetByID(ctx, principalID)
	if err != nil {
		return err
	}
	if !p.Frozen() {
		return errs.New(errs.Conflict, "account is already active")
	}

	if err := repo.SetStatus(ctx, p.ID, models.StatusActive); err != nil {
		return err
	}

	if err := s.notifier.AccountStatusChanged(ctx, p, models.StatusActive); err != nil {
		s.log.Warn(ctx, "status change notification failed", "principal_id", p.ID, "error", err)
	}
	return nil
}

// FederatedLogin signs in a provider-verified identity, creating the
// principal on first contact. Such accounts get a random password and a
// pre-confirmed email; the provider already proved ownership.
func (s *CredentialService) FederatedLogin(ctx context.Context, ext ExternalIdentity) (*Session, error) {
	if ext.Provider == "" || ext.Subject == "" || ext.Email == "" {
		return nil, errs.New(errs.Validation, "provider, subject and email are required")
	}

	repo := s.repomanager.Principals(s.db)
	p, err := repo.GetByEmail(ctx, ext.Email)
	if err != nil {
		if !errs.IsKind(err, errs.NotFound) {
			return nil, err
		}
		p, err = s.createFederated(ctx, ext)
		if err != nil {
			return nil, err
		}
	}

	if p.Frozen() {
		return nil, errs.New(errs.Authentication, "account is frozen")
	}

	if err := repo.LinkIdentity(ctx, p.ID, models.FederatedIdentity{Provider: ext.Provider, Subject: ext.Subject}); err != nil {
		return nil, err
	}

	return s.issueSession(ctx, p)
}

// --- helpers below ---

func (s *CredentialService) createFederated(ctx context.Context, ext ExternalIdentity) (*models.Principal, error) {
	secret, err := cryptox.RandomHex(16)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "could not generate password", err)
	}
	hash, err := s.hasher.Hash(ctx, secret)
	if err != nil {
		return nil, err
	}

	username := ext.Name
	if username == "" {
		username = ext.Email
	}
	suffix, err := cryptox.RandomHex(3)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "could not generate username", err)
	}

	repo := s.repomanager.Principals(s.db)
	return repo.Create(ctx, &models.Principal{
		Username:       username + "-" + suffix,
		Email:          ext.Email,
		PasswordHash:   hash,
		EmailConfirmed: true,
	})
}

// issueSession mints the token pair and appends the refresh token to the
// principal's list. Mint and append are deliberately not one transaction:
// a crash in between leaves an orphan token that simply expires.
func (s *CredentialService) issueSession(ctx context.Context, p *models.Principal) (*Session, error) {
	access, err := s.tokens.IssueAccess(p)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(p)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Principals(s.db)
	if err := repo.AppendRefreshToken(ctx, p.ID, refresh); err != nil {
		return nil, err
	}

	return &Session{Principal: p.Redacted(), AccessToken: access, RefreshToken: refresh}, nil
}

var errChallengeExpired = errs.New(errs.Validation, "code has expired")

// checkChallenge validates a submitted code against the live challenge.
// Order matters: a wrong code never reveals whether the window passed.
func checkChallenge(ch *models.OTPChallenge, code string) error {
	if ch == nil {
		return errs.New(errs.Validation, "no challenge found")
	}
	if ch.Code != code {
		return errs.New(errs.Validation, "invalid code")
	}
	if ch.Expired(time.Now()) {
		return errChallengeExpired
	}
	return nil
}
