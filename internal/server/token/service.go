// Package token issues and verifies the RS256 signed credentials of the
// service: short-lived access tokens and long-lived refresh tokens. The two
// kinds carry an explicit type claim and are never interchangeable.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/confideapp/confide/internal/errs"
	"github.com/confideapp/confide/internal/server/keys"
	"github.com/confideapp/confide/internal/server/models"
	"github.com/confideapp/confide/internal/server/repositories/revoked"
)

// Kind discriminates access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var (
	// ErrExpired is returned for a well-formed token past its expiry. The
	// message is part of the API surface clients match on.
	ErrExpired = errs.New(errs.Authentication, "token has expired")
	// ErrInvalid covers every other verification failure: bad signature,
	// malformed payload, wrong kind, wrong issuer or audience.
	ErrInvalid = errs.New(errs.Authentication, "invalid token")
)

const verifyLeeway = 30 * time.Second

// Claims is the payload of every token the service issues.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
	Kind  Kind   `json:"type"`
}

// Service signs tokens with the service private key and verifies them with
// the public key. Revocation checks go through the denylist repository.
type Service struct {
	keys       *keys.Material
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	revoked    revoked.Repository
}

func NewService(km *keys.Material, issuer, audience string, accessTTL, refreshTTL time.Duration, denylist revoked.Repository) *Service {
	return &Service{
		keys:       km,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		revoked:    denylist,
	}
}

// IssueAccess mints a short-lived access token for the principal.
func (s *Service) IssueAccess(p *models.Principal) (string, error) {
	return s.issue(p, KindAccess, s.accessTTL)
}

// IssueRefresh mints a long-lived refresh token for the principal.
func (s *Service) IssueRefresh(p *models.Principal) (string, error) {
	return s.issue(p, KindRefresh, s.refreshTTL)
}

func (s *Service) issue(p *models.Principal, kind Kind, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: p.Email,
		Role:  p.Role,
		Kind:  kind,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.keys.Private)
	if err != nil {
		return "", errs.Wrap(errs.Internal, "could not sign token", err)
	}
	return signed, nil
}

// Verify checks the signature, standard claims and kind of a raw token.
// An expired token comes back as ErrExpired; any other failure as ErrInvalid.
// Revocation is a separate concern, see IsRevoked.
func (s *Service) Verify(raw string, kind Kind) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithLeeway(verifyLeeway),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.keys.Public, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	if claims.Kind != kind {
		return nil, ErrInvalid
	}
	return claims, nil
}

// Revoke denylists a raw token until its natural expiry. The token does not
// have to verify: an expired access token can still be revoked during logout.
// A token that cannot even be decoded is rejected.
func (s *Service) Revoke(ctx context.Context, raw string) error {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return errs.New(errs.Validation, "token is not decodable")
	}

	expiresAt := time.Now().Add(s.accessTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return s.revoked.Insert(ctx, raw, claims.Subject, expiresAt)
}

// IsRevoked reports whether a raw token is on the denylist.
func (s *Service) IsRevoked(ctx context.Context, raw string) (bool, error) {
	return s.revoked.Contains(ctx, raw)
}
