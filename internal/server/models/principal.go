package models

import "time"

// Roles and account statuses a principal can carry.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	StatusActive = "active"
	StatusFrozen = "frozen"
)

// OTPPurpose tags a challenge with the flow it belongs to. Exactly one
// live challenge per purpose per principal.
type OTPPurpose string

const (
	PurposeEmailConfirm  OTPPurpose = "email-confirm"
	PurposePasswordReset OTPPurpose = "password-reset"
)

// OTPChallenge is an ephemeral single-use numeric code embedded on the
// principal record.
type OTPChallenge struct {
	Code      string
	ExpiresAt time.Time
}

// Expired reports whether the challenge's window has passed at t.
func (c *OTPChallenge) Expired(t time.Time) bool {
	return t.After(c.ExpiresAt)
}

// ImageRef points at an uploaded asset in external object storage.
type ImageRef struct {
	URL      string
	PublicID string
}

// FederatedIdentity links a principal to an external identity provider
// subject (e.g. a Google account).
type FederatedIdentity struct {
	Provider string
	Subject  string
}

// Principal is the authenticated identity of the system.
//
// Invariants enforced by the lifecycle: a principal with EmailConfirmed ==
// false never authenticates via password login, and a frozen principal
// never authenticates and has its refresh tokens purged at freeze time.
type Principal struct {
	ID             string
	Username       string
	Email          string
	PasswordHash   string
	Role           string
	Status         string
	EmailConfirmed bool

	ConfirmOTP *OTPChallenge
	ResetOTP   *OTPChallenge

	// RefreshTokens holds the raw value of every live refresh token so
	// each can be invalidated individually. Access tokens are stateless
	// and tracked only through the revocation denylist.
	RefreshTokens []string

	Identities []FederatedIdentity

	ProfileImage ImageRef
	CoverImage   ImageRef

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Frozen reports whether the account is administratively frozen.
func (p *Principal) Frozen() bool {
	return p.Status == StatusFrozen
}

// Challenge returns the live challenge for the given purpose, or nil.
func (p *Principal) Challenge(purpose OTPPurpose) *OTPChallenge {
	switch purpose {
	case PurposeEmailConfirm:
		return p.ConfirmOTP
	case PurposePasswordReset:
		return p.ResetOTP
	default:
		return nil
	}
}

// HasRefreshToken reports whether raw is in the principal's live list.
func (p *Principal) HasRefreshToken(raw string) bool {
	for _, t := range p.RefreshTokens {
		if t == raw {
			return true
		}
	}
	return false
}

// Redacted returns a copy safe to hand outside the core: password hash,
// challenges and the refresh-token list are stripped.
func (p *Principal) Redacted() *Principal {
	out := *p
	out.PasswordHash = ""
	out.ConfirmOTP = nil
	out.ResetOTP = nil
	out.RefreshTokens = nil
	return &out
}
