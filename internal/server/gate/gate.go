// Package gate authenticates bearer credentials on behalf of every
// protected transport. One check pipeline, two entry points: a strict one
// that rejects, and a lenient one that proceeds anonymously.
package gate

import (
	"context"
	"strings"

	"github.com/confideapp/confide/internal/errs"
	"github.com/confideapp/confide/internal/server/models"
	"github.com/confideapp/confide/internal/server/repositories/principals"
	"github.com/confideapp/confide/internal/server/token"
)

const bearerPrefix = "Bearer "

var errMissingToken = errs.New(errs.Authentication, "missing or malformed authorization header")

type ctxKey struct{}

// WithPrincipal returns a context carrying the authenticated principal.
func WithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFromContext returns the principal attached by the gate, if any.
func PrincipalFromContext(ctx context.Context) (*models.Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*models.Principal)
	return p, ok
}

// Gate resolves an Authorization header value into a live principal.
type Gate struct {
	tokens     *token.Service
	principals principals.Repository
}

func New(tokens *token.Service, principals principals.Repository) *Gate {
	return &Gate{tokens: tokens, principals: principals}
}

// Authenticate verifies the bearer access token, checks the denylist, and
// loads the principal. Frozen and unconfirmed accounts fail even with a
// cryptographically valid token. The returned principal is redacted.
func (g *Gate) Authenticate(ctx context.Context, authorization string) (*models.Principal, error) {
	if !strings.HasPrefix(authorization, bearerPrefix) {
		return nil, errMissingToken
	}
	raw := strings.TrimPrefix(authorization, bearerPrefix)
	if raw == "" {
		return nil, errMissingToken
	}

	claims, err := g.tokens.Verify(raw, token.KindAccess)
	if err != nil {
		return nil, err
	}

	revoked, err := g.tokens.IsRevoked(ctx, raw)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, errs.New(errs.Authentication, "token has been revoked")
	}

	p, err := g.principals.GetByID(ctx, claims.Subject)
	if err != nil {
		if errs.IsKind(err, errs.NotFound) {
			return nil, token.ErrInvalid
		}
		return nil, err
	}

	if p.Frozen() {
		return nil, errs.New(errs.Authentication, "account is frozen")
	}
	if !p.EmailConfirmed {
		return nil, errs.New(errs.Authentication, "email is not confirmed")
	}

	return p.Redacted(), nil
}

// AuthenticateLenient runs the same pipeline but maps every rejection to an
// anonymous caller. Used by endpoints that only personalize for known users.
func (g *Gate) AuthenticateLenient(ctx context.Context, authorization string) *models.Principal {
	p, err := g.Authenticate(ctx, authorization)
	if err != nil {
		return nil
	}
	return p
}
