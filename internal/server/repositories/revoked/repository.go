// Package revoked provides the revocation denylist: tokens invalidated
// before their natural expiry. A record's lifetime equals the token's own
// expiry, so the store only ever holds entries that would otherwise still
// verify.
package revoked

import (
	"context"
	"time"
)

type Repository interface {
	// Insert is idempotent: revoking an already-revoked token is not an
	// error. Records whose expiry already passed may be skipped.
	Insert(ctx context.Context, token, principalID string, expiresAt time.Time) error

	// Contains reports whether the token is currently denylisted. An
	// entry past its expiry is logically absent even if physical
	// eviction has not run yet.
	Contains(ctx context.Context, token string) (bool, error)

	// DeleteExpired garbage-collects dead records. Correctness never
	// depends on how promptly it runs.
	DeleteExpired(ctx context.Context) (int64, error)
}
