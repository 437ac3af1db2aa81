package services

import (
	"context"

	"github.com/confideapp/confide/internal/server/models"
)

// Notifier is the outbound notification port of the credential lifecycle.
// Delivery (email, push, queue) lives behind it; the lifecycle only states
// what happened. Implementations must be safe for concurrent use.
type Notifier interface {
	// ConfirmationCode reports a freshly generated email-confirmation code.
	ConfirmationCode(ctx context.Context, p *models.Principal, code string) error

	// PasswordResetCode reports a freshly generated password-reset code.
	PasswordResetCode(ctx context.Context, p *models.Principal, code string) error

	// AccountStatusChanged reports a freeze or restore.
	AccountStatusChanged(ctx context.Context, p *models.Principal, status string) error
}

// NoopNotifier discards every notification. Used by hosts without a
// delivery channel and in tests.
type NoopNotifier struct{}

func (NoopNotifier) ConfirmationCode(context.Context, *models.Principal, string) error    { return nil }
func (NoopNotifier) PasswordResetCode(context.Context, *models.Principal, string) error   { return nil }
func (NoopNotifier) AccountStatusChanged(context.Context, *models.Principal, string) error { return nil }
