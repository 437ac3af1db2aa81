// Package errs defines the error taxonomy shared by every layer of the
// credential core. Callers match on the category with errs.IsKind or
// errors.Is against package sentinels; the message is safe to surface
// at the boundary.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the stable categories exposed to
// collaborators. The zero value is Internal.
type Kind int

const (
	Internal Kind = iota
	Validation
	Authentication
	Authorization
	Conflict
	NotFound
	Crypto
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Authentication:
		return "authentication"
	case Authorization:
		return "authorization"
	case Conflict:
		return "conflict"
	case NotFound:
		return "not found"
	case Crypto:
		return "crypto"
	default:
		return "internal"
	}
}

// Error carries a category and a boundary-safe message. Err, if set, holds
// the underlying cause and is never shown to callers outside the process.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes sentinels like errs.ErrNotFound match any error of the same
// Kind, regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

// Category sentinels for errors.Is.
var (
	ErrValidation     = &Error{Kind: Validation}
	ErrAuthentication = &Error{Kind: Authentication}
	ErrAuthorization  = &Error{Kind: Authorization}
	ErrConflict       = &Error{Kind: Conflict}
	ErrNotFound       = &Error{Kind: NotFound}
	ErrCrypto         = &Error{Kind: Crypto}
	ErrInternal       = &Error{Kind: Internal}
)

// New returns an error of the given kind with a boundary-safe message.
func New(k Kind, msg string) error {
	return &Error{Kind: k, Msg: msg}
}

// Newf is New with fmt.Sprintf formatting.
func Newf(k Kind, format string, args ...any) error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a category and safe message to an underlying cause.
func Wrap(k Kind, msg string, err error) error {
	return &Error{Kind: k, Msg: msg, Err: err}
}

// KindOf reports the category of err, walking the wrap chain. Errors that
// never went through this package are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsKind reports whether err carries the given category.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
