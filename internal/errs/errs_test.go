package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_Wrapped(t *testing.T) {
	t.Parallel()

	base := New(Conflict, "email already registered")
	wrapped := fmt.Errorf("signup: %w", base)

	if got := KindOf(wrapped); got != Conflict {
		t.Fatalf("KindOf = %v, want Conflict", got)
	}
	if !IsKind(wrapped, Conflict) {
		t.Fatal("IsKind(wrapped, Conflict) = false")
	}
}

func TestKindOf_ForeignError(t *testing.T) {
	t.Parallel()

	if got := KindOf(errors.New("boom")); got != Internal {
		t.Fatalf("KindOf = %v, want Internal", got)
	}
}

func TestSentinelMatching(t *testing.T) {
	t.Parallel()

	err := Wrap(Authentication, "invalid email or password", errors.New("no rows"))

	if !errors.Is(err, ErrAuthentication) {
		t.Fatal("errors.Is against category sentinel failed")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("matched the wrong category")
	}
}

func TestSentinelMatching_ExactMessage(t *testing.T) {
	t.Parallel()

	expired := New(Authentication, "token has expired")
	other := New(Authentication, "invalid token")

	if !errors.Is(fmt.Errorf("gate: %w", expired), expired) {
		t.Fatal("same-message sentinel did not match")
	}
	if errors.Is(other, expired) {
		t.Fatal("different messages must not match each other")
	}
}

func TestUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("pq: duplicate key")
	err := Wrap(Conflict, "username already taken", cause)

	if !errors.Is(err, cause) {
		t.Fatal("cause lost in wrapping")
	}
	if err.Error() != "username already taken" {
		t.Fatalf("message leaked internals: %q", err.Error())
	}
}
