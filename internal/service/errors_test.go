package service

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKindsMatch(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", forbidden("current password is incorrect"))
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("expected wrapped error to match ErrForbidden")
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Fatal("kinds must not cross-match")
	}
	if KindOf(err) != KindForbidden {
		t.Fatalf("expected forbidden kind, got %q", KindOf(err))
	}
	if KindOf(errors.New("boom")) != "" {
		t.Fatal("plain errors have no kind")
	}
}

func TestWithCauseKeepsMessage(t *testing.T) {
	cause := errors.New("signature is invalid")
	err := unauthorized("invalid or expired access token").withCause(cause)
	if err.Message != "invalid or expired access token" {
		t.Fatalf("message changed: %q", err.Message)
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause should be reachable with errors.Is")
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("kind should still match")
	}
}
