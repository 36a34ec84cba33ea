package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("boom")
	err := WrapError(KindUnauthorized, "AGENT-AUTH-001", "proof rejected", cause)
	wrapped := fmt.Errorf("register: %w", err)

	if !IsKind(wrapped, KindUnauthorized) {
		t.Fatalf("expected KindUnauthorized through wrapping")
	}
	if IsKind(wrapped, KindNotFound) {
		t.Fatalf("unexpected KindNotFound")
	}
	if got := RuleID(wrapped); got != "AGENT-AUTH-001" {
		t.Fatalf("RuleID: got %q", got)
	}
	if got := KindOf(wrapped); got != KindUnauthorized {
		t.Fatalf("KindOf: got %q", got)
	}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if RuleID(cause) != "" || KindOf(cause) != "" {
		t.Fatalf("plain errors carry no rule id")
	}
}

func TestWrapErrorNilCause(t *testing.T) {
	err := WrapError(KindInvalidInput, "AGENT-INPUT-001", "bad", nil)
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error")
	}
	if e.Cause != nil {
		t.Fatalf("expected nil cause")
	}
	if err.Error() != "bad" {
		t.Fatalf("Error(): got %q", err.Error())
	}
}
