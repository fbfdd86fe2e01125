package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsUnwrapToKinds(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
		label    string
	}{
		{NotFoundError{Kind: KindParty, ID: "p"}, ErrNotFound, "not_found"},
		{ForbiddenError{Kind: KindRoute, ID: "r", User: "U", Role: "author"}, ErrForbidden, "forbidden"},
		{InvalidStateError{Kind: KindRoute, ID: "r", Reason: "route is completed"}, ErrInvalidState, "invalid_state"},
		{ContentionError{ID: "p", Attempts: 5}, ErrContention, "contention"},
		{ValidationError{Field: "user", Message: "must not be empty"}, ErrValidation, "validation"},
	}
	for _, c := range cases {
		wrapped := fmt.Errorf("op: %w", c.err)
		if !errors.Is(wrapped, c.sentinel) {
			t.Errorf("%T does not unwrap to %v", c.err, c.sentinel)
		}
		if got := Classify(wrapped); got != c.label {
			t.Errorf("Classify(%T) = %s, want %s", c.err, got, c.label)
		}
	}
	if Classify(nil) != "ok" || Classify(errors.New("disk")) != "error" {
		t.Errorf("unexpected classification of nil or unknown errors")
	}
}

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		want string
		err  error
	}{
		{"party p not found", NotFoundError{Kind: KindParty, ID: "p"}},
		{"document d not found", NotFoundError{ID: "d"}},
		{"U is not the author of route r", ForbiddenError{Kind: KindRoute, ID: "r", User: "U", Role: "author"}},
		{"document p: gave up after 5 conflicting attempts", ContentionError{ID: "p", Attempts: 5}},
		{"route r: route is completed", InvalidStateError{Kind: KindRoute, ID: "r", Reason: "route is completed"}},
		{"latitude: 91 out of range [-90, 90]", Location{Latitude: 91}.Validate()},
	}
	for _, c := range cases {
		if c.err.Error() != c.want {
			t.Errorf("got %q, want %q", c.err.Error(), c.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(fmt.Errorf("x: %w", ContentionError{ID: "p", Attempts: 5})) {
		t.Errorf("contention should be retryable")
	}
	if IsRetryable(NotFoundError{ID: "p"}) || IsRetryable(ErrVersionConflict) {
		t.Errorf("only contention is retryable")
	}
}
