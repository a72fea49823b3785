package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("upvoting: %w", ErrAlreadyUpvoted)
	if !errors.Is(wrapped, ErrAlreadyUpvoted) {
		t.Error("expected wrapped sentinel to match")
	}
	if errors.Is(wrapped, ErrNotUpvoted) {
		t.Error("different codes must not match")
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{NotFound("complaint"), KindNotFound},
		{fmt.Errorf("x: %w", Forbidden("nope")), KindForbidden},
		{InvalidState("closed"), KindInvalidState},
		{ErrDuplicateRequest, KindConflict},
		{Invalid("title", "too short"), KindValidation},
		{Unavailable(errors.New("disk")), KindUnavailable},
		{errors.New("plain"), KindInternal},
	}
	for _, c := range cases {
		if got := KindOf(c.err); got != c.want {
			t.Errorf("KindOf(%v) = %s, want %s", c.err, got, c.want)
		}
	}
}

func TestValidationMessageListsFields(t *testing.T) {
	err := Validation(
		FieldError{Field: "title", Message: "too short"},
		FieldError{Field: "room_number", Message: "invalid format"},
	)
	want := "invalid input (title: too short; room_number: invalid format)"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
