package apperr

import (
	"testing"

	"github.com/pkg/errors"
)

func TestValidationErrorOrNil(t *testing.T) {
	v := NewValidationError()
	if v.OrNil() != nil {
		t.Fatalf("expected nil for empty validation error")
	}

	v.Add("text", "required")
	v.Add("text", "ignored second message")
	err := v.OrNil()
	if err == nil {
		t.Fatalf("expected error")
	}
	if v.Fields["text"] != "required" {
		t.Fatalf("first message should win, got %q", v.Fields["text"])
	}

	wrapped := errors.Wrap(err, "create post")
	got, ok := AsValidation(wrapped)
	if !ok || got.Fields["text"] != "required" {
		t.Fatalf("expected validation error through wrap")
	}
}

func TestSentinelsSurviveWrap(t *testing.T) {
	err := errors.Wrap(ErrNotFound, "group test-slug")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound")
	}
	if _, ok := AsValidation(err); ok {
		t.Fatalf("not a validation error")
	}
}
