package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("row locked")
	err := Wrap(CodeConcurrencyConflict, cause, "apply delta")

	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to survive errors.Is")
	}
	if err.Code() != CodeConcurrencyConflict {
		t.Fatalf("unexpected code: %s", err.Code())
	}
}

func TestAsFindsTypedErrorInChain(t *testing.T) {
	t.Parallel()

	inner := New(CodeInsufficientStock, "quantity would go negative")
	outer := fmt.Errorf("allocate batch: %w", inner)

	typed := As(outer)
	if typed == nil {
		t.Fatal("expected typed error in chain")
	}
	if typed.Code() != CodeInsufficientStock {
		t.Fatalf("unexpected code: %s", typed.Code())
	}
}

func TestIsCode(t *testing.T) {
	t.Parallel()

	err := New(CodeApprovalRequired, "adjustment pending")
	if !IsCode(err, CodeApprovalRequired) {
		t.Fatal("expected IsCode match")
	}
	if IsCode(err, CodeValidation) {
		t.Fatal("unexpected IsCode match")
	}
	if IsCode(nil, CodeValidation) {
		t.Fatal("nil error should never match")
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	t.Parallel()

	meta := MetadataFor(Code("NOPE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestMetadataStatuses(t *testing.T) {
	t.Parallel()

	cases := map[Code]int{
		CodeValidation:          http.StatusBadRequest,
		CodeInsufficientStock:   http.StatusUnprocessableEntity,
		CodeConcurrencyConflict: http.StatusConflict,
		CodeStateConflict:       http.StatusUnprocessableEntity,
		CodeNotFound:            http.StatusNotFound,
	}
	for code, want := range cases {
		if got := MetadataFor(code).HTTPStatus; got != want {
			t.Fatalf("code %s: expected status %d, got %d", code, want, got)
		}
	}
}
