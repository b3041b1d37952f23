package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestNew_RetryableDetection(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		retryable bool
	}{
		{ErrCodeNotFound, false},
		{ErrCodeInvalidInput, false},
		{ErrCodeTimeout, true},
		{ErrCodeCollaboratorFailure, true},
		{ErrCodePersistenceFailure, true},
		{ErrCodeInternal, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := New(tt.code, "msg", http.StatusTeapot)
			if err.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", err.Retryable, tt.retryable)
			}
			if err.HTTPStatus != http.StatusTeapot {
				t.Errorf("HTTPStatus = %d", err.HTTPStatus)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	err := NotFound("recording", "abc")
	if err.Code != ErrCodeNotFound || err.HTTPStatus != http.StatusNotFound {
		t.Fatalf("unexpected error: %+v", err)
	}
	if err.Details["id"] != "abc" || err.Details["resource"] != "recording" {
		t.Errorf("details = %v", err.Details)
	}
	if _, ok := NotFound("job", "").Details["id"]; ok {
		t.Error("expected no id detail for empty id")
	}
}

func TestCollaboratorFailure(t *testing.T) {
	cause := fmt.Errorf("status 503")
	err := CollaboratorFailure("transcription", cause)
	if err.Code != ErrCodeCollaboratorFailure {
		t.Fatalf("code = %s", err.Code)
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected cause to be unwrappable")
	}
	if !strings.Contains(err.Error(), "transcription failed: status 503") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestPersistenceFailure(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := PersistenceFailure("segments", cause)
	if err.Code != ErrCodePersistenceFailure || err.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unexpected error: %+v", err)
	}
	if err.Details["operation"] != "segments" {
		t.Errorf("details = %v", err.Details)
	}
}

func TestMissingFields(t *testing.T) {
	err := MissingFields("segments", "speakers")
	if err.Message != "missing required fields: segments, speakers" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestAsAppErrorAndIsCode(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Validation("bad"))

	appErr, ok := AsAppError(wrapped)
	if !ok || appErr.Code != ErrCodeInvalidInput {
		t.Fatalf("AsAppError = %v, %v", appErr, ok)
	}
	if !IsCode(wrapped, ErrCodeInvalidInput) {
		t.Error("IsCode should match wrapped code")
	}
	if IsCode(fmt.Errorf("plain"), ErrCodeInvalidInput) {
		t.Error("IsCode should not match plain errors")
	}
}

func TestFrom(t *testing.T) {
	if From(nil) != nil {
		t.Error("From(nil) should be nil")
	}
	plain := fmt.Errorf("boom")
	if got := From(plain); got.Code != ErrCodeInternal || got.Cause != plain {
		t.Errorf("From(plain) = %+v", got)
	}
	nf := NotFound("speaker", "1")
	if From(nf) != nf {
		t.Error("From should return existing AppError unchanged")
	}
}

func TestToResponse(t *testing.T) {
	resp := InvalidInput("file", "unsupported extension").ToResponse()
	if resp.Error.Code != ErrCodeInvalidInput {
		t.Errorf("code = %s", resp.Error.Code)
	}
	if resp.Error.Details["field"] != "file" {
		t.Errorf("details = %v", resp.Error.Details)
	}
}
