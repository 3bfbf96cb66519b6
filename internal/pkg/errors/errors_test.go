package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  New(CodeValidation, "topK must be positive"),
			want: "VALIDATION_ERROR: topK must be positive",
		},
		{
			name: "with wrapped error",
			err:  Wrap(CodeStorageError, "saving run", fmt.Errorf("connection refused")),
			want: "STORAGE_ERROR: saving run: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner")
	err := Wrap(CodeInternal, "outer", inner)

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeInvalidRequest, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeRetrieverError, http.StatusServiceUnavailable},
		{CodeTimeout, http.StatusGatewayTimeout},
		{CodeInternal, http.StatusInternalServerError},
		{CodeStorageError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg")
			if got := err.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(ValidationError("bad input")) {
		t.Error("IsValidation should be true for validation errors")
	}
	if IsValidation(NotFoundError("run")) {
		t.Error("IsValidation should be false for other codes")
	}
	if IsValidation(fmt.Errorf("plain")) {
		t.Error("IsValidation should be false for plain errors")
	}
}

func TestWriteError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ValidationError("documentId must not be empty").WithDetail("field", "documentId"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Code != CodeValidation {
		t.Errorf("code = %s, want %s", resp.Code, CodeValidation)
	}
	if resp.Details["field"] != "documentId" {
		t.Errorf("details = %v, want field=documentId", resp.Details)
	}
}

func TestWriteError_SanitizesUnknownErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("secret internal detail"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Error == "secret internal detail" {
		t.Error("internal error message should be sanitized")
	}
}
