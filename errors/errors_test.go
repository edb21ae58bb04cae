package errors

import (
	stderrors "errors"
	"net/http"
	"testing"
)

func TestQuotaExceeded(t *testing.T) {
	err := QuotaExceeded(10, 10.5)

	if err.HTTPStatus != http.StatusTooManyRequests {
		t.Errorf("HTTPStatus = %d, want 429", err.HTTPStatus)
	}
	if err.Retryable {
		t.Error("quota errors must not be retryable; the quota resets on a day boundary")
	}
	if err.Details["limit_minutes"] != 10.0 {
		t.Errorf("limit_minutes = %v", err.Details["limit_minutes"])
	}
	if err.Details["remaining_minutes"] != 0.0 {
		t.Errorf("remaining_minutes = %v", err.Details["remaining_minutes"])
	}
}

func TestAppError_UnwrapReachesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := ExternalServiceError("transcription", cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is did not reach the cause")
	}
	if !err.Retryable {
		t.Error("external service errors should be retryable")
	}
}

func TestAsAppError(t *testing.T) {
	wrapped := Internal(stderrors.New("boom"))

	got, ok := AsAppError(wrapped)
	if !ok || got.Code != ErrCodeInternal {
		t.Errorf("AsAppError = %v, %v", got, ok)
	}

	if _, ok := AsAppError(stderrors.New("plain")); ok {
		t.Error("plain error should not convert")
	}
}

func TestToResponse(t *testing.T) {
	resp := MissingField("userId").ToResponse()

	if resp.Error.Code != ErrCodeMissingField {
		t.Errorf("code = %q", resp.Error.Code)
	}
	if resp.Error.Details["field"] != "userId" {
		t.Errorf("details = %v", resp.Error.Details)
	}
}

func TestIsRetryableCode(t *testing.T) {
	if !IsRetryableCode(ErrCodeExternalService) {
		t.Error("EXTERNAL_SERVICE_ERROR should be retryable")
	}
	if IsRetryableCode(ErrCodeQuotaExceeded) {
		t.Error("QUOTA_EXCEEDED should not be retryable")
	}
}
