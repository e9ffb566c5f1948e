package commons

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mealrun/internal/dto"
	apperrors "mealrun/internal/errors"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperrors.NewValidationError("bad"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{apperrors.NewNotFoundError("gone"), http.StatusNotFound, "NOT_FOUND"},
		{apperrors.NewForbiddenError("no"), http.StatusForbidden, "FORBIDDEN"},
		{apperrors.NewInvalidTransitionError("no", "pending", "delivered"), http.StatusConflict, "INVALID_TRANSITION"},
		{apperrors.NewInvalidStateError("no"), http.StatusConflict, "INVALID_STATE"},
		{apperrors.NewInvalidOtpError("no", apperrors.OtpExpired), http.StatusUnprocessableEntity, "INVALID_OTP"},
		{apperrors.NewConflictError("taken"), http.StatusConflict, "ALREADY_ASSIGNED"},
		{apperrors.NewDeadlockError("retry"), http.StatusConflict, "DEADLOCK"},
		{fmt.Errorf("wrapped: %w", apperrors.NewNotFoundError("gone")), http.StatusNotFound, "NOT_FOUND"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := ErrorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var body dto.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestWriteError_InvalidOtpCarriesReason(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(rec, "trace-1", apperrors.NewInvalidOtpError("delivery OTP has expired", apperrors.OtpExpired), zap.NewNop())

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decodeError(t, rec)
	assert.Equal(t, "trace-1", body.TraceID)
	assert.Equal(t, "EXPIRED", body.Reason)
}

func TestWriteError_InternalHidesMessage(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(rec, "trace-1", errors.New("dial tcp 10.0.0.5:3306: refused"), zap.NewNop())

	body := decodeError(t, rec)
	assert.Equal(t, http.StatusInternalServerError, body.Status)
	assert.Equal(t, "an unexpected error occurred", body.Message)
}

func TestWriteValidationError(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteValidationError(rec, "trace-1", "validation failed", zap.NewNop(), apperrors.ValidationDetail{Field: "status", Message: "status is required"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	require.Len(t, body.Details, 1)
	assert.Equal(t, "status", body.Details[0].Field)
}
