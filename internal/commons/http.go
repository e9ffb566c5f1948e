package commons

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mealrun/internal/dto"
	apperrors "mealrun/internal/errors"
)

func NewTraceID() string {
	return uuid.New().String()
}

// ErrorStatus maps an error kind to its HTTP status and response code.
func ErrorStatus(err error) (int, string) {
	if _, ok := apperrors.IsValidationError(err); ok {
		return http.StatusBadRequest, "VALIDATION_ERROR"
	}
	if _, ok := apperrors.IsNotFoundError(err); ok {
		return http.StatusNotFound, "NOT_FOUND"
	}
	if _, ok := apperrors.IsForbiddenError(err); ok {
		return http.StatusForbidden, "FORBIDDEN"
	}
	if _, ok := apperrors.IsInvalidTransitionError(err); ok {
		return http.StatusConflict, "INVALID_TRANSITION"
	}
	if _, ok := apperrors.IsInvalidStateError(err); ok {
		return http.StatusConflict, "INVALID_STATE"
	}
	if _, ok := apperrors.IsInvalidOtpError(err); ok {
		return http.StatusUnprocessableEntity, "INVALID_OTP"
	}
	if _, ok := apperrors.IsConflictError(err); ok {
		return http.StatusConflict, "ALREADY_ASSIGNED"
	}
	if _, ok := apperrors.IsDeadlockError(err); ok {
		return http.StatusConflict, "DEADLOCK"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// WriteError renders err in the shared error body. Internal errors are
// logged and their message is not echoed.
func WriteError(w http.ResponseWriter, traceID string, err error, logger *zap.Logger) {
	status, code := ErrorStatus(err)
	resp := dto.ErrorResponse{
		TraceID:   traceID,
		Status:    status,
		Code:      code,
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	}

	switch {
	case status == http.StatusInternalServerError:
		logger.Error("unexpected error", zap.String("traceId", traceID), zap.Error(err))
		resp.Message = "an unexpected error occurred"
	case code == "INVALID_OTP":
		oe, _ := apperrors.IsInvalidOtpError(err)
		resp.Reason = string(oe.Reason)
	case code == "VALIDATION_ERROR":
		ve, _ := apperrors.IsValidationError(err)
		resp.Details = ve.Details
	}

	WriteJSON(w, status, resp, logger)
}

func WriteValidationError(w http.ResponseWriter, traceID, message string, logger *zap.Logger, details ...apperrors.ValidationDetail) {
	WriteError(w, traceID, apperrors.NewValidationError(message, details...), logger)
}

func WriteUnauthorized(w http.ResponseWriter, traceID, message string, logger *zap.Logger) {
	WriteJSON(w, http.StatusUnauthorized, dto.ErrorResponse{
		TraceID:   traceID,
		Status:    http.StatusUnauthorized,
		Code:      "UNAUTHORIZED",
		Message:   message,
		Timestamp: time.Now().UTC(),
	}, logger)
}

func WriteJSON(w http.ResponseWriter, status int, data interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}
