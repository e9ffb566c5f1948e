package commons

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"mealrun/internal/domain"
	apperrors "mealrun/internal/errors"
)

// ActorResolver reads the authenticated caller from a request context.
type ActorResolver func(ctx context.Context) (domain.Actor, bool)

// BeginRequest assigns a trace id, scopes the logger to it and resolves the
// caller. On a missing identity it has already written the 401.
func BeginRequest(w http.ResponseWriter, r *http.Request, base *zap.Logger, resolve ActorResolver) (string, *zap.Logger, domain.Actor, bool) {
	traceID := NewTraceID()
	logger := base.With(zap.String("traceId", traceID))

	actor, ok := resolve(r.Context())
	if !ok {
		WriteUnauthorized(w, traceID, "missing identity", logger)
		return traceID, logger, actor, false
	}
	return traceID, logger, actor, true
}

// DecodeJSON reads the request body into dst, answering 400 on malformed input.
func DecodeJSON(w http.ResponseWriter, r *http.Request, traceID string, dst interface{}, logger *zap.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Warn("invalid JSON body", zap.Error(err))
		WriteValidationError(w, traceID, "invalid JSON body", logger, apperrors.ValidationDetail{
			Field:   "body",
			Message: "request body must be valid JSON",
		})
		return false
	}
	return true
}
