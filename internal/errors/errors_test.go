package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundError_Creation(t *testing.T) {
	message := "order not found"
	err := NewNotFoundError(message)

	assert.NotNil(t, err)
	assert.Equal(t, message, err.Message)
	assert.Equal(t, message, err.Error())
}

func TestNotFoundError_IsNotFoundError(t *testing.T) {
	err := NewNotFoundError("test not found")

	notFoundErr, ok := IsNotFoundError(err)
	assert.True(t, ok)
	assert.NotNil(t, notFoundErr)
	assert.Equal(t, "test not found", notFoundErr.Message)
}

func TestNotFoundError_IsNotFoundError_WithOtherError(t *testing.T) {
	err := errors.New("some other error")

	notFoundErr, ok := IsNotFoundError(err)
	assert.False(t, ok)
	assert.Nil(t, notFoundErr)
}

func TestIsHelpers_SeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("accepting assignment: %w", NewConflictError("already assigned"))

	ce, ok := IsConflictError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "already assigned", ce.Message)

	_, ok = IsForbiddenError(wrapped)
	assert.False(t, ok)
}

func TestKindsAreDistinct(t *testing.T) {
	errs := []error{
		NewNotFoundError("a"),
		NewForbiddenError("b"),
		NewInvalidTransitionError("c", "pending", "delivered"),
		NewInvalidStateError("d"),
		NewInvalidOtpError("e", OtpExpired),
		NewConflictError("f"),
	}

	matches := func(err error) int {
		n := 0
		if _, ok := IsNotFoundError(err); ok {
			n++
		}
		if _, ok := IsForbiddenError(err); ok {
			n++
		}
		if _, ok := IsInvalidTransitionError(err); ok {
			n++
		}
		if _, ok := IsInvalidStateError(err); ok {
			n++
		}
		if _, ok := IsInvalidOtpError(err); ok {
			n++
		}
		if _, ok := IsConflictError(err); ok {
			n++
		}
		return n
	}

	for _, err := range errs {
		assert.Equal(t, 1, matches(err), "%T matched more than one kind", err)
	}
}

func TestInvalidTransitionError_CarriesStatuses(t *testing.T) {
	err := NewInvalidTransitionError("cannot move", "delivered", "preparing")

	ite, ok := IsInvalidTransitionError(err)
	assert.True(t, ok)
	assert.Equal(t, "delivered", ite.From)
	assert.Equal(t, "preparing", ite.To)
}

func TestInvalidOtpError_Reason(t *testing.T) {
	err := NewInvalidOtpError("otp expired", OtpExpired)

	ioe, ok := IsInvalidOtpError(err)
	assert.True(t, ok)
	assert.Equal(t, OtpExpired, ioe.Reason)
}

func TestValidationError_Creation(t *testing.T) {
	message := "validation failed"
	details := []ValidationDetail{
		{Field: "status", Message: "unknown status"},
		{Field: "shopId", Message: "required field"},
	}

	err := NewValidationError(message, details...)

	assert.NotNil(t, err)
	assert.Equal(t, message, err.Message)
	assert.Equal(t, message, err.Error())
	assert.Len(t, err.Details, 2)
}

func TestInternalError_Creation(t *testing.T) {
	cause := errors.New("database error")
	err := NewInternalError("failed to query database", cause)

	assert.NotNil(t, err)
	assert.Equal(t, "failed to query database", err.Message)
	assert.Equal(t, cause, err.Cause)
	assert.Contains(t, err.Error(), "failed to query database")
	assert.Contains(t, err.Error(), "database error")
}

func TestInternalError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := NewInternalError("wrapper", cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
}

func TestInternalError_NilCause(t *testing.T) {
	err := NewInternalError("no cause", nil)

	assert.Equal(t, "no cause", err.Error())
	assert.Nil(t, err.Unwrap())
}
