package errors

import (
	stderrors "errors"
	"fmt"
)

type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Message string
	Details []ValidationDetail
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string, details ...ValidationDetail) *ValidationError {
	return &ValidationError{
		Message: message,
		Details: details,
	}
}

func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if stderrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// NotFoundError: order, shop order, shop or courier absent.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{Message: message}
}

func IsNotFoundError(err error) (*NotFoundError, bool) {
	var nfe *NotFoundError
	if stderrors.As(err, &nfe) {
		return nfe, true
	}
	return nil, false
}

// ForbiddenError: the caller's role or identity is not entitled to the action.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

func NewForbiddenError(message string) *ForbiddenError {
	return &ForbiddenError{Message: message}
}

func IsForbiddenError(err error) (*ForbiddenError, bool) {
	var fe *ForbiddenError
	if stderrors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// InvalidTransitionError: the target status is not reachable from the current one.
type InvalidTransitionError struct {
	Message string
	From    string
	To      string
}

func (e *InvalidTransitionError) Error() string {
	return e.Message
}

func NewInvalidTransitionError(message, from, to string) *InvalidTransitionError {
	return &InvalidTransitionError{Message: message, From: from, To: to}
}

func IsInvalidTransitionError(err error) (*InvalidTransitionError, bool) {
	var ite *InvalidTransitionError
	if stderrors.As(err, &ite) {
		return ite, true
	}
	return nil, false
}

// InvalidStateError: an order-level precondition does not hold.
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string {
	return e.Message
}

func NewInvalidStateError(message string) *InvalidStateError {
	return &InvalidStateError{Message: message}
}

func IsInvalidStateError(err error) (*InvalidStateError, bool) {
	var ise *InvalidStateError
	if stderrors.As(err, &ise) {
		return ise, true
	}
	return nil, false
}

type OtpFailureReason string

const (
	OtpMissing  OtpFailureReason = "MISSING"
	OtpMismatch OtpFailureReason = "MISMATCH"
	OtpExpired  OtpFailureReason = "EXPIRED"
)

type InvalidOtpError struct {
	Message string
	Reason  OtpFailureReason
}

func (e *InvalidOtpError) Error() string {
	return e.Message
}

func NewInvalidOtpError(message string, reason OtpFailureReason) *InvalidOtpError {
	return &InvalidOtpError{Message: message, Reason: reason}
}

func IsInvalidOtpError(err error) (*InvalidOtpError, bool) {
	var ioe *InvalidOtpError
	if stderrors.As(err, &ioe) {
		return ioe, true
	}
	return nil, false
}

// ConflictError: another courier already won the assignment.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

func IsConflictError(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if stderrors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

type DeadlockError struct {
	Message string
}

func (e *DeadlockError) Error() string {
	return e.Message
}

func NewDeadlockError(message string) *DeadlockError {
	return &DeadlockError{Message: message}
}

func IsDeadlockError(err error) (*DeadlockError, bool) {
	var de *DeadlockError
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{
		Message: message,
		Cause:   cause,
	}
}
