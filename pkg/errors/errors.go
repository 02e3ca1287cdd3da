package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the store, the services and the HTTP surface
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeInternal           = "INTERNAL_ERROR"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
)

// AppError represents an application error with a stable code
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Common error constructors

// BadRequest creates a 400 error
func BadRequest(message string, err error) *AppError {
	return NewAppError(CodeBadRequest, message, http.StatusBadRequest, err)
}

// Forbidden creates a 403 error
func Forbidden(message string, err error) *AppError {
	return NewAppError(CodeForbidden, message, http.StatusForbidden, err)
}

// NotFound creates a 404 error
func NotFound(message string, err error) *AppError {
	return NewAppError(CodeNotFound, message, http.StatusNotFound, err)
}

// Conflict creates a 409 error. Failed status preconditions use it.
func Conflict(message string, err error) *AppError {
	return NewAppError(CodeConflict, message, http.StatusConflict, err)
}

// Internal creates a 500 error
func Internal(message string, err error) *AppError {
	return NewAppError(CodeInternal, message, http.StatusInternalServerError, err)
}

// Storage wraps a driver error raised while running op
func Storage(op string, err error) *AppError {
	return NewAppError(CodeStorageUnavailable, op, http.StatusServiceUnavailable, err)
}

// Domain-specific errors

var (
	ErrUserNotFound           = NotFound("User not found", nil)
	ErrRideNotFound           = NotFound("Ride not found", nil)
	ErrSubscriptionNotFound   = NotFound("Subscription not found", nil)
	ErrPaymentNotFound        = NotFound("Payment not found", nil)
	ErrPaymentRequestNotFound = NotFound("Payment request not found", nil)
	ErrBannedWordNotFound     = NotFound("Banned word not found", nil)

	ErrRideUnavailable   = Conflict("Ride is not in the required state for this action", nil)
	ErrPaymentNotPending = Conflict("Payment is no longer pending", nil)
	ErrRequestNotOpen    = Conflict("Payment request is no longer open", nil)
	ErrBannedWordExists  = Conflict("Word is already banned", nil)
	ErrAlreadyRated      = Conflict("Ride was already rated by this user", nil)
	ErrRideAlreadyPaid   = Conflict("Ride already has a payment", nil)

	ErrNotParticipant = Forbidden("User is not part of this ride", nil)
	ErrNotOwner       = Forbidden("Payment request belongs to another user", nil)

	ErrInvalidRating        = BadRequest("Rating must be between 1 and 5", nil)
	ErrInvalidLocation      = BadRequest("Location description is empty", nil)
	ErrInvalidAmount        = BadRequest("Amount must be positive", nil)
	ErrInvalidPaymentMethod = BadRequest("Invalid payment method", nil)
	ErrInvalidPlan          = BadRequest("Invalid subscription plan", nil)
)

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError attempts to convert an error to AppError
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}

// HasCode reports whether err carries the given AppError code
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsNotFound reports whether err is any not-found error
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsStorage reports whether err came from the storage driver
func IsStorage(err error) bool {
	return HasCode(err, CodeStorageUnavailable)
}
