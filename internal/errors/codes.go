package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific error type for gateway operations.
type ErrorCode string

const (
	// ErrCodeNotFound indicates the referenced conversation does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeCapacityExceeded indicates the store reached its conversation ceiling.
	ErrCodeCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"
	// ErrCodeProducerFailure indicates the text producer failed mid-stream.
	ErrCodeProducerFailure ErrorCode = "PRODUCER_FAILURE"
	// ErrCodeSinkClosed indicates the peer disconnected before the stream ended.
	ErrCodeSinkClosed ErrorCode = "SINK_CLOSED"
	// ErrCodeTimeout indicates the producer or sink exceeded a bounded wait.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeRateLimitExceeded indicates a client exceeded its request rate.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeInternal indicates an unclassified internal failure.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// GatewayError represents a structured error for gateway operations.
type GatewayError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// GetCode returns the error code.
func (e *GatewayError) GetCode() ErrorCode {
	return e.Code
}

// Convenience constructors for common error types.

// NotFound creates a conversation-not-found error.
func NotFound(conversationID string) *GatewayError {
	return &GatewayError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("conversation not found: %s", conversationID),
	}
}

// CapacityExceeded creates a store-at-capacity error.
func CapacityExceeded(limit int) *GatewayError {
	return &GatewayError{
		Code:    ErrCodeCapacityExceeded,
		Message: fmt.Sprintf("conversation limit reached: %d", limit),
	}
}

// ProducerFailure creates a producer failure error.
func ProducerFailure(msg string, cause error) *GatewayError {
	return &GatewayError{Code: ErrCodeProducerFailure, Message: msg, Cause: cause}
}

// SinkClosed creates a sink closed error.
func SinkClosed(cause error) *GatewayError {
	return &GatewayError{Code: ErrCodeSinkClosed, Message: "output sink closed", Cause: cause}
}

// Timeout creates a timeout error.
func Timeout(msg string) *GatewayError {
	return &GatewayError{Code: ErrCodeTimeout, Message: msg}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *GatewayError {
	return &GatewayError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *GatewayError {
	return &GatewayError{Code: ErrCodeInvalidArgument, Message: msg}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *GatewayError {
	return &GatewayError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error is of a specific code, unwrapping as needed.
func IsCode(err error, code ErrorCode) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Code == code
	}
	return false
}

// CodeOf extracts the error code from any error.
// Returns the provided default code if the error is not a GatewayError.
func CodeOf(err error, defaultCode ErrorCode) ErrorCode {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Code
	}
	return defaultCode
}
