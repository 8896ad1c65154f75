package tablechat

import (
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error type.
type ErrorCode int

const (
	ErrorUnknown ErrorCode = iota

	// Transport errors, recovered by reconnection.
	ErrorTransport
	ErrorDial

	// Inbound data errors.
	ErrorMalformedFrame
	ErrorHistory

	// Outbound errors.
	ErrorMissingToken
	ErrorMissingRoom
	ErrorMissingTarget
	ErrorSend
	ErrorNotConnected
	ErrorSerialization

	ErrorInvalidConfig
)

// String returns the string representation of an ErrorCode.
func (e ErrorCode) String() string {
	switch e {
	case ErrorUnknown:
		return "unknown"
	case ErrorTransport:
		return "transport_error"
	case ErrorDial:
		return "dial_error"
	case ErrorMalformedFrame:
		return "malformed_frame"
	case ErrorHistory:
		return "history_error"
	case ErrorMissingToken:
		return "missing_token"
	case ErrorMissingRoom:
		return "missing_room"
	case ErrorMissingTarget:
		return "missing_target"
	case ErrorSend:
		return "send_error"
	case ErrorNotConnected:
		return "not_connected"
	case ErrorSerialization:
		return "serialization_error"
	case ErrorInvalidConfig:
		return "invalid_config"
	default:
		return fmt.Sprintf("unknown_code_%d", e)
	}
}

// ChatError is a structured error with code and context.
type ChatError struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s (wrapped: %v)", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Unwrap support.
func (e *ChatError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is a ChatError with the same code.
func (e *ChatError) Is(target error) bool {
	t, ok := target.(*ChatError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a new ChatError with the given code and message.
func NewError(code ErrorCode, message string) *ChatError {
	return &ChatError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with a ChatError.
func WrapError(code ErrorCode, message string, err error) *ChatError {
	return &ChatError{
		Code:    code,
		Message: message,
		Wrapped: err,
	}
}

// CodeOf returns the code of the first ChatError in err's chain, or ErrorUnknown.
func CodeOf(err error) ErrorCode {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrorUnknown
}

// IsTransportError reports whether err came from the live connection.
// These are recovered automatically by reconnection.
func IsTransportError(err error) bool {
	switch CodeOf(err) {
	case ErrorTransport, ErrorDial:
		return true
	default:
		return false
	}
}

// IsSendError reports whether err aborted an outbound message.
func IsSendError(err error) bool {
	switch CodeOf(err) {
	case ErrorMissingToken, ErrorMissingRoom, ErrorMissingTarget, ErrorSend, ErrorNotConnected, ErrorSerialization:
		return true
	default:
		return false
	}
}
