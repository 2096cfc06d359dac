package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies failures talking to the chat service
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeEmpty       ErrorType = "empty_response"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a chat service error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error of the given type
func New(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{Type: t, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given type around cause
func Wrap(t ErrorType, cause error, message string) *Error {
	return &Error{Type: t, Message: fmt.Sprintf("%s: %v", message, cause), Err: cause}
}

// FromStatus maps an HTTP status code to an Error, or nil for 2xx/3xx
func FromStatus(statusCode int, message string) *Error {
	switch {
	case statusCode < 400:
		return nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &Error{Type: ErrorTypeAuth, Code: statusCode, Message: message}
	case statusCode == http.StatusTooManyRequests:
		return &Error{Type: ErrorTypeRateLimit, Code: statusCode, Message: message}
	case statusCode >= 500:
		return &Error{Type: ErrorTypeServerError, Code: statusCode, Message: message}
	default:
		return &Error{Type: ErrorTypeUnknown, Code: statusCode, Message: message}
	}
}

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeEmpty:
		return true
	default:
		return false
	}
}
