package core

import "errors"

// Error codes for client-visible errors.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeInvalidMessage     = "invalid_message"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeUnsupportedVersion = "unsupported_version"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeInvalidCallStatus  = "invalid_call_status"
)

var (
	ErrBadRequest        = errors.New("bad request")
	ErrInvalidCallStatus = errors.New("invalid call status")
	// ErrReservedRoom is returned when a client asks to subscribe to a room
	// the server assigns on its own.
	ErrReservedRoom = errors.New("room is reserved")
	// ErrClientClosed is returned when registering a client whose event queue
	// was already closed by Unregister.
	ErrClientClosed = errors.New("client already closed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// NewError builds a CoreError.
func NewError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
