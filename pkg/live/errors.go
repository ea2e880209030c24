package live

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes pipeline errors.
type ErrorKind string

const (
	// ErrDevice covers microphone or speaker failures (unavailable device,
	// permission denied). Fatal to session startup.
	ErrDevice ErrorKind = "device_error"

	// ErrConnection covers transport failures: the session failed to open or
	// the websocket closed unexpectedly. Fatal to the current session.
	ErrConnection ErrorKind = "connection_error"

	// ErrAuth means the service rejected the credential. Surfaced distinctly
	// from ErrConnection so callers can prompt for a new key instead of
	// retrying.
	ErrAuth ErrorKind = "auth_error"

	// ErrProtocol covers malformed or unexpected inbound frames. The frame is
	// skipped; the session continues.
	ErrProtocol ErrorKind = "protocol_error"

	// ErrPlaybackDecode means an inbound audio chunk failed to decode. The
	// chunk is dropped; playback continues.
	ErrPlaybackDecode ErrorKind = "playback_decode_error"
)

// Error is a typed pipeline error with a human-readable message.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether the error aborts the active session.
func (e *Error) Fatal() bool {
	switch e.Kind {
	case ErrDevice, ErrConnection, ErrAuth:
		return true
	default:
		return false
	}
}

// NewDeviceError creates a device error.
func NewDeviceError(message string, err error) *Error {
	return &Error{Kind: ErrDevice, Message: message, Err: err}
}

// NewConnectionError creates a connection error.
func NewConnectionError(message string, err error) *Error {
	return &Error{Kind: ErrConnection, Message: message, Err: err}
}

// NewAuthError creates an authentication error.
func NewAuthError(message string, err error) *Error {
	return &Error{Kind: ErrAuth, Message: message, Err: err}
}

// NewProtocolError creates a protocol error.
func NewProtocolError(message string, err error) *Error {
	return &Error{Kind: ErrProtocol, Message: message, Err: err}
}

// NewPlaybackDecodeError creates a playback decode error.
func NewPlaybackDecodeError(message string, err error) *Error {
	return &Error{Kind: ErrPlaybackDecode, Message: message, Err: err}
}

// KindOf returns the kind of err, or "" if err is not a pipeline Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
