package session

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication means the service rejected the login or the
	// handshake could not complete. Retrying with the same credential risks
	// a lockout.
	ErrAuthentication = errors.New("authentication failed")

	// ErrSessionExpired means the session is no longer usable and a new
	// login is required.
	ErrSessionExpired = errors.New("session expired, login required")
)

// AuthenticationError is returned by Login.
type AuthenticationError struct {
	Scheme     Scheme
	StatusCode int
	Msg        string
	Err        error
}

func (e *AuthenticationError) Error() string {
	msg := fmt.Sprintf("%s (%s)", ErrAuthentication, e.Scheme)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAuthentication}
	}
	return []error{ErrAuthentication, e.Err}
}

// SessionExpiredError is returned when the session was invalidated by the
// service, its refresh failed, or no login happened yet.
type SessionExpiredError struct {
	Reason string
	Err    error
}

func (e *SessionExpiredError) Error() string {
	msg := ErrSessionExpired.Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SessionExpiredError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSessionExpired}
	}
	return []error{ErrSessionExpired, e.Err}
}
