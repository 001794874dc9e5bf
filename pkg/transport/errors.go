package transport

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport marks network failures and 5xx responses. Callers may retry
	// these with backoff; the transport itself never does.
	ErrTransport = errors.New("transport failure")

	// ErrStatus marks any other non-2xx response.
	ErrStatus = errors.New("unexpected response status")
)

// Error is returned for failed requests.
type Error struct {
	Op         string
	URL        string
	StatusCode int
	Err        error // ErrTransport or ErrStatus
	Cause      error
	Msg        string
}

func (e *Error) Error() string {
	msg := e.Op
	if e.URL != "" {
		msg += " " + e.URL
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	msg += ": " + e.Err.Error()
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// IsRetryable reports whether err is a transport failure a caller may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsNotFound reports whether err is a 404 status error.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == http.StatusNotFound
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// CheckStatus converts a non-2xx response into an *Error.
func CheckStatus(op string, resp *Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	kind := ErrStatus
	if resp.StatusCode >= 500 {
		kind = ErrTransport
	}

	return &Error{
		Op:         op,
		URL:        resp.URL,
		StatusCode: resp.StatusCode,
		Err:        kind,
		Msg:        bodySnippet(resp.Body),
	}
}

func bodySnippet(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
