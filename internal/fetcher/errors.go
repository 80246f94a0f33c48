package fetcher

import (
	"errors"
	"fmt"
)

var (
	// ErrStatus is wrapped by an *Error for a non-2xx response.
	ErrStatus = errors.New("unexpected HTTP status")

	// ErrTimeout is wrapped by an *Error when the request timed out.
	ErrTimeout = errors.New("request timed out")

	// ErrInvalidProxy is returned when the proxy address cannot be used.
	// Supported forms are "host:port" and "socks5://host:port" for SOCKS5,
	// and "http://host:port" for an HTTP proxy.
	ErrInvalidProxy = errors.New("invalid proxy address")
)

// Error is returned by Fetch for every failed request.
type Error struct {
	// URL is the requested URL.
	URL string
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %v (status %d)", e.URL, e.Err, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}
