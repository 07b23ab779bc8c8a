package elevcentralen

import (
	"errors"
	"fmt"
)

// ParseError is returned when a booking from the server is malformed.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("parse booking: invalid %s %q", e.Field, e.Value)
	}
	return fmt.Sprintf("parse booking: invalid %s %q: %s", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type AuthReason int

const (
	// AuthMissingToken means the login page had no anti-forgery token.
	AuthMissingToken AuthReason = iota
	// AuthBlocked means the base page still redirected after logging in,
	// usually because a system message has to be dismissed manually.
	AuthBlocked
)

// AuthError is returned when logging in did not produce a usable session.
type AuthError struct {
	Reason AuthReason
}

func (e *AuthError) Error() string {
	switch e.Reason {
	case AuthMissingToken:
		return "authenticate: could not find csrf token on login page"
	case AuthBlocked:
		return "authenticate: still redirected after login, is there a system message blocking?"
	}
	return "authenticate: failed"
}

// HttpError is returned for any response with an unsuccessful status.
type HttpError struct {
	Method string
	Url    string
	Status int
	Body   string
}

func (e *HttpError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Url, e.Status, e.Body)
}

// DataError is returned when a successful response does not have the
// expected structure.
type DataError struct {
	Url  string
	Body string
	Err  error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("unexpected response from %s: %s: %s", e.Url, e.Err, e.Body)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// CacheError is returned when persisted state exists but cannot be decoded.
// Callers treat it as if the state was absent.
type CacheError struct {
	Location string
	Err      error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("decode %s: %s", e.Location, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// ErrNotAuthenticated is returned when bookings are requested before
// Authenticate succeeded.
var ErrNotAuthenticated = errors.New("elevcentralen: session is not authenticated")
