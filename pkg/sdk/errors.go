package sdk

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidCredentials means the server rejected the username/password
	// (unknown user, wrong password, locked account).
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCredentialsRequired means a login was attempted with an empty username or password.
	ErrCredentialsRequired = errors.New("username and password are required")
	// ErrUnavailable means the server could not be reached or failed.
	ErrUnavailable = errors.New("server unavailable")
	// ErrUnauthorized means the server no longer accepts the presented credential.
	ErrUnauthorized = errors.New("session is no longer valid")
	// ErrForbidden means the credential is valid but lacks the required role.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrNotFound means the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSuperseded means a login finished after a logout or a newer login.
	ErrSuperseded = errors.New("login superseded by a newer session change")
	// ErrNotAuthenticated means a protected screen was requested without a session.
	ErrNotAuthenticated = errors.New("not logged in")
	// ErrInsufficientRole means the session's roles do not satisfy the access rule.
	ErrInsufficientRole = errors.New("insufficient role")
)

// APIError is a non-2xx response from the back-office API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api error: %d %s", e.StatusCode, e.Message)
}

// Is maps status codes onto the package sentinels so callers can use errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnavailable:
		return e.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// LoginError carries the human-readable reason for a failed login.
// It unwraps to ErrInvalidCredentials or ErrUnavailable.
type LoginError struct {
	Kind   error
	Reason string
	Err    error
}

func (e *LoginError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

func (e *LoginError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}
