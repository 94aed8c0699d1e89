package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Authenticator performs the credential exchange with the back office.
// A failed exchange returns a *LoginError that unwraps to
// ErrInvalidCredentials or ErrUnavailable.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*Session, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, username, password string) (*Session, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	return f(ctx, username, password)
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// loginResponse is the success body of POST /auth/login.
type loginResponse struct {
	Token    string   `json:"token" validate:"required"`
	Type     string   `json:"type"`
	ID       int64    `json:"id"`
	UserID   int64    `json:"userId"`
	Username string   `json:"username" validate:"required"`
	Email    string   `json:"email"`
	FullName string   `json:"fullname"`
	Roles    []string `json:"roles"`
	IsActive *bool    `json:"isActive"`
	Active   *bool    `json:"active"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// HTTPAuthenticator exchanges username/password for a session via POST {baseURL}/auth/login.
type HTTPAuthenticator struct {
	baseURL    string
	httpClient *http.Client
}

// Ensure HTTPAuthenticator implements Authenticator at compile time.
var _ Authenticator = (*HTTPAuthenticator)(nil)

// NewHTTPAuthenticator creates an authenticator for the API rooted at baseURL
// (e.g. http://localhost:8080/api).
func NewHTTPAuthenticator(baseURL string, httpClient *http.Client) *HTTPAuthenticator {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPAuthenticator{baseURL: baseURL, httpClient: httpClient}
}

// Authenticate implements Authenticator.
func (a *HTTPAuthenticator) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	loginURL, err := url.JoinPath(a.baseURL, "/auth/login")
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	body, err := json.Marshal(LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("marshal login request: %w", err)
	}

	// Login is a public endpoint; never present a stale credential to it.
	req, err := http.NewRequestWithContext(WithoutCredential(ctx), http.MethodPost, loginURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &LoginError{Kind: ErrUnavailable, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &LoginError{Kind: ErrUnavailable, Err: fmt.Errorf("read login response: %w", err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return sessionFromLogin(data)
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		return nil, &LoginError{Kind: ErrInvalidCredentials, Reason: errorMessage(data)}
	default:
		return nil, &LoginError{Kind: ErrUnavailable, Reason: fmt.Sprintf("%s: %s", resp.Status, errorMessage(data))}
	}
}

func sessionFromLogin(data []byte) (*Session, error) {
	var payload loginResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &LoginError{Kind: ErrUnavailable, Err: fmt.Errorf("decode login response: %w", err)}
	}
	if err := validate.Struct(payload); err != nil {
		return nil, &LoginError{Kind: ErrUnavailable, Err: fmt.Errorf("incomplete login response: %w", err)}
	}

	claims, isJWT := InspectCredential(payload.Token)
	roleClaims := payload.Roles
	if len(roleClaims) == 0 && isJWT {
		roleClaims = claims.Roles
	}

	userID := payload.ID
	if userID == 0 {
		userID = payload.UserID
	}

	tokenType := payload.Type
	if tokenType == "" {
		tokenType = "Bearer"
	}

	session := &Session{
		Credential: payload.Token,
		TokenType:  tokenType,
		UserID:     userID,
		Username:   payload.Username,
		FullName:   payload.FullName,
		Email:      payload.Email,
		Roles:      RolesFromClaims(roleClaims),
		IsActive:   accountActive(payload.IsActive, payload.Active),
	}
	if isJWT {
		session.ExpiresAt = claims.ExpiresAt
	}
	return session, nil
}

// errorMessage extracts a readable message from an error body, which the
// back office sends either as plain text or as {"error"|"message": "..."}.
func errorMessage(data []byte) string {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return ""
	}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	var quoted string
	if err := json.Unmarshal(data, &quoted); err == nil {
		return quoted
	}
	return text
}
