package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/schoolops/campus/cmd/campusctl/internal/auth"
	"github.com/schoolops/campus/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackOffice serves login plus a users endpoint that rejects any token
// other than the live one.
func fakeBackOffice(t *testing.T, roles []string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req sdk.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "correct" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("Password không đúng!"))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": "live-token", "type": "Bearer", "id": 1,
			"username": req.Username, "roles": roles,
		})
	})
	mux.HandleFunc("GET /api/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer live-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[{"id":1,"username":"admin","isActive":true,"roles":[]}]`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestProvider(t *testing.T, serverURL string, storage auth.Options) *Provider {
	t.Helper()
	if storage.Backend == "" {
		storage = auth.Options{Backend: "file", Dir: t.TempDir()}
	}
	p := NewProvider(Options{ServerURL: serverURL + "/api", Timeout: 5 * time.Second, Storage: storage})
	t.Cleanup(func() { p.Close() })
	return p
}

func TestProvider_RequireBeforeAndAfterLogin(t *testing.T) {
	server := fakeBackOffice(t, []string{"ROLE_ADMIN"})
	p := newTestProvider(t, server.URL, auth.Options{})
	ctx := context.Background()

	_, err := p.Require(ctx, "users-admin")
	require.ErrorIs(t, err, sdk.ErrNotAuthenticated)

	_, err = p.Require(ctx, "login")
	require.NoError(t, err)

	ctrl, err := p.Controller(ctx)
	require.NoError(t, err)
	_, err = ctrl.Login(ctx, "admin", "correct")
	require.NoError(t, err)

	session, err := p.Require(ctx, "users-admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", session.Username)

	_, err = p.Require(ctx, "login")
	assert.ErrorIs(t, err, ErrAlreadyAuthenticated)

	client, err := p.SDKClient(ctx)
	require.NoError(t, err)
	users, err := client.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestProvider_RequireInsufficientRole(t *testing.T) {
	server := fakeBackOffice(t, []string{"ROLE_STUDENT"})
	p := newTestProvider(t, server.URL, auth.Options{})
	ctx := context.Background()

	ctrl, err := p.Controller(ctx)
	require.NoError(t, err)
	_, err = ctrl.Login(ctx, "student", "correct")
	require.NoError(t, err)

	_, err = p.Require(ctx, "student-detail")
	require.NoError(t, err)

	_, err = p.Require(ctx, "students")
	assert.ErrorIs(t, err, sdk.ErrInsufficientRole)

	_, err = p.Require(ctx, "roles-admin")
	assert.ErrorIs(t, err, sdk.ErrInsufficientRole)
	assert.NotErrorIs(t, err, sdk.ErrNotAuthenticated)
}

func TestProvider_RequireAction(t *testing.T) {
	p := NewProvider(Options{ServerURL: "http://unused"})
	admin := &sdk.Session{Credential: "t", UserID: 1, Username: "admin", Roles: sdk.RolesFromClaims([]string{"ROLE_ADMIN"})}
	teacher := &sdk.Session{Credential: "t", UserID: 2, Username: "teacher", Roles: sdk.RolesFromClaims([]string{"ROLE_TEACHER"})}

	assert.NoError(t, p.RequireAction(admin, "student:delete", 0))
	assert.ErrorIs(t, p.RequireAction(teacher, "student:delete", 0), sdk.ErrInsufficientRole)

	assert.NoError(t, p.RequireAction(admin, "user:delete", 2))
	assert.ErrorIs(t, p.RequireAction(admin, "user:delete", 1), ErrSelfTarget)
	assert.ErrorIs(t, p.RequireAction(admin, "user:toggle-status", 1), ErrSelfTarget)
	assert.ErrorIs(t, p.RequireAction(teacher, "user:delete", 1), sdk.ErrInsufficientRole)
	assert.ErrorIs(t, p.RequireAction(admin, "user:unknown", 2), sdk.ErrInsufficientRole)
}

func TestProvider_SessionSurvivesRestart(t *testing.T) {
	server := fakeBackOffice(t, []string{"ROLE_TEACHER"})
	storage := auth.Options{Backend: "file", Dir: t.TempDir()}
	ctx := context.Background()

	first := newTestProvider(t, server.URL, storage)
	ctrl, err := first.Controller(ctx)
	require.NoError(t, err)
	_, err = ctrl.Login(ctx, "teacher", "correct")
	require.NoError(t, err)

	second := newTestProvider(t, server.URL, storage)
	session, err := second.Require(ctx, "students")
	require.NoError(t, err)
	assert.Equal(t, "live-token", session.Credential)
	assert.Equal(t, []string{"TEACHER"}, session.RoleIDs())
}

func TestProvider_UnauthorizedCallEndsStoredSession(t *testing.T) {
	server := fakeBackOffice(t, []string{"ROLE_ADMIN"})
	dir := t.TempDir()
	storage := auth.Options{Backend: "file", Dir: dir}
	ctx := context.Background()

	// Simulate a credential the server no longer accepts.
	stale := &sdk.Session{Credential: "revoked", Username: "admin", Roles: sdk.RolesFromClaims([]string{"ADMIN"})}
	encoded, err := sdk.EncodeSlots(stale)
	require.NoError(t, err)
	require.NoError(t, auth.NewFileStorage(dir, "").Save(ctx, encoded))

	p := newTestProvider(t, server.URL, storage)
	_, err = p.Require(ctx, "users-admin")
	require.NoError(t, err)

	client, err := p.SDKClient(ctx)
	require.NoError(t, err)
	_, err = client.ListUsers(ctx)
	require.ErrorIs(t, err, sdk.ErrUnauthorized)

	_, err = p.Require(ctx, "users-admin")
	assert.ErrorIs(t, err, sdk.ErrNotAuthenticated)
	assert.Contains(t, err.Error(), "session expired")

	_, statErr := os.Stat(filepath.Join(dir, "session.json"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "the durable copy is gone too")
}

func TestProvider_PolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("login_route: signin\nlanding_route: home\nroutes:\n  - id: signin\n    access: public-only\n  - id: home\n"), 0o600))

	p := NewProvider(Options{ServerURL: "http://unused", PolicyFile: path})
	guard, err := p.Guard()
	require.NoError(t, err)
	assert.Equal(t, "signin", guard.Policy().LoginRoute)

	bad := NewProvider(Options{PolicyFile: filepath.Join(t.TempDir(), "missing.yaml")})
	_, err = bad.Guard()
	assert.Error(t, err)
	_, err = bad.Authorizer()
	assert.Error(t, err)
}

func TestExplainError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&sdk.APIError{StatusCode: http.StatusUnauthorized}, "campusctl auth login"},
		{&sdk.APIError{StatusCode: http.StatusForbidden}, "insufficient permissions"},
		{&sdk.APIError{StatusCode: http.StatusNotFound}, "not found"},
		{&sdk.APIError{StatusCode: http.StatusBadGateway}, "server unavailable"},
		{fmt.Errorf("boom"), "boom"},
	}
	for _, tc := range cases {
		err := ExplainError("list users", tc.err)
		assert.ErrorContains(t, err, "list users")
		assert.ErrorContains(t, err, tc.want)
	}
}

func TestEnsureTimeout(t *testing.T) {
	ctx, cancel := EnsureTimeout(context.Background(), time.Minute)
	defer cancel()
	_, ok := ctx.Deadline()
	assert.True(t, ok)

	parent, parentCancel := context.WithTimeout(context.Background(), time.Second)
	defer parentCancel()
	same, cancel2 := EnsureTimeout(parent, time.Hour)
	defer cancel2()
	assert.Equal(t, parent, same)
}
