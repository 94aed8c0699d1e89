package sdk_test

import (
	"testing"

	"github.com/schoolops/campus/pkg/sdk"
	"github.com/stretchr/testify/assert"
)

func TestRouteAuthorizer_Authorize(t *testing.T) {
	authz := sdk.NewRouteAuthorizer(sdk.MustNewGuard())

	admin := newSession("tok-a", 1, "ADMIN")
	student := newSession("tok-s", 2, "STUDENT")

	tests := []struct {
		name     string
		session  *sdk.Session
		route    string
		decision sdk.Decision
		location string
		err      error
	}{
		{"anonymous to protected route", nil, "dashboard", sdk.RedirectLogin, "login", sdk.ErrNotAuthenticated},
		{"anonymous to role-gated route", nil, "users-admin", sdk.RedirectLogin, "login", sdk.ErrNotAuthenticated},
		{"anonymous to login", nil, "login", sdk.Allow, "", nil},
		{"session to login", admin, "login", sdk.RedirectLanding, "dashboard", nil},
		{"insufficient role", student, "users-admin", sdk.RedirectLanding, "dashboard", sdk.ErrInsufficientRole},
		{"sufficient role", admin, "users-admin", sdk.Allow, "", nil},
		{"any session on open route", student, "profile", sdk.Allow, "", nil},
		{"anonymous to unknown route", nil, "nowhere", sdk.RedirectLogin, "login", sdk.ErrNotAuthenticated},
		{"session to unknown route", admin, "nowhere", sdk.RedirectLanding, "dashboard", sdk.ErrInsufficientRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := authz.Authorize(tt.session, tt.route)
			assert.Equal(t, tt.decision, out.Decision)
			assert.Equal(t, tt.location, out.Location)
			assert.Equal(t, tt.decision == sdk.Allow, out.Allowed())
			if tt.err == nil {
				assert.NoError(t, out.Err)
			} else {
				assert.ErrorIs(t, out.Err, tt.err)
			}
		})
	}
}

func TestRouteAuthorizer_PublicRoute(t *testing.T) {
	policy, err := sdk.ParsePolicy([]byte(`
login_route: login
landing_route: home
routes:
  - id: login
    access: public-only
  - id: home
  - id: about
    access: public
`))
	if err != nil {
		t.Fatal(err)
	}
	guard, err := sdk.NewGuard(policy)
	if err != nil {
		t.Fatal(err)
	}
	authz := sdk.NewRouteAuthorizer(guard)

	assert.True(t, authz.Authorize(nil, "about").Allowed())
	assert.True(t, authz.Authorize(newSession("tok", 1), "about").Allowed())
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "allow", sdk.Allow.String())
	assert.Equal(t, "redirect-login", sdk.RedirectLogin.String())
	assert.Equal(t, "redirect-landing", sdk.RedirectLanding.String())
}
