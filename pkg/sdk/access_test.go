package sdk_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/schoolops/campus/pkg/sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_CanAccessRoute(t *testing.T) {
	guard := sdk.MustNewGuard()

	admin := newSession("tok-a", 1, "ROLE_ADMIN")
	teacher := newSession("tok-t", 2, "ROLE_TEACHER")
	student := newSession("tok-s", 3, "ROLE_STUDENT")
	roleless := newSession("tok-n", 4)

	tests := []struct {
		name    string
		session *sdk.Session
		route   string
		want    bool
	}{
		{"anonymous dashboard", nil, "dashboard", false},
		{"anonymous login", nil, "login", true},
		{"anonymous students", nil, "students", false},
		{"student roles-admin", student, "roles-admin", false},
		{"admin roles-admin", admin, "roles-admin", true},
		{"teacher users-admin", teacher, "users-admin", false},
		{"teacher students", teacher, "students", true},
		{"student students", student, "students", false},
		{"student student-detail", student, "student-detail", true},
		{"roleless dashboard", roleless, "dashboard", true},
		{"roleless students", roleless, "students", false},
		{"admin login", admin, "login", true},
		{"admin unknown route", admin, "billing", false},
		{"anonymous unknown route", nil, "billing", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, guard.CanAccessRoute(tt.session, tt.route))
		})
	}
}

func TestGuard_CanPerformAction(t *testing.T) {
	guard := sdk.MustNewGuard()

	admin := newSession("tok-a", 1, "ADMIN")
	teacher := newSession("tok-t", 2, "TEACHER")

	assert.True(t, guard.CanPerformAction(admin, "student:delete"))
	assert.False(t, guard.CanPerformAction(teacher, "student:delete"))
	assert.False(t, guard.CanPerformAction(nil, "student:delete"))

	assert.True(t, guard.CanPerformAction(admin, "role:delete"))
	assert.False(t, guard.CanPerformAction(teacher, "role:delete"))

	assert.False(t, guard.CanPerformAction(admin, "student:archive"), "unknown actions are denied")
}

func TestGuard_ActionWithoutRolesAllowsAnySession(t *testing.T) {
	policy, err := sdk.ParsePolicy([]byte("login_route: a\nlanding_route: b\nroutes:\n  - id: a\n    access: public-only\n  - id: b\nactions:\n  - id: note:read\n"))
	require.NoError(t, err)
	guard, err := sdk.NewGuard(policy)
	require.NoError(t, err)

	assert.True(t, guard.CanPerformAction(newSession("tok", 1, "TEACHER"), "note:read"))
	assert.False(t, guard.CanPerformAction(nil, "note:read"))
}

func TestGuard_IsDeterministic(t *testing.T) {
	guard := sdk.MustNewGuard()
	session := newSession("tok", 1, "TEACHER", "STUDENT")
	first := guard.CanAccessRoute(session, "users-admin")
	for range 50 {
		assert.Equal(t, first, guard.CanAccessRoute(session, "users-admin"))
	}
}

func TestGuard_CanActOnUser(t *testing.T) {
	guard := sdk.MustNewGuard()
	admin := newSession("tok-a", 10, "ADMIN")
	teacher := newSession("tok-t", 11, "TEACHER")

	assert.True(t, guard.CanActOnUser(admin, "user:delete", 42))
	assert.False(t, guard.CanActOnUser(admin, "user:delete", 10), "an admin may not delete their own account")
	assert.False(t, guard.CanActOnUser(admin, "user:toggle-status", 10), "an admin may not deactivate their own account")
	assert.True(t, guard.CanActOnUser(admin, "role:delete", 10), "actions without protect_self ignore the target")
	assert.False(t, guard.CanActOnUser(teacher, "user:delete", 42))
}

func TestGuard_Routes(t *testing.T) {
	guard := sdk.MustNewGuard()

	rule, ok := guard.Route("roles-admin")
	require.True(t, ok)
	assert.Equal(t, "/roles", rule.Path)
	assert.Equal(t, sdk.AccessAuthenticated, rule.Access)
	assert.Equal(t, []string{"ADMIN"}, rule.Roles)

	login, ok := guard.Route("login")
	require.True(t, ok)
	assert.Equal(t, sdk.AccessPublicOnly, login.Access)

	routes := guard.Routes()
	require.NotEmpty(t, routes)
	routes[0].ID = "mutated"
	_, ok = guard.Route("mutated")
	assert.False(t, ok)
}

func TestParsePolicy(t *testing.T) {
	valid := `
login_route: login
landing_route: home
routes:
  - id: login
    access: public-only
  - id: home
  - id: reports
    roles: [role_auditor, ROLE_AUDITOR]
actions:
  - id: report:export
    roles: [auditor]
`
	policy, err := sdk.ParsePolicy([]byte(valid))
	require.NoError(t, err)
	assert.Equal(t, sdk.AccessAuthenticated, policy.Routes[1].Access, "access defaults to authenticated")
	assert.Equal(t, []string{"AUDITOR"}, policy.Routes[2].Roles, "roles are normalized and de-duplicated")

	guard, err := sdk.NewGuard(policy)
	require.NoError(t, err)
	auditor := newSession("tok", 1, "ROLE_AUDITOR")
	assert.True(t, guard.CanAccessRoute(auditor, "reports"))
	assert.True(t, guard.CanPerformAction(auditor, "report:export"))
	assert.False(t, guard.CanAccessRoute(newSession("tok", 2, "ADMIN"), "reports"))

	invalid := map[string]string{
		"unknown access":      "login_route: a\nlanding_route: a\nroutes:\n  - id: a\n    access: secret\n",
		"roles on public":     "login_route: a\nlanding_route: a\nroutes:\n  - id: a\n    access: public\n    roles: [ADMIN]\n",
		"missing login route": "login_route: nope\nlanding_route: a\nroutes:\n  - id: a\n",
		"duplicate route":     "login_route: a\nlanding_route: a\nroutes:\n  - id: a\n  - id: a\n",
		"duplicate action":    "login_route: a\nlanding_route: a\nroutes:\n  - id: a\nactions:\n  - id: x\n  - id: x\n",
		"not yaml":            "routes: [",
	}
	for name, doc := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := sdk.ParsePolicy([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	doc := "login_route: signin\nlanding_route: start\nroutes:\n  - id: signin\n    access: public-only\n  - id: start\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	policy, err := sdk.LoadPolicyFile(path)
	require.NoError(t, err)
	assert.Equal(t, "signin", policy.LoginRoute)

	_, err = sdk.LoadPolicyFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
