package sdk

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var defaultPolicy []byte

// accessModel grants a role a capability when a policy line names both.
const accessModel = `
[request_definition]
r = sub, obj

[policy_definition]
p = sub, obj

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj
`

// RouteAccess says who may reach a route.
type RouteAccess string

const (
	AccessAuthenticated RouteAccess = "authenticated"
	AccessPublic        RouteAccess = "public"
	AccessPublicOnly    RouteAccess = "public-only"
)

// RouteRule is the access rule of one navigable screen.
type RouteRule struct {
	ID     string      `yaml:"id"`
	Path   string      `yaml:"path"`
	Access RouteAccess `yaml:"access"`
	Roles  []string    `yaml:"roles"`
}

// ActionRule is the access rule of one in-page affordance.
type ActionRule struct {
	ID          string   `yaml:"id"`
	Roles       []string `yaml:"roles"`
	ProtectSelf bool     `yaml:"protect_self"`
}

// Policy is the complete allowed-roles table.
type Policy struct {
	LoginRoute   string       `yaml:"login_route"`
	LandingRoute string       `yaml:"landing_route"`
	Routes       []RouteRule  `yaml:"routes"`
	Actions      []ActionRule `yaml:"actions"`
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() (*Policy, error) {
	return ParsePolicy(defaultPolicy)
}

// LoadPolicyFile reads a policy from a YAML file.
func LoadPolicyFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes and validates a YAML policy.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	if err := p.normalize(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Policy) normalize() error {
	routes := make(map[string]bool, len(p.Routes))
	for i := range p.Routes {
		r := &p.Routes[i]
		if r.ID == "" {
			return fmt.Errorf("policy route %d: id is required", i)
		}
		if routes[r.ID] {
			return fmt.Errorf("policy route %q: duplicate id", r.ID)
		}
		routes[r.ID] = true
		switch r.Access {
		case "":
			r.Access = AccessAuthenticated
		case AccessAuthenticated, AccessPublic, AccessPublicOnly:
		default:
			return fmt.Errorf("policy route %q: unknown access %q", r.ID, r.Access)
		}
		if r.Access != AccessAuthenticated && len(r.Roles) > 0 {
			return fmt.Errorf("policy route %q: roles only apply to authenticated routes", r.ID)
		}
		r.Roles = normalizeRoleList(r.Roles)
	}

	actions := make(map[string]bool, len(p.Actions))
	for i := range p.Actions {
		a := &p.Actions[i]
		if a.ID == "" {
			return fmt.Errorf("policy action %d: id is required", i)
		}
		if actions[a.ID] {
			return fmt.Errorf("policy action %q: duplicate id", a.ID)
		}
		actions[a.ID] = true
		a.Roles = normalizeRoleList(a.Roles)
	}

	if !routes[p.LoginRoute] {
		return fmt.Errorf("policy: login_route %q is not a declared route", p.LoginRoute)
	}
	if !routes[p.LandingRoute] {
		return fmt.Errorf("policy: landing_route %q is not a declared route", p.LandingRoute)
	}
	return nil
}

func normalizeRoleList(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		id := NormalizeRoleID(r)
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Guard answers access questions for a Session. Decisions depend only on the
// policy and the Session's role identifiers. The Guard is a usability hint:
// the API still enforces every permission.
type Guard struct {
	policy   *Policy
	routes   map[string]RouteRule
	actions  map[string]ActionRule
	enforcer *casbin.SyncedEnforcer
}

// NewGuard builds a Guard over policy, loading every (role, capability) pair
// into an in-memory casbin enforcer.
func NewGuard(policy *Policy) (*Guard, error) {
	if policy == nil {
		var err error
		if policy, err = DefaultPolicy(); err != nil {
			return nil, err
		}
	}

	m, err := model.NewModelFromString(accessModel)
	if err != nil {
		return nil, fmt.Errorf("parse access model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create access enforcer: %w", err)
	}

	g := &Guard{
		policy:   policy,
		routes:   make(map[string]RouteRule, len(policy.Routes)),
		actions:  make(map[string]ActionRule, len(policy.Actions)),
		enforcer: enforcer,
	}

	var rules [][]string
	for _, r := range policy.Routes {
		g.routes[r.ID] = r
		for _, role := range r.Roles {
			rules = append(rules, []string{role, routeObject(r.ID)})
		}
	}
	for _, a := range policy.Actions {
		g.actions[a.ID] = a
		for _, role := range a.Roles {
			rules = append(rules, []string{role, actionObject(a.ID)})
		}
	}
	if len(rules) > 0 {
		if _, err := enforcer.AddPolicies(rules); err != nil {
			return nil, fmt.Errorf("load access rules: %w", err)
		}
	}
	return g, nil
}

// MustNewGuard is NewGuard for the built-in policy; it panics on error.
func MustNewGuard() *Guard {
	g, err := NewGuard(nil)
	if err != nil {
		panic("sdk: built-in access policy is invalid: " + err.Error())
	}
	return g
}

func routeObject(id string) string  { return "route:" + id }
func actionObject(id string) string { return "action:" + id }

// Policy returns the policy the Guard was built from.
func (g *Guard) Policy() *Policy {
	return g.policy
}

// Route returns the rule of routeID.
func (g *Guard) Route(routeID string) (RouteRule, bool) {
	r, ok := g.routes[routeID]
	return r, ok
}

// Routes returns every route rule in declaration order.
func (g *Guard) Routes() []RouteRule {
	return slices.Clone(g.policy.Routes)
}

// CanAccessRoute reports whether session may view routeID. Public routes are
// open to everyone; other routes need a session whose roles intersect the
// rule's roles, or any session when the rule lists none. Unknown routes are
// denied.
func (g *Guard) CanAccessRoute(session *Session, routeID string) bool {
	rule, ok := g.routes[routeID]
	if !ok {
		return false
	}
	if rule.Access == AccessPublic || rule.Access == AccessPublicOnly {
		return true
	}
	return g.permits(session, rule.Roles, routeObject(routeID))
}

// CanPerformAction reports whether session may use the in-page action actionID.
func (g *Guard) CanPerformAction(session *Session, actionID string) bool {
	rule, ok := g.actions[actionID]
	if !ok {
		return false
	}
	return g.permits(session, rule.Roles, actionObject(actionID))
}

// CanActOnUser is CanPerformAction for actions that target a user account.
// Self-protected actions are never allowed against the session's own user.
func (g *Guard) CanActOnUser(session *Session, actionID string, targetUserID int64) bool {
	if !g.CanPerformAction(session, actionID) {
		return false
	}
	if g.actions[actionID].ProtectSelf && session.UserID == targetUserID {
		return false
	}
	return true
}

func (g *Guard) permits(session *Session, roles []string, object string) bool {
	if !session.Valid() {
		return false
	}
	if len(roles) == 0 {
		return true
	}
	for _, role := range session.RoleIDs() {
		allowed, err := g.enforcer.Enforce(strings.ToUpper(role), object)
		if err == nil && allowed {
			return true
		}
	}
	return false
}
