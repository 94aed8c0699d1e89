package sdk

import "fmt"

// Decision is the result of authorizing a navigation.
type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	RedirectLanding
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect-login"
	case RedirectLanding:
		return "redirect-landing"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Outcome is a navigation decision plus the route to go to instead.
// Location is empty when Decision is Allow.
type Outcome struct {
	Decision Decision
	Location string
	Err      error
}

// Allowed reports whether the navigation may proceed.
func (o Outcome) Allowed() bool {
	return o.Decision == Allow
}

// RouteAuthorizer wraps navigation to a screen with the Guard's decisions.
// The attempted destination is not remembered: a redirect to login always
// lands on the default screen after the next login.
type RouteAuthorizer struct {
	guard *Guard
}

// NewRouteAuthorizer creates a RouteAuthorizer backed by guard.
func NewRouteAuthorizer(guard *Guard) *RouteAuthorizer {
	return &RouteAuthorizer{guard: guard}
}

// Guard returns the Guard backing a.
func (a *RouteAuthorizer) Guard() *Guard {
	return a.guard
}

// Authorize decides whether session may navigate to routeID.
//
// A protected route without a session redirects to the login route. A
// public-only route with a session, or a route the session's roles do not
// satisfy, redirects to the landing route. Unknown routes are treated as
// protected routes nobody may view.
func (a *RouteAuthorizer) Authorize(session *Session, routeID string) Outcome {
	policy := a.guard.Policy()
	hasSession := session.Valid()

	rule, known := a.guard.Route(routeID)
	if !known {
		if !hasSession {
			return Outcome{Decision: RedirectLogin, Location: policy.LoginRoute, Err: ErrNotAuthenticated}
		}
		return Outcome{Decision: RedirectLanding, Location: policy.LandingRoute, Err: fmt.Errorf("%w: unknown route %q", ErrInsufficientRole, routeID)}
	}

	switch rule.Access {
	case AccessPublic:
		return Outcome{Decision: Allow}
	case AccessPublicOnly:
		if hasSession {
			return Outcome{Decision: RedirectLanding, Location: policy.LandingRoute}
		}
		return Outcome{Decision: Allow}
	}

	if !hasSession {
		return Outcome{Decision: RedirectLogin, Location: policy.LoginRoute, Err: ErrNotAuthenticated}
	}
	if !a.guard.CanAccessRoute(session, routeID) {
		return Outcome{Decision: RedirectLanding, Location: policy.LandingRoute, Err: ErrInsufficientRole}
	}
	return Outcome{Decision: Allow}
}
