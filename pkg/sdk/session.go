package sdk

import (
	"slices"
	"strings"
	"time"
)

// Role is a capability tag carried by a Session.
// ID is the normalized identifier used for access decisions (e.g. "ADMIN");
// Name is the value the server sent (e.g. "ROLE_ADMIN").
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Session is the authenticated identity of the current client process.
// A Session is never mutated once stored; the SessionStore hands out clones
// and any change replaces the whole value.
type Session struct {
	Credential string    `json:"-"`
	TokenType  string    `json:"tokenType,omitempty"`
	UserID     int64     `json:"id"`
	Username   string    `json:"username"`
	FullName   string    `json:"fullname"`
	Email      string    `json:"email"`
	Roles      []Role    `json:"roles"`
	IsActive   bool      `json:"isActive"`
	ExpiresAt  time.Time `json:"expiresAt,omitempty"`
}

// NormalizeRoleID turns a server role claim into the identifier used by the
// access policy: "ROLE_admin" and "admin" both become "ADMIN".
func NormalizeRoleID(raw string) string {
	id := strings.ToUpper(strings.TrimSpace(raw))
	return strings.TrimPrefix(id, "ROLE_")
}

// RolesFromClaims builds a de-duplicated role list from raw role claims.
// The result is never nil.
func RolesFromClaims(claims []string) []Role {
	roles := make([]Role, 0, len(claims))
	seen := make(map[string]struct{}, len(claims))
	for _, claim := range claims {
		id := NormalizeRoleID(claim)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		roles = append(roles, Role{ID: id, Name: strings.TrimSpace(claim)})
	}
	return roles
}

// Valid reports whether s satisfies the Session invariants.
func (s *Session) Valid() bool {
	return s != nil && s.Credential != "" && s.Roles != nil
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Roles = slices.Clone(s.Roles)
	if c.Roles == nil {
		c.Roles = []Role{}
	}
	return &c
}

// RoleIDs returns the normalized role identifiers of the Session.
func (s *Session) RoleIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.Roles))
	for _, r := range s.Roles {
		ids = append(ids, r.ID)
	}
	return ids
}

// HasRole reports whether the Session carries the role identifier id.
func (s *Session) HasRole(id string) bool {
	if s == nil {
		return false
	}
	id = NormalizeRoleID(id)
	for _, r := range s.Roles {
		if r.ID == id {
			return true
		}
	}
	return false
}

// Expired reports whether the credential has a known expiry that has passed.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// Equivalent reports whether two sessions carry the same credential and role set.
func (s *Session) Equivalent(other *Session) bool {
	if s == nil || other == nil {
		return s == nil && other == nil
	}
	if s.Credential != other.Credential {
		return false
	}
	a, b := s.RoleIDs(), other.RoleIDs()
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}
