package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Durable slot names. Both slots are always written and cleared together.
const (
	CredentialSlot = "token"
	ProfileSlot    = "user"
)

// Slots is the raw content of the two durable session slots.
type Slots struct {
	Credential string
	Profile    []byte
}

// Empty reports whether neither slot holds data.
func (s Slots) Empty() bool {
	return s.Credential == "" && len(s.Profile) == 0
}

// SessionStorage persists the session slots beyond the lifetime of the process.
// Implementations must write and clear both slots as one unit.
type SessionStorage interface {
	// Load returns the stored slots; empty Slots and a nil error when nothing is stored.
	Load(ctx context.Context) (Slots, error)
	Save(ctx context.Context, slots Slots) error
	Clear(ctx context.Context) error
}

// ErrMalformedSession is returned by DecodeSlots when the stored pair cannot
// form a valid Session.
var ErrMalformedSession = errors.New("malformed stored session")

// profilePayload is the serialized user/role half of a Session.
// "active" is accepted as an alias of "isActive"; see DESIGN.md.
type profilePayload struct {
	TokenType string `json:"tokenType,omitempty"`
	UserID    int64  `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"fullname"`
	Email     string `json:"email"`
	Roles     []Role `json:"roles"`
	IsActive  *bool  `json:"isActive,omitempty"`
	Active    *bool  `json:"active,omitempty"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
}

// EncodeSlots serializes a Session into its two durable slots.
func EncodeSlots(s *Session) (Slots, error) {
	if !s.Valid() {
		return Slots{}, fmt.Errorf("encode session: %w", ErrMalformedSession)
	}
	active := s.IsActive
	payload := profilePayload{
		TokenType: s.TokenType,
		UserID:    s.UserID,
		Username:  s.Username,
		FullName:  s.FullName,
		Email:     s.Email,
		Roles:     s.Roles,
		IsActive:  &active,
	}
	if !s.ExpiresAt.IsZero() {
		payload.ExpiresAt = s.ExpiresAt.Unix()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Slots{}, fmt.Errorf("encode session: %w", err)
	}
	return Slots{Credential: s.Credential, Profile: data}, nil
}

// DecodeSlots rebuilds a Session from its durable slots.
// It returns (nil, nil) for empty slots and ErrMalformedSession when only
// half of the pair is present or the profile cannot be parsed.
func DecodeSlots(slots Slots) (*Session, error) {
	if slots.Empty() {
		return nil, nil
	}
	if slots.Credential == "" || len(slots.Profile) == 0 {
		return nil, fmt.Errorf("%w: incomplete slot pair", ErrMalformedSession)
	}
	var payload profilePayload
	if err := json.Unmarshal(slots.Profile, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSession, err)
	}
	if payload.Roles == nil {
		return nil, fmt.Errorf("%w: missing roles", ErrMalformedSession)
	}

	s := &Session{
		Credential: slots.Credential,
		TokenType:  payload.TokenType,
		UserID:     payload.UserID,
		Username:   payload.Username,
		FullName:   payload.FullName,
		Email:      payload.Email,
		Roles:      payload.Roles,
		IsActive:   accountActive(payload.IsActive, payload.Active),
	}
	if payload.ExpiresAt > 0 {
		s.ExpiresAt = unixTime(payload.ExpiresAt)
	}
	return s, nil
}

// accountActive resolves the account status; a missing field means active.
func accountActive(isActive, active *bool) bool {
	switch {
	case isActive != nil:
		return *isActive
	case active != nil:
		return *active
	default:
		return true
	}
}

// MemoryStorage keeps the session slots in memory only.
type MemoryStorage struct {
	mu    sync.Mutex
	slots Slots
}

// Ensure MemoryStorage implements SessionStorage at compile time.
var _ SessionStorage = (*MemoryStorage)(nil)

// NewMemoryStorage returns an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load(_ context.Context) (Slots, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Slots{Credential: m.slots.Credential, Profile: append([]byte(nil), m.slots.Profile...)}, nil
}

func (m *MemoryStorage) Save(_ context.Context, slots Slots) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = Slots{Credential: slots.Credential, Profile: append([]byte(nil), slots.Profile...)}
	return nil
}

func (m *MemoryStorage) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = Slots{}
	return nil
}
