package sdk_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/schoolops/campus/pkg/sdk"
	"github.com/stretchr/testify/require"
)

func newSession(credential string, userID int64, roles ...string) *sdk.Session {
	return &sdk.Session{
		Credential: credential,
		TokenType:  "Bearer",
		UserID:     userID,
		Username:   "user" + credential,
		Roles:      sdk.RolesFromClaims(roles),
		IsActive:   true,
	}
}

func signToken(t *testing.T, subject string, roles []string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   subject,
		"roles": roles,
		"iat":   exp.Add(-24 * time.Hour).Unix(),
		"exp":   exp.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func newStore(t *testing.T, storage sdk.SessionStorage) *sdk.SessionStore {
	t.Helper()
	store, err := sdk.NewSessionStore(context.Background(), storage)
	require.NoError(t, err)
	return store
}

// staticAuth authenticates every call with the session registered for the
// username, and rejects everything else.
func staticAuth(sessions map[string]*sdk.Session) sdk.Authenticator {
	return sdk.AuthenticatorFunc(func(_ context.Context, username, _ string) (*sdk.Session, error) {
		if s, ok := sessions[username]; ok {
			return s.Clone(), nil
		}
		return nil, &sdk.LoginError{Kind: sdk.ErrInvalidCredentials, Reason: "Password không đúng!"}
	})
}

// failingStorage wraps MemoryStorage and fails the operations switched on.
type failingStorage struct {
	*sdk.MemoryStorage
	mu        sync.Mutex
	failSave  bool
	failClear bool
}

var errDisk = errors.New("disk full")

func newFailingStorage() *failingStorage {
	return &failingStorage{MemoryStorage: sdk.NewMemoryStorage()}
}

func (f *failingStorage) set(save, clear bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSave, f.failClear = save, clear
}

func (f *failingStorage) Save(ctx context.Context, slots sdk.Slots) error {
	f.mu.Lock()
	fail := f.failSave
	f.mu.Unlock()
	if fail {
		return errDisk
	}
	return f.MemoryStorage.Save(ctx, slots)
}

func (f *failingStorage) Clear(ctx context.Context) error {
	f.mu.Lock()
	fail := f.failClear
	f.mu.Unlock()
	if fail {
		return errDisk
	}
	return f.MemoryStorage.Clear(ctx)
}

type transitionLog struct {
	mu  sync.Mutex
	all []sdk.Transition
}

func recordTransitions(c *sdk.Controller) *transitionLog {
	l := &transitionLog{}
	c.OnTransition(func(tr sdk.Transition) {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.all = append(l.all, tr)
	})
	return l
}

func (l *transitionLog) states() []sdk.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]sdk.State, 0, len(l.all))
	for _, tr := range l.all {
		out = append(out, tr.To)
	}
	return out
}
