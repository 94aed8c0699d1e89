package sdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is a position in the session lifecycle.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transition reasons.
const (
	ReasonLoginStarted   = "login-started"
	ReasonLoginSucceeded = "login-succeeded"
	ReasonLoginFailed    = "login-failed"
	ReasonLogout         = "logout"
	ReasonInvalidated    = "invalidated"
	ReasonTokenExpired   = "token-expired"
	ReasonSynced         = "synced"
)

// Transition describes one lifecycle state change.
type Transition struct {
	From      State
	To        State
	Reason    string
	AttemptID string
}

// Controller orchestrates login, logout and invalidation. It is the only
// writer of its SessionStore.
type Controller struct {
	store  *SessionStore
	auth   Authenticator
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	state State
	gen   uint64
	// endedWhilePending records that the previous session expired or was
	// rejected while a login was in flight.
	endedWhilePending bool

	transitions notifier[Transition]
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithControllerLogger sets the lifecycle logger.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source used for credential expiry.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController creates a Controller over store. The initial state is
// Authenticated when the store already holds a Session, Anonymous otherwise.
func NewController(store *SessionStore, auth Authenticator, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:  store,
		auth:   auth,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if store.Read() != nil {
		c.state = StateAuthenticated
	}
	return c
}

// SetAuthenticator replaces the authentication exchange. It exists so the
// authenticator can share an HTTP client whose Transport points back at c.
func (c *Controller) SetAuthenticator(auth Authenticator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = auth
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnTransition registers fn to observe every state change.
func (c *Controller) OnTransition(fn func(Transition)) func() {
	return c.transitions.subscribe(fn)
}

// CurrentSession returns the current Session or nil. A Session whose
// credential has passed its expiry is expired on access.
func (c *Controller) CurrentSession() *Session {
	session := c.store.Read()
	if session == nil {
		return nil
	}
	if session.Expired(c.now()) {
		c.end(context.Background(), session.Credential, StateExpired, ReasonTokenExpired)
		return nil
	}
	return session
}

// IsAuthenticated reports whether a usable Session exists.
func (c *Controller) IsAuthenticated() bool {
	return c.CurrentSession() != nil
}

// Login runs the authentication exchange and, on success, stores the
// resulting Session with a single write. On failure the Store is untouched.
// A result that arrives after a logout or a newer login is discarded with
// ErrSuperseded.
func (c *Controller) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if err := validate.Struct(LoginRequest{Username: username, Password: password}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialsRequired, err)
	}

	attemptID := uuid.NewString()

	c.mu.Lock()
	if c.auth == nil {
		c.mu.Unlock()
		return nil, errors.New("no authenticator configured")
	}
	auth := c.auth
	c.gen++
	gen := c.gen
	c.endedWhilePending = false
	c.setState(StateAuthenticating, ReasonLoginStarted, attemptID)
	c.mu.Unlock()
	c.transitions.drain()

	logger := c.logger.With(slog.String("attempt_id", attemptID), slog.String("username", username))
	logger.Debug("authenticating")

	session, authErr := auth.Authenticate(ctx, username, password)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		logger.Info("discarding superseded login result")
		return nil, ErrSuperseded
	}

	if authErr == nil && !session.Valid() {
		authErr = &LoginError{Kind: ErrUnavailable, Reason: "server returned an incomplete session"}
	}
	if authErr == nil {
		authErr = c.store.write(ctx, session)
	}
	if authErr != nil {
		c.setState(c.restingState(), ReasonLoginFailed, attemptID)
		c.endedWhilePending = false
		c.mu.Unlock()
		c.store.changes.drain()
		c.transitions.drain()
		logger.Warn("login failed", slog.Any("error", authErr))
		return nil, authErr
	}

	c.setState(StateAuthenticated, ReasonLoginSucceeded, attemptID)
	c.endedWhilePending = false
	c.mu.Unlock()
	c.store.changes.drain()
	c.transitions.drain()

	logger.Info("login succeeded", slog.Any("roles", session.RoleIDs()))
	return session.Clone(), nil
}

// Logout clears the Session. It needs no server round-trip, is a no-op when
// already anonymous, and supersedes any pending login. The returned error
// only reports a failure to clear the durable copy; the in-memory session is
// gone either way.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	c.gen++
	c.endedWhilePending = false
	from := c.state
	var err error
	if from != StateAnonymous || c.store.Read() != nil {
		err = c.store.clear(ctx)
		c.setState(StateAnonymous, ReasonLogout, "")
	}
	c.mu.Unlock()
	c.store.changes.drain()
	c.transitions.drain()

	if err != nil {
		c.logger.Warn("logout could not clear stored session", slog.Any("error", err))
		return err
	}
	if from != StateAnonymous {
		c.logger.Info("logged out")
	}
	return nil
}

// Invalidate handles a server rejection of credential: the Store is cleared
// and the state becomes Expired. It does nothing and returns false when
// credential is not the current one (already handled, or an older session).
func (c *Controller) Invalidate(ctx context.Context, credential string) bool {
	return c.end(ctx, credential, StateExpired, ReasonInvalidated)
}

func (c *Controller) end(ctx context.Context, credential string, to State, reason string) bool {
	c.mu.Lock()
	current := c.store.Read()
	if current == nil || credential == "" || current.Credential != credential {
		c.mu.Unlock()
		return false
	}
	err := c.store.clear(ctx)
	// A pending login keeps its Authenticating state; only a logout or a
	// newer login supersedes it.
	if c.state != StateAuthenticating {
		c.setState(to, reason, "")
	} else if to == StateExpired {
		c.endedWhilePending = true
	}
	c.mu.Unlock()
	c.store.changes.drain()
	c.transitions.drain()

	if err != nil {
		c.logger.Warn("could not clear stored session", slog.String("reason", reason), slog.Any("error", err))
	}
	c.logger.Info("session ended", slog.String("reason", reason), slog.String("username", current.Username))
	return true
}

// Sync reloads the durable copy and reconciles the state with it, picking up
// a login or logout performed by another process sharing the storage.
func (c *Controller) Sync(ctx context.Context) error {
	c.mu.Lock()
	changed, err := c.store.reload(ctx)
	if err == nil && changed && c.state != StateAuthenticating {
		if c.store.Read() != nil {
			c.setState(StateAuthenticated, ReasonSynced, "")
		} else if c.state == StateAuthenticated {
			c.setState(StateAnonymous, ReasonSynced, "")
		}
	}
	c.mu.Unlock()
	c.store.changes.drain()
	c.transitions.drain()
	return err
}

// restingState is the state to fall back to after a failed login.
// Callers hold c.mu.
func (c *Controller) restingState() State {
	switch {
	case c.store.Read() != nil:
		return StateAuthenticated
	case c.endedWhilePending:
		return StateExpired
	default:
		return StateAnonymous
	}
}

// setState records a transition. Callers hold c.mu.
func (c *Controller) setState(to State, reason, attemptID string) {
	if c.state == to {
		return
	}
	t := Transition{From: c.state, To: to, Reason: reason, AttemptID: attemptID}
	c.state = to
	c.transitions.enqueue(t)
}
