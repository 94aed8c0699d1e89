package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/schoolops/campus/cmd/campusctl/internal/auth"
	"github.com/schoolops/campus/pkg/sdk"
)

// ErrAlreadyAuthenticated is returned by Require for public-only screens
// while a session exists.
var ErrAlreadyAuthenticated = errors.New("already logged in")

// ErrSelfTarget is returned by RequireAction when a self-protected action
// targets the session's own account.
var ErrSelfTarget = errors.New("cannot target your own account")

// Options configures a Provider.
type Options struct {
	ServerURL  string
	Timeout    time.Duration
	PolicyFile string
	Storage    auth.Options
	Logger     *slog.Logger

	// BaseTransport performs the network calls; nil means http.DefaultTransport.
	BaseTransport http.RoundTripper
}

// Provider lazily wires the session stack shared by every command: durable
// storage, Session Store, lifecycle Controller, request pipeline, access
// Guard and the back-office API client.
type Provider struct {
	opts   Options
	logger *slog.Logger

	sessionOnce sync.Once
	sessionErr  error
	closer      io.Closer
	store       *sdk.SessionStore
	controller  *sdk.Controller
	httpClient  *http.Client
	sdkClient   *sdk.Client

	guardOnce  sync.Once
	guard      *sdk.Guard
	authorizer *sdk.RouteAuthorizer
	guardErr   error
}

// NewProvider constructs a Provider. Nothing is opened until first use.
func NewProvider(opts Options) *Provider {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Provider{opts: opts, logger: logger}
}

// ServerURL returns the API base URL.
func (p *Provider) ServerURL() string {
	return p.opts.ServerURL
}

func (p *Provider) initSession(ctx context.Context) error {
	p.sessionOnce.Do(func() {
		storage, closer, err := auth.Open(ctx, p.opts.Storage)
		if err != nil {
			p.sessionErr = fmt.Errorf("failed to open session storage: %w", err)
			return
		}

		store, err := sdk.NewSessionStore(ctx, storage, sdk.WithStoreLogger(p.logger.With("component", "store")))
		if err != nil {
			closer.Close()
			p.sessionErr = err
			return
		}

		controller := sdk.NewController(store, nil, sdk.WithControllerLogger(p.logger.With("component", "lifecycle")))
		transport := sdk.NewTransport(store, controller,
			sdk.WithBaseTransport(p.opts.BaseTransport),
			sdk.WithTransportLogger(p.logger.With("component", "pipeline")))
		httpClient := &http.Client{Transport: transport, Timeout: p.opts.Timeout}
		controller.SetAuthenticator(sdk.NewHTTPAuthenticator(p.opts.ServerURL, httpClient))

		p.closer = closer
		p.store = store
		p.controller = controller
		p.httpClient = httpClient
		p.sdkClient = sdk.NewClient(p.opts.ServerURL,
			sdk.WithHTTPClient(httpClient),
			sdk.WithLogger(p.logger.With("component", "api")))
	})
	return p.sessionErr
}

// Controller returns the session lifecycle controller.
func (p *Provider) Controller(ctx context.Context) (*sdk.Controller, error) {
	if err := p.initSession(ctx); err != nil {
		return nil, err
	}
	return p.controller, nil
}

// HTTPClient returns the http.Client whose Transport is the request pipeline.
func (p *Provider) HTTPClient(ctx context.Context) (*http.Client, error) {
	if err := p.initSession(ctx); err != nil {
		return nil, err
	}
	return p.httpClient, nil
}

// SDKClient returns the back-office API client.
func (p *Provider) SDKClient(ctx context.Context) (*sdk.Client, error) {
	if err := p.initSession(ctx); err != nil {
		return nil, err
	}
	return p.sdkClient, nil
}

// Guard returns the access Guard built from the configured policy.
func (p *Provider) Guard() (*sdk.Guard, error) {
	p.guardOnce.Do(func() {
		var policy *sdk.Policy
		if p.opts.PolicyFile != "" {
			policy, p.guardErr = sdk.LoadPolicyFile(p.opts.PolicyFile)
			if p.guardErr != nil {
				return
			}
		}
		p.guard, p.guardErr = sdk.NewGuard(policy)
		if p.guardErr == nil {
			p.authorizer = sdk.NewRouteAuthorizer(p.guard)
		}
	})
	return p.guard, p.guardErr
}

// Authorizer returns the RouteAuthorizer over Guard.
func (p *Provider) Authorizer() (*sdk.RouteAuthorizer, error) {
	if _, err := p.Guard(); err != nil {
		return nil, err
	}
	return p.authorizer, nil
}

// Require is Route Authorization for a CLI screen: it returns the current
// Session when it may open routeID, and otherwise an error telling the user
// to log in or that their roles are insufficient.
func (p *Provider) Require(ctx context.Context, routeID string) (*sdk.Session, error) {
	controller, err := p.Controller(ctx)
	if err != nil {
		return nil, err
	}
	authorizer, err := p.Authorizer()
	if err != nil {
		return nil, err
	}

	session := controller.CurrentSession()
	outcome := authorizer.Authorize(session, routeID)
	switch outcome.Decision {
	case sdk.Allow:
		return session, nil
	case sdk.RedirectLogin:
		if controller.State() == sdk.StateExpired {
			return nil, fmt.Errorf("session expired: %w; run `campusctl auth login`", sdk.ErrNotAuthenticated)
		}
		return nil, fmt.Errorf("%w; run `campusctl auth login`", sdk.ErrNotAuthenticated)
	default:
		if outcome.Err == nil {
			return nil, fmt.Errorf("%w as %s", ErrAlreadyAuthenticated, session.Username)
		}
		return nil, fmt.Errorf("%s requires another role: %w", routeID, outcome.Err)
	}
}

// RequireAction checks that session may perform actionID. For actions on a
// user account pass the target's id; pass 0 otherwise.
func (p *Provider) RequireAction(session *sdk.Session, actionID string, targetUserID int64) error {
	guard, err := p.Guard()
	if err != nil {
		return err
	}
	if !guard.CanPerformAction(session, actionID) {
		return fmt.Errorf("%s requires another role: %w", actionID, sdk.ErrInsufficientRole)
	}
	if targetUserID != 0 && !guard.CanActOnUser(session, actionID, targetUserID) {
		return fmt.Errorf("%s: %w", actionID, ErrSelfTarget)
	}
	return nil
}

// ExplainError turns an API error into a message for the user. 401 means the
// pipeline has already ended the session.
func ExplainError(action string, err error) error {
	switch {
	case errors.Is(err, sdk.ErrUnauthorized):
		return fmt.Errorf("%s: session is no longer valid; run `campusctl auth login`", action)
	case errors.Is(err, sdk.ErrForbidden):
		return fmt.Errorf("%s: insufficient permissions", action)
	case errors.Is(err, sdk.ErrNotFound):
		return fmt.Errorf("%s: not found", action)
	case errors.Is(err, sdk.ErrUnavailable):
		return fmt.Errorf("%s: server unavailable, try again later: %w", action, err)
	default:
		return fmt.Errorf("%s: %w", action, err)
	}
}

// Close releases the durable storage.
func (p *Provider) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// EnsureTimeout bounds ctx unless it already has a deadline.
func EnsureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, timeout)
}
