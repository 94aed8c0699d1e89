package sdk

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// RequestIDHeader carries a per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

type skipCredentialKey struct{}

// WithoutCredential marks requests made with ctx as public: the Transport
// sends them without an Authorization header and never treats their 401 as
// an invalidation signal.
func WithoutCredential(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipCredentialKey{}, true)
}

func credentialSkipped(ctx context.Context) bool {
	skip, _ := ctx.Value(skipCredentialKey{}).(bool)
	return skip
}

// SessionReader yields the session whose credential should be attached.
type SessionReader interface {
	Read() *Session
}

// InvalidationHandler is told that the server rejected credential.
// It reports whether the rejection changed the session state.
type InvalidationHandler interface {
	Invalidate(ctx context.Context, credential string) bool
}

// Transport is the request pipeline: an http.RoundTripper that attaches the
// current session's credential as a bearer token and turns a 401 on an
// authenticated call into an invalidation, exactly once per credential.
// Responses are returned unchanged; Transport never retries.
type Transport struct {
	base     http.RoundTripper
	sessions SessionReader
	handler  InvalidationHandler
	logger   *slog.Logger

	invalidations singleflight.Group
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithBaseTransport sets the RoundTripper that performs the network call.
func WithBaseTransport(base http.RoundTripper) TransportOption {
	return func(t *Transport) {
		if base != nil {
			t.base = base
		}
	}
}

// WithTransportLogger sets the logger for request tracing.
func WithTransportLogger(logger *slog.Logger) TransportOption {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTransport creates the pipeline. handler may be nil, in which case 401
// responses are passed through without any session cleanup.
func NewTransport(sessions SessionReader, handler InvalidationHandler, opts ...TransportOption) *Transport {
	t := &Transport{
		base:     http.DefaultTransport,
		sessions: sessions,
		handler:  handler,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request.
	out := req.Clone(req.Context())
	if out.Header.Get(RequestIDHeader) == "" {
		out.Header.Set(RequestIDHeader, uuid.NewString())
	}

	var credential string
	if !credentialSkipped(req.Context()) && t.sessions != nil {
		if session := t.sessions.Read(); session != nil {
			credential = session.Credential
			token := &oauth2.Token{AccessToken: session.Credential, TokenType: session.TokenType}
			token.SetAuthHeader(out)
		}
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		t.logger.Debug("request failed",
			slog.String("method", out.Method),
			slog.String("url", out.URL.Redacted()),
			slog.Any("error", err))
		return nil, err
	}

	t.logger.Debug("request completed",
		slog.String("method", out.Method),
		slog.String("url", out.URL.Redacted()),
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", out.Header.Get(RequestIDHeader)),
		slog.Bool("authenticated", credential != ""))

	if resp.StatusCode == http.StatusUnauthorized && credential != "" && t.handler != nil {
		t.invalidate(req.Context(), credential)
	}
	return resp, nil
}

// invalidate runs the handler once for concurrent failures of the same
// credential and finishes before the failing call returns.
func (t *Transport) invalidate(ctx context.Context, credential string) {
	ctx = context.WithoutCancel(ctx)
	v, _, shared := t.invalidations.Do(credential, func() (any, error) {
		return t.handler.Invalidate(ctx, credential), nil
	})
	if changed, _ := v.(bool); changed && !shared {
		t.logger.Info("session invalidated by server")
	}
}
