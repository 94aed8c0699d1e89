// Package console serves a small browser console over the session layer.
// Every screen is gated by route authorization and every API call goes
// through the credential-attaching pipeline, so the console behaves like the
// single-page front end the back office was built for.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/schoolops/campus/pkg/sdk"
	"github.com/unrolled/secure"
)

// Config wires a Server.
type Config struct {
	Controller *sdk.Controller
	Authorizer *sdk.RouteAuthorizer
	API        *sdk.Client
	Logger     *slog.Logger
	Metrics    *Metrics

	// LoginRate is the number of login attempts allowed per client IP per minute.
	LoginRate      int
	RequestTimeout time.Duration
}

// Server is the console HTTP handler.
type Server struct {
	ctrl       *sdk.Controller
	authorizer *sdk.RouteAuthorizer
	guard      *sdk.Guard
	api        *sdk.Client
	logger     *slog.Logger
	metrics    *Metrics
	views      *views
	loginRate  int
	timeout    time.Duration

	router      http.Handler
	unsubscribe func()
}

// New builds a Server. Close releases its lifecycle subscription.
func New(cfg Config) (*Server, error) {
	if cfg.Controller == nil || cfg.Authorizer == nil || cfg.API == nil {
		return nil, errors.New("console requires a controller, an authorizer and an API client")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.LoginRate <= 0 {
		cfg.LoginRate = 5
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	v, err := newViews()
	if err != nil {
		return nil, err
	}

	s := &Server{
		ctrl:       cfg.Controller,
		authorizer: cfg.Authorizer,
		guard:      cfg.Authorizer.Guard(),
		api:        cfg.API,
		logger:     logger,
		metrics:    cfg.Metrics,
		views:      v,
		loginRate:  cfg.LoginRate,
		timeout:    cfg.RequestTimeout,
	}
	s.unsubscribe = cfg.Controller.OnTransition(s.metrics.ObserveTransition)
	s.router = s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops recording lifecycle transitions.
func (s *Server) Close() {
	s.unsubscribe()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "same-origin",
		ContentSecurityPolicy: "default-src 'self'; form-action 'self'",
	})

	r.Use(
		chimw.RealIP,
		chimw.RequestID,
		chimw.Recoverer,
		s.metrics.Middleware,
		s.logRequests,
		secureMiddleware.Handler,
		chimw.Timeout(s.timeout),
		sameOrigin,
	)

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Post("/logout", s.logout)

	policy := s.guard.Policy()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.path(policy.LandingRoute), http.StatusSeeOther)
	})

	for _, route := range s.guard.Routes() {
		if route.Path == "" {
			continue
		}
		gated := r.With(s.authorize(route.ID))
		if route.ID == policy.LoginRoute {
			gated.Get(route.Path, s.loginPage)
			gated.With(httprate.LimitByIP(s.loginRate, time.Minute)).Post(route.Path, s.loginSubmit)
			continue
		}
		gated.Get(route.Path, s.pageHandler(route))
	}

	if detail, ok := s.routePath(routeStudentDetail); ok {
		r.With(s.authorize(routeStudentDetail)).Post(detail+"/delete", s.deleteStudent)
	}
	if users, ok := s.routePath(routeUsers); ok {
		gated := r.With(s.authorize(routeUsers))
		gated.Post(users+"/{id}/delete", s.deleteUser)
		gated.Post(users+"/{id}/toggle-status", s.toggleUser)
	}
	if roles, ok := s.routePath(routeRoles); ok {
		r.With(s.authorize(routeRoles)).Post(roles+"/{id}/delete", s.deleteRole)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.renderError(w, r, http.StatusNotFound, "Page not found", "")
	})
	return r
}

// sameOrigin rejects state-changing requests sent from another site.
func sameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		if site := r.Header.Get("Sec-Fetch-Site"); site != "" && site != "same-origin" && site != "none" {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		if origin := r.Header.Get("Origin"); origin != "" {
			u, err := url.Parse(origin)
			if err != nil || u.Host != r.Host {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("console request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", chimw.GetReqID(r.Context())))
	})
}

type sessionKey struct{}

func sessionFrom(ctx context.Context) *sdk.Session {
	session, _ := ctx.Value(sessionKey{}).(*sdk.Session)
	return session
}

// authorize runs Route Authorization before routeID's handler. The durable
// copy is synced first so a login or logout from the CLI shows up here.
func (s *Server) authorize(routeID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := s.ctrl.Sync(r.Context()); err != nil {
				s.logger.Warn("could not sync session", slog.Any("error", err))
			}

			session := s.ctrl.CurrentSession()
			outcome := s.authorizer.Authorize(session, routeID)
			if !outcome.Allowed() {
				s.metrics.ObserveRedirect(routeID, outcome.Decision)
				target := s.path(outcome.Location)
				if outcome.Decision == sdk.RedirectLogin {
					target = s.loginURL()
				}
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
		})
	}
}

// path maps a route id onto its URL path; routes without one fall back to "/".
func (s *Server) path(routeID string) string {
	if p, ok := s.routePath(routeID); ok && !strings.Contains(p, "{") {
		return p
	}
	return "/"
}

func (s *Server) routePath(routeID string) (string, bool) {
	rule, ok := s.guard.Route(routeID)
	if !ok || rule.Path == "" {
		return "", false
	}
	return rule.Path, true
}

func (s *Server) loginURL() string {
	target := s.path(s.guard.Policy().LoginRoute)
	if s.ctrl.State() == sdk.StateExpired {
		target += "?expired=1"
	}
	return target
}

func pathWithID(pattern string, id int64) string {
	return strings.Replace(pattern, "{id}", strconv.FormatInt(id, 10), 1)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"session": s.ctrl.State().String(),
	})
}
