// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"context"
	"net/http"

	"weightlog/internal/app"
	"weightlog/internal/metrics"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// OIDCConfig holds the single sign-on settings. Zero value means disabled.
type OIDCConfig struct {
	Enabled      bool
	Provider     *oidc.Provider
	OAuth2Config oauth2.Config
}

// NewOIDCConfig discovers the issuer and builds the OAuth2 client configuration.
func NewOIDCConfig(ctx context.Context, issuerURL, clientID, clientSecret, redirectURL string) (OIDCConfig, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return OIDCConfig{}, err
	}
	return OIDCConfig{
		Enabled:  true,
		Provider: provider,
		OAuth2Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
	}, nil
}

// Services groups the application services the server routes to.
type Services struct {
	Weight   *app.WeightService
	Settings *app.SettingsService
	Charts   *app.ChartsService
	Auth     *app.AuthService
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	weight   *app.WeightService
	settings *app.SettingsService
	charts   *app.ChartsService
	authSvc  *app.AuthService

	oidcConfig OIDCConfig
	pinger     Pinger
	metrics    *metrics.Manager
	gatherer   prometheus.Gatherer
	log        logrus.FieldLogger
}

// Option configures a Server.
type Option func(*Server)

// WithOIDC enables the SSO endpoints.
func WithOIDC(cfg OIDCConfig) Option {
	return func(s *Server) { s.oidcConfig = cfg }
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WithPinger makes the health check fail while p is unreachable.
func WithPinger(p Pinger) Option {
	return func(s *Server) { s.pinger = p }
}

// WithMetrics instruments requests with m and serves g on /metrics.
func WithMetrics(m *metrics.Manager, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithLogger sets the request and error logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) { s.log = log }
}

// New creates a Server wired to the given application services.
func New(svc Services, opts ...Option) *Server {
	s := &Server{
		weight:   svc.Weight,
		settings: svc.Settings,
		charts:   svc.Charts,
		authSvc:  svc.Auth,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewTestManager()
	}
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoveryMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.loggingMiddleware)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(withNoCache)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, http.StatusNotFound, "not found", nil)
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			writeEnvelope(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		})

		r.Get("/health", s.handleHealth)

		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Get("/auth/sso/login", s.handleSSOLogin)
		r.Get("/auth/sso/callback", s.handleSSOCallback)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/refresh", s.handleRefresh)
			r.Post("/auth/logout", s.handleLogout)
			r.Put("/auth/password", s.handleChangePassword)

			r.Get("/user/settings", s.handleGetSettings)
			r.Put("/user/settings", s.handleUpdateSettings)

			r.Post("/weight/record", s.handleAddRecord)
			r.Get("/weight/records", s.handleListRecords)
			r.Get("/weight/records/stream", s.handleRecordStream)
			r.Get("/weight/record/{key}", s.handleGetRecord)
			r.Delete("/weight/record/{key}", s.handleDeleteRecord)

			r.Get("/charts/daily", s.handleChartsDaily)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.log.WithError(err).Warn("health: store unreachable")
			writeEnvelope(w, http.StatusServiceUnavailable, "store unavailable", map[string]bool{"ok": false})
			return
		}
	}
	writeOK(w, map[string]bool{"ok": true})
}
