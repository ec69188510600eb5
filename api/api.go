// Package api exposes the registrar's HTTP surface: the auth route that
// hands requests to the authentication service, and the session-aware
// endpoints under /api/v1.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"net/netip"
	"net/url"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/jmcleod/registrar/session"
)

// DefaultAuthBasePath is where the auth route is mounted unless
// WithAuthBasePath says otherwise.
const DefaultAuthBasePath = "/api/auth"

// API holds the dependencies needed by the REST handlers. F is the
// additional user fields type of the sessions it serves.
type API[F any] struct {
	delegate     session.Delegate[F]
	sessions     *session.Accessor[F]
	audit        *auditLogger
	authBasePath string

	denied         *deniedLimiter
	trustedProxies []netip.Prefix
	appOrigin      string
}

//go:embed openapi.yaml
var openapiYAML []byte

type options struct {
	logger         *slog.Logger
	authBasePath   string
	alertFn        AlertFunc
	trustedProxies []netip.Prefix
	appURL         *url.URL
}

// Option configures the API instance.
type Option func(*options)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithAuthBasePath sets the prefix of the auth route.
func WithAuthBasePath(path string) Option {
	return func(o *options) {
		o.authBasePath = path
	}
}

// WithAlertFunc sets the callback for anomaly alerts. By default alerts
// are logged at warning level.
func WithAlertFunc(fn AlertFunc) Option {
	return func(o *options) {
		o.alertFn = fn
	}
}

// WithTrustedProxies sets the CIDR ranges whose X-Forwarded-For,
// Forwarded and X-Real-IP headers are believed when identifying clients.
// Without it only RemoteAddr is used.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(o *options) {
		o.trustedProxies = prefixes
	}
}

// WithAppURL sets the public URL of the application. Mutating /api/v1
// requests whose Origin header names another origin are rejected.
func WithAppURL(u *url.URL) Option {
	return func(o *options) {
		o.appURL = u
	}
}

// New creates a new API instance backed by delegate.
func New[F any](delegate session.Delegate[F], opts ...Option) *API[F] {
	o := options{authBasePath: DefaultAuthBasePath}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if o.alertFn == nil {
		logger := o.logger.With("component", "alerts")
		o.alertFn = func(e AlertEvent) {
			logger.Warn(e.Message, "type", e.Type, "count", e.Count, "threshold", e.Threshold)
		}
	}
	return &API[F]{
		delegate:       delegate,
		sessions:       session.NewAccessor(delegate),
		audit:          newAuditLogger(o.logger, newMetricsCollector(o.alertFn)),
		authBasePath:   "/" + strings.Trim(o.authBasePath, "/"),
		denied:         newDeniedLimiter(),
		trustedProxies: o.trustedProxies,
		appOrigin:      originOf(o.appURL),
	}
}

// Sessions returns the accessor used to resolve request sessions.
func (a *API[F]) Sessions() *session.Accessor[F] {
	return a.sessions
}

// Router returns a chi.Router with all routes mounted.
func (a *API[F]) Router() chi.Router {
	r := chi.NewRouter()

	// The auth route answers GET and POST only; chi rejects other methods
	// with 405 before the delegate sees them. Nothing on this route may
	// touch the request or the response.
	r.Get(a.authBasePath+"/*", a.forwardAuth)
	r.Post(a.authBasePath+"/*", a.forwardAuth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SecurityHeaders)
		r.Use(a.CheckOrigin)
		r.Use(a.sessions.Middleware)

		r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/yaml")
			w.Write(openapiYAML)
		})

		r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
			SpecURL: "/api/v1/openapi.yaml",
			Path:    "api/v1/docs",
		}, nil))

		r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
			SpecURL: "/api/v1/openapi.yaml",
			Path:    "api/v1/redoc",
		}, nil))

		r.Get("/spotlight", a.GetSpotlight)
		r.Post("/spotlight", a.PostSpotlight)
		r.With(a.RequireSession).Get("/me", a.Me)
	})

	return r
}

// forwardAuth hands the request to the authentication service as is.
func (a *API[F]) forwardAuth(w http.ResponseWriter, r *http.Request) {
	a.delegate.ServeHTTP(w, r)
}
