package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aussiebroadwan/yieldbook/internal/auth/domain"
	"github.com/aussiebroadwan/yieldbook/internal/auth/service"
	"github.com/aussiebroadwan/yieldbook/internal/auth/store"
	"github.com/aussiebroadwan/yieldbook/pkg/authsdk"
	"github.com/aussiebroadwan/yieldbook/pkg/httpx"
	"github.com/aussiebroadwan/yieldbook/pkg/slogx"

	_ "github.com/aussiebroadwan/yieldbook/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Options carries the dependencies of the HTTP layer.
type Options struct {
	Sessions *service.SessionService
	Store    store.Store

	// Cookie describes the refresh token cookie.
	Cookie httpx.CookieConfig

	RateLimits        httpx.RateLimits
	TrustProxyHeaders bool
	AllowedOrigins    []string

	// Gatherer backs /metrics. Defaults to the prometheus default registry.
	Gatherer prometheus.Gatherer

	BuildVersion string
	Logger       *slog.Logger
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	opts      Options
	clientIP  httpx.KeyFunc
	startTime time.Time
}

func NewRouter(opts Options) *Router {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Cookie.Name == "" {
		opts.Cookie.Name = RefreshCookieName
	}

	r := &Router{
		Mux:       http.NewServeMux(),
		opts:      opts,
		clientIP:  httpx.ClientIP(opts.TrustProxyHeaders),
		startTime: time.Now(),
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(opts.Logger),
		httpx.CORS(opts.AllowedOrigins),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSessions()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Yieldbook Authentication Service API
//	@version		0.1.0
//	@description	Credential and session lifecycle for Yieldbook: registration, login, refresh token rotation and bearer authentication.
//	@description
//	@description				Access tokens are HMAC-signed JWTs returned in the response body. Refresh tokens travel only in the HttpOnly refresh_token cookie.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/yieldbook
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSessions() {
	h := &SessionHandler{
		Sessions: r.opts.Sessions,
		Cookie:   r.opts.Cookie,
	}
	limits := r.opts.RateLimits

	r.Mux.Handle("POST /auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			rateLimit(limits.Moderate, r.clientIP),
		),
	)

	// Keyed by IP and the submitted identifier to slow password guessing.
	r.Mux.Handle("POST /auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			rateLimit(limits.Strict, httpx.JoinKeys("|", r.clientIP, httpx.FormValueKey("username"))),
		),
	)

	r.Mux.Handle("POST /auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			rateLimit(limits.Moderate, r.clientIP),
		),
	)

	r.Mux.Handle("POST /auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			rateLimit(limits.Moderate, r.clientIP),
		),
	)

	r.Mux.Handle("GET /auth/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			httpx.AuthnMiddleware[domain.User](h.authenticate, writeAuthnError),
			rateLimit(limits.Lenient, subjectKey),
		),
	)
}

func (r *Router) registerSystem() {
	public := rateLimit(r.opts.RateLimits.Public, r.clientIP)
	lenient := rateLimit(r.opts.RateLimits.Lenient, r.clientIP)

	r.Mux.Handle("GET /{$}", httpx.Chain(RootHandler(r.opts.BuildVersion), public))
	r.Mux.Handle("GET /health", httpx.Chain(HealthHandler(), public))

	// Monitoring systems may poll these frequently.
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.opts.BuildVersion), lenient),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.opts.BuildVersion, r.opts.Store, r.opts.Sessions.Codec), lenient),
	)

	r.Mux.Handle("GET /metrics", promhttp.HandlerFor(r.opts.Gatherer, promhttp.HandlerOpts{}))
}

// rateLimit answers throttled requests with the rate_limit_exceeded envelope.
func rateLimit(cfg httpx.RateLimitConfig, key httpx.KeyFunc) httpx.Middleware {
	return httpx.RateLimit(cfg, key, authsdk.ErrRateLimitExceeded.WriteError)
}

func subjectKey(r *http.Request) string {
	return httpx.SubjectFromContext(r.Context())
}
