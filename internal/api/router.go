package api

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/authgate/internal/api/handlers"
	ratelimit "github.com/isdelr/authgate/internal/api/middleware"
	"github.com/isdelr/authgate/internal/auth"
	"github.com/isdelr/authgate/internal/services"
	"github.com/isdelr/authgate/internal/websocket"
)

// Limiters groups the per-route rate limiters so they can be pruned together.
type Limiters struct {
	Global   *ratelimit.RateLimiter
	Login    *ratelimit.RateLimiter
	Register *ratelimit.RateLimiter
}

// LimitSettings holds request allowances per client. Zero disables a limiter.
type LimitSettings struct {
	Global   int
	Login    int
	Register int
}

// NewLimiters builds the global (per 15 minutes), login (per 15 minutes) and
// register (per hour) limiters.
func NewLimiters(s LimitSettings) *Limiters {
	return &Limiters{
		Global:   ratelimit.NewRateLimiter("global", s.Global, 15*time.Minute),
		Login:    ratelimit.NewRateLimiter("login", s.Login, 15*time.Minute),
		Register: ratelimit.NewRateLimiter("register", s.Register, time.Hour),
	}
}

// Prune drops clients idle for longer than idle from every limiter.
func (l *Limiters) Prune(idle time.Duration) int {
	return l.Global.Prune(idle) + l.Login.Prune(idle) + l.Register.Prune(idle)
}

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	Auth     services.AuthServiceProvider
	Events   services.EventServiceProvider
	Sessions handlers.SessionLookup
	Tokens   *auth.TokenManager
	Hub      *websocket.Hub
	DB       handlers.Pinger
	Limiters *Limiters

	// AllowedOrigins are the CORS and websocket origins.
	AllowedOrigins []string
	// Admins are the usernames allowed to read the audit event feed.
	Admins []string
	// TrustedProxies may set X-Forwarded-For and X-Real-IP. Requests from
	// anyone else are keyed on the socket peer.
	TrustedProxies []*net.IPNet
	// Logger defaults to the global logger.
	Logger *zerolog.Logger
	// ExposeViolations adds failed validation rules to 400 responses.
	ExposeViolations bool
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	if deps.Limiters == nil {
		deps.Limiters = NewLimiters(LimitSettings{})
	}
	baseLogger := log.Logger
	if deps.Logger != nil {
		baseLogger = *deps.Logger
	}

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(ratelimit.RealIP(deps.TrustedProxies))
	r.Use(hlog.NewHandler(baseLogger))
	r.Use(requestIDLogger)
	r.Use(hlog.RemoteAddrHandler("ip"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		// Query strings may carry access tokens.
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	}))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(deps.Limiters.Global.Handler)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(deps.DB)
	authHandler := handlers.NewAuthHandler(deps.Auth, deps.ExposeViolations)
	protectedHandler := handlers.NewProtectedHandler(deps.Sessions)
	eventHandler := handlers.NewEventHandler(deps.Events)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.AllowedOrigins)

	requireToken := auth.JWTMiddleware(deps.Tokens)
	requireAdmin := auth.RequireAdmin(deps.Admins)

	r.Get("/", healthHandler.Root)
	r.Get("/health", healthHandler.Health)

	r.With(deps.Limiters.Register.Handler).Post("/users", authHandler.Register)
	r.With(deps.Limiters.Login.Handler).Post("/login", authHandler.Login)

	r.Group(func(r chi.Router) {
		r.Use(requireToken)
		r.Get("/protected", protectedHandler.Protected)
		r.Get("/session", protectedHandler.Session)
	})

	r.Route("/events", func(r chi.Router) {
		r.Use(auth.TokenFromQuery("access_token"), requireToken, requireAdmin)
		r.Get("/", eventHandler.GetRecent)
		r.Get("/ws", wsHandler.Serve)
	})

	return r
}

// requestIDLogger adds chi's request id to the request logger.
func requestIDLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("req_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}
