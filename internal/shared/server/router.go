package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portfolio-api/internal/assets"
	"portfolio-api/internal/records"
	"portfolio-api/internal/services/health"
	"portfolio-api/internal/shared/auth"
	"portfolio-api/internal/shared/config"
	"portfolio-api/internal/shared/metrics"
	"portfolio-api/internal/shared/server/middleware"
	"portfolio-api/internal/shared/server/respond"
	"portfolio-api/internal/shared/telemetry"
)

// RouterDeps holds the handlers and guards the router wires together.
type RouterDeps struct {
	Config         config.Config
	Verifier       *auth.Verifier
	WriteLimiter   *middleware.RateLimiter
	Health         *health.Service
	RecordHandlers []*records.Handler
	AssetHandler   *assets.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.HandleMethodNotAllowed = true
	configureClientIP(r, deps.Config)

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)
	r.NoMethod(func(c *gin.Context) {
		respond.Error(c, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})
	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, "not_found", "Not found")
	})

	writeGuards := []gin.HandlerFunc{
		middleware.RateLimit(deps.WriteLimiter),
		middleware.RequireAdmin(deps.Verifier),
	}

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		status := deps.Health.Check(c.Request.Context())
		if !status.OK {
			respond.JSON(c, http.StatusServiceUnavailable, status)
			return
		}
		respond.OK(c, status)
	})
	for _, h := range deps.RecordHandlers {
		h.RegisterRoutes(api, writeGuards...)
	}
	if deps.AssetHandler != nil {
		deps.AssetHandler.RegisterRoutes(api, writeGuards...)
	}
	if deps.Config.MetricsEnabled {
		r.GET("/metrics", metrics.Handler())
	}

	return r
}

// configureClientIP limits which peers may set the client IP through
// forwarding headers. Nothing is trusted unless TRUSTED_PROXIES lists it.
func configureClientIP(r *gin.Engine, cfg config.Config) {
	r.TrustedPlatform = cfg.TrustedPlatform
	proxies := cfg.TrustedProxies
	if len(proxies) == 0 {
		proxies = nil
	}
	if err := r.SetTrustedProxies(proxies); err != nil {
		telemetry.Warn("router: invalid trusted proxies, trusting none", map[string]any{
			"proxies": proxies,
			"error":   err.Error(),
		})
		_ = r.SetTrustedProxies(nil)
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
