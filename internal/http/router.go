// Package httpapi wires the Gin engine: middleware, the health probe, the
// Telegram webhook and the optional admin API.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-nickname-bot/internal/config"
	"github.com/tbourn/go-nickname-bot/internal/http/handlers"
	"github.com/tbourn/go-nickname-bot/internal/http/middleware"
)

// maxBodyBytes caps request bodies. Telegram updates are a few KiB.
const maxBodyBytes = 1 << 20

// Deps are the collaborators behind the routes.
type Deps struct {
	Service handlers.NicknameService
	Bot     handlers.BotPinger

	// Updates and Dispatcher back the webhook route; it is only mounted
	// when both are set and the configuration selects webhook delivery.
	Updates    handlers.UpdateDecoder
	Dispatcher handlers.Dispatcher
}

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with secrets scrubbed
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter per IP (webhook exempt; commands are throttled per user)
//  8. CORS and Security headers
func RegisterRoutes(r *gin.Engine, cfg config.Config, d Deps) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	webhook := cfg.UseWebhook() && d.Updates != nil && d.Dispatcher != nil
	var exempt []string
	if webhook {
		exempt = append(exempt, cfg.Webhook.Path)
	}
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP(), exempt...)
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	h := handlers.New(d.Service, d.Bot)
	r.GET("/health", h.Health)

	if webhook {
		wh := handlers.NewWebhook(d.Updates, d.Dispatcher, cfg.Webhook.Secret)
		r.POST(cfg.Webhook.Path, wh.Handle)
	}

	if cfg.AdminAPIEnabled {
		api := groupWithPrefix(r, cfg.APIBasePath)
		api.Use(gzip.Gzip(gzip.DefaultCompression))
		api.GET("/groups", h.ListGroups)
		api.GET("/groups/:id/nicknames", h.ListNicknames)
	}
}

// corsMiddleware allows any origin when none is configured, otherwise only
// the allowlist. The admin API is read-only, so only GET is allowed.
func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Accept", "If-None-Match"},
		ExposeHeaders: []string{"X-Request-ID", "ETag", "Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// limitBody caps the request body at maxBytes; reads past it fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
