// Package httpapi wires the HTTP transport (Gin) to the handlers and
// middleware. It centralizes cross-cutting concerns such as tracing,
// correlation IDs, logging/redaction, panic recovery, metrics, CORS and
// security headers, and decides which route groups get Slack request
// verification, API-key auth, compression and rate limiting.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/vibe-check/docs"
	"github.com/tbourn/vibe-check/internal/config"
	"github.com/tbourn/vibe-check/internal/domain"
	"github.com/tbourn/vibe-check/internal/http/handlers"
	"github.com/tbourn/vibe-check/internal/http/middleware"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Global middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger (access log) and Logger (request-scoped logger)
//  4. Recovery
//  5. Body size limiter
//  6. Metrics
//  7. CORS and security headers
//
// Slack webhooks are verified by signature and never rate limited. The
// dashboard and JSON API require an API key and are rate limited per key
// or IP.
func RegisterRoutes(r *gin.Engine, h *handlers.Handlers, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	r.SetHTMLTemplate(handlers.MustTemplates())

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderAPIKey, "X-Slack-Signature"},
		MaskParams:  []string{"api_key", "code", "state"},
	}))
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	r.Use(limitBody(maxBody))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/", h.Home)
	r.GET("/health", h.Health)

	// Slack
	slackGroup := r.Group("/slack")
	slackGroup.GET("/install", h.SlackInstall)
	slackGroup.GET("/oauth_redirect", h.SlackOAuthRedirect)
	signed := slackGroup.Group("",
		middleware.SlackSignature(cfg.Slack.SigningSecret),
		middleware.SlackRetryGuard(middleware.SlackRetryOptions{}),
	)
	{
		signed.POST("/events", h.SlackEvents)
		signed.POST("/commands", h.SlackCommands)
		signed.POST("/interactions", h.SlackInteractions)
	}

	// Dashboard and API share one limiter so a key cannot double its budget.
	keyAuth := middleware.APIKey(middleware.APIKeyOptions{
		Keys:   cfg.Dashboard.APIKeys,
		Hashes: cfg.Dashboard.APIKeyHashes,
	})
	limiter := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByAPIKeyOrIP())

	dash := r.Group("/dashboard",
		gzip.Gzip(gzip.DefaultCompression),
		limiter.Handler(),
		keyAuth,
		middleware.SecurityHeaders(middleware.SecurityOptions{
			EnableHSTS: cfg.Security.EnableHSTS,
			HSTSMaxAge: cfg.Security.HSTSMaxAge,
			NoStore:    true,
			CSP:        middleware.DashboardCSP,
		}),
	)
	{
		dash.GET("", h.Dashboard)
		dash.GET("/jobs", h.DashboardJobs)
		dash.GET("/clients/:id", h.DashboardClient)
		dash.POST("/clients/:id/send-standup", h.DashboardSend(domain.PromptStandup))
		dash.POST("/clients/:id/send-feedback", h.DashboardSend(domain.PromptFeedback))
	}

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(gzip.Gzip(gzip.DefaultCompression), limiter.Handler(), keyAuth)
	{
		api.GET("/clients", h.ListClients)
		api.GET("/clients/:id", h.GetClient)
		api.GET("/jobs", h.ListJobs)
		api.GET("/workspaces", h.ListWorkspaces)
	}

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}

// corsMiddleware allows every origin when none is configured, otherwise
// echoes allowlisted origins.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.HeaderAPIKey},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		base.AllowAllOrigins = true
		// ACAO is forced even without an Origin header so probes see it.
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody caps the request body at maxBytes. Reads past the cap error,
// which the Slack signature check reports as a bad request.
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
