// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/amirphl/url-shortener/app/dto"
	"github.com/amirphl/url-shortener/app/handlers"
	"github.com/amirphl/url-shortener/app/middleware"
	"github.com/amirphl/url-shortener/docs"
	"github.com/amirphl/url-shortener/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/swaggo/swag"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	Shutdown(ctx context.Context) error
	GetApp() *fiber.App
}

// Options tunes the HTTP surface
type Options struct {
	AllowAnonymous bool
	CORSOrigins    []string
	BodyLimit      int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MetricsEnabled bool
	MetricsPath    string
	DocsEnabled    bool
	Version        string

	// AccessLog receives one JSON line per request; defaults to stdout
	AccessLog io.Writer

	// Readiness reports dependency health on /health; nil means always healthy
	Readiness func(ctx context.Context) error
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app              *fiber.App
	authHandler      handlers.AuthHandlerInterface
	shortLinkHandler handlers.ShortLinkHandlerInterface
	authMiddleware   *middleware.AuthMiddleware
	opts             Options
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	authHandler handlers.AuthHandlerInterface,
	shortLinkHandler handlers.ShortLinkHandlerInterface,
	authMiddleware *middleware.AuthMiddleware,
	opts Options,
) Router {
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = 1 * 1024 * 1024
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	if opts.AccessLog == nil {
		opts.AccessLog = os.Stdout
	}

	app := fiber.New(fiber.Config{
		AppName:      "URL Shortener API",
		ServerHeader: "url-shortener",
		ErrorHandler: errorHandler,
		BodyLimit:    opts.BodyLimit,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:              app,
		authHandler:      authHandler,
		shortLinkHandler: shortLinkHandler,
		authMiddleware:   authMiddleware,
		opts:             opts,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.setupMiddleware()

	r.app.Get("/health", r.healthCheck)

	if r.opts.MetricsEnabled {
		r.app.Get(r.opts.MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))
	}

	if r.opts.DocsEnabled {
		r.app.Get("/docs", r.serveSwaggerUI)
		r.app.Get("/docs/swagger.json", r.serveSwaggerJSON)
	}

	auth := r.app.Group("/auth")
	auth.Post("/register", r.authHandler.Register)
	auth.Post("/login", r.authHandler.Login)

	createAuth := r.authMiddleware.Authenticate()
	if r.opts.AllowAnonymous {
		createAuth = r.authMiddleware.OptionalAuth()
	}

	// Static segments are registered before the alias wildcard
	requireAuth := r.authMiddleware.Authenticate()
	links := r.app.Group("/shorten")
	links.Post("/", createAuth, r.shortLinkHandler.Create)
	links.Get("/me", requireAuth, r.shortLinkHandler.ListMine)
	links.Get("/me/export", requireAuth, r.shortLinkHandler.ExportMine)
	links.Get("/:alias", r.shortLinkHandler.Resolve)
	links.Patch("/:id", requireAuth, r.shortLinkHandler.Update)
	links.Delete("/:id", requireAuth, r.shortLinkHandler.Delete)

	r.app.Use(r.notFoundHandler)

	log.Info().Bool("allow_anonymous", r.opts.AllowAnonymous).Msg("routes configured")
}

func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: fiber.HeaderXRequestID,
		Generator: func() string {
			return uuid.NewString()
		},
	}))

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000,
		ContentSecurityPolicy:     "default-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; style-src 'self' 'unsafe-inline' https://unpkg.com; img-src 'self' data: https:; frame-ancestors 'none';",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	origins := r.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{
			fiber.MethodGet, fiber.MethodPost, fiber.MethodPatch, fiber.MethodDelete, fiber.MethodHead, fiber.MethodOptions,
		},
		AllowHeaders: []string{
			fiber.HeaderOrigin,
			fiber.HeaderContentType,
			fiber.HeaderAccept,
			fiber.HeaderAuthorization,
			fiber.HeaderXRequestID,
		},
		ExposeHeaders:    []string{fiber.HeaderXRequestID},
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           utils.CORSMaxAge,
	}))

	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Stream:     r.opts.AccessLog,
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/health" || c.Path() == r.opts.MetricsPath
		},
	}))

	if r.opts.MetricsEnabled {
		r.app.Use(middleware.Metrics(middleware.MetricsConfig{
			SkipPaths: []string{"/health", r.opts.MetricsPath},
		}))
	}

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Error().
				Str("request_id", requestid.FromContext(c)).
				Str("event", "panic").
				Interface("error", e).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Str("ip", c.IP()).
				Msg("recovered from panic")
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Info().Str("address", address).Msg("starting server")
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops accepting connections and waits for in-flight requests
func (r *FiberRouter) Shutdown(ctx context.Context) error {
	return r.app.ShutdownWithContext(ctx)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	status, code := "ok", fiber.StatusOK
	if r.opts.Readiness != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.opts.Readiness(ctx); err != nil {
			log.Warn().Err(err).Msg("health check failed")
			status, code = "degraded", fiber.StatusServiceUnavailable
		}
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: code == fiber.StatusOK,
		Message: "Service is " + status,
		Data: fiber.Map{
			"status":    status,
			"timestamp": utils.UTCNow().Unix(),
			"version":   r.opts.Version,
			"service":   "url-shortener",
		},
	})
}

func (r *FiberRouter) serveSwaggerUI(c fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(swaggerUIPage)
}

func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "Failed to load Swagger documentation",
			Error: dto.ErrorDetail{
				Code: "SWAGGER_LOAD_ERROR",
			},
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.SendString(doc)
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	middleware.MarkUnmatched(c)
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errorCode := "INTERNAL_ERROR"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		if code < fiber.StatusInternalServerError {
			message = e.Message
			errorCode = "REQUEST_ERROR"
		}
	}

	requestID := requestid.FromContext(c)
	log.Error().Err(err).Int("status", code).Str("request_id", requestID).Str("path", c.Path()).Msg("request failed")

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errorCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if strings.Contains(o, "*") {
			return true
		}
	}
	return false
}

const swaggerUIPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>URL Shortener API - Swagger UI</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css" />
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: '/docs/swagger.json',
                dom_id: '#swagger-ui',
                deepLinking: true,
                validatorUrl: null
            });
        };
    </script>
</body>
</html>`
