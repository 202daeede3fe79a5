package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"

	"github.com/samirrijal/murmur/internal/pkg/metrics"
)

const requestTimeout = 10 * time.Second

// SetupRoutes registers all REST and GraphQL routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())

	// Request-scoped logger carrying the request ID
	app.Use(RequestIDLogMiddleware())

	// Caller identity from session headers
	app.Use(SessionMiddleware())

	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per user, falling back to IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			if uid, ok := c.Locals("user_id").(string); ok {
				return "u:" + uid
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Post("/pings", timeout.NewWithContext(RecordPingHandler(deps), requestTimeout))
	v1.Get("/density", timeout.NewWithContext(ListDensitiesHandler(deps), requestTimeout))
	v1.Get("/density/at", timeout.NewWithContext(DensityAtHandler(deps), requestTimeout))
	v1.Get("/density/:cell", timeout.NewWithContext(GetDensityHandler(deps), requestTimeout))
	v1.Get("/geohash/encode", EncodeHandler(deps))
	v1.Get("/geohash/decode/:cell", DecodeHandler(deps))
	v1.Get("/users/:id/path", timeout.NewWithContext(UserPathHandler(deps), requestTimeout))

	// GraphQL
	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), requestTimeout))

	// API documentation (Swagger UI)
	SetupDocs(app)

	app.Use(func(c *fiber.Ctx) error {
		return errNotFound(c, "no route for "+c.Method()+" "+c.Path())
	})
}
