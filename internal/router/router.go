package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/educonnect-api/internal/config"
	"github.com/noah-isme/educonnect-api/internal/handler"
	"github.com/noah-isme/educonnect-api/internal/middleware"
	"github.com/noah-isme/educonnect-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler         *handler.AuthHandler
	UserHandler         *handler.UserHandler
	CourseHandler       *handler.CourseHandler
	EnrollmentHandler   *handler.EnrollmentHandler
	MaterialHandler     *handler.MaterialHandler
	FeedbackHandler     *handler.FeedbackHandler
	NotificationHandler *handler.NotificationHandler
	ChatHandler         *handler.ChatHandler
	DashboardHandler    *handler.DashboardHandler
	SeedHandler         *handler.SeedHandler
	HealthProbes        map[string]handler.HealthProbe
	JWTMiddleware       fiber.Handler
	DisableMetrics      bool
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	if !deps.DisableMetrics {
		app.Get("/metrics", observability.MetricsHandler())
	}

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AuthHandler != nil {
		auth := api.Group("/auth", middleware.RateLimit("auth", cfg.AuthRateLimit, time.Minute))
		deps.AuthHandler.Register(auth, jwtMiddleware)
	}

	if deps.UserHandler != nil {
		deps.UserHandler.Register(api.Group("/users", jwtMiddleware))
		deps.UserHandler.RegisterStatus(api.Group("/status", jwtMiddleware))
	}

	courses := api.Group("/courses", jwtMiddleware)
	if deps.CourseHandler != nil {
		deps.CourseHandler.Register(courses)
	}
	if deps.EnrollmentHandler != nil {
		deps.EnrollmentHandler.Register(courses)
	}
	if deps.MaterialHandler != nil {
		deps.MaterialHandler.Register(courses)
	}

	if deps.FeedbackHandler != nil {
		deps.FeedbackHandler.RegisterCourse(courses)
		deps.FeedbackHandler.Register(api.Group("/feedback", jwtMiddleware))
	}

	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(api.Group("/notifications", jwtMiddleware))
	}

	if deps.ChatHandler != nil {
		deps.ChatHandler.Register(api.Group("/chat", jwtMiddleware))
		deps.ChatHandler.RegisterSocket(app.Group("/ws", jwtMiddleware))
	}

	if deps.DashboardHandler != nil {
		deps.DashboardHandler.Register(api.Group("/dashboard", jwtMiddleware))
	}

	if deps.SeedHandler != nil {
		deps.SeedHandler.Register(api.Group("/seed"))
	}
}
