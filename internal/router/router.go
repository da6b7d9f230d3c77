package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/config"
	"github.com/noah-isme/gema-lms-api/internal/handler"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	CurriculumHandler  *handler.CurriculumHandler
	ProgressHandler    *handler.ProgressHandler
	AssignmentHandler  *handler.AssignmentHandler
	QuizHandler        *handler.QuizHandler
	CertificateHandler *handler.CertificateHandler
	TemplateHandler    *handler.CertificateTemplateHandler
	PaymentHandler     *handler.PaymentHandler
	ProfileHandler     *handler.ProfileHandler
	JWTMiddleware      fiber.Handler
	HealthChecks       map[string]handler.DependencyCheck
	Logger             zerolog.Logger
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler(deps.Logger))

	api := app.Group("/api/v1")
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks))

	// Public routes are registered before the JWT group so they answer first.
	if deps.CertificateHandler != nil {
		deps.CertificateHandler.RegisterPublic(api)
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	protected := api.Group("", jwtMiddleware)

	if deps.CurriculumHandler != nil {
		deps.CurriculumHandler.Register(protected)
	}
	if deps.ProgressHandler != nil {
		deps.ProgressHandler.Register(protected)
	}
	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(protected)
	}
	if deps.QuizHandler != nil {
		deps.QuizHandler.Register(protected)
	}
	if deps.CertificateHandler != nil {
		deps.CertificateHandler.Register(protected, middleware.RateLimit("certificate_issue", cfg.IssueRateLimit, cfg.IssueRateWindow))
	}
	if deps.TemplateHandler != nil {
		deps.TemplateHandler.Register(protected)
	}
	if deps.PaymentHandler != nil {
		deps.PaymentHandler.Register(protected, middleware.RateLimit("payment_verify", cfg.IssueRateLimit, cfg.IssueRateWindow))
	}
	if deps.ProfileHandler != nil {
		deps.ProfileHandler.Register(protected)
	}
}
