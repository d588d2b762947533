package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lumenchat/lumen-go-api/internal/config"
	"github.com/lumenchat/lumen-go-api/internal/handler"
	"github.com/lumenchat/lumen-go-api/internal/middleware"
	"github.com/lumenchat/lumen-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ChatHandler   *handler.ChatHandler
	GroupHandler  *handler.GroupHandler
	RosterHandler *handler.RosterHandler
	UserHandler   *handler.UserHandler
	AdminHandler  *handler.AdminHandler
	JWTMiddleware fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.UserHandler != nil {
		deps.UserHandler.Register(api, jwtMiddleware)
	}

	if deps.RosterHandler != nil {
		roster := api.Group("/roster", jwtMiddleware)
		deps.RosterHandler.Register(roster)
	}

	sendLimit := middleware.RateLimit("chat_send", 30, time.Minute)

	if deps.ChatHandler != nil {
		chat := api.Group("/chat", jwtMiddleware, sendLimit)
		deps.ChatHandler.Register(chat)
	}

	if deps.GroupHandler != nil {
		groups := api.Group("/groups", jwtMiddleware, sendLimit)
		deps.GroupHandler.Register(groups)
	}

	if deps.AdminHandler != nil {
		admin := api.Group("/admin", middleware.AdminProtected(cfg.AdminSecret))
		deps.AdminHandler.Register(admin)
	}
}
