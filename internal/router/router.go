package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/challenge-api/internal/config"
	"github.com/noah-isme/challenge-api/internal/handler"
	"github.com/noah-isme/challenge-api/internal/middleware"
	"github.com/noah-isme/challenge-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	VoteHandler           *handler.VoteHandler
	LeaderboardHandler    *handler.LeaderboardHandler
	CreditHandler         *handler.CreditHandler
	AdminChallengeHandler *handler.AdminChallengeHandler
	AdminRewardHandler    *handler.AdminRewardHandler
	HealthProbes          map[string]handler.HealthProbe
	JWTMiddleware         fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}

	if deps.LeaderboardHandler != nil {
		deps.LeaderboardHandler.Register(api.Group("/challenges/:id/leaderboard"))
	}
	if deps.VoteHandler != nil {
		votes := api.Group("/challenges/:id/votes", jwtMiddleware, middleware.RateLimit("votes", 20, time.Minute))
		deps.VoteHandler.Register(votes)
	}
	if deps.CreditHandler != nil {
		me := api.Group("/me", jwtMiddleware)
		deps.CreditHandler.Register(me, middleware.RateLimit("credit_spend", 10, time.Minute))
	}

	admin := api.Group("/admin", jwtMiddleware, middleware.RequireRole("admin"))
	if deps.AdminChallengeHandler != nil {
		deps.AdminChallengeHandler.Register(admin.Group("/challenges"))
	}
	if deps.AdminRewardHandler != nil {
		deps.AdminRewardHandler.Register(admin.Group("/rewards"))
	}
}
