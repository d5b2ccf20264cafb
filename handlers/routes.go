package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sealmax-messenger/auth"
)

// SetupRoutes wires the whole HTTP surface. The routes themselves are
// glue; their contract is the effect on the store and the registry.
func SetupRoutes(app *fiber.App, authHandler *AuthHandler, chatHandler *ChatHandler,
	wsHandler *WSHandler, tokens *auth.TokenManager, gatherer prometheus.Gatherer) {
	requireAuth := RequireAuth(tokens)

	api := app.Group("/api")
	api.Post("/register", authHandler.Register)
	api.Post("/login", authHandler.Login)
	api.Post("/logout", requireAuth, authHandler.Logout)
	api.Get("/messages", requireAuth, chatHandler.Conversation)
	api.Get("/contacts", requireAuth, chatHandler.Contacts)
	api.Get("/users", requireAuth, chatHandler.User)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(wsHandler.Handle))
}
