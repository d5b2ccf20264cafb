package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"sealmax-messenger/auth"
)

const userIDLocal = "user_id"

// RequireAuth validates the Bearer token on the request and injects
// the resolved user id for downstream handlers. Requests without a
// valid identity are rejected, never given a substitute one.
func RequireAuth(tokens *auth.TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return unauthorized(c, "authorization token is missing")
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		userID, err := tokens.Resolve(tokenStr)
		if err != nil {
			return unauthorized(c, "invalid or expired token")
		}

		c.Locals(userIDLocal, userID)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": message})
}

func authenticatedUser(c *fiber.Ctx) int64 {
	userID, _ := c.Locals(userIDLocal).(int64)
	return userID
}
