package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"sealmax-messenger/errors"
	"sealmax-messenger/services"
)

type AuthHandler struct {
	log  *slog.Logger
	auth services.IAuthService
}

func NewAuthHandler(log *slog.Logger, auth services.IAuthService) *AuthHandler {
	return &AuthHandler{log: log, auth: auth}
}

type registerBody struct {
	Username string `json:"username"`
	CustomID string `json:"customId"`
	Password string `json:"password"`
}

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var body registerBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed body"})
	}

	user, token, err := h.auth.Register(body.Username, body.CustomID, body.Password)
	if err != nil {
		h.log.Debug("Registration rejected", "username", body.Username, "error", err)
		return c.Status(errors.HTTPStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": token,
		"user":  user.Public(),
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var body loginBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed body"})
	}

	user, token, err := h.auth.Login(body.Username, body.Password)
	if err != nil {
		return c.Status(errors.HTTPStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user.Public(),
	})
}

// Logout is stateless on the server side: sessions are JWTs, so the
// client discards its token. The route exists so clients have a
// uniform surface to call.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}
