package handlers

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"sealmax-messenger/domain"
	"sealmax-messenger/errors"
	"sealmax-messenger/services"
)

// ChatHandler serves the pull-based request/response surface:
// conversation history, contacts, and user lookups. All routes
// require an authenticated identity.
type ChatHandler struct {
	log  *slog.Logger
	chat services.IChatService
}

func NewChatHandler(log *slog.Logger, chat services.IChatService) *ChatHandler {
	return &ChatHandler{log: log, chat: chat}
}

// Conversation returns the direct-message history between the
// requester and the counterpart given in ?with=<userID>, ascending
// by id.
func (h *ChatHandler) Conversation(c *fiber.Ctx) error {
	counterpartID, err := strconv.ParseInt(c.Query("with"), 10, 64)
	if err != nil || counterpartID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing or invalid 'with' parameter"})
	}

	messages, err := h.chat.ConversationHistory(authenticatedUser(c), counterpartID)
	if err != nil {
		return c.Status(errors.HTTPStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"messages": nonNil(messages)})
}

func (h *ChatHandler) Contacts(c *fiber.Ctx) error {
	contacts, err := h.chat.ContactsOf(authenticatedUser(c))
	if err != nil {
		return c.Status(errors.HTTPStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	if contacts == nil {
		contacts = []domain.PublicUser{}
	}
	return c.JSON(fiber.Map{"contacts": contacts})
}

// User looks up a single account by exactly one of ?id=, ?username=
// or ?customId=. Name and custom id comparisons are case-insensitive.
func (h *ChatHandler) User(c *fiber.Ctx) error {
	var (
		user domain.PublicUser
		err  error
	)
	switch {
	case c.Query("id") != "":
		var id int64
		id, err = strconv.ParseInt(c.Query("id"), 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid id"})
		}
		user, err = h.chat.UserByID(id)
	case c.Query("username") != "":
		user, err = h.chat.UserByName(c.Query("username"))
	case c.Query("customId") != "":
		user, err = h.chat.UserByCustomID(c.Query("customId"))
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "one of id, username, customId is required"})
	}

	if err != nil {
		return c.Status(errors.HTTPStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(user)
}

func nonNil(messages []domain.Message) []domain.Message {
	if messages == nil {
		return []domain.Message{}
	}
	return messages
}
