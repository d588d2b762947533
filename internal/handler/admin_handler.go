package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/lumenchat/lumen-go-api/internal/service"
	"github.com/lumenchat/lumen-go-api/internal/utils"
)

// AdminHandler serves the moderation surface behind the shared-secret gate.
type AdminHandler struct {
	service service.AdminService
	logger  zerolog.Logger
}

// NewAdminHandler creates an admin handler instance.
func NewAdminHandler(service service.AdminService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register binds admin routes under the provided router group.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Get("/users", h.listUsers)
	router.Delete("/users/:userID", h.deleteUser)
	router.Get("/messages", h.listMessages)
	router.Delete("/messages/:messageID", h.deleteMessage)
}

func (h *AdminHandler) listUsers(c *fiber.Ctx) error {
	users, err := h.service.ListUsers(requestContext(c))
	if err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "users", users)
}

func (h *AdminHandler) listMessages(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	messages, err := h.service.ListMessages(requestContext(c), limit)
	if err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "messages", messages)
}

func (h *AdminHandler) deleteMessage(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "messageID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid message id")
	}

	if err := h.service.DeleteMessage(requestContext(c), id); err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "message deleted", nil)
}

func (h *AdminHandler) deleteUser(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("userID"))
	if userID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid user id")
	}

	if err := h.service.DeleteUser(requestContext(c), userID); err != nil {
		requestLogger(h.logger, c).Error().Err(err).Str("user_id", userID).Msg("cascade delete failed")
		return utils.SendError(c, fiber.StatusInternalServerError, err.Error())
	}

	return utils.SendSuccess(c, "user deleted", nil)
}
