package handler

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/lumenchat/lumen-go-api/internal/dto"
	"github.com/lumenchat/lumen-go-api/internal/service"
	"github.com/lumenchat/lumen-go-api/internal/utils"
)

// GroupHandler wires group conversation endpoints and the group feed socket.
type GroupHandler struct {
	groups    service.GroupService
	feed      service.ChatService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewGroupHandler creates a group handler instance.
func NewGroupHandler(groups service.GroupService, feed service.ChatService, validator *validator.Validate, logger zerolog.Logger) *GroupHandler {
	return &GroupHandler{
		groups:    groups,
		feed:      feed,
		validator: validator,
		logger:    logger.With().Str("component", "group_handler").Logger(),
	}
}

// Register binds group routes under the provided router group.
func (h *GroupHandler) Register(router fiber.Router) {
	router.Post("/", h.create)
	router.Get("/", h.list)
	router.Use("/ws", upgradeGuard)
	router.Get("/ws/:groupID", websocket.New(h.handleConnection))
	router.Get("/:groupID/messages", h.history)
	router.Post("/:groupID/messages", h.send)
}

func (h *GroupHandler) create(c *fiber.Ctx) error {
	userID := userIDFromContext(c)

	var payload dto.GroupCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	group, err := h.groups.Create(requestContext(c), userID, payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "invalid group payload", err.Error())
		}
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "group created", group)
}

func (h *GroupHandler) list(c *fiber.Ctx) error {
	userID := userIDFromContext(c)

	groups, err := h.groups.ListVisible(requestContext(c), userID)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "groups", groups)
}

func (h *GroupHandler) history(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	groupID, err := parseUintParam(c, "groupID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid group id")
	}

	snapshot, err := h.groups.History(requestContext(c), userID, groupID)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "group conversation", snapshot)
}

func (h *GroupHandler) send(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	groupID, err := parseUintParam(c, "groupID")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid group id")
	}

	text, err := sendText(c, h.validator)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "message text too long")
	}

	replyToID, err := parseReplyTo(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid reply_to_id")
	}

	var attachment *service.AttachmentInput
	if file, err := c.FormFile("image"); err == nil && file != nil {
		source, err := file.Open()
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "unreadable attachment")
		}
		data, err := io.ReadAll(source)
		_ = source.Close()
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "unreadable attachment")
		}
		attachment = &service.AttachmentInput{Name: file.Filename, Data: data}
	}

	message, err := h.groups.Send(requestContext(c), userID, groupID, text, replyToID, attachment)
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Msg("group send failed")
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func (h *GroupHandler) handleConnection(conn *websocket.Conn) {
	userID := websocketUserID(conn)
	if userID == "" {
		closeSocket(conn, "user id missing")
		return
	}

	raw := strings.TrimSpace(conn.Params("groupID"))
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		closeSocket(conn, "invalid group id")
		return
	}
	groupID := uint(parsed)

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.ChatConnectionOptions{
		UserID:        userID,
		CorrelationID: localString(conn, "correlation_id"),
		Context:       baseCtx,
	}

	h.logger.Info().Str("user_id", userID).Uint("group_id", groupID).Msg("group websocket connected")
	h.feed.ServeGroup(conn, opts, groupID)
	h.logger.Info().Str("user_id", userID).Uint("group_id", groupID).Msg("group websocket disconnected")
}
