package handler

import (
	"context"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/lumenchat/lumen-go-api/internal/middleware"
	"github.com/lumenchat/lumen-go-api/internal/service"
	"github.com/lumenchat/lumen-go-api/internal/utils"
)

// ChatHandler wires direct-conversation endpoints including the websocket feed.
type ChatHandler struct {
	service   service.ChatService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewChatHandler creates a chat handler instance.
func NewChatHandler(service service.ChatService, validator *validator.Validate, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds chat routes under the provided router group.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Use("/ws", upgradeGuard)
	router.Get("/ws/:peerID", websocket.New(h.handleConnection))
	router.Get("/:peerID/messages", h.history)
	router.Post("/:peerID/messages", h.send)
}

func upgradeGuard(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		ctx := c.UserContext()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
		c.Locals("request_ctx", ctx)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *ChatHandler) handleConnection(conn *websocket.Conn) {
	userID := websocketUserID(conn)
	if userID == "" {
		closeSocket(conn, "user id missing")
		return
	}

	peerID := strings.TrimSpace(conn.Params("peerID"))
	if peerID == "" {
		closeSocket(conn, "peer id required")
		return
	}

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	opts := service.ChatConnectionOptions{
		UserID:        userID,
		CorrelationID: localString(conn, "correlation_id"),
		Context:       baseCtx,
	}

	h.logger.Info().Str("user_id", userID).Str("peer_id", peerID).Msg("chat websocket connected")
	h.service.ServeDirect(conn, opts, peerID)
	h.logger.Info().Str("user_id", userID).Str("peer_id", peerID).Msg("chat websocket disconnected")
}

func (h *ChatHandler) history(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	peerID := c.Params("peerID")

	snapshot, err := h.service.History(requestContext(c), userID, peerID)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "conversation", snapshot)
}

// send accepts a multipart form with a text field and an optional image file,
// so attachments ride over REST while the websocket carries text sends.
func (h *ChatHandler) send(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	peerID := c.Params("peerID")

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

	message, err := h.service.SendDirect(requestContext(c), userID, peerID, text, replyToID, attachment)
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Msg("direct send failed")
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func websocketUserID(conn *websocket.Conn) string {
	return strings.TrimSpace(localString(conn, "user_id"))
}

func localString(conn *websocket.Conn, key string) string {
	if value := conn.Locals(key); value != nil {
		if s, ok := value.(string); ok {
			return s
		}
	}
	return ""
}

func closeSocket(conn *websocket.Conn, reason string) {
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
	_ = conn.Close()
}
