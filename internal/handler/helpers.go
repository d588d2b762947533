package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/lumenchat/lumen-go-api/internal/chatid"
	"github.com/lumenchat/lumen-go-api/internal/middleware"
	"github.com/lumenchat/lumen-go-api/internal/service"
)

func userIDFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(string); ok {
			return strings.TrimSpace(id)
		}
	}
	return ""
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

// sendText reads the multipart text field and applies the same length bound
// the websocket send payload carries. Empty text is allowed here: a send may
// be attachment-only.
func sendText(c *fiber.Ctx, v *validator.Validate) (string, error) {
	text := c.FormValue("text")
	if err := v.Var(text, "max=4000"); err != nil {
		return "", err
	}
	return text, nil
}

// parseReplyTo reads the optional reply_to_id form field.
func parseReplyTo(c *fiber.Ctx) (*uint, error) {
	raw := strings.TrimSpace(c.FormValue("reply_to_id"))
	if raw == "" {
		return nil, nil
	}

	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		return nil, fmt.Errorf("invalid reply_to_id: %q", raw)
	}

	id := uint(parsed)
	return &id, nil
}

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	raw := strings.TrimSpace(c.Params(key))
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(parsed), nil
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// statusForError maps service-level failures onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, chatid.ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, chatid.ErrInvalidParticipant):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrNotAMember):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrUnsupportedAttachment):
		return fiber.StatusUnsupportedMediaType
	case errors.Is(err, service.ErrEmptyMessage):
		return fiber.StatusBadRequest
	case isValidationError(err):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
