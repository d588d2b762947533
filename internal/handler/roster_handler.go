package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/lumenchat/lumen-go-api/internal/dto"
	"github.com/lumenchat/lumen-go-api/internal/service"
	"github.com/lumenchat/lumen-go-api/internal/utils"
)

// RosterHandler serves the home view: peers with unread counts and visible groups.
type RosterHandler struct {
	service   service.RosterService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRosterHandler creates a roster handler instance.
func NewRosterHandler(service service.RosterService, validator *validator.Validate, logger zerolog.Logger) *RosterHandler {
	return &RosterHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "roster_handler").Logger(),
	}
}

// Register binds roster routes under the provided router group.
func (h *RosterHandler) Register(router fiber.Router) {
	router.Get("/", h.roster)
	router.Get("/groups", h.groups)
}

func (h *RosterHandler) roster(c *fiber.Ctx) error {
	userID := userIDFromContext(c)

	query := dto.RosterQuery{
		SortBy: c.Query("sort_by"),
		Order:  c.Query("order"),
	}
	if err := h.validator.Struct(query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid roster query")
	}

	entries, err := h.service.Roster(requestContext(c), userID, query)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to build roster")
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "roster", entries)
}

func (h *RosterHandler) groups(c *fiber.Ctx) error {
	userID := userIDFromContext(c)

	groups, err := h.service.Groups(requestContext(c), userID)
	if err != nil {
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "groups", groups)
}
