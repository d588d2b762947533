package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/lumenchat/lumen-go-api/internal/dto"
	"github.com/lumenchat/lumen-go-api/internal/middleware"
	"github.com/lumenchat/lumen-go-api/internal/service"
	"github.com/lumenchat/lumen-go-api/internal/utils"
)

// UserHandler mirrors identity-provider profiles and serves profile state.
type UserHandler struct {
	service   service.UserService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserHandler creates a user handler instance.
func NewUserHandler(service service.UserService, validator *validator.Validate, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register binds profile routes under the provided router group.
func (h *UserHandler) Register(router fiber.Router, auth fiber.Handler) {
	router.Post("/auth/sync", auth, h.sync)
	router.Get("/me", auth, h.me)
	router.Put("/me/theme", auth, h.theme)
	router.Put("/me/photo", auth, h.photo)
}

// sync upserts the mirrored profile from the verified token claims. The
// client calls it once per sign-in; repeated calls merge, never clobber.
func (h *UserHandler) sync(c *fiber.Ctx) error {
	profile, ok := middleware.ProfileFromLocals(c)
	if !ok {
		return utils.SendError(c, fiber.StatusUnauthorized, "no verified profile")
	}

	user, err := h.service.Sync(requestContext(c), service.Identity{
		ID:       profile.UserID,
		Name:     profile.Name,
		Email:    profile.Email,
		PhotoURL: profile.PhotoURL,
	})
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("profile sync failed")
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "profile synced", user)
}

func (h *UserHandler) me(c *fiber.Ctx) error {
	user, err := h.service.Get(requestContext(c), userIDFromContext(c))
	if err != nil {
		return utils.SendError(c, fiber.StatusNotFound, "profile not found")
	}

	return utils.SendSuccess(c, "profile", user)
}

func (h *UserHandler) theme(c *fiber.Ctx) error {
	var payload dto.ThemeUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.service.UpdateTheme(requestContext(c), userIDFromContext(c), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "invalid theme", err.Error())
		}
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "theme updated", user)
}

func (h *UserHandler) photo(c *fiber.Ctx) error {
	file, err := c.FormFile("photo")
	if err != nil || file == nil {
		return utils.SendError(c, fiber.StatusBadRequest, "photo file required")
	}

	user, err := h.service.UpdatePhoto(requestContext(c), userIDFromContext(c), file)
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Msg("avatar upload failed")
		return utils.SendError(c, statusForError(err), err.Error())
	}

	return utils.SendSuccess(c, "photo updated", user)
}
