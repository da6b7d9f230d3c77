package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// ProfileHandler lets a caller manage the profile tied to their token.
type ProfileHandler struct {
	service service.ProfileService
	logger  zerolog.Logger
}

// NewProfileHandler constructs the handler.
func NewProfileHandler(service service.ProfileService, logger zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{
		service: service,
		logger:  logger.With().Str("component", "profile_handler").Logger(),
	}
}

// Register attaches profile endpoints.
func (h *ProfileHandler) Register(router fiber.Router) {
	member := middleware.AuthOptions{RequireUser: true}

	router.Get("/profile", middleware.WithAuth(h.get, member))
	router.Put("/profile", middleware.WithAuth(h.upsert, member))
}

func (h *ProfileHandler) get(c *fiber.Ctx) error {
	profile, err := h.service.Get(c.UserContext(), principalFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "profile retrieved", profile)
}

func (h *ProfileHandler) upsert(c *fiber.Ctx) error {
	var payload dto.ProfileRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	profile, err := h.service.Upsert(c.UserContext(), principalFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "profile saved", profile)
}
