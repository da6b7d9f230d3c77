package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// ProgressHandler exposes completion marks and course progress.
type ProgressHandler struct {
	service service.ProgressService
	logger  zerolog.Logger
}

// NewProgressHandler constructs the handler.
func NewProgressHandler(service service.ProgressService, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		service: service,
		logger:  logger.With().Str("component", "progress_handler").Logger(),
	}
}

// Register attaches progress endpoints.
func (h *ProgressHandler) Register(router fiber.Router) {
	student := middleware.AuthOptions{Role: middleware.AuthRoleStudent}

	router.Post("/courses/:courseId/contents/:contentId/complete", middleware.WithAuth(h.complete, student))
	router.Get("/courses/:courseId/progress", middleware.WithAuth(h.get, student))
	router.Post("/courses/:courseId/progress/refresh", middleware.WithAuth(h.refresh, student))
}

func (h *ProgressHandler) complete(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return invalidIdentifier(c, err)
	}
	contentID, err := parseUintParam(c, "contentId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	var payload dto.CompleteContentRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	progress, err := h.service.MarkCompleted(c.UserContext(), principalFromContext(c), courseID, contentID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "content marked complete", progress)
}

func (h *ProgressHandler) get(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	progress, err := h.service.GetProgress(c.UserContext(), principalFromContext(c), courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	if progress.CacheHit {
		c.Set("X-Cache", "HIT")
	} else {
		c.Set("X-Cache", "MISS")
	}
	return utils.SendSuccess(c, "progress retrieved", progress)
}

func (h *ProgressHandler) refresh(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	progress, err := h.service.Refresh(c.UserContext(), principalFromContext(c), courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "progress refreshed", progress)
}
