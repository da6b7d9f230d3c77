package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// AssignmentHandler wires course assignment routes.
type AssignmentHandler struct {
	service service.AssignmentService
	logger  zerolog.Logger
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(service service.AssignmentService, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service: service,
		logger:  logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register attaches assignment endpoints to the router group.
func (h *AssignmentHandler) Register(router fiber.Router) {
	instructor := middleware.AuthOptions{Role: middleware.AuthRoleInstructor}
	student := middleware.AuthOptions{Role: middleware.AuthRoleStudent}

	group := router.Group("/courses/:courseId/assignments")
	group.Post("", middleware.WithAuth(h.create, instructor))
	group.Get("", middleware.WithAuth(h.list, middleware.AuthOptions{RequireUser: true}))
	group.Delete("", middleware.WithAuth(h.deleteAll, instructor))
	group.Post("/submit", middleware.WithAuth(h.submit, student))
	group.Get("/result", middleware.WithAuth(h.result, student))
	group.Delete("/:assignmentId", middleware.WithAuth(h.delete, instructor))
}

func (h *AssignmentHandler) create(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	var payload dto.AssignmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	created, err := h.service.Create(c.UserContext(), principalFromContext(c), courseID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignments created", created)
}

func (h *AssignmentHandler) list(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	assignments, err := h.service.List(c.UserContext(), principalFromContext(c), courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignments retrieved", assignments)
}

func (h *AssignmentHandler) delete(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return invalidIdentifier(c, err)
	}
	assignmentID, err := parseUintParam(c, "assignmentId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	if err := h.service.Delete(c.UserContext(), principalFromContext(c), courseID, assignmentID); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignment deleted", fiber.Map{"id": assignmentID})
}

func (h *AssignmentHandler) deleteAll(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	removed, err := h.service.DeleteAll(c.UserContext(), principalFromContext(c), courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignments deleted", fiber.Map{"course_id": courseID, "deleted": removed})
}

func (h *AssignmentHandler) submit(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	var payload dto.AssignmentSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	result, err := h.service.Submit(c.UserContext(), principalFromContext(c), courseID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignments submitted", result)
}

func (h *AssignmentHandler) result(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	result, err := h.service.Result(c.UserContext(), principalFromContext(c), courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignment result retrieved", result)
}
