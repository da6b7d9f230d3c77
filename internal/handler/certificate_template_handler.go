package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// CertificateTemplateHandler manages instructor certificate templates.
type CertificateTemplateHandler struct {
	service service.CertificateTemplateService
	logger  zerolog.Logger
}

// NewCertificateTemplateHandler constructs the handler.
func NewCertificateTemplateHandler(service service.CertificateTemplateService, logger zerolog.Logger) *CertificateTemplateHandler {
	return &CertificateTemplateHandler{
		service: service,
		logger:  logger.With().Str("component", "certificate_template_handler").Logger(),
	}
}

// Register attaches template endpoints.
func (h *CertificateTemplateHandler) Register(router fiber.Router) {
	instructor := middleware.AuthOptions{Role: middleware.AuthRoleInstructor}

	group := router.Group("/certificate-templates", middleware.RequireRole(middleware.AuthRoleInstructor))
	group.Get("", h.list)
	group.Post("", h.create)
	group.Post("/upload", h.upload)
	group.Delete("/:id", h.delete)

	router.Put("/courses/:courseId/certificate-template", middleware.WithAuth(h.assign, instructor))
}

func (h *CertificateTemplateHandler) list(c *fiber.Ctx) error {
	templates, err := h.service.List(c.UserContext(), principalFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "templates retrieved", templates)
}

func (h *CertificateTemplateHandler) create(c *fiber.Ctx) error {
	var payload dto.TemplateCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	template, err := h.service.Create(c.UserContext(), principalFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "template created", template)
}

func (h *CertificateTemplateHandler) upload(c *fiber.Ctx) error {
	payload := dto.TemplateUploadRequest{Name: c.FormValue("name")}

	file, err := readMediaFile(c, "file", service.MaxTemplateBytes)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if file == nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	template, err := h.service.Upload(c.UserContext(), principalFromContext(c), payload, *file)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "template uploaded", template)
}

func (h *CertificateTemplateHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	if err := h.service.Delete(c.UserContext(), principalFromContext(c), id); err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "template deleted", fiber.Map{"id": id})
}

func (h *CertificateTemplateHandler) assign(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	var payload dto.TemplateAssignRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	course, err := h.service.AssignToCourse(c.UserContext(), principalFromContext(c), courseID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "certificate template assigned", course)
}
