package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// CertificateHandler serves eligibility, issuance and public verification.
type CertificateHandler struct {
	service service.CertificateService
	logger  zerolog.Logger
}

// NewCertificateHandler constructs the handler.
func NewCertificateHandler(service service.CertificateService, logger zerolog.Logger) *CertificateHandler {
	return &CertificateHandler{
		service: service,
		logger:  logger.With().Str("component", "certificate_handler").Logger(),
	}
}

// Register attaches the student certificate endpoints. Guards run before issuance.
func (h *CertificateHandler) Register(router fiber.Router, issueGuards ...fiber.Handler) {
	student := middleware.AuthOptions{Role: middleware.AuthRoleStudent}

	issue := append(append([]fiber.Handler{}, issueGuards...), middleware.WithAuth(h.issue, student))
	router.Post("/courses/:courseId/certificate", issue...)
	router.Get("/courses/:courseId/certificate", middleware.WithAuth(h.get, student))
	router.Get("/courses/:courseId/certificate/eligibility", middleware.WithAuth(h.eligibility, student))
	router.Get("/certificates", middleware.WithAuth(h.listMine, student))
}

// RegisterPublic attaches the unauthenticated verification endpoint.
func (h *CertificateHandler) RegisterPublic(router fiber.Router) {
	router.Get("/certificates/verify/:verificationId", h.verify)
}

func (h *CertificateHandler) eligibility(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	result, err := h.service.Eligibility(c.UserContext(), principalFromContext(c), courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "eligibility evaluated", result)
}

func (h *CertificateHandler) issue(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	issued, err := h.service.Issue(c.UserContext(), principalFromContext(c), courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	if issued.Created {
		requestLogger(h.logger, c).Info().
			Uint("course_id", courseID).
			Str("verification_id", issued.VerificationID).
			Msg("certificate issued")
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "certificate issued", issued)
	}
	return utils.SendSuccess(c, "certificate already issued", issued)
}

func (h *CertificateHandler) get(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	issued, err := h.service.Get(c.UserContext(), principalFromContext(c), courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "certificate retrieved", issued)
}

func (h *CertificateHandler) listMine(c *fiber.Ctx) error {
	certificates, err := h.service.ListMine(c.UserContext(), principalFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "certificates retrieved", certificates)
}

func (h *CertificateHandler) verify(c *fiber.Ctx) error {
	result, err := h.service.Verify(c.UserContext(), c.Params("verificationId"))
	if err != nil {
		if errors.Is(err, service.ErrCertificateNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(utils.APIResponse{
				Success: false,
				Data:    dto.VerifyResponse{Valid: false},
				Message: "certificate not found",
			})
		}
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "certificate verified", result)
}
