package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// PaymentHandler covers direct enrollment and the order, verify, enroll flow.
type PaymentHandler struct {
	enrollments service.EnrollmentService
	payments    service.PaymentService
	logger      zerolog.Logger
}

// NewPaymentHandler constructs the handler.
func NewPaymentHandler(enrollments service.EnrollmentService, payments service.PaymentService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		enrollments: enrollments,
		payments:    payments,
		logger:      logger.With().Str("component", "payment_handler").Logger(),
	}
}

// Register attaches enrollment and payment endpoints. Guards run before verification.
func (h *PaymentHandler) Register(router fiber.Router, verifyGuards ...fiber.Handler) {
	student := middleware.AuthOptions{Role: middleware.AuthRoleStudent}

	router.Post("/courses/:courseId/enroll", middleware.WithAuth(h.enroll, student))
	router.Get("/enrollments", middleware.WithAuth(h.listEnrollments, student))
	router.Post("/courses/:courseId/payments/order", middleware.WithAuth(h.createOrder, student))
	router.Post("/payments/bulk-order", middleware.WithAuth(h.createBulkOrder, student))

	verify := append(append([]fiber.Handler{}, verifyGuards...), middleware.WithAuth(h.verify, student))
	router.Post("/payments/verify", verify...)
	verifyBulk := append(append([]fiber.Handler{}, verifyGuards...), middleware.WithAuth(h.verifyBulk, student))
	router.Post("/payments/verify-bulk", verifyBulk...)
	router.Get("/payments", middleware.WithAuth(h.listPayments, student))
}

func (h *PaymentHandler) enroll(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	enrollment, err := h.enrollments.Enroll(c.UserContext(), principalFromContext(c), courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if enrollment.Created {
		return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "enrolled", enrollment)
	}
	return utils.SendSuccess(c, "already enrolled", enrollment)
}

func (h *PaymentHandler) listEnrollments(c *fiber.Ctx) error {
	enrollments, err := h.enrollments.ListMine(c.UserContext(), principalFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "enrollments retrieved", enrollments)
}

func (h *PaymentHandler) createOrder(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	order, err := h.payments.CreateOrder(c.UserContext(), principalFromContext(c), courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "payment order created", order)
}

func (h *PaymentHandler) createBulkOrder(c *fiber.Ctx) error {
	var payload dto.BulkOrderRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	order, err := h.payments.CreateBulkOrder(c.UserContext(), principalFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "bulk payment order created", order)
}

func (h *PaymentHandler) verifyBulk(c *fiber.Ctx) error {
	var payload dto.PaymentVerifyRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	settled, err := h.payments.VerifyBulk(c.UserContext(), principalFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "bulk payment verified", settled)
}

func (h *PaymentHandler) verify(c *fiber.Ctx) error {
	var payload dto.PaymentVerifyRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	payment, err := h.payments.Verify(c.UserContext(), principalFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "payment verified", payment)
}

func (h *PaymentHandler) listPayments(c *fiber.Ctx) error {
	payments, err := h.payments.List(c.UserContext(), principalFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "payments retrieved", payments)
}
