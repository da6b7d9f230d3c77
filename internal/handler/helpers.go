package handler

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

func principalFromContext(c *fiber.Ctx) service.Principal {
	return service.Principal{
		UserID: userIDFromContext(c),
		Role:   userRoleFromContext(c),
	}
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value := c.Params(name)
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid identifier")
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

var errMalformedUpload = errors.New("malformed multipart body")

// readMediaFile loads an optional multipart field. A missing field or a
// non-multipart body yields nil; a body that fails to parse is rejected.
func readMediaFile(c *fiber.Ctx, field string, limit int64) (*dto.MediaFile, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, fasthttp.ErrMissingFile) || errors.Is(err, fasthttp.ErrNoMultipartForm) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", errMalformedUpload, err)
	}
	if header.Size > limit {
		return nil, service.ErrUploadTooLarge
	}

	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, err
	}
	return &dto.MediaFile{Name: header.Filename, Data: data}, nil
}

type errorMapping struct {
	err     error
	status  int
	details interface{}
}

var retryable = fiber.Map{"retryable": true}

// serviceErrors is matched in order; the first hit decides the status.
var serviceErrors = []errorMapping{
	{err: service.ErrCourseNotFound, status: fiber.StatusNotFound},
	{err: service.ErrLessonNotFound, status: fiber.StatusNotFound},
	{err: service.ErrConceptNotFound, status: fiber.StatusNotFound},
	{err: service.ErrContentNotFound, status: fiber.StatusNotFound},
	{err: service.ErrContentNotInCourse, status: fiber.StatusNotFound},
	{err: service.ErrAssignmentNotFound, status: fiber.StatusNotFound},
	{err: service.ErrQuizNotFound, status: fiber.StatusNotFound},
	{err: service.ErrTemplateNotFound, status: fiber.StatusNotFound},
	{err: service.ErrCertificateNotFound, status: fiber.StatusNotFound},
	{err: service.ErrPaymentNotFound, status: fiber.StatusNotFound},
	{err: service.ErrProfileNotFound, status: fiber.StatusNotFound},

	{err: service.ErrForbidden, status: fiber.StatusForbidden},
	{err: service.ErrNotCourseOwner, status: fiber.StatusForbidden},
	{err: service.ErrNotEnrolled, status: fiber.StatusForbidden},

	{err: service.ErrOrderConflict, status: fiber.StatusConflict, details: retryable},
	{err: service.ErrQuizExists, status: fiber.StatusConflict},
	{err: service.ErrNodeNotDeleted, status: fiber.StatusConflict},
	{err: service.ErrTemplateInUse, status: fiber.StatusConflict},
	{err: service.ErrAlreadyEnrolled, status: fiber.StatusConflict},
	{err: service.ErrPaymentClosed, status: fiber.StatusConflict, details: fiber.Map{"requires_new_order": true}},
	{err: service.ErrBulkOrder, status: fiber.StatusConflict},

	{err: service.ErrRestoreWindowExpired, status: fiber.StatusGone},
	{err: service.ErrPaymentRequired, status: fiber.StatusPaymentRequired},

	{err: service.ErrUploadTooLarge, status: fiber.StatusRequestEntityTooLarge},
	{err: service.ErrTemplateTooLarge, status: fiber.StatusRequestEntityTooLarge},
	{err: service.ErrUnsupportedMedia, status: fiber.StatusUnsupportedMediaType},
	{err: service.ErrTemplateUnsupported, status: fiber.StatusUnsupportedMediaType},

	{err: service.ErrPaymentSignatureMismatch, status: fiber.StatusBadRequest, details: fiber.Map{"retryable": false, "requires_new_order": true}},
	{err: service.ErrUnknownAssignment, status: fiber.StatusBadRequest},
	{err: service.ErrModalityUnsupported, status: fiber.StatusBadRequest},
	{err: service.ErrContentPayloadMissing, status: fiber.StatusBadRequest},
	{err: service.ErrInvalidQuestion, status: fiber.StatusBadRequest},
	{err: service.ErrCourseIsFree, status: fiber.StatusBadRequest},
	{err: service.ErrNothingToPay, status: fiber.StatusBadRequest},
	{err: service.ErrUploadEmpty, status: fiber.StatusBadRequest},
	{err: errMalformedUpload, status: fiber.StatusBadRequest},
	{err: service.ErrUploadScanFailed, status: fiber.StatusBadRequest},

	{err: service.ErrIssuanceFailed, status: fiber.StatusServiceUnavailable, details: retryable},
	{err: service.ErrStorageUnavailable, status: fiber.StatusServiceUnavailable, details: retryable},
	{err: service.ErrPaymentGateway, status: fiber.StatusServiceUnavailable, details: retryable},
}

// respondError translates service errors into the response envelope.
// Anything unrecognised is logged and reported as a 500.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationDetails(validationErrors))
	}

	var ineligible *service.IneligibleError
	if errors.As(err, &ineligible) {
		return utils.Fail(c, fiber.StatusUnprocessableEntity, "certificate not eligible", fiber.Map{"reason": ineligible.Reason})
	}

	for _, mapping := range serviceErrors {
		if errors.Is(err, mapping.err) {
			if mapping.status >= fiber.StatusInternalServerError {
				requestLogger(logger, c).Warn().Err(err).Msg("dependency unavailable")
			}
			return utils.Fail(c, mapping.status, mapping.err.Error(), mapping.details)
		}
	}

	requestLogger(logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}

func validationDetails(errs validator.ValidationErrors) []fiber.Map {
	details := make([]fiber.Map, 0, len(errs))
	for _, fieldErr := range errs {
		details = append(details, fiber.Map{
			"field": fieldErr.Field(),
			"rule":  fieldErr.Tag(),
		})
	}
	return details
}

func invalidPayload(c *fiber.Ctx) error {
	return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
}

func invalidIdentifier(c *fiber.Ctx, err error) error {
	return utils.SendError(c, fiber.StatusBadRequest, err.Error())
}
