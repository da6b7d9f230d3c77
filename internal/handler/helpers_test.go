package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/service"
)

func TestRespondErrorStatuses(t *testing.T) {
	validationErr := validator.New().Struct(dto.CompleteContentRequest{})
	require.Error(t, validationErr)

	cases := []struct {
		name    string
		err     error
		status  int
		details map[string]interface{}
	}{
		{name: "validation", err: validationErr, status: fiber.StatusBadRequest},
		{name: "wrapped not found", err: fmt.Errorf("load: %w", service.ErrLessonNotFound), status: fiber.StatusNotFound},
		{name: "not owner", err: service.ErrNotCourseOwner, status: fiber.StatusForbidden},
		{name: "not enrolled", err: service.ErrNotEnrolled, status: fiber.StatusForbidden},
		{name: "order conflict", err: service.ErrOrderConflict, status: fiber.StatusConflict, details: map[string]interface{}{"retryable": true}},
		{name: "restore expired", err: service.ErrRestoreWindowExpired, status: fiber.StatusGone},
		{name: "payment required", err: service.ErrPaymentRequired, status: fiber.StatusPaymentRequired},
		{name: "ineligible", err: &service.IneligibleError{Reason: service.ReasonScoreBelowThreshold}, status: fiber.StatusUnprocessableEntity, details: map[string]interface{}{"reason": "score_below_threshold"}},
		{name: "signature mismatch", err: service.ErrPaymentSignatureMismatch, status: fiber.StatusBadRequest, details: map[string]interface{}{"retryable": false, "requires_new_order": true}},
		{name: "issuance failed", err: fmt.Errorf("store: %w", service.ErrIssuanceFailed), status: fiber.StatusServiceUnavailable, details: map[string]interface{}{"retryable": true}},
		{name: "too large", err: service.ErrUploadTooLarge, status: fiber.StatusRequestEntityTooLarge},
		{name: "unexpected", err: errors.New("disk on fire"), status: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				return respondError(c, zerolog.Nop(), tc.err)
			})

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			var payload struct {
				Success bool                   `json:"success"`
				Message string                 `json:"message"`
				Details map[string]interface{} `json:"details"`
			}
			require.NoError(t, json.Unmarshal(body, &payload))
			require.False(t, payload.Success)
			require.NotEmpty(t, payload.Message)
			for key, value := range tc.details {
				require.Equal(t, value, payload.Details[key])
			}
		})
	}
}

func TestPrincipalFromContext(t *testing.T) {
	app := fiber.New()
	var seen service.Principal
	app.Get("/", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(7))
		c.Locals("user_role", "student")
		seen = principalFromContext(c)
		return c.SendStatus(fiber.StatusNoContent)
	})

	_, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	require.Equal(t, service.Principal{UserID: 7, Role: "student"}, seen)
}

func TestParseUintParamRejectsZeroAndText(t *testing.T) {
	app := fiber.New()
	app.Get("/:id", func(c *fiber.Ctx) error {
		if _, err := parseUintParam(c, "id"); err != nil {
			return c.SendStatus(fiber.StatusBadRequest)
		}
		return c.SendStatus(fiber.StatusOK)
	})

	for path, status := range map[string]int{"/12": fiber.StatusOK, "/0": fiber.StatusBadRequest, "/abc": fiber.StatusBadRequest} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		require.Equal(t, status, resp.StatusCode, path)
	}
}
