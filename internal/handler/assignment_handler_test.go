package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/handler"
	"github.com/noah-isme/gema-lms-api/internal/service"
)

type stubAssignmentService struct {
	service.AssignmentService

	submitted dto.AssignmentSubmitRequest
	submitErr error
	deleted   []uint
}

func (s *stubAssignmentService) Submit(_ context.Context, _ service.Principal, courseID uint, req dto.AssignmentSubmitRequest) (dto.AssignmentResultResponse, error) {
	s.submitted = req
	if s.submitErr != nil {
		return dto.AssignmentResultResponse{}, s.submitErr
	}
	return dto.AssignmentResultResponse{CourseID: courseID, TotalAssignments: 2, Attempted: 2, CorrectAnswers: 1, Score: 50, PassStatus: "Fail"}, nil
}

func (s *stubAssignmentService) Delete(_ context.Context, _ service.Principal, _ uint, assignmentID uint) error {
	s.deleted = append(s.deleted, assignmentID)
	return nil
}

func (s *stubAssignmentService) DeleteAll(context.Context, service.Principal, uint) (int64, error) {
	return 3, nil
}

func TestSubmitAssignments(t *testing.T) {
	svc := &stubAssignmentService{}
	app, api := newAppAs(200, "student")
	handler.NewAssignmentHandler(svc, zerolog.Nop()).Register(api)

	payload := dto.AssignmentSubmitRequest{Answers: []dto.AnswerInput{{AssignmentID: 1, Answer: "Paris"}, {AssignmentID: 2, Answer: "4"}}}
	resp := doJSON(t, app, http.MethodPost, "/api/v1/courses/6/assignments/submit", payload)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, svc.submitted.Answers, 2)

	var body struct {
		Data dto.AssignmentResultResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, 50.0, body.Data.Score)
	require.Equal(t, "Fail", body.Data.PassStatus)

	svc.submitErr = service.ErrUnknownAssignment
	require.Equal(t, fiber.StatusBadRequest, doJSON(t, app, http.MethodPost, "/api/v1/courses/6/assignments/submit", payload).StatusCode)
}

func TestDeleteAssignments(t *testing.T) {
	svc := &stubAssignmentService{}
	app, api := newAppAs(100, "instructor")
	handler.NewAssignmentHandler(svc, zerolog.Nop()).Register(api)

	require.Equal(t, fiber.StatusOK, doJSON(t, app, http.MethodDelete, "/api/v1/courses/6/assignments/4", nil).StatusCode)
	require.Equal(t, []uint{4}, svc.deleted)

	resp := doJSON(t, app, http.MethodDelete, "/api/v1/courses/6/assignments", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body struct {
		Data struct {
			Deleted int64 `json:"deleted"`
		} `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, int64(3), body.Data.Deleted)

	require.Equal(t, fiber.StatusForbidden, doJSON(t, app, http.MethodPost, "/api/v1/courses/6/assignments/submit", dto.AssignmentSubmitRequest{}).StatusCode)
}
