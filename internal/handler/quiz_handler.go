package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// QuizHandler serves lesson quizzes and content questions.
type QuizHandler struct {
	service service.QuizService
	logger  zerolog.Logger
}

// NewQuizHandler constructs the handler.
func NewQuizHandler(service service.QuizService, logger zerolog.Logger) *QuizHandler {
	return &QuizHandler{
		service: service,
		logger:  logger.With().Str("component", "quiz_handler").Logger(),
	}
}

// Register attaches quiz endpoints.
func (h *QuizHandler) Register(router fiber.Router) {
	instructor := middleware.AuthOptions{Role: middleware.AuthRoleInstructor}

	router.Post("/lessons/:lessonId/quiz", middleware.WithAuth(h.create, instructor))
	router.Get("/lessons/:lessonId/quiz", middleware.WithAuth(h.get, middleware.AuthOptions{RequireUser: true}))
	router.Post("/lessons/:lessonId/quiz/submit", middleware.WithAuth(h.submit, middleware.AuthOptions{Role: middleware.AuthRoleStudent}))
	router.Post("/contents/:contentId/questions", middleware.WithAuth(h.addQuestion, instructor))
}

func (h *QuizHandler) create(c *fiber.Ctx) error {
	lessonID, err := parseUintParam(c, "lessonId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	var payload dto.QuizCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	quiz, err := h.service.CreateLessonQuiz(c.UserContext(), principalFromContext(c), lessonID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "quiz created", quiz)
}

func (h *QuizHandler) get(c *fiber.Ctx) error {
	lessonID, err := parseUintParam(c, "lessonId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	quiz, err := h.service.LessonQuiz(c.UserContext(), principalFromContext(c), lessonID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "quiz retrieved", quiz)
}

func (h *QuizHandler) submit(c *fiber.Ctx) error {
	lessonID, err := parseUintParam(c, "lessonId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	var payload dto.QuizSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	result, err := h.service.SubmitPractice(c.UserContext(), principalFromContext(c), lessonID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "quiz graded", result)
}

func (h *QuizHandler) addQuestion(c *fiber.Ctx) error {
	contentID, err := parseUintParam(c, "contentId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	var payload dto.QuestionInput
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	question, err := h.service.AddContentQuestion(c.UserContext(), principalFromContext(c), contentID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "question added", question)
}
