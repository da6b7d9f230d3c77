package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/repository"
	"github.com/noah-isme/gema-lms-api/internal/service"
	"github.com/noah-isme/gema-lms-api/internal/utils"
)

// CurriculumHandler wires course, lesson, concept and content routes.
type CurriculumHandler struct {
	service service.CurriculumService
	logger  zerolog.Logger
}

// NewCurriculumHandler constructs the handler.
func NewCurriculumHandler(service service.CurriculumService, logger zerolog.Logger) *CurriculumHandler {
	return &CurriculumHandler{
		service: service,
		logger:  logger.With().Str("component", "curriculum_handler").Logger(),
	}
}

// Register attaches curriculum endpoints to an authenticated router group.
func (h *CurriculumHandler) Register(router fiber.Router) {
	instructor := middleware.AuthOptions{Role: middleware.AuthRoleInstructor}
	member := middleware.AuthOptions{RequireUser: true}

	router.Post("/courses", middleware.WithAuth(h.createCourse, instructor))
	router.Get("/courses/:courseId/curriculum", middleware.WithAuth(h.curriculum, member))

	router.Post("/courses/:courseId/lessons", middleware.WithAuth(h.createLesson, instructor))
	router.Get("/courses/:courseId/lessons", middleware.WithAuth(h.listLessons, member))
	router.Post("/lessons/:lessonId/concepts", middleware.WithAuth(h.createConcept, instructor))
	router.Get("/lessons/:lessonId/concepts", middleware.WithAuth(h.listConcepts, member))
	router.Post("/concepts/:conceptId/contents", middleware.WithAuth(h.createContent, instructor))
	router.Get("/concepts/:conceptId/contents", middleware.WithAuth(h.listContents, member))

	nodes := []struct {
		path  string
		param string
		kind  repository.NodeKind
	}{
		{path: "/courses/:courseId", param: "courseId", kind: repository.NodeCourse},
		{path: "/lessons/:lessonId", param: "lessonId", kind: repository.NodeLesson},
		{path: "/concepts/:conceptId", param: "conceptId", kind: repository.NodeConcept},
		{path: "/contents/:contentId", param: "contentId", kind: repository.NodeContent},
	}
	for _, node := range nodes {
		router.Delete(node.path, middleware.WithAuth(h.deleteNode(node.kind, node.param), instructor))
		router.Post(node.path+"/restore", middleware.WithAuth(h.restoreNode(node.kind, node.param), instructor))
	}
}

func (h *CurriculumHandler) createCourse(c *fiber.Ctx) error {
	var payload dto.CourseCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	course, err := h.service.CreateCourse(c.UserContext(), principalFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "course created", course)
}

func (h *CurriculumHandler) curriculum(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	tree, err := h.service.Curriculum(c.UserContext(), principalFromContext(c), courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "curriculum retrieved", tree)
}

func (h *CurriculumHandler) createLesson(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	var payload dto.LessonCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	lesson, err := h.service.CreateLesson(c.UserContext(), principalFromContext(c), courseID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "lesson created", lesson)
}

func (h *CurriculumHandler) listLessons(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	lessons, err := h.service.ListLessons(c.UserContext(), principalFromContext(c), courseID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "lessons retrieved", lessons)
}

func (h *CurriculumHandler) createConcept(c *fiber.Ctx) error {
	lessonID, err := parseUintParam(c, "lessonId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	var payload dto.ConceptCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	concept, err := h.service.CreateConcept(c.UserContext(), principalFromContext(c), lessonID, payload)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "concept created", concept)
}

func (h *CurriculumHandler) listConcepts(c *fiber.Ctx) error {
	lessonID, err := parseUintParam(c, "lessonId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	concepts, err := h.service.ListConcepts(c.UserContext(), principalFromContext(c), lessonID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "concepts retrieved", concepts)
}

// createContent accepts JSON or a multipart form with an optional "file" part.
func (h *CurriculumHandler) createContent(c *fiber.Ctx) error {
	conceptID, err := parseUintParam(c, "conceptId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	var payload dto.ContentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return invalidPayload(c)
	}

	file, err := readMediaFile(c, "file", service.MaxMediaBytes)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	content, err := h.service.CreateContent(c.UserContext(), principalFromContext(c), conceptID, payload, file)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "content created", content)
}

func (h *CurriculumHandler) listContents(c *fiber.Ctx) error {
	conceptID, err := parseUintParam(c, "conceptId")
	if err != nil {
		return invalidIdentifier(c, err)
	}

	contents, err := h.service.ListContents(c.UserContext(), principalFromContext(c), conceptID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "contents retrieved", contents)
}

func (h *CurriculumHandler) deleteNode(kind repository.NodeKind, param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseUintParam(c, param)
		if err != nil {
			return invalidIdentifier(c, err)
		}

		result, err := h.service.Delete(c.UserContext(), principalFromContext(c), kind, id)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return utils.SendSuccess(c, string(kind)+" deleted", result)
	}
}

func (h *CurriculumHandler) restoreNode(kind repository.NodeKind, param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseUintParam(c, param)
		if err != nil {
			return invalidIdentifier(c, err)
		}

		result, err := h.service.Restore(c.UserContext(), principalFromContext(c), kind, id)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		return utils.SendSuccess(c, string(kind)+" restored", result)
	}
}
