package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// CurriculumService authors and reads the course, lesson, concept and content tree.
type CurriculumService interface {
	CreateCourse(ctx context.Context, principal Principal, req dto.CourseCreateRequest) (dto.CourseResponse, error)
	CreateLesson(ctx context.Context, principal Principal, courseID uint, req dto.LessonCreateRequest) (dto.LessonResponse, error)
	CreateConcept(ctx context.Context, principal Principal, lessonID uint, req dto.ConceptCreateRequest) (dto.ConceptResponse, error)
	CreateContent(ctx context.Context, principal Principal, conceptID uint, req dto.ContentCreateRequest, file *dto.MediaFile) (dto.ContentResponse, error)

	ListLessons(ctx context.Context, principal Principal, courseID uint) ([]dto.LessonResponse, error)
	ListConcepts(ctx context.Context, principal Principal, lessonID uint) ([]dto.ConceptResponse, error)
	ListContents(ctx context.Context, principal Principal, conceptID uint) ([]dto.ContentResponse, error)
	Curriculum(ctx context.Context, principal Principal, courseID uint) (dto.CurriculumResponse, error)

	Delete(ctx context.Context, principal Principal, kind repository.NodeKind, id uint) (dto.NodeRestoreResponse, error)
	Restore(ctx context.Context, principal Principal, kind repository.NodeKind, id uint) (dto.NodeRestoreResponse, error)
}

type curriculumService struct {
	repos     Repositories
	guard     accessGuard
	selector  *OptionSelector
	storage   FileStorage
	retention time.Duration
	validate  *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewCurriculumService constructs the content hierarchy service. retention bounds how
// long a soft-deleted node can be restored before the sweeper removes it.
func NewCurriculumService(repos Repositories, selector *OptionSelector, storage FileStorage, retention time.Duration, validate *validator.Validate, logger zerolog.Logger) CurriculumService {
	if selector == nil {
		selector = NewOptionSelector(nil)
	}
	return &curriculumService{
		repos:     repos,
		guard:     repos.guard(),
		selector:  selector,
		storage:   storage,
		retention: retention,
		validate:  validate,
		logger:    logger.With().Str("component", "curriculum_service").Logger(),
		now:       time.Now,
	}
}

// CreateCourse creates a course owned by the calling instructor. The system default
// certificate template is assigned when one exists.
func (s *curriculumService) CreateCourse(ctx context.Context, principal Principal, req dto.CourseCreateRequest) (dto.CourseResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.CourseResponse{}, err
	}

	instructor, err := s.guard.instructor(ctx, principal)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	course := models.Course{
		InstructorID: instructor.ID,
		Title:        strings.TrimSpace(req.Title),
		Subtitle:     strings.TrimSpace(req.Subtitle),
		Description:  req.Description,
		Price:        req.Price,
		Discount:     req.Discount,
		IsPublished:  req.IsPublished,
	}

	if tpl, err := s.repos.Templates.GetDefault(ctx); err == nil {
		course.CertificateTemplateID = &tpl.ID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.CourseResponse{}, err
	}

	if err := s.repos.Curriculum.CreateCourse(ctx, &course); err != nil {
		return dto.CourseResponse{}, err
	}

	s.logger.Info().Uint("course_id", course.ID).Uint("instructor_id", instructor.ID).Msg("course created")
	return dto.NewCourseResponse(course), nil
}

func (s *curriculumService) CreateLesson(ctx context.Context, principal Principal, courseID uint, req dto.LessonCreateRequest) (dto.LessonResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.LessonResponse{}, err
	}

	course, err := s.guard.ownedCourse(ctx, principal, courseID)
	if err != nil {
		return dto.LessonResponse{}, err
	}

	lesson := models.Lesson{CourseID: course.ID, Title: strings.TrimSpace(req.Title)}
	if err := s.repos.Curriculum.CreateLesson(ctx, &lesson); err != nil {
		return dto.LessonResponse{}, translateInsertError(err, ErrCourseNotFound)
	}

	s.logger.Info().Uint("course_id", course.ID).Uint("lesson_id", lesson.ID).Int("order", lesson.Order).Msg("lesson created")
	return dto.NewLessonResponse(lesson), nil
}

func (s *curriculumService) CreateConcept(ctx context.Context, principal Principal, lessonID uint, req dto.ConceptCreateRequest) (dto.ConceptResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.ConceptResponse{}, err
	}

	lesson, err := s.lesson(ctx, lessonID)
	if err != nil {
		return dto.ConceptResponse{}, err
	}
	if _, err := s.guard.ownedCourse(ctx, principal, lesson.CourseID); err != nil {
		return dto.ConceptResponse{}, err
	}

	concept := models.Concept{
		LessonID:    lesson.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
	}
	if err := s.repos.Curriculum.CreateConcept(ctx, &concept); err != nil {
		return dto.ConceptResponse{}, translateInsertError(err, ErrLessonNotFound)
	}

	s.logger.Info().Uint("lesson_id", lesson.ID).Uint("concept_id", concept.ID).Int("order", concept.Order).Msg("concept created")
	return dto.NewConceptResponse(concept), nil
}

// CreateContent appends a content item. An attached file is sniffed and stored as the
// video or pdf payload of the item, overriding the corresponding URL field.
func (s *curriculumService) CreateContent(ctx context.Context, principal Principal, conceptID uint, req dto.ContentCreateRequest, file *dto.MediaFile) (dto.ContentResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.ContentResponse{}, err
	}

	concept, courseID, err := s.concept(ctx, conceptID)
	if err != nil {
		return dto.ContentResponse{}, err
	}
	if _, err := s.guard.ownedCourse(ctx, principal, courseID); err != nil {
		return dto.ContentResponse{}, err
	}

	content := models.LessonContent{
		ConceptID:   concept.ID,
		Title:       strings.TrimSpace(req.Title),
		ContentType: req.ContentType,
		VideoURL:    strings.TrimSpace(req.VideoURL),
		PDFURL:      strings.TrimSpace(req.PDFURL),
		TextContent: req.TextContent,
		Captions:    req.Captions,
		Duration:    req.Duration,
	}

	if file != nil {
		if err := s.attachMedia(ctx, &content, *file); err != nil {
			return dto.ContentResponse{}, err
		}
	}

	if !hasPayload(content) {
		return dto.ContentResponse{}, fmt.Errorf("%w: %s", ErrContentPayloadMissing, content.ContentType)
	}

	if err := s.repos.Curriculum.CreateContent(ctx, &content); err != nil {
		return dto.ContentResponse{}, translateInsertError(err, ErrConceptNotFound)
	}

	s.logger.Info().
		Uint("concept_id", concept.ID).
		Uint("content_id", content.ID).
		Int("order", content.Order).
		Bool("video", content.HasVideo()).
		Msg("content created")
	return dto.NewContentResponse(content), nil
}

func (s *curriculumService) attachMedia(ctx context.Context, content *models.LessonContent, file dto.MediaFile) error {
	inspected, err := inspectUpload(file, MaxMediaBytes)
	if err != nil {
		return err
	}
	kind, err := classifyMedia(inspected)
	if err != nil {
		return err
	}
	if s.storage == nil {
		return ErrStorageUnavailable
	}

	url, err := s.storage.Upload(ctx, inspected.Name, bytes.NewReader(inspected.Data))
	if err != nil {
		s.logger.Error().Err(err).Str("file", inspected.Name).Msg("failed to store lesson media")
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	switch kind {
	case models.ContentTypeVideo:
		content.VideoURL = url
	case models.ContentTypePDF:
		content.PDFURL = url
	}
	return nil
}

func (s *curriculumService) ListLessons(ctx context.Context, principal Principal, courseID uint) ([]dto.LessonResponse, error) {
	course, err := s.guard.reader(ctx, principal, courseID)
	if err != nil {
		return nil, err
	}
	lessons, err := s.repos.Curriculum.ListLessons(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	return dto.NewLessonResponseSlice(lessons), nil
}

func (s *curriculumService) ListConcepts(ctx context.Context, principal Principal, lessonID uint) ([]dto.ConceptResponse, error) {
	lesson, err := s.lesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.reader(ctx, principal, lesson.CourseID); err != nil {
		return nil, err
	}
	concepts, err := s.repos.Curriculum.ListConcepts(ctx, lesson.ID)
	if err != nil {
		return nil, err
	}
	return dto.NewConceptResponseSlice(concepts), nil
}

func (s *curriculumService) ListContents(ctx context.Context, principal Principal, conceptID uint) ([]dto.ContentResponse, error) {
	concept, courseID, err := s.concept(ctx, conceptID)
	if err != nil {
		return nil, err
	}
	if _, err := s.guard.reader(ctx, principal, courseID); err != nil {
		return nil, err
	}
	contents, err := s.repos.Curriculum.ListContents(ctx, concept.ID)
	if err != nil {
		return nil, err
	}
	return dto.NewContentResponseSlice(contents), nil
}

// Curriculum returns the nested tree. Content-level questions are rendered for learners.
func (s *curriculumService) Curriculum(ctx context.Context, principal Principal, courseID uint) (dto.CurriculumResponse, error) {
	if _, err := s.guard.reader(ctx, principal, courseID); err != nil {
		return dto.CurriculumResponse{}, err
	}

	course, err := s.repos.Curriculum.Curriculum(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CurriculumResponse{}, ErrCourseNotFound
		}
		return dto.CurriculumResponse{}, err
	}

	response := dto.CurriculumResponse{
		Course:  dto.NewCourseResponse(course),
		Lessons: make([]dto.LessonResponse, 0, len(course.Lessons)),
	}
	for _, lesson := range course.Lessons {
		lessonView := dto.NewLessonResponse(lesson)
		for _, concept := range lesson.Concepts {
			conceptView := dto.NewConceptResponse(concept)
			for _, content := range concept.Contents {
				contentView := dto.NewContentResponse(content)
				for _, question := range content.Questions {
					contentView.Questions = append(contentView.Questions, renderQuestion(s.selector, question))
				}
				conceptView.Contents = append(conceptView.Contents, contentView)
			}
			lessonView.Concepts = append(lessonView.Concepts, conceptView)
		}
		response.Lessons = append(response.Lessons, lessonView)
	}
	return response, nil
}

// Delete soft-deletes a node. Descendants keep their own flag and are hidden through
// their ancestor until the node is restored or purged.
func (s *curriculumService) Delete(ctx context.Context, principal Principal, kind repository.NodeKind, id uint) (dto.NodeRestoreResponse, error) {
	ref, err := s.locate(ctx, principal, kind, id)
	if err != nil {
		return dto.NodeRestoreResponse{}, err
	}
	if ref.DeletedAt != nil {
		return dto.NodeRestoreResponse{}, notFoundFor(kind)
	}

	if err := s.repos.Curriculum.SoftDelete(ctx, kind, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NodeRestoreResponse{}, notFoundFor(kind)
		}
		return dto.NodeRestoreResponse{}, err
	}

	s.logger.Info().Str("kind", string(kind)).Uint("id", id).Uint("course_id", ref.CourseID).Msg("curriculum node soft-deleted")
	return dto.NodeRestoreResponse{Kind: string(kind), ID: id, CourseID: ref.CourseID, Deleted: true}, nil
}

// Restore undeletes a node while it is still inside the retention window.
func (s *curriculumService) Restore(ctx context.Context, principal Principal, kind repository.NodeKind, id uint) (dto.NodeRestoreResponse, error) {
	ref, err := s.locate(ctx, principal, kind, id)
	if err != nil {
		return dto.NodeRestoreResponse{}, err
	}
	if ref.DeletedAt == nil {
		return dto.NodeRestoreResponse{}, ErrNodeNotDeleted
	}
	if s.retention > 0 && s.now().Sub(*ref.DeletedAt) > s.retention {
		return dto.NodeRestoreResponse{}, ErrRestoreWindowExpired
	}

	if err := s.repos.Curriculum.Restore(ctx, kind, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NodeRestoreResponse{}, notFoundFor(kind)
		}
		return dto.NodeRestoreResponse{}, err
	}

	s.logger.Info().Str("kind", string(kind)).Uint("id", id).Uint("course_id", ref.CourseID).Msg("curriculum node restored")
	return dto.NodeRestoreResponse{Kind: string(kind), ID: id, CourseID: ref.CourseID, Deleted: false}, nil
}

// locate finds a node, deleted or not, and checks the caller owns its course.
func (s *curriculumService) locate(ctx context.Context, principal Principal, kind repository.NodeKind, id uint) (repository.NodeRef, error) {
	ref, err := s.repos.Curriculum.Locate(ctx, kind, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.NodeRef{}, notFoundFor(kind)
		}
		return repository.NodeRef{}, err
	}

	course, err := s.repos.Curriculum.GetCourseUnscoped(ctx, ref.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.NodeRef{}, notFoundFor(kind)
		}
		return repository.NodeRef{}, err
	}
	if principal.IsAdmin() {
		return ref, nil
	}
	instructor, err := s.guard.instructor(ctx, principal)
	if err != nil {
		return repository.NodeRef{}, err
	}
	if course.InstructorID != instructor.ID {
		return repository.NodeRef{}, ErrNotCourseOwner
	}
	return ref, nil
}

func (s *curriculumService) lesson(ctx context.Context, id uint) (models.Lesson, error) {
	lesson, err := s.repos.Curriculum.GetLesson(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Lesson{}, ErrLessonNotFound
		}
		return models.Lesson{}, err
	}
	return lesson, nil
}

func (s *curriculumService) concept(ctx context.Context, id uint) (models.Concept, uint, error) {
	concept, courseID, err := s.repos.Curriculum.GetConcept(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Concept{}, 0, ErrConceptNotFound
		}
		return models.Concept{}, 0, err
	}
	return concept, courseID, nil
}

func hasPayload(content models.LessonContent) bool {
	switch content.ContentType {
	case models.ContentTypeVideo:
		return content.HasVideo()
	case models.ContentTypePDF:
		return strings.TrimSpace(content.PDFURL) != ""
	default:
		return strings.TrimSpace(content.TextContent) != ""
	}
}

func renderQuestion(selector *OptionSelector, question models.QuizQuestion) dto.QuestionView {
	return dto.QuestionView{
		ID:           question.ID,
		QuestionText: question.QuestionText,
		Options:      selector.Select(question.OptionList(), question.CorrectAnswer),
		ConceptID:    question.ConceptID,
	}
}

// translateInsertError maps ordered-insert failures: a vanished parent becomes
// parentMissing and exhausted order retries become ErrOrderConflict.
func translateInsertError(err error, parentMissing error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return parentMissing
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrOrderConflict
	default:
		return err
	}
}

func notFoundFor(kind repository.NodeKind) error {
	switch kind {
	case repository.NodeCourse:
		return ErrCourseNotFound
	case repository.NodeLesson:
		return ErrLessonNotFound
	case repository.NodeConcept:
		return ErrConceptNotFound
	default:
		return ErrContentNotFound
	}
}
