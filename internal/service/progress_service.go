package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/observability"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// ProgressService records content completions and reports course progress.
type ProgressService interface {
	MarkCompleted(ctx context.Context, principal Principal, courseID, contentID uint, req dto.CompleteContentRequest) (dto.ProgressResponse, error)
	GetProgress(ctx context.Context, principal Principal, courseID uint) (dto.ProgressResponse, error)
	Refresh(ctx context.Context, principal Principal, courseID uint) (dto.ProgressResponse, error)
	Invalidate(ctx context.Context, studentID, courseID uint)
	InvalidateCourse(ctx context.Context, courseID uint)
}

type progressService struct {
	repos     Repositories
	guard     accessGuard
	standing  standingReader
	validate  *validator.Validate
	cache     *redis.Client
	cacheTTL  time.Duration
	publisher EventPublisher
	logger    zerolog.Logger
	now       func() time.Time
}

// NewProgressService wires the completion tracker. policy is the denominator policy
// applied to every recomputation.
func NewProgressService(repos Repositories, validate *validator.Validate, cache *redis.Client, ttl time.Duration, policy string, publisher EventPublisher, logger zerolog.Logger) ProgressService {
	return &progressService{
		repos:     repos,
		guard:     repos.guard(),
		standing:  repos.standing(policy),
		validate:  validate,
		cache:     cache,
		cacheTTL:  ttl,
		publisher: publisher,
		logger:    logger.With().Str("component", "progress_service").Logger(),
		now:       time.Now,
	}
}

func progressCacheKey(studentID, courseID uint) string {
	return fmt.Sprintf("progress:student:%d:course:%d", studentID, courseID)
}

func (s *progressService) MarkCompleted(ctx context.Context, principal Principal, courseID, contentID uint, req dto.CompleteContentRequest) (dto.ProgressResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.ProgressResponse{}, err
	}

	student, course, err := s.guard.enrolledStudent(ctx, principal, courseID)
	if err != nil {
		return dto.ProgressResponse{}, err
	}

	content, contentCourseID, err := s.repos.Curriculum.GetContent(ctx, contentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ProgressResponse{}, ErrContentNotFound
		}
		return dto.ProgressResponse{}, err
	}
	if contentCourseID != course.ID {
		return dto.ProgressResponse{}, ErrContentNotInCourse
	}

	column, ok := models.ModalityColumn(req.Modality)
	if !ok || !content.SupportsModality(req.Modality) {
		return dto.ProgressResponse{}, ErrModalityUnsupported
	}

	previous, _, err := s.standing.stored(ctx, student.ID, course.ID)
	if err != nil {
		return dto.ProgressResponse{}, err
	}

	progress, err := s.repos.Progress.RecordCompletion(ctx, repository.CompletionInput{
		StudentID: student.ID,
		CourseID:  course.ID,
		ContentID: content.ID,
		Column:    column,
		VideoOnly: s.standing.videoOnly(),
		Policy:    s.standing.policy,
		At:        s.now().UTC(),
	})
	if err != nil {
		return dto.ProgressResponse{}, err
	}

	observability.ProgressRecomputes().WithLabelValues("completion").Inc()
	s.Invalidate(ctx, student.ID, course.ID)

	s.logger.Info().
		Uint("student_id", student.ID).
		Uint("course_id", course.ID).
		Uint("content_id", content.ID).
		Str("modality", req.Modality).
		Float64("progress", progress.ProgressPercentage).
		Msg("content completion recorded")

	if progress.IsComplete() && !previous.IsComplete() {
		publishAsync(ctx, s.publisher, s.logger, SubjectCourseCompleted, map[string]interface{}{
			"student_id": student.ID,
			"course_id":  course.ID,
		})
	}

	result, err := s.standing.assemble(ctx, student.ID, course, progress, true)
	if err != nil {
		return dto.ProgressResponse{}, err
	}
	return s.respond(ctx, result)
}

func (s *progressService) GetProgress(ctx context.Context, principal Principal, courseID uint) (dto.ProgressResponse, error) {
	student, course, err := s.guard.enrolledStudent(ctx, principal, courseID)
	if err != nil {
		return dto.ProgressResponse{}, err
	}

	cacheKey := progressCacheKey(student.ID, course.ID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.ProgressResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Uint("student_id", student.ID).Uint("course_id", course.ID).Msg("progress cache hit")
				response.CacheHit = true
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read progress cache")
		}
	}

	progress, seen, err := s.standing.stored(ctx, student.ID, course.ID)
	if err != nil {
		return dto.ProgressResponse{}, err
	}
	result, err := s.standing.assemble(ctx, student.ID, course, progress, seen)
	if err != nil {
		return dto.ProgressResponse{}, err
	}

	response, err := s.respond(ctx, result)
	if err != nil {
		return dto.ProgressResponse{}, err
	}

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store progress cache")
			}
		}
	}

	return response, nil
}

// Refresh recomputes the materialised progress from the completion marks. Students
// without any completion in the course get zeros and no row is created.
func (s *progressService) Refresh(ctx context.Context, principal Principal, courseID uint) (dto.ProgressResponse, error) {
	student, course, err := s.guard.enrolledStudent(ctx, principal, courseID)
	if err != nil {
		return dto.ProgressResponse{}, err
	}

	result, err := s.standing.evaluate(ctx, student.ID, course, s.now().UTC())
	if err != nil {
		return dto.ProgressResponse{}, err
	}

	observability.ProgressRecomputes().WithLabelValues("refresh").Inc()
	s.Invalidate(ctx, student.ID, course.ID)
	return s.respond(ctx, result)
}

func (s *progressService) Invalidate(ctx context.Context, studentID, courseID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, progressCacheKey(studentID, courseID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Uint("course_id", courseID).Msg("failed to invalidate progress cache")
	}
}

// InvalidateCourse drops the cached views of every student in the course.
func (s *progressService) InvalidateCourse(ctx context.Context, courseID uint) {
	if s.cache == nil {
		return
	}
	pattern := fmt.Sprintf("progress:student:*:course:%d", courseID)
	iter := s.cache.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn().Err(err).Uint("course_id", courseID).Msg("failed to scan progress cache")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("course_id", courseID).Msg("failed to invalidate course progress cache")
	}
}

func (s *progressService) respond(ctx context.Context, result standing) (dto.ProgressResponse, error) {
	progress := result.Progress
	completed, err := s.repos.Progress.CompletedContentIDs(ctx, progress.StudentID, progress.CourseID)
	if err != nil {
		return dto.ProgressResponse{}, err
	}
	if completed == nil {
		completed = []uint{}
	}

	response := dto.ProgressResponse{
		CourseID:            progress.CourseID,
		ProgressPercentage:  progress.ProgressPercentage,
		CompletedCount:      progress.CompletedCount,
		TotalCount:          progress.TotalCount,
		Denominator:         progress.Denominator,
		CompletedContentIDs: completed,
		AssignmentScore:     result.Aggregate.Score,
		AssignmentPassed:    result.Aggregate.Passed,
		CertificateEligible: result.eligible() || result.Issued,
		CertificateIssued:   result.Issued,
	}
	if !result.Issued {
		response.EligibilityReason = result.Reason
	}
	if result.ProgressSeen {
		refreshed := progress.RefreshedAt
		response.RefreshedAt = &refreshed
	}
	return response, nil
}
