package service

import (
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
	"github.com/noah-isme/gema-lms-api/internal/observability"
)

// ProgressInvalidator drops cached progress views after state they depend on changes.
type ProgressInvalidator interface {
	Invalidate(ctx context.Context, studentID, courseID uint)
	InvalidateCourse(ctx context.Context, courseID uint)
}

// AssignmentService manages course assignments and grades student answers.
type AssignmentService interface {
	Create(ctx context.Context, principal Principal, courseID uint, req dto.AssignmentCreateRequest) ([]dto.AssignmentResponse, error)
	List(ctx context.Context, principal Principal, courseID uint) ([]dto.AssignmentResponse, error)
	Delete(ctx context.Context, principal Principal, courseID, assignmentID uint) error
	DeleteAll(ctx context.Context, principal Principal, courseID uint) (int64, error)
	Submit(ctx context.Context, principal Principal, courseID uint, req dto.AssignmentSubmitRequest) (dto.AssignmentResultResponse, error)
	Result(ctx context.Context, principal Principal, courseID uint) (dto.AssignmentResultResponse, error)
}

type assignmentService struct {
	repos       Repositories
	guard       accessGuard
	selector    *OptionSelector
	invalidator ProgressInvalidator
	validate    *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAssignmentService constructs the assignment evaluator.
func NewAssignmentService(repos Repositories, selector *OptionSelector, invalidator ProgressInvalidator, validate *validator.Validate, logger zerolog.Logger) AssignmentService {
	if selector == nil {
		selector = NewOptionSelector(nil)
	}
	return &assignmentService{
		repos:       repos,
		guard:       repos.guard(),
		selector:    selector,
		invalidator: invalidator,
		validate:    validate,
		logger:      logger.With().Str("component", "assignment_service").Logger(),
		now:         time.Now,
	}
}

func (s *assignmentService) Create(ctx context.Context, principal Principal, courseID uint, req dto.AssignmentCreateRequest) ([]dto.AssignmentResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	course, err := s.guard.ownedCourse(ctx, principal, courseID)
	if err != nil {
		return nil, err
	}

	assignments := make([]models.Assignment, 0, len(req.Assignments))
	for _, input := range req.Assignments {
		assignment := models.Assignment{
			CourseID:     course.ID,
			InstructorID: course.InstructorID,
			Question:     strings.TrimSpace(input.Question),
			Answer:       strings.TrimSpace(input.Answer),
		}
		assignment.SetOptions(input.Options)
		assignments = append(assignments, assignment)
	}

	if err := s.repos.Assignments.CreateBatch(ctx, assignments); err != nil {
		return nil, err
	}

	s.logger.Info().Uint("course_id", course.ID).Int("count", len(assignments)).Msg("assignments created")
	s.invalidateCourse(ctx, course.ID)

	responses := make([]dto.AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, dto.NewAssignmentResponse(assignment, assignment.OptionList(), true))
	}
	return responses, nil
}

// List shows the owner every answer; students see options through the selector and no answers.
func (s *assignmentService) List(ctx context.Context, principal Principal, courseID uint) ([]dto.AssignmentResponse, error) {
	course, err := s.guard.reader(ctx, principal, courseID)
	if err != nil {
		return nil, err
	}

	assignments, err := s.repos.Assignments.ListByCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}

	owner := !principal.IsStudent()
	responses := make([]dto.AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		options := assignment.OptionList()
		if !owner && len(options) > 0 {
			options = s.selector.Select(options, assignment.Answer)
		}
		responses = append(responses, dto.NewAssignmentResponse(assignment, options, owner))
	}
	return responses, nil
}

func (s *assignmentService) Delete(ctx context.Context, principal Principal, courseID, assignmentID uint) error {
	course, err := s.guard.ownedCourse(ctx, principal, courseID)
	if err != nil {
		return err
	}

	if err := s.repos.Assignments.Delete(ctx, course.ID, assignmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}
	s.invalidateCourse(ctx, course.ID)
	return nil
}

func (s *assignmentService) DeleteAll(ctx context.Context, principal Principal, courseID uint) (int64, error) {
	course, err := s.guard.ownedCourse(ctx, principal, courseID)
	if err != nil {
		return 0, err
	}
	removed, err := s.repos.Assignments.DeleteByCourse(ctx, course.ID)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Uint("course_id", course.ID).Int64("removed", removed).Msg("assignments cleared")
	s.invalidateCourse(ctx, course.ID)
	return removed, nil
}

// invalidateCourse drops every cached progress view of the course; the aggregate
// they carry depends on the assignment set.
func (s *assignmentService) invalidateCourse(ctx context.Context, courseID uint) {
	if s.invalidator != nil {
		s.invalidator.InvalidateCourse(ctx, courseID)
	}
}

// Submit grades every assignment of the course. Assignments missing from the request
// are stored as blank, incorrect answers; earlier submissions are overwritten.
func (s *assignmentService) Submit(ctx context.Context, principal Principal, courseID uint, req dto.AssignmentSubmitRequest) (dto.AssignmentResultResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.AssignmentResultResponse{}, err
	}

	student, course, err := s.guard.enrolledStudent(ctx, principal, courseID)
	if err != nil {
		return dto.AssignmentResultResponse{}, err
	}

	assignments, err := s.repos.Assignments.ListByCourse(ctx, course.ID)
	if err != nil {
		return dto.AssignmentResultResponse{}, err
	}

	known := make(map[uint]struct{}, len(assignments))
	for _, assignment := range assignments {
		known[assignment.ID] = struct{}{}
	}
	answers := make(map[uint]string, len(req.Answers))
	for _, answer := range req.Answers {
		if _, ok := known[answer.AssignmentID]; !ok {
			return dto.AssignmentResultResponse{}, fmt.Errorf("%w: %d", ErrUnknownAssignment, answer.AssignmentID)
		}
		answers[answer.AssignmentID] = strings.TrimSpace(answer.Answer)
	}

	submittedAt := s.now().UTC()
	submissions := make([]models.AssignmentSubmission, 0, len(assignments))
	for _, assignment := range assignments {
		submitted := answers[assignment.ID]
		correct := gradeAnswer(submitted, assignment.Answer)
		submission := models.AssignmentSubmission{
			StudentID:       student.ID,
			AssignmentID:    assignment.ID,
			SubmittedAnswer: submitted,
			IsCorrect:       correct,
			PassStatus:      models.PassStatusFail,
			SubmittedAt:     submittedAt,
		}
		if correct {
			submission.Score = 100
			submission.PassStatus = models.PassStatusPass
		}
		submissions = append(submissions, submission)
	}

	if len(submissions) > 0 {
		if err := s.repos.Assignments.UpsertSubmissions(ctx, submissions); err != nil {
			return dto.AssignmentResultResponse{}, err
		}
	}

	agg := aggregateAssignments(assignments, submissions)
	observability.AssignmentSubmissions().WithLabelValues(strings.ToLower(agg.passStatus())).Inc()
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, student.ID, course.ID)
	}

	s.logger.Info().
		Uint("student_id", student.ID).
		Uint("course_id", course.ID).
		Float64("score", agg.Score).
		Str("pass_status", agg.passStatus()).
		Msg("assignment answers graded")

	return newAssignmentResult(course.ID, agg), nil
}

// Result recomputes the aggregate from the stored submissions.
func (s *assignmentService) Result(ctx context.Context, principal Principal, courseID uint) (dto.AssignmentResultResponse, error) {
	student, course, err := s.guard.enrolledStudent(ctx, principal, courseID)
	if err != nil {
		return dto.AssignmentResultResponse{}, err
	}

	assignments, err := s.repos.Assignments.ListByCourse(ctx, course.ID)
	if err != nil {
		return dto.AssignmentResultResponse{}, err
	}
	submissions, err := s.repos.Assignments.ListSubmissions(ctx, student.ID, course.ID)
	if err != nil {
		return dto.AssignmentResultResponse{}, err
	}

	return newAssignmentResult(course.ID, aggregateAssignments(assignments, submissions)), nil
}

func newAssignmentResult(courseID uint, agg assignmentAggregate) dto.AssignmentResultResponse {
	return dto.AssignmentResultResponse{
		CourseID:         courseID,
		TotalAssignments: agg.Total,
		Attempted:        agg.Attempted,
		CorrectAnswers:   agg.Correct,
		Score:            agg.Score,
		Passed:           agg.Passed,
		PassStatus:       agg.passStatus(),
		Results:          agg.Outcomes,
	}
}
