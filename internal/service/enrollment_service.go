package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
)

// EnrollmentService grants students access to free courses.
type EnrollmentService interface {
	Enroll(ctx context.Context, principal Principal, courseID uint) (dto.EnrollmentResponse, error)
	ListMine(ctx context.Context, principal Principal) ([]dto.EnrollmentResponse, error)
}

type enrollmentService struct {
	repos     Repositories
	guard     accessGuard
	publisher EventPublisher
	logger    zerolog.Logger
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(repos Repositories, publisher EventPublisher, logger zerolog.Logger) EnrollmentService {
	return &enrollmentService{
		repos:     repos,
		guard:     repos.guard(),
		publisher: publisher,
		logger:    logger.With().Str("component", "enrollment_service").Logger(),
	}
}

// Enroll enrolls the caller in a free course. Paid courses go through the payment flow.
func (s *enrollmentService) Enroll(ctx context.Context, principal Principal, courseID uint) (dto.EnrollmentResponse, error) {
	student, err := s.guard.student(ctx, principal)
	if err != nil {
		return dto.EnrollmentResponse{}, err
	}
	course, err := s.guard.course(ctx, courseID)
	if err != nil {
		return dto.EnrollmentResponse{}, err
	}
	if course.EffectivePrice() > 0 {
		return dto.EnrollmentResponse{}, ErrPaymentRequired
	}

	enrollment := models.Enrollment{StudentID: student.ID, CourseID: course.ID, Source: models.EnrollmentSourceFree}
	created, err := s.repos.Enrollments.Create(ctx, &enrollment)
	if err != nil {
		return dto.EnrollmentResponse{}, err
	}

	if created {
		s.logger.Info().Uint("student_id", student.ID).Uint("course_id", course.ID).Msg("student enrolled")
		publishAsync(ctx, s.publisher, s.logger, SubjectEnrollmentCreated, map[string]interface{}{
			"student_id": student.ID,
			"course_id":  course.ID,
			"source":     enrollment.Source,
		})
	}

	return dto.EnrollmentResponse{
		CourseID:   course.ID,
		Source:     enrollment.Source,
		Created:    created,
		EnrolledAt: enrollment.CreatedAt,
	}, nil
}

func (s *enrollmentService) ListMine(ctx context.Context, principal Principal) ([]dto.EnrollmentResponse, error) {
	student, err := s.guard.student(ctx, principal)
	if err != nil {
		return nil, err
	}

	enrollments, err := s.repos.Enrollments.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.EnrollmentResponse, 0, len(enrollments))
	for _, enrollment := range enrollments {
		responses = append(responses, dto.EnrollmentResponse{
			CourseID:   enrollment.CourseID,
			Source:     enrollment.Source,
			EnrolledAt: enrollment.CreatedAt,
		})
	}
	return responses, nil
}
