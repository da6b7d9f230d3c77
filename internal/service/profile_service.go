package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
)

// ProfileService binds identity-provider users to student or instructor profiles.
type ProfileService interface {
	Upsert(ctx context.Context, principal Principal, req dto.ProfileRequest) (dto.ProfileResponse, error)
	Get(ctx context.Context, principal Principal) (dto.ProfileResponse, error)
}

type profileService struct {
	repos    Repositories
	guard    accessGuard
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewProfileService constructs the profile service.
func NewProfileService(repos Repositories, validate *validator.Validate, logger zerolog.Logger) ProfileService {
	return &profileService{
		repos:    repos,
		guard:    repos.guard(),
		validate: validate,
		logger:   logger.With().Str("component", "profile_service").Logger(),
	}
}

// Upsert creates or updates the caller's profile. Students get a student profile;
// instructors and admins get an instructor profile.
func (s *profileService) Upsert(ctx context.Context, principal Principal, req dto.ProfileRequest) (dto.ProfileResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.ProfileResponse{}, err
	}
	if principal.UserID == 0 {
		return dto.ProfileResponse{}, ErrForbidden
	}

	if principal.IsStudent() {
		student := models.Student{
			UserID:    principal.UserID,
			Username:  strings.TrimSpace(req.Username),
			FirstName: strings.TrimSpace(req.FirstName),
			LastName:  strings.TrimSpace(req.LastName),
			Email:     strings.TrimSpace(req.Email),
		}
		if err := s.repos.Students.Upsert(ctx, &student); err != nil {
			return dto.ProfileResponse{}, err
		}
		s.logger.Info().Uint("user_id", principal.UserID).Uint("student_id", student.ID).Msg("student profile saved")
		return studentProfile(student), nil
	}

	instructor := models.Instructor{
		UserID:    principal.UserID,
		Username:  strings.TrimSpace(req.Username),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.TrimSpace(req.Email),
		Bio:       req.Bio,
	}
	if err := s.repos.Instructors.Upsert(ctx, &instructor); err != nil {
		return dto.ProfileResponse{}, err
	}
	s.logger.Info().Uint("user_id", principal.UserID).Uint("instructor_id", instructor.ID).Msg("instructor profile saved")
	return instructorProfile(instructor), nil
}

func (s *profileService) Get(ctx context.Context, principal Principal) (dto.ProfileResponse, error) {
	if principal.IsStudent() {
		student, err := s.guard.student(ctx, principal)
		if err != nil {
			return dto.ProfileResponse{}, err
		}
		return studentProfile(student), nil
	}

	instructor, err := s.guard.instructor(ctx, principal)
	if err != nil {
		return dto.ProfileResponse{}, err
	}
	return instructorProfile(instructor), nil
}

func studentProfile(student models.Student) dto.ProfileResponse {
	return dto.ProfileResponse{
		ID:          student.ID,
		UserID:      student.UserID,
		Role:        RoleStudent,
		Username:    student.Username,
		DisplayName: student.DisplayName(),
		Email:       student.Email,
	}
}

func instructorProfile(instructor models.Instructor) dto.ProfileResponse {
	return dto.ProfileResponse{
		ID:          instructor.ID,
		UserID:      instructor.UserID,
		Role:        RoleInstructor,
		Username:    instructor.Username,
		DisplayName: instructor.DisplayName(),
		Email:       instructor.Email,
	}
}
