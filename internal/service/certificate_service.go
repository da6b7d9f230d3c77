package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/observability"
	"github.com/noah-isme/gema-lms-api/pkg/certificate"
)

// CertificateRenderer turns a template and the certificate fields into an artifact.
type CertificateRenderer interface {
	Render(ctx context.Context, tpl certificate.Template, fields certificate.Fields) (certificate.Artifact, error)
}

// CertificateService decides eligibility and issues, lists and verifies certificates.
type CertificateService interface {
	Eligibility(ctx context.Context, principal Principal, courseID uint) (dto.EligibilityResponse, error)
	Issue(ctx context.Context, principal Principal, courseID uint) (dto.CertificateResponse, error)
	Get(ctx context.Context, principal Principal, courseID uint) (dto.CertificateResponse, error)
	ListMine(ctx context.Context, principal Principal) ([]dto.CertificateResponse, error)
	Verify(ctx context.Context, verificationID string) (dto.VerifyResponse, error)
}

type certificateService struct {
	repos       Repositories
	guard       accessGuard
	standing    standingReader
	renderer    CertificateRenderer
	storage     FileStorage
	invalidator ProgressInvalidator
	publisher   EventPublisher
	verifyBase  string
	group       singleflight.Group
	logger      zerolog.Logger
	now         func() time.Time
}

// CertificateServiceConfig carries the collaborators of the certificate engine.
type CertificateServiceConfig struct {
	Policy        string
	VerifyBaseURL string
	Renderer      CertificateRenderer
	Storage       FileStorage
	Invalidator   ProgressInvalidator
	Publisher     EventPublisher
}

type issueOutcome struct {
	certificate models.Certificate
	created     bool
}

// NewCertificateService constructs the certificate engine.
func NewCertificateService(repos Repositories, cfg CertificateServiceConfig, logger zerolog.Logger) CertificateService {
	return &certificateService{
		repos:       repos,
		guard:       repos.guard(),
		standing:    repos.standing(cfg.Policy),
		renderer:    cfg.Renderer,
		storage:     cfg.Storage,
		invalidator: cfg.Invalidator,
		publisher:   cfg.Publisher,
		verifyBase:  strings.TrimRight(cfg.VerifyBaseURL, "/"),
		logger:      logger.With().Str("component", "certificate_service").Logger(),
		now:         time.Now,
	}
}

func (s *certificateService) Eligibility(ctx context.Context, principal Principal, courseID uint) (dto.EligibilityResponse, error) {
	student, course, err := s.guard.enrolledStudent(ctx, principal, courseID)
	if err != nil {
		return dto.EligibilityResponse{}, err
	}

	result, err := s.standing.evaluate(ctx, student.ID, course, s.now().UTC())
	if err != nil {
		return dto.EligibilityResponse{}, err
	}

	response := dto.EligibilityResponse{
		CourseID:           course.ID,
		Eligible:           result.eligible() || result.Issued,
		ProgressPercentage: result.Progress.ProgressPercentage,
		AssignmentScore:    result.Aggregate.Score,
		AlreadyIssued:      result.Issued,
	}
	if !result.Issued {
		response.Reason = result.Reason
	}
	return response, nil
}

// Issue returns the existing certificate or issues a new one. Concurrent requests
// for the same student and course share one issuance.
func (s *certificateService) Issue(ctx context.Context, principal Principal, courseID uint) (dto.CertificateResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-lms-api/internal/service/certificate")
	ctx, span := tracer.Start(ctx, "certificate.issue")
	span.SetAttributes(attribute.Int64("certificate.course_id", int64(courseID)))
	defer span.End()

	student, course, err := s.guard.enrolledStudent(ctx, principal, courseID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "access_denied")
		return dto.CertificateResponse{}, err
	}
	span.SetAttributes(attribute.Int64("certificate.student_id", int64(student.ID)))

	key := fmt.Sprintf("%d:%d", student.ID, course.ID)
	value, err, shared := s.group.Do(key, func() (interface{}, error) {
		// Shared by every waiter, so one caller hanging up must not fail the rest.
		return s.issue(context.WithoutCancel(ctx), student, course)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue_failed")
		return dto.CertificateResponse{}, err
	}

	outcome := value.(issueOutcome)
	span.SetAttributes(
		attribute.Bool("certificate.created", outcome.created),
		attribute.Bool("certificate.shared", shared),
	)
	return dto.NewCertificateResponse(outcome.certificate, s.verifyURL(outcome.certificate.VerificationID), outcome.created), nil
}

func (s *certificateService) issue(ctx context.Context, student models.Student, course models.Course) (issueOutcome, error) {
	existing, err := s.repos.Certificates.GetByStudentCourse(ctx, student.ID, course.ID)
	if err == nil {
		return issueOutcome{certificate: existing}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return issueOutcome{}, err
	}

	now := s.now().UTC()
	result, err := s.standing.evaluate(ctx, student.ID, course, now)
	if err != nil {
		return issueOutcome{}, err
	}
	if result.Issued {
		return issueOutcome{certificate: result.Certificate}, nil
	}
	if !result.eligible() {
		observability.CertificateFailures().WithLabelValues(result.Reason).Inc()
		s.logger.Info().Uint("student_id", student.ID).Uint("course_id", course.ID).Str("reason", result.Reason).Msg("certificate not eligible")
		return issueOutcome{}, &IneligibleError{Reason: result.Reason}
	}

	instructorName := ""
	if instructor, err := s.repos.Instructors.GetByID(ctx, course.InstructorID); err == nil {
		instructorName = instructor.DisplayName()
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return issueOutcome{}, err
	}

	verificationID := uuid.NewString()
	fields := certificate.Fields{
		StudentName:    student.DisplayName(),
		CourseTitle:    course.Title,
		InstructorName: instructorName,
		IssueDate:      now,
		CertificateID:  verificationID,
		VerifyURL:      s.verifyURL(verificationID),
	}

	artifact, err := s.render(ctx, result.Template, fields)
	if err != nil {
		observability.CertificateFailures().WithLabelValues("render_failed").Inc()
		s.logger.Error().Err(err).Uint("student_id", student.ID).Uint("course_id", course.ID).Uint("template_id", result.Template.ID).Msg("certificate render failed")
		return issueOutcome{}, fmt.Errorf("%w: render: %v", ErrIssuanceFailed, err)
	}

	artifactURL, err := s.upload(ctx, student.ID, course.ID, artifact)
	if err != nil {
		observability.CertificateFailures().WithLabelValues("storage_failed").Inc()
		s.logger.Error().Err(err).Uint("student_id", student.ID).Uint("course_id", course.ID).Msg("certificate upload failed")
		return issueOutcome{}, fmt.Errorf("%w: storage: %v", ErrIssuanceFailed, err)
	}

	record := models.Certificate{
		StudentID:      student.ID,
		CourseID:       course.ID,
		VerificationID: verificationID,
		ArtifactURL:    artifactURL,
		ArtifactType:   artifact.ContentType,
		IssueDate:      now,
	}
	if err := s.repos.Certificates.Create(ctx, &record); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			winner, lookupErr := s.repos.Certificates.GetByStudentCourse(ctx, student.ID, course.ID)
			if lookupErr != nil {
				return issueOutcome{}, lookupErr
			}
			s.logger.Info().Uint("student_id", student.ID).Uint("course_id", course.ID).Msg("certificate issued concurrently, returning existing")
			s.discardArtifact(ctx, artifactURL, student.ID, course.ID)
			return issueOutcome{certificate: winner}, nil
		}
		return issueOutcome{}, err
	}

	observability.CertificatesIssued().WithLabelValues(result.Template.FileType).Inc()
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, student.ID, course.ID)
	}
	publishAsync(ctx, s.publisher, s.logger, SubjectCertificateIssued, map[string]interface{}{
		"certificate_id":  record.ID,
		"verification_id": record.VerificationID,
		"student_id":      student.ID,
		"course_id":       course.ID,
		"issued_at":       record.IssueDate,
	})

	s.logger.Info().
		Uint("student_id", student.ID).
		Uint("course_id", course.ID).
		Str("verification_id", record.VerificationID).
		Str("artifact_type", record.ArtifactType).
		Msg("certificate issued")

	return issueOutcome{certificate: record, created: true}, nil
}

func (s *certificateService) render(ctx context.Context, tpl models.CertificateTemplate, fields certificate.Fields) (certificate.Artifact, error) {
	if s.renderer == nil {
		return certificate.Artifact{}, errors.New("renderer not configured")
	}

	started := time.Now()
	artifact, err := s.renderer.Render(ctx, certificate.Template{
		Format: tpl.FileType,
		Body:   tpl.HTMLTemplate,
		File:   tpl.FileData,
	}, fields)
	observability.CertificateRenderDuration().WithLabelValues(tpl.FileType).Observe(time.Since(started).Seconds())
	return artifact, err
}

func (s *certificateService) upload(ctx context.Context, studentID, courseID uint, artifact certificate.Artifact) (string, error) {
	if s.storage == nil {
		return "", ErrStorageUnavailable
	}
	name := fmt.Sprintf("certificate-%d-%d%s", studentID, courseID, artifact.Extension)
	return s.storage.Upload(ctx, name, bytes.NewReader(artifact.Data))
}

// discardArtifact removes an upload that lost the insert race to another node.
// Storages without delete support leave the file behind; its URL is logged.
func (s *certificateService) discardArtifact(ctx context.Context, url string, studentID, courseID uint) {
	logger := s.logger.With().Uint("student_id", studentID).Uint("course_id", courseID).Str("artifact_url", url).Logger()

	remover, ok := s.storage.(FileRemover)
	if !ok {
		observability.CertificateFailures().WithLabelValues("orphaned_artifact").Inc()
		logger.Warn().Msg("orphaned certificate artifact left in storage")
		return
	}
	if err := remover.Remove(context.WithoutCancel(ctx), url); err != nil {
		observability.CertificateFailures().WithLabelValues("orphaned_artifact").Inc()
		logger.Warn().Err(err).Msg("failed to remove orphaned certificate artifact")
		return
	}
	logger.Info().Msg("orphaned certificate artifact removed")
}

func (s *certificateService) Get(ctx context.Context, principal Principal, courseID uint) (dto.CertificateResponse, error) {
	student, course, err := s.guard.enrolledStudent(ctx, principal, courseID)
	if err != nil {
		return dto.CertificateResponse{}, err
	}

	record, err := s.repos.Certificates.GetByStudentCourse(ctx, student.ID, course.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CertificateResponse{}, ErrCertificateNotFound
		}
		return dto.CertificateResponse{}, err
	}
	return dto.NewCertificateResponse(record, s.verifyURL(record.VerificationID), false), nil
}

// ListMine lists the caller's certificates, including those of deleted courses.
func (s *certificateService) ListMine(ctx context.Context, principal Principal) ([]dto.CertificateResponse, error) {
	student, err := s.guard.student(ctx, principal)
	if err != nil {
		return nil, err
	}

	records, err := s.repos.Certificates.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.CertificateResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, dto.NewCertificateResponse(record, s.verifyURL(record.VerificationID), false))
	}
	return responses, nil
}

// Verify resolves a public verification id. Malformed ids are reported as unknown.
func (s *certificateService) Verify(ctx context.Context, verificationID string) (dto.VerifyResponse, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(verificationID))
	if err != nil {
		return dto.VerifyResponse{Valid: false}, ErrCertificateNotFound
	}

	record, err := s.repos.Certificates.GetByVerificationID(ctx, parsed.String())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.VerifyResponse{Valid: false}, ErrCertificateNotFound
		}
		return dto.VerifyResponse{}, err
	}
	return dto.NewVerifyResponse(record), nil
}

func (s *certificateService) verifyURL(verificationID string) string {
	if s.verifyBase == "" {
		return verificationID
	}
	return s.verifyBase + "/" + verificationID
}
