package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
)

// DefaultTemplateName names the system template seeded at boot.
const DefaultTemplateName = "Default certificate"

const defaultTemplateHTML = `<div style="text-align:center;font-family:Georgia,serif;padding:40px;border:8px solid #1f3a5f;">
<h1>Certificate of Completion</h1>
<p>This certifies that</p>
<h2>{{student_name}}</h2>
<p>has successfully completed</p>
<h3>{{course_title}}</h3>
<p>Instructor: {{instructor_name}}</p>
<p>Issued on {{date}}</p>
</div>`

// CertificateTemplateService manages the templates certificates are rendered from.
type CertificateTemplateService interface {
	List(ctx context.Context, principal Principal) ([]dto.TemplateResponse, error)
	Create(ctx context.Context, principal Principal, req dto.TemplateCreateRequest) (dto.TemplateResponse, error)
	Upload(ctx context.Context, principal Principal, req dto.TemplateUploadRequest, file dto.MediaFile) (dto.TemplateResponse, error)
	Delete(ctx context.Context, principal Principal, templateID uint) error
	AssignToCourse(ctx context.Context, principal Principal, courseID uint, req dto.TemplateAssignRequest) (dto.CourseResponse, error)
	EnsureDefault(ctx context.Context) (dto.TemplateResponse, error)
}

type certificateTemplateService struct {
	repos       Repositories
	guard       accessGuard
	invalidator ProgressInvalidator
	validate    *validator.Validate
	policy      *bluemonday.Policy
	logger      zerolog.Logger
}

// NewCertificateTemplateService constructs the template service.
func NewCertificateTemplateService(repos Repositories, invalidator ProgressInvalidator, validate *validator.Validate, logger zerolog.Logger) CertificateTemplateService {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("div", "span", "section", "header", "footer", "h1", "h2", "h3", "h4", "p", "strong", "em", "br", "hr")
	policy.AllowAttrs("class", "align").Globally()
	policy.AllowStyles(
		"color", "background-color", "font-family", "font-size", "font-weight", "font-style",
		"text-align", "margin", "margin-top", "margin-bottom", "padding", "border", "width", "height",
	).Globally()

	return &certificateTemplateService{
		repos:       repos,
		guard:       repos.guard(),
		invalidator: invalidator,
		validate:    validate,
		policy:      policy,
		logger:      logger.With().Str("component", "certificate_template_service").Logger(),
	}
}

// List returns the system defaults and the caller's own templates.
func (s *certificateTemplateService) List(ctx context.Context, principal Principal) ([]dto.TemplateResponse, error) {
	instructorID, err := s.instructorID(ctx, principal)
	if err != nil {
		return nil, err
	}

	templates, err := s.repos.Templates.ListVisibleTo(ctx, instructorID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.TemplateResponse, 0, len(templates))
	for _, tpl := range templates {
		responses = append(responses, dto.NewTemplateResponse(tpl))
	}
	return responses, nil
}

func (s *certificateTemplateService) Create(ctx context.Context, principal Principal, req dto.TemplateCreateRequest) (dto.TemplateResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.TemplateResponse{}, err
	}

	instructor, err := s.guard.instructor(ctx, principal)
	if err != nil {
		return dto.TemplateResponse{}, err
	}

	body := req.HTMLTemplate
	if req.FileType == models.TemplateFileHTML {
		body = s.policy.Sanitize(body)
	}
	if strings.TrimSpace(body) == "" {
		return dto.TemplateResponse{}, ErrTemplateUnsupported
	}

	tpl := models.CertificateTemplate{
		Name:         strings.TrimSpace(req.Name),
		Type:         models.TemplateTypeCustom,
		InstructorID: &instructor.ID,
		FileType:     req.FileType,
		HTMLTemplate: body,
	}
	if err := s.repos.Templates.Create(ctx, &tpl); err != nil {
		return dto.TemplateResponse{}, err
	}

	s.logger.Info().Uint("template_id", tpl.ID).Uint("instructor_id", instructor.ID).Str("file_type", tpl.FileType).Msg("certificate template created")
	return dto.NewTemplateResponse(tpl), nil
}

// Upload stores a template document. HTML and plain text files are kept inline,
// docx files are kept as raw bytes for the renderer.
func (s *certificateTemplateService) Upload(ctx context.Context, principal Principal, req dto.TemplateUploadRequest, file dto.MediaFile) (dto.TemplateResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.TemplateResponse{}, err
	}

	instructor, err := s.guard.instructor(ctx, principal)
	if err != nil {
		return dto.TemplateResponse{}, err
	}

	inspected, err := inspectUpload(file, MaxTemplateBytes)
	if err != nil {
		if errors.Is(err, ErrUploadTooLarge) {
			return dto.TemplateResponse{}, ErrTemplateTooLarge
		}
		return dto.TemplateResponse{}, err
	}
	fileType, err := classifyTemplate(inspected)
	if err != nil {
		return dto.TemplateResponse{}, err
	}

	tpl := models.CertificateTemplate{
		Name:         strings.TrimSpace(req.Name),
		Type:         models.TemplateTypeCustom,
		InstructorID: &instructor.ID,
		FileType:     fileType,
		FileName:     inspected.Name,
	}
	switch fileType {
	case models.TemplateFileHTML:
		tpl.HTMLTemplate = s.policy.Sanitize(string(inspected.Data))
	case models.TemplateFilePlain:
		tpl.HTMLTemplate = string(inspected.Data)
	default:
		tpl.FileData = inspected.Data
	}

	if err := s.repos.Templates.Create(ctx, &tpl); err != nil {
		return dto.TemplateResponse{}, err
	}

	s.logger.Info().
		Uint("template_id", tpl.ID).
		Uint("instructor_id", instructor.ID).
		Str("file_type", tpl.FileType).
		Str("mime", inspected.Mime).
		Int("bytes", len(inspected.Data)).
		Msg("certificate template uploaded")
	return dto.NewTemplateResponse(tpl), nil
}

// Delete removes a custom template owned by the caller that no course still uses.
func (s *certificateTemplateService) Delete(ctx context.Context, principal Principal, templateID uint) error {
	tpl, err := s.template(ctx, templateID)
	if err != nil {
		return err
	}

	if tpl.Type == models.TemplateTypeDefault {
		return ErrForbidden
	}
	if !principal.IsAdmin() {
		instructor, err := s.guard.instructor(ctx, principal)
		if err != nil {
			return err
		}
		if !tpl.IsOwnedBy(instructor.ID) {
			return ErrTemplateNotFound
		}
	}

	inUse, err := s.repos.Curriculum.CountCoursesUsingTemplate(ctx, tpl.ID)
	if err != nil {
		return err
	}
	if inUse > 0 {
		return ErrTemplateInUse
	}

	if err := s.repos.Templates.Delete(ctx, tpl.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTemplateNotFound
		}
		return err
	}

	s.logger.Info().Uint("template_id", tpl.ID).Msg("certificate template deleted")
	return nil
}

// AssignToCourse selects the template the course renders certificates with. The
// template must be a system default or belong to the course's instructor.
func (s *certificateTemplateService) AssignToCourse(ctx context.Context, principal Principal, courseID uint, req dto.TemplateAssignRequest) (dto.CourseResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.CourseResponse{}, err
	}

	course, err := s.guard.ownedCourse(ctx, principal, courseID)
	if err != nil {
		return dto.CourseResponse{}, err
	}

	if req.TemplateID != nil {
		tpl, err := s.template(ctx, *req.TemplateID)
		if err != nil {
			return dto.CourseResponse{}, err
		}
		if tpl.Type != models.TemplateTypeDefault && !tpl.IsOwnedBy(course.InstructorID) {
			return dto.CourseResponse{}, ErrTemplateNotFound
		}
	}

	if err := s.repos.Curriculum.SetCertificateTemplate(ctx, course.ID, req.TemplateID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CourseResponse{}, ErrCourseNotFound
		}
		return dto.CourseResponse{}, err
	}
	course.CertificateTemplateID = req.TemplateID

	if s.invalidator != nil {
		s.invalidator.InvalidateCourse(ctx, course.ID)
	}

	event := s.logger.Info().Uint("course_id", course.ID)
	if req.TemplateID != nil {
		event = event.Uint("template_id", *req.TemplateID)
	}
	event.Msg("certificate template assigned")
	return dto.NewCourseResponse(course), nil
}

// EnsureDefault seeds the system default template when none exists.
func (s *certificateTemplateService) EnsureDefault(ctx context.Context) (dto.TemplateResponse, error) {
	existing, err := s.repos.Templates.GetDefault(ctx)
	if err == nil {
		return dto.NewTemplateResponse(existing), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.TemplateResponse{}, err
	}

	tpl := models.CertificateTemplate{
		Name:         DefaultTemplateName,
		Type:         models.TemplateTypeDefault,
		FileType:     models.TemplateFileHTML,
		HTMLTemplate: defaultTemplateHTML,
	}
	if err := s.repos.Templates.Create(ctx, &tpl); err != nil {
		return dto.TemplateResponse{}, err
	}

	s.logger.Info().Uint("template_id", tpl.ID).Msg("default certificate template created")
	return dto.NewTemplateResponse(tpl), nil
}

// instructorID resolves the caller's instructor profile. Admins without one see only
// the system templates.
func (s *certificateTemplateService) instructorID(ctx context.Context, principal Principal) (uint, error) {
	instructor, err := s.guard.instructor(ctx, principal)
	if err == nil {
		return instructor.ID, nil
	}
	if principal.IsAdmin() && errors.Is(err, ErrProfileNotFound) {
		return 0, nil
	}
	return 0, err
}

func (s *certificateTemplateService) template(ctx context.Context, id uint) (models.CertificateTemplate, error) {
	tpl, err := s.repos.Templates.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.CertificateTemplate{}, ErrTemplateNotFound
		}
		return models.CertificateTemplate{}, err
	}
	return tpl, nil
}
