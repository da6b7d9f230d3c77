package dto

import (
	"time"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// EligibilityResponse reports whether a certificate may be issued.
type EligibilityResponse struct {
	CourseID           uint    `json:"course_id"`
	Eligible           bool    `json:"eligible"`
	Reason             string  `json:"reason,omitempty"`
	ProgressPercentage float64 `json:"progress_percentage"`
	AssignmentScore    float64 `json:"assignment_score"`
	AlreadyIssued      bool    `json:"already_issued"`
}

// CertificateResponse describes an issued certificate.
type CertificateResponse struct {
	ID             uint      `json:"id"`
	CourseID       uint      `json:"course_id"`
	VerificationID string    `json:"verification_id"`
	VerifyURL      string    `json:"verify_url"`
	ArtifactURL    string    `json:"artifact_url"`
	ArtifactType   string    `json:"artifact_type"`
	IssueDate      time.Time `json:"issue_date"`
	Created        bool      `json:"created"`
}

// VerifyResponse is the public verification payload.
type VerifyResponse struct {
	Valid          bool   `json:"valid"`
	Student        string `json:"student,omitempty"`
	StudentName    string `json:"student_name,omitempty"`
	Course         string `json:"course,omitempty"`
	IssuedOn       string `json:"issued_on,omitempty"`
	VerificationID string `json:"verification_id,omitempty"`
}

// TemplateCreateRequest creates an inline template.
type TemplateCreateRequest struct {
	Name         string `json:"name" validate:"required,max=255"`
	FileType     string `json:"file_type" validate:"required,oneof=html plain"`
	HTMLTemplate string `json:"html_template" validate:"required"`
}

// TemplateUploadRequest holds the form fields next to an uploaded template file.
type TemplateUploadRequest struct {
	Name string `form:"name" validate:"required,max=255"`
}

// TemplateAssignRequest selects the template a course renders with. Nil clears the
// assignment, which blocks issuance until a template is chosen again.
type TemplateAssignRequest struct {
	TemplateID *uint `json:"template_id" validate:"omitempty,gt=0"`
}

// TemplateResponse is the serialized template.
type TemplateResponse struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	FileType     string    `json:"file_type"`
	FileName     string    `json:"file_name,omitempty"`
	InstructorID *uint     `json:"instructor_id,omitempty"`
	HTMLTemplate string    `json:"html_template,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewCertificateResponse converts a model into a DTO.
func NewCertificateResponse(model models.Certificate, verifyURL string, created bool) CertificateResponse {
	return CertificateResponse{
		ID:             model.ID,
		CourseID:       model.CourseID,
		VerificationID: model.VerificationID,
		VerifyURL:      verifyURL,
		ArtifactURL:    model.ArtifactURL,
		ArtifactType:   model.ArtifactType,
		IssueDate:      model.IssueDate,
		Created:        created,
	}
}

// NewVerifyResponse converts a certificate with its student and course into the public payload.
func NewVerifyResponse(model models.Certificate) VerifyResponse {
	return VerifyResponse{
		Valid:          true,
		Student:        model.Student.Username,
		StudentName:    model.Student.DisplayName(),
		Course:         model.Course.Title,
		IssuedOn:       model.IssueDate.UTC().Format(dateLayout),
		VerificationID: model.VerificationID,
	}
}

// NewTemplateResponse converts a model into a DTO.
func NewTemplateResponse(model models.CertificateTemplate) TemplateResponse {
	return TemplateResponse{
		ID:           model.ID,
		Name:         model.Name,
		Type:         model.Type,
		FileType:     model.FileType,
		FileName:     model.FileName,
		InstructorID: model.InstructorID,
		HTMLTemplate: model.HTMLTemplate,
		CreatedAt:    model.CreatedAt,
	}
}
