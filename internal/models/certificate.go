package models

import "time"

// Template kinds.
const (
	TemplateTypeDefault = "default"
	TemplateTypeCustom  = "custom"
)

// Template source formats.
const (
	TemplateFileHTML  = "html"
	TemplateFilePlain = "plain"
	TemplateFileDOCX  = "docx"
)

// CertificateTemplate is the source a certificate artifact is rendered from.
type CertificateTemplate struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Type         string    `gorm:"size:16;not null;default:custom" json:"type"`
	InstructorID *uint     `gorm:"index" json:"instructor_id"`
	FileType     string    `gorm:"size:16;not null" json:"file_type"`
	HTMLTemplate string    `gorm:"type:text" json:"html_template,omitempty"`
	FileData     []byte    `json:"-"`
	FileName     string    `gorm:"size:255" json:"file_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsOwnedBy reports whether an instructor may modify the template.
func (t CertificateTemplate) IsOwnedBy(instructorID uint) bool {
	return t.Type == TemplateTypeCustom && t.InstructorID != nil && *t.InstructorID == instructorID
}

// Certificate is the permanent record of an issued course certificate.
type Certificate struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	StudentID      uint      `gorm:"not null;uniqueIndex:idx_certificate_student_course" json:"student_id"`
	CourseID       uint      `gorm:"not null;uniqueIndex:idx_certificate_student_course;index" json:"course_id"`
	VerificationID string    `gorm:"size:36;not null;uniqueIndex" json:"verification_id"`
	ArtifactURL    string    `gorm:"size:512;not null" json:"artifact_url"`
	ArtifactType   string    `gorm:"size:64;not null" json:"artifact_type"`
	IssueDate      time.Time `gorm:"not null" json:"issue_date"`
	CreatedAt      time.Time `json:"created_at"`
	Student        Student   `gorm:"foreignKey:StudentID" json:"-"`
	Course         Course    `gorm:"foreignKey:CourseID" json:"-"`
}
