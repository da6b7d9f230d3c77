package dto

import "time"

// CompleteContentRequest names the modality a student finished.
type CompleteContentRequest struct {
	Modality string `json:"modality" validate:"required,oneof=video pdf text"`
}

// ProgressResponse summarises a student's standing in a course.
type ProgressResponse struct {
	CourseID            uint       `json:"course_id"`
	ProgressPercentage  float64    `json:"progress_percentage"`
	CompletedCount      int        `json:"completed_count"`
	TotalCount          int        `json:"total_count"`
	Denominator         string     `json:"denominator"`
	CompletedContentIDs []uint     `json:"completed_content_ids"`
	AssignmentScore     float64    `json:"assignment_score"`
	AssignmentPassed    bool       `json:"assignment_passed"`
	CertificateEligible bool       `json:"certificate_eligible"`
	EligibilityReason   string     `json:"eligibility_reason,omitempty"`
	CertificateIssued   bool       `json:"certificate_issued"`
	RefreshedAt         *time.Time `json:"refreshed_at,omitempty"`
	CacheHit            bool       `json:"-"`
}
