package models

import "time"

// ContentCompletion records which modalities of a content item a student has consumed.
type ContentCompletion struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	StudentID      uint      `gorm:"not null;uniqueIndex:idx_completion_student_content" json:"student_id"`
	ContentID      uint      `gorm:"not null;uniqueIndex:idx_completion_student_content;index" json:"content_id"`
	VideoCompleted bool      `gorm:"not null;default:false" json:"video_completed"`
	PDFCompleted   bool      `gorm:"column:pdf_completed;not null;default:false" json:"pdf_completed"`
	TextCompleted  bool      `gorm:"not null;default:false" json:"text_completed"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsFullyCompleted applies the any-modality policy.
func (c ContentCompletion) IsFullyCompleted() bool {
	return c.VideoCompleted || c.PDFCompleted || c.TextCompleted
}

// ModalityColumn maps a modality to its completion flag column.
func ModalityColumn(modality string) (string, bool) {
	switch modality {
	case ContentTypeVideo:
		return "video_completed", true
	case ContentTypePDF:
		return "pdf_completed", true
	case ContentTypeText:
		return "text_completed", true
	default:
		return "", false
	}
}

// StudentProgress is the materialised progress of a student in a course.
type StudentProgress struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	StudentID          uint      `gorm:"not null;uniqueIndex:idx_progress_student_course" json:"student_id"`
	CourseID           uint      `gorm:"not null;uniqueIndex:idx_progress_student_course;index" json:"course_id"`
	CompletedCount     int       `gorm:"not null;default:0" json:"completed_count"`
	TotalCount         int       `gorm:"not null;default:0" json:"total_count"`
	ProgressPercentage float64   `gorm:"not null;default:0" json:"progress_percentage"`
	Denominator        string    `gorm:"size:16;not null" json:"denominator"`
	RefreshedAt        time.Time `json:"refreshed_at"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// IsComplete reports a fully completed course.
func (p StudentProgress) IsComplete() bool {
	return p.TotalCount > 0 && p.CompletedCount >= p.TotalCount
}
