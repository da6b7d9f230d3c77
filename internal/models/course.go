package models

import (
	"math"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Content types a lesson content item can carry.
const (
	ContentTypeVideo = "video"
	ContentTypePDF   = "pdf"
	ContentTypeText  = "text"
)

// Course is the root of the curriculum tree.
type Course struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	InstructorID          uint           `gorm:"not null;index" json:"instructor_id"`
	Title                 string         `gorm:"size:255;not null" json:"title"`
	Subtitle              string         `gorm:"size:255" json:"subtitle"`
	Description           string         `gorm:"type:text" json:"description"`
	Price                 float64        `gorm:"not null;default:0" json:"price"`
	Discount              float64        `gorm:"not null;default:0" json:"discount"`
	IsPublished           bool           `gorm:"not null;default:false" json:"is_published"`
	CertificateTemplateID *uint          `json:"certificate_template_id"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`
	Instructor            Instructor     `gorm:"foreignKey:InstructorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Lessons               []Lesson       `gorm:"foreignKey:CourseID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"lessons,omitempty"`
}

// EffectivePrice applies the percentage discount and rounds to two decimals.
func (c Course) EffectivePrice() float64 {
	discount := math.Min(math.Max(c.Discount, 0), 100)
	price := c.Price * (1 - discount/100)
	return math.Round(price*100) / 100
}

// Lesson groups concepts within a course.
type Lesson struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CourseID  uint           `gorm:"not null;uniqueIndex:idx_lesson_course_order" json:"course_id"`
	Title     string         `gorm:"size:255;not null" json:"title"`
	Order     int            `gorm:"column:sort_order;not null;uniqueIndex:idx_lesson_course_order" json:"order"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Concepts  []Concept      `gorm:"foreignKey:LessonID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"concepts,omitempty"`
}

// Concept groups content items within a lesson.
type Concept struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	LessonID    uint            `gorm:"not null;uniqueIndex:idx_concept_lesson_order" json:"lesson_id"`
	Title       string          `gorm:"size:255;not null" json:"title"`
	Description string          `gorm:"type:text" json:"description"`
	Order       int             `gorm:"column:sort_order;not null;uniqueIndex:idx_concept_lesson_order" json:"order"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
	Contents    []LessonContent `gorm:"foreignKey:ConceptID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"contents,omitempty"`
}

// LessonContent is a consumable leaf of the curriculum tree.
type LessonContent struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ConceptID   uint           `gorm:"not null;uniqueIndex:idx_content_concept_order" json:"concept_id"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	ContentType string         `gorm:"size:16;not null" json:"content_type"`
	VideoURL    string         `gorm:"size:512" json:"video_url"`
	PDFURL      string         `gorm:"column:pdf_url;size:512" json:"pdf_url"`
	TextContent string         `gorm:"type:text" json:"text_content"`
	Captions    string         `gorm:"type:text" json:"captions"`
	Duration    int            `gorm:"not null;default:0" json:"duration"`
	Order       int            `gorm:"column:sort_order;not null;uniqueIndex:idx_content_concept_order" json:"order"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Questions   []QuizQuestion `gorm:"foreignKey:LessonContentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// HasVideo reports whether the item is video-bearing.
func (c LessonContent) HasVideo() bool {
	return strings.TrimSpace(c.VideoURL) != ""
}

// SupportsModality reports whether a completion mark for the modality makes sense.
func (c LessonContent) SupportsModality(modality string) bool {
	switch modality {
	case ContentTypeVideo:
		return c.HasVideo()
	case ContentTypePDF, ContentTypeText:
		return true
	default:
		return false
	}
}

// Enrollment grants a student access to a course.
type Enrollment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentID uint      `gorm:"not null;uniqueIndex:idx_enrollment_student_course" json:"student_id"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_enrollment_student_course" json:"course_id"`
	Source    string    `gorm:"size:16;not null" json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Enrollment sources.
const (
	EnrollmentSourceFree    = "free"
	EnrollmentSourcePayment = "payment"
)
