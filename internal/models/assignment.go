package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Submission pass labels.
const (
	PassStatusPass = "Pass"
	PassStatusFail = "Fail"
)

// Assignment is a course-level question graded against a stored answer.
type Assignment struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CourseID     uint           `gorm:"not null;index" json:"course_id"`
	InstructorID uint           `gorm:"not null" json:"instructor_id"`
	Question     string         `gorm:"type:text;not null" json:"question"`
	Options      datatypes.JSON `gorm:"type:json" json:"-"`
	Answer       string         `gorm:"type:text;not null" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// SetOptions serializes the option list into the JSON storage column.
func (a *Assignment) SetOptions(options []string) {
	a.Options = encodeOptions(options)
}

// OptionList deserializes the stored options.
func (a Assignment) OptionList() []string {
	return decodeOptions(a.Options)
}

// AssignmentSubmission is the latest graded answer of a student for an assignment.
type AssignmentSubmission struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	StudentID       uint       `gorm:"not null;uniqueIndex:idx_submission_student_assignment" json:"student_id"`
	AssignmentID    uint       `gorm:"not null;uniqueIndex:idx_submission_student_assignment;index" json:"assignment_id"`
	SubmittedAnswer string     `gorm:"type:text" json:"submitted_answer"`
	IsCorrect       bool       `gorm:"not null;default:false" json:"is_correct"`
	Score           float64    `gorm:"not null;default:0" json:"score"`
	PassStatus      string     `gorm:"size:8;not null" json:"pass_status"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	Assignment      Assignment `gorm:"foreignKey:AssignmentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

func encodeOptions(options []string) datatypes.JSON {
	if options == nil {
		options = []string{}
	}
	data, err := json.Marshal(options)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(data)
}

func decodeOptions(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}

	var options []string
	if err := json.Unmarshal(raw, &options); err != nil {
		return nil
	}
	return options
}
