package models

import (
	"time"

	"gorm.io/datatypes"
)

// Quiz is the practice quiz attached to a lesson.
type Quiz struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	LessonID  uint           `gorm:"not null;uniqueIndex" json:"lesson_id"`
	Title     string         `gorm:"size:255" json:"title"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Questions []QuizQuestion `gorm:"foreignKey:QuizID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions,omitempty"`
}

// QuizQuestion belongs to either a lesson quiz or directly to a content item.
type QuizQuestion struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	QuizID          *uint          `gorm:"index" json:"quiz_id"`
	LessonContentID *uint          `gorm:"index" json:"lesson_content_id"`
	ConceptID       *uint          `gorm:"index" json:"concept_id"`
	QuestionText    string         `gorm:"type:text;not null" json:"question_text"`
	Options         datatypes.JSON `gorm:"type:json" json:"-"`
	CorrectAnswer   string         `gorm:"type:text;not null" json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
}

// SetOptions serializes the option list into the JSON storage column.
func (q *QuizQuestion) SetOptions(options []string) {
	q.Options = encodeOptions(options)
}

// OptionList deserializes the stored options.
func (q QuizQuestion) OptionList() []string {
	return decodeOptions(q.Options)
}
