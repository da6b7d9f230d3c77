package dto

import (
	"time"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// AssignmentInput is one question in a bulk create request.
type AssignmentInput struct {
	Question string   `json:"question" validate:"required"`
	Options  []string `json:"options" validate:"omitempty,dive,max=500"`
	Answer   string   `json:"answer" validate:"required"`
}

// AssignmentCreateRequest creates several assignments for a course at once.
type AssignmentCreateRequest struct {
	Assignments []AssignmentInput `json:"assignments" validate:"required,min=1,max=200,dive"`
}

// AnswerInput is one submitted answer.
type AnswerInput struct {
	AssignmentID uint   `json:"assignment_id" validate:"required"`
	Answer       string `json:"answer"`
}

// AssignmentSubmitRequest carries a student's answers for a course.
type AssignmentSubmitRequest struct {
	Answers []AnswerInput `json:"answers" validate:"required,dive"`
}

// AssignmentResponse is the serialized assignment. Answer is only set for the owner.
type AssignmentResponse struct {
	ID        uint      `json:"id"`
	CourseID  uint      `json:"course_id"`
	Question  string    `json:"question"`
	Options   []string  `json:"options"`
	Answer    string    `json:"answer,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AssignmentOutcome is the graded state of one assignment.
type AssignmentOutcome struct {
	AssignmentID    uint    `json:"assignment_id"`
	SubmittedAnswer string  `json:"submitted_answer"`
	Attempted       bool    `json:"attempted"`
	IsCorrect       bool    `json:"is_correct"`
	Score           float64 `json:"score"`
}

// AssignmentResultResponse is the aggregate over all assignments of a course.
type AssignmentResultResponse struct {
	CourseID         uint                `json:"course_id"`
	TotalAssignments int                 `json:"total_assignments"`
	Attempted        int                 `json:"attempted"`
	CorrectAnswers   int                 `json:"correct_answers"`
	Score            float64             `json:"score"`
	Passed           bool                `json:"passed"`
	PassStatus       string              `json:"pass_status"`
	Results          []AssignmentOutcome `json:"results"`
}

// NewAssignmentResponse converts a model into a DTO. Options are rendered by the caller.
func NewAssignmentResponse(model models.Assignment, options []string, withAnswer bool) AssignmentResponse {
	response := AssignmentResponse{
		ID:        model.ID,
		CourseID:  model.CourseID,
		Question:  model.Question,
		Options:   options,
		CreatedAt: model.CreatedAt,
	}
	if response.Options == nil {
		response.Options = []string{}
	}
	if withAnswer {
		response.Answer = model.Answer
	}
	return response
}
