package dto

// QuestionInput describes a multiple-choice question.
type QuestionInput struct {
	QuestionText  string   `json:"question_text" validate:"required"`
	Options       []string `json:"options" validate:"required,min=1,dive,max=500"`
	CorrectAnswer string   `json:"correct_answer" validate:"required"`
	ConceptID     *uint    `json:"concept_id" validate:"omitempty,gt=0"`
}

// QuizCreateRequest creates the practice quiz of a lesson.
type QuizCreateRequest struct {
	Title     string          `json:"title" validate:"omitempty,max=255"`
	Questions []QuestionInput `json:"questions" validate:"required,min=1,dive"`
}

// QuizAnswerInput is one practice answer.
type QuizAnswerInput struct {
	QuestionID uint   `json:"question_id" validate:"required"`
	Answer     string `json:"answer"`
}

// QuizSubmitRequest carries practice answers for a lesson quiz.
type QuizSubmitRequest struct {
	Answers []QuizAnswerInput `json:"answers" validate:"required,dive"`
}

// QuestionView is a question as shown to a learner: options selected and shuffled,
// correct answer withheld.
type QuestionView struct {
	ID           uint     `json:"id"`
	QuestionText string   `json:"question_text"`
	Options      []string `json:"options"`
	ConceptID    *uint    `json:"concept_id,omitempty"`
}

// QuizResponse is a rendered lesson quiz.
type QuizResponse struct {
	ID        uint           `json:"id"`
	LessonID  uint           `json:"lesson_id"`
	Title     string         `json:"title"`
	Questions []QuestionView `json:"questions"`
}

// WrongAnswer reports one missed practice question.
type WrongAnswer struct {
	QuestionID      uint   `json:"question_id"`
	QuestionText    string `json:"question_text"`
	SubmittedAnswer string `json:"submitted_answer"`
	CorrectAnswer   string `json:"correct_answer"`
}

// RevisionSuggestion points a learner at a concept worth revisiting.
type RevisionSuggestion struct {
	ConceptID uint   `json:"concept_id"`
	Title     string `json:"title"`
}

// QuizResultResponse is the outcome of a practice attempt. Practice attempts are not stored.
type QuizResultResponse struct {
	LessonID     uint                 `json:"lesson_id"`
	Total        int                  `json:"total"`
	Correct      int                  `json:"correct"`
	Score        float64              `json:"score"`
	WrongAnswers []WrongAnswer        `json:"wrong_answers"`
	Suggestions  []RevisionSuggestion `json:"suggestions"`
}
