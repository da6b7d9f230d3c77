package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
)

// QuizService manages lesson quizzes and content-level practice questions.
type QuizService interface {
	CreateLessonQuiz(ctx context.Context, principal Principal, lessonID uint, req dto.QuizCreateRequest) (dto.QuizResponse, error)
	LessonQuiz(ctx context.Context, principal Principal, lessonID uint) (dto.QuizResponse, error)
	SubmitPractice(ctx context.Context, principal Principal, lessonID uint, req dto.QuizSubmitRequest) (dto.QuizResultResponse, error)
	AddContentQuestion(ctx context.Context, principal Principal, contentID uint, req dto.QuestionInput) (dto.QuestionView, error)
}

type quizService struct {
	repos    Repositories
	guard    accessGuard
	selector *OptionSelector
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewQuizService constructs the quiz service.
func NewQuizService(repos Repositories, selector *OptionSelector, validate *validator.Validate, logger zerolog.Logger) QuizService {
	if selector == nil {
		selector = NewOptionSelector(nil)
	}
	return &quizService{
		repos:    repos,
		guard:    repos.guard(),
		selector: selector,
		validate: validate,
		logger:   logger.With().Str("component", "quiz_service").Logger(),
	}
}

func (s *quizService) CreateLessonQuiz(ctx context.Context, principal Principal, lessonID uint, req dto.QuizCreateRequest) (dto.QuizResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.QuizResponse{}, err
	}

	lesson, err := s.lesson(ctx, lessonID)
	if err != nil {
		return dto.QuizResponse{}, err
	}
	if _, err := s.guard.ownedCourse(ctx, principal, lesson.CourseID); err != nil {
		return dto.QuizResponse{}, err
	}

	if _, err := s.repos.Quizzes.GetByLesson(ctx, lesson.ID); err == nil {
		return dto.QuizResponse{}, ErrQuizExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.QuizResponse{}, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = lesson.Title + " quiz"
	}
	quiz := models.Quiz{LessonID: lesson.ID, Title: title}
	for _, input := range req.Questions {
		question, err := s.buildQuestion(ctx, input, lesson.ID)
		if err != nil {
			return dto.QuizResponse{}, err
		}
		quiz.Questions = append(quiz.Questions, question)
	}

	if err := s.repos.Quizzes.CreateQuiz(ctx, &quiz); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.QuizResponse{}, ErrQuizExists
		}
		return dto.QuizResponse{}, err
	}

	s.logger.Info().Uint("lesson_id", lesson.ID).Uint("quiz_id", quiz.ID).Int("questions", len(quiz.Questions)).Msg("lesson quiz created")

	response := dto.QuizResponse{ID: quiz.ID, LessonID: lesson.ID, Title: quiz.Title, Questions: make([]dto.QuestionView, 0, len(quiz.Questions))}
	for _, question := range quiz.Questions {
		response.Questions = append(response.Questions, dto.QuestionView{
			ID:           question.ID,
			QuestionText: question.QuestionText,
			Options:      question.OptionList(),
			ConceptID:    question.ConceptID,
		})
	}
	return response, nil
}

// LessonQuiz renders the quiz with selected, shuffled options and no answers.
func (s *quizService) LessonQuiz(ctx context.Context, principal Principal, lessonID uint) (dto.QuizResponse, error) {
	quiz, err := s.readableQuiz(ctx, principal, lessonID)
	if err != nil {
		return dto.QuizResponse{}, err
	}

	response := dto.QuizResponse{ID: quiz.ID, LessonID: quiz.LessonID, Title: quiz.Title, Questions: make([]dto.QuestionView, 0, len(quiz.Questions))}
	for _, question := range quiz.Questions {
		response.Questions = append(response.Questions, renderQuestion(s.selector, question))
	}
	return response, nil
}

// SubmitPractice grades a practice attempt without storing it and suggests the
// concepts behind missed questions.
func (s *quizService) SubmitPractice(ctx context.Context, principal Principal, lessonID uint, req dto.QuizSubmitRequest) (dto.QuizResultResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.QuizResultResponse{}, err
	}

	quiz, err := s.readableQuiz(ctx, principal, lessonID)
	if err != nil {
		return dto.QuizResultResponse{}, err
	}

	answers := make(map[uint]string, len(req.Answers))
	for _, answer := range req.Answers {
		answers[answer.QuestionID] = answer.Answer
	}

	result := dto.QuizResultResponse{
		LessonID:     quiz.LessonID,
		Total:        len(quiz.Questions),
		WrongAnswers: []dto.WrongAnswer{},
		Suggestions:  []dto.RevisionSuggestion{},
	}
	suggested := map[uint]struct{}{}
	for _, question := range quiz.Questions {
		submitted := strings.TrimSpace(answers[question.ID])
		if gradeAnswer(submitted, question.CorrectAnswer) {
			result.Correct++
			continue
		}

		result.WrongAnswers = append(result.WrongAnswers, dto.WrongAnswer{
			QuestionID:      question.ID,
			QuestionText:    question.QuestionText,
			SubmittedAnswer: submitted,
			CorrectAnswer:   question.CorrectAnswer,
		})

		if question.ConceptID == nil {
			continue
		}
		if _, ok := suggested[*question.ConceptID]; ok {
			continue
		}
		suggested[*question.ConceptID] = struct{}{}
		concept, _, err := s.repos.Curriculum.GetConcept(ctx, *question.ConceptID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return dto.QuizResultResponse{}, err
		}
		result.Suggestions = append(result.Suggestions, dto.RevisionSuggestion{ConceptID: concept.ID, Title: concept.Title})
	}

	if result.Total > 0 {
		result.Score = math.Round(float64(result.Correct)/float64(result.Total)*10000) / 100
	}
	return result, nil
}

func (s *quizService) AddContentQuestion(ctx context.Context, principal Principal, contentID uint, req dto.QuestionInput) (dto.QuestionView, error) {
	if err := s.validate.Struct(req); err != nil {
		return dto.QuestionView{}, err
	}

	content, courseID, err := s.repos.Curriculum.GetContent(ctx, contentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionView{}, ErrContentNotFound
		}
		return dto.QuestionView{}, err
	}
	if _, err := s.guard.ownedCourse(ctx, principal, courseID); err != nil {
		return dto.QuestionView{}, err
	}

	// A referenced concept must sit in the same lesson as the content itself.
	home, _, err := s.repos.Curriculum.GetConcept(ctx, content.ConceptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionView{}, ErrContentNotFound
		}
		return dto.QuestionView{}, err
	}
	if req.ConceptID == nil {
		req.ConceptID = &home.ID
	}

	question, err := s.buildQuestion(ctx, req, home.LessonID)
	if err != nil {
		return dto.QuestionView{}, err
	}
	question.LessonContentID = &content.ID

	if err := s.repos.Quizzes.CreateQuestion(ctx, &question); err != nil {
		return dto.QuestionView{}, err
	}

	s.logger.Info().Uint("content_id", content.ID).Uint("question_id", question.ID).Msg("content question created")
	return dto.QuestionView{
		ID:           question.ID,
		QuestionText: question.QuestionText,
		Options:      question.OptionList(),
		ConceptID:    question.ConceptID,
	}, nil
}

// buildQuestion validates the input; a referenced concept must live in lessonID.
func (s *quizService) buildQuestion(ctx context.Context, input dto.QuestionInput, lessonID uint) (models.QuizQuestion, error) {
	correct := strings.TrimSpace(input.CorrectAnswer)
	if correct == "" {
		return models.QuizQuestion{}, ErrInvalidQuestion
	}

	question := models.QuizQuestion{
		QuestionText:  strings.TrimSpace(input.QuestionText),
		CorrectAnswer: correct,
	}
	question.SetOptions(input.Options)

	if input.ConceptID != nil {
		concept, _, err := s.repos.Curriculum.GetConcept(ctx, *input.ConceptID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.QuizQuestion{}, ErrConceptNotFound
			}
			return models.QuizQuestion{}, err
		}
		if concept.LessonID != lessonID {
			return models.QuizQuestion{}, ErrConceptNotFound
		}
		question.ConceptID = &concept.ID
	}
	return question, nil
}

func (s *quizService) readableQuiz(ctx context.Context, principal Principal, lessonID uint) (models.Quiz, error) {
	lesson, err := s.lesson(ctx, lessonID)
	if err != nil {
		return models.Quiz{}, err
	}
	if _, err := s.guard.reader(ctx, principal, lesson.CourseID); err != nil {
		return models.Quiz{}, err
	}

	quiz, err := s.repos.Quizzes.GetByLesson(ctx, lesson.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Quiz{}, ErrQuizNotFound
		}
		return models.Quiz{}, err
	}
	return quiz, nil
}

func (s *quizService) lesson(ctx context.Context, id uint) (models.Lesson, error) {
	lesson, err := s.repos.Curriculum.GetLesson(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Lesson{}, ErrLessonNotFound
		}
		return models.Lesson{}, err
	}
	return lesson, nil
}
