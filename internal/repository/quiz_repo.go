package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// QuizRepository persists lesson quizzes and content-level questions.
type QuizRepository interface {
	CreateQuiz(ctx context.Context, quiz *models.Quiz) error
	GetByLesson(ctx context.Context, lessonID uint) (models.Quiz, error)
	CreateQuestion(ctx context.Context, question *models.QuizQuestion) error
	ListByContent(ctx context.Context, contentID uint) ([]models.QuizQuestion, error)
}

type quizRepository struct {
	db *gorm.DB
}

// NewQuizRepository instantiates a GORM-backed quiz repository.
func NewQuizRepository(db *gorm.DB) QuizRepository {
	return &quizRepository{db: db}
}

func (r *quizRepository) CreateQuiz(ctx context.Context, quiz *models.Quiz) error {
	return r.db.WithContext(ctx).Create(quiz).Error
}

func (r *quizRepository) GetByLesson(ctx context.Context, lessonID uint) (models.Quiz, error) {
	var quiz models.Quiz
	if err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("lesson_id = ?", lessonID).
		Take(&quiz).Error; err != nil {
		return models.Quiz{}, err
	}
	return quiz, nil
}

func (r *quizRepository) CreateQuestion(ctx context.Context, question *models.QuizQuestion) error {
	return r.db.WithContext(ctx).Create(question).Error
}

func (r *quizRepository) ListByContent(ctx context.Context, contentID uint) ([]models.QuizQuestion, error) {
	var questions []models.QuizQuestion
	if err := r.db.WithContext(ctx).
		Where("lesson_content_id = ?", contentID).
		Order("id ASC").
		Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}
