package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// StudentRepository resolves learner profiles.
type StudentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Student, error)
	GetByUserID(ctx context.Context, userID uint) (models.Student, error)
	Upsert(ctx context.Context, student *models.Student) error
}

// InstructorRepository resolves instructor profiles.
type InstructorRepository interface {
	GetByID(ctx context.Context, id uint) (models.Instructor, error)
	GetByUserID(ctx context.Context, userID uint) (models.Instructor, error)
	Upsert(ctx context.Context, instructor *models.Instructor) error
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository creates a GORM backed student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) GetByID(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (r *studentRepository) GetByUserID(ctx context.Context, userID uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&student).Error; err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (r *studentRepository) Upsert(ctx context.Context, student *models.Student) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "first_name", "last_name", "email", "updated_at"}),
	}).Create(student).Error
	if err != nil {
		return err
	}
	stored, err := r.GetByUserID(ctx, student.UserID)
	if err != nil {
		return err
	}
	*student = stored
	return nil
}

type instructorRepository struct {
	db *gorm.DB
}

// NewInstructorRepository creates a GORM backed instructor repository.
func NewInstructorRepository(db *gorm.DB) InstructorRepository {
	return &instructorRepository{db: db}
}

func (r *instructorRepository) GetByID(ctx context.Context, id uint) (models.Instructor, error) {
	var instructor models.Instructor
	if err := r.db.WithContext(ctx).First(&instructor, id).Error; err != nil {
		return models.Instructor{}, err
	}
	return instructor, nil
}

func (r *instructorRepository) GetByUserID(ctx context.Context, userID uint) (models.Instructor, error) {
	var instructor models.Instructor
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&instructor).Error; err != nil {
		return models.Instructor{}, err
	}
	return instructor, nil
}

func (r *instructorRepository) Upsert(ctx context.Context, instructor *models.Instructor) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "first_name", "last_name", "email", "bio", "updated_at"}),
	}).Create(instructor).Error
	if err != nil {
		return err
	}
	stored, err := r.GetByUserID(ctx, instructor.UserID)
	if err != nil {
		return err
	}
	*instructor = stored
	return nil
}
