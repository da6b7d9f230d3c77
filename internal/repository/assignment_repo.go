package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// AssignmentRepository defines persistence operations for course assignments and their submissions.
type AssignmentRepository interface {
	CreateBatch(ctx context.Context, assignments []models.Assignment) error
	ListByCourse(ctx context.Context, courseID uint) ([]models.Assignment, error)
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	Delete(ctx context.Context, courseID, id uint) error
	DeleteByCourse(ctx context.Context, courseID uint) (int64, error)
	UpsertSubmissions(ctx context.Context, submissions []models.AssignmentSubmission) error
	ListSubmissions(ctx context.Context, studentID, courseID uint) ([]models.AssignmentSubmission, error)
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) CreateBatch(ctx context.Context, assignments []models.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&assignments).Error
}

func (r *assignmentRepository) ListByCourse(ctx context.Context, courseID uint) ([]models.Assignment, error) {
	var assignments []models.Assignment
	if err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("id ASC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}
	return assignment, nil
}

func (r *assignmentRepository) Delete(ctx context.Context, courseID, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND course_id = ?", id, courseID).Delete(&models.Assignment{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("assignment_id = ?", id).Delete(&models.AssignmentSubmission{}).Error
	})
}

func (r *assignmentRepository) DeleteByCourse(ctx context.Context, courseID uint) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := tx.Model(&models.Assignment{}).Select("id").Where("course_id = ?", courseID)
		if err := tx.Where("assignment_id IN (?)", ids).Delete(&models.AssignmentSubmission{}).Error; err != nil {
			return err
		}
		result := tx.Where("course_id = ?", courseID).Delete(&models.Assignment{})
		deleted = result.RowsAffected
		return result.Error
	})
	return deleted, err
}

// UpsertSubmissions replaces the student's previous grade per assignment; no history is kept.
func (r *assignmentRepository) UpsertSubmissions(ctx context.Context, submissions []models.AssignmentSubmission) error {
	if len(submissions) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "assignment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"submitted_answer", "is_correct", "score", "pass_status", "submitted_at"}),
		}).Create(&submissions).Error
	})
}

func (r *assignmentRepository) ListSubmissions(ctx context.Context, studentID, courseID uint) ([]models.AssignmentSubmission, error) {
	var submissions []models.AssignmentSubmission
	if err := r.db.WithContext(ctx).
		Joins("JOIN assignments ON assignments.id = assignment_submissions.assignment_id").
		Where("assignment_submissions.student_id = ? AND assignments.course_id = ?", studentID, courseID).
		Order("assignment_submissions.assignment_id ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}
