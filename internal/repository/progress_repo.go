package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// CompletionInput describes one modality completion event.
type CompletionInput struct {
	StudentID uint
	CourseID  uint
	ContentID uint
	Column    string
	VideoOnly bool
	Policy    string
	At        time.Time
}

// ProgressRepository stores completion marks and the materialised course progress.
type ProgressRepository interface {
	RecordCompletion(ctx context.Context, input CompletionInput) (models.StudentProgress, error)
	Recompute(ctx context.Context, studentID, courseID uint, videoOnly bool, policy string, at time.Time) (models.StudentProgress, bool, error)
	Get(ctx context.Context, studentID, courseID uint) (models.StudentProgress, error)
	CompletedContentIDs(ctx context.Context, studentID, courseID uint) ([]uint, error)
	GetCompletion(ctx context.Context, studentID, contentID uint) (models.ContentCompletion, error)
}

type progressRepository struct {
	db *gorm.DB
}

// NewProgressRepository instantiates a GORM-backed progress repository.
func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

// RecordCompletion upserts the mark, ensures the progress row and recomputes it in
// a single transaction. Only the named modality flag is written on conflict.
func (r *progressRepository) RecordCompletion(ctx context.Context, input CompletionInput) (models.StudentProgress, error) {
	var progress models.StudentProgress
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mark := models.ContentCompletion{
			StudentID: input.StudentID,
			ContentID: input.ContentID,
			CreatedAt: input.At,
			UpdatedAt: input.At,
		}
		switch input.Column {
		case "video_completed":
			mark.VideoCompleted = true
		case "pdf_completed":
			mark.PDFCompleted = true
		case "text_completed":
			mark.TextCompleted = true
		default:
			return errors.New("unknown completion column")
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "student_id"}, {Name: "content_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				input.Column: true,
				"updated_at": input.At,
			}),
		}).Create(&mark).Error; err != nil {
			return err
		}

		seed := models.StudentProgress{
			StudentID:   input.StudentID,
			CourseID:    input.CourseID,
			Denominator: input.Policy,
			RefreshedAt: input.At,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).Create(&seed).Error; err != nil {
			return err
		}

		recomputed, err := recompute(tx, input.StudentID, input.CourseID, input.VideoOnly, input.Policy, input.At)
		if err != nil {
			return err
		}
		progress = recomputed
		return nil
	})
	if err != nil {
		return models.StudentProgress{}, err
	}
	return progress, nil
}

// Recompute refreshes an existing progress row. The boolean is false when the student
// has no completion events in the course yet.
func (r *progressRepository) Recompute(ctx context.Context, studentID, courseID uint, videoOnly bool, policy string, at time.Time) (models.StudentProgress, bool, error) {
	var progress models.StudentProgress
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recomputed, err := recompute(tx, studentID, courseID, videoOnly, policy, at)
		if err != nil {
			return err
		}
		progress = recomputed
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.StudentProgress{}, false, nil
	}
	if err != nil {
		return models.StudentProgress{}, false, err
	}
	return progress, true, nil
}

func recompute(tx *gorm.DB, studentID, courseID uint, videoOnly bool, policy string, at time.Time) (models.StudentProgress, error) {
	var total int64
	if err := tx.Model(&models.LessonContent{}).
		Scopes(countedContents(courseID, videoOnly)).
		Count(&total).Error; err != nil {
		return models.StudentProgress{}, err
	}

	var completed int64
	if err := tx.Model(&models.LessonContent{}).
		Scopes(countedContents(courseID, videoOnly), completedBy(studentID)).
		Count(&completed).Error; err != nil {
		return models.StudentProgress{}, err
	}

	percentage := 0.0
	if total > 0 {
		percentage = float64(completed) / float64(total) * 100
	}

	result := tx.Model(&models.StudentProgress{}).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Updates(map[string]interface{}{
			"completed_count":     completed,
			"total_count":         total,
			"progress_percentage": percentage,
			"denominator":         policy,
			"refreshed_at":        at,
			"updated_at":          at,
		})
	if result.Error != nil {
		return models.StudentProgress{}, result.Error
	}
	if result.RowsAffected == 0 {
		return models.StudentProgress{}, gorm.ErrRecordNotFound
	}

	var progress models.StudentProgress
	if err := tx.Where("student_id = ? AND course_id = ?", studentID, courseID).Take(&progress).Error; err != nil {
		return models.StudentProgress{}, err
	}
	return progress, nil
}

func completedBy(studentID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Joins(
			"JOIN content_completions ON content_completions.content_id = lesson_contents.id AND content_completions.student_id = ? "+
				"AND (content_completions.video_completed = ? OR content_completions.pdf_completed = ? OR content_completions.text_completed = ?)",
			studentID, true, true, true,
		)
	}
}

func (r *progressRepository) Get(ctx context.Context, studentID, courseID uint) (models.StudentProgress, error) {
	var progress models.StudentProgress
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Take(&progress).Error; err != nil {
		return models.StudentProgress{}, err
	}
	return progress, nil
}

// CompletedContentIDs lists every visible content of the course the student has completed
// in any modality, independent of the denominator policy.
func (r *progressRepository) CompletedContentIDs(ctx context.Context, studentID, courseID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.LessonContent{}).
		Scopes(countedContents(courseID, false), completedBy(studentID)).
		Order("lesson_contents.id ASC").
		Pluck("lesson_contents.id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *progressRepository) GetCompletion(ctx context.Context, studentID, contentID uint) (models.ContentCompletion, error) {
	var mark models.ContentCompletion
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND content_id = ?", studentID, contentID).
		Take(&mark).Error; err != nil {
		return models.ContentCompletion{}, err
	}
	return mark, nil
}
