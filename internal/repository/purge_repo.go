package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// PurgeReport counts the rows hard-deleted in one sweep, per tree level.
type PurgeReport struct {
	Courses  int
	Lessons  int
	Concepts int
	Contents int
	Retained int
}

// Total returns the number of purged curriculum nodes.
func (p PurgeReport) Total() int {
	return p.Courses + p.Lessons + p.Concepts + p.Contents
}

// PurgeRepository hard-deletes curriculum nodes whose soft-delete grace period elapsed.
type PurgeRepository interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (PurgeReport, error)
}

type purgeRepository struct {
	db *gorm.DB
}

// NewPurgeRepository instantiates a GORM-backed purge repository.
func NewPurgeRepository(db *gorm.DB) PurgeRepository {
	return &purgeRepository{db: db}
}

// PurgeExpired removes expired nodes top-down together with their descendants and the
// learner records hanging off them. Courses that issued certificates or took payments
// are retained.
func (r *purgeRepository) PurgeExpired(ctx context.Context, cutoff time.Time) (PurgeReport, error) {
	var report PurgeReport
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tx = tx.Unscoped().Session(&gorm.Session{})

		var courseIDs []uint
		if err := tx.Model(&models.Course{}).
			Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
			Pluck("id", &courseIDs).Error; err != nil {
			return err
		}

		purgeable := make([]uint, 0, len(courseIDs))
		for _, id := range courseIDs {
			retained, err := courseHasPermanentRecords(tx, id)
			if err != nil {
				return err
			}
			if retained {
				report.Retained++
				continue
			}
			purgeable = append(purgeable, id)
		}
		if err := purgeCourses(tx, purgeable, &report); err != nil {
			return err
		}

		var lessonIDs []uint
		if err := tx.Model(&models.Lesson{}).
			Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
			Pluck("id", &lessonIDs).Error; err != nil {
			return err
		}
		if err := purgeLessons(tx, lessonIDs, &report); err != nil {
			return err
		}

		var conceptIDs []uint
		if err := tx.Model(&models.Concept{}).
			Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
			Pluck("id", &conceptIDs).Error; err != nil {
			return err
		}
		if err := purgeConcepts(tx, conceptIDs, &report); err != nil {
			return err
		}

		var contentIDs []uint
		if err := tx.Model(&models.LessonContent{}).
			Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
			Pluck("id", &contentIDs).Error; err != nil {
			return err
		}
		return purgeContents(tx, contentIDs, &report)
	})
	if err != nil {
		return PurgeReport{}, err
	}
	return report, nil
}

func courseHasPermanentRecords(tx *gorm.DB, courseID uint) (bool, error) {
	var certificates int64
	if err := tx.Model(&models.Certificate{}).Where("course_id = ?", courseID).Count(&certificates).Error; err != nil {
		return false, err
	}
	if certificates > 0 {
		return true, nil
	}

	var paid int64
	if err := tx.Model(&models.CoursePayment{}).
		Where("course_id = ? AND is_paid = ?", courseID, true).
		Count(&paid).Error; err != nil {
		return false, err
	}
	return paid > 0, nil
}

func purgeCourses(tx *gorm.DB, ids []uint, report *PurgeReport) error {
	if len(ids) == 0 {
		return nil
	}

	var lessonIDs []uint
	if err := tx.Model(&models.Lesson{}).Where("course_id IN ?", ids).Pluck("id", &lessonIDs).Error; err != nil {
		return err
	}
	if err := purgeLessons(tx, lessonIDs, report); err != nil {
		return err
	}

	assignmentIDs := tx.Model(&models.Assignment{}).Select("id").Where("course_id IN ?", ids)
	if err := tx.Where("assignment_id IN (?)", assignmentIDs).Delete(&models.AssignmentSubmission{}).Error; err != nil {
		return err
	}
	for _, model := range []interface{}{&models.Assignment{}, &models.StudentProgress{}, &models.Enrollment{}, &models.CoursePayment{}} {
		if err := tx.Where("course_id IN ?", ids).Delete(model).Error; err != nil {
			return err
		}
	}

	result := tx.Where("id IN ?", ids).Delete(&models.Course{})
	report.Courses += int(result.RowsAffected)
	return result.Error
}

func purgeLessons(tx *gorm.DB, ids []uint, report *PurgeReport) error {
	if len(ids) == 0 {
		return nil
	}

	var conceptIDs []uint
	if err := tx.Model(&models.Concept{}).Where("lesson_id IN ?", ids).Pluck("id", &conceptIDs).Error; err != nil {
		return err
	}
	if err := purgeConcepts(tx, conceptIDs, report); err != nil {
		return err
	}

	quizIDs := tx.Model(&models.Quiz{}).Select("id").Where("lesson_id IN ?", ids)
	if err := tx.Where("quiz_id IN (?)", quizIDs).Delete(&models.QuizQuestion{}).Error; err != nil {
		return err
	}
	if err := tx.Where("lesson_id IN ?", ids).Delete(&models.Quiz{}).Error; err != nil {
		return err
	}

	result := tx.Where("id IN ?", ids).Delete(&models.Lesson{})
	report.Lessons += int(result.RowsAffected)
	return result.Error
}

func purgeConcepts(tx *gorm.DB, ids []uint, report *PurgeReport) error {
	if len(ids) == 0 {
		return nil
	}

	var contentIDs []uint
	if err := tx.Model(&models.LessonContent{}).Where("concept_id IN ?", ids).Pluck("id", &contentIDs).Error; err != nil {
		return err
	}
	if err := purgeContents(tx, contentIDs, report); err != nil {
		return err
	}

	if err := tx.Model(&models.QuizQuestion{}).
		Where("concept_id IN ?", ids).
		Update("concept_id", nil).Error; err != nil {
		return err
	}

	result := tx.Where("id IN ?", ids).Delete(&models.Concept{})
	report.Concepts += int(result.RowsAffected)
	return result.Error
}

func purgeContents(tx *gorm.DB, ids []uint, report *PurgeReport) error {
	if len(ids) == 0 {
		return nil
	}

	if err := tx.Where("content_id IN ?", ids).Delete(&models.ContentCompletion{}).Error; err != nil {
		return err
	}
	if err := tx.Where("lesson_content_id IN ?", ids).Delete(&models.QuizQuestion{}).Error; err != nil {
		return err
	}

	result := tx.Where("id IN ?", ids).Delete(&models.LessonContent{})
	report.Contents += int(result.RowsAffected)
	return result.Error
}
