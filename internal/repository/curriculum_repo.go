package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// NodeKind names a level of the curriculum tree.
type NodeKind string

// Curriculum levels.
const (
	NodeCourse  NodeKind = "course"
	NodeLesson  NodeKind = "lesson"
	NodeConcept NodeKind = "concept"
	NodeContent NodeKind = "content"
)

// orderAttempts bounds retries when a concurrent insert wins the same sort order.
const orderAttempts = 3

// NodeRef locates a curriculum node, including soft-deleted ones.
type NodeRef struct {
	Kind      NodeKind
	ID        uint
	CourseID  uint
	DeletedAt *time.Time
}

// CurriculumRepository persists the course, lesson, concept and content tree.
type CurriculumRepository interface {
	CreateCourse(ctx context.Context, course *models.Course) error
	GetCourse(ctx context.Context, id uint) (models.Course, error)
	GetCourseUnscoped(ctx context.Context, id uint) (models.Course, error)
	ListCoursesByInstructor(ctx context.Context, instructorID uint) ([]models.Course, error)
	SetCertificateTemplate(ctx context.Context, courseID uint, templateID *uint) error
	CountCoursesUsingTemplate(ctx context.Context, templateID uint) (int64, error)

	CreateLesson(ctx context.Context, lesson *models.Lesson) error
	CreateConcept(ctx context.Context, concept *models.Concept) error
	CreateContent(ctx context.Context, content *models.LessonContent) error

	GetLesson(ctx context.Context, id uint) (models.Lesson, error)
	GetConcept(ctx context.Context, id uint) (models.Concept, uint, error)
	GetContent(ctx context.Context, id uint) (models.LessonContent, uint, error)

	ListLessons(ctx context.Context, courseID uint) ([]models.Lesson, error)
	ListConcepts(ctx context.Context, lessonID uint) ([]models.Concept, error)
	ListContents(ctx context.Context, conceptID uint) ([]models.LessonContent, error)
	Curriculum(ctx context.Context, courseID uint) (models.Course, error)

	Locate(ctx context.Context, kind NodeKind, id uint) (NodeRef, error)
	SoftDelete(ctx context.Context, kind NodeKind, id uint) error
	Restore(ctx context.Context, kind NodeKind, id uint) error
}

type curriculumRepository struct {
	db *gorm.DB
}

// NewCurriculumRepository instantiates a GORM-backed curriculum repository.
func NewCurriculumRepository(db *gorm.DB) CurriculumRepository {
	return &curriculumRepository{db: db}
}

func (r *curriculumRepository) CreateCourse(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

func (r *curriculumRepository) GetCourse(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *curriculumRepository) GetCourseUnscoped(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).Unscoped().First(&course, id).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *curriculumRepository) ListCoursesByInstructor(ctx context.Context, instructorID uint) ([]models.Course, error) {
	var courses []models.Course
	if err := r.db.WithContext(ctx).
		Where("instructor_id = ?", instructorID).
		Order("created_at DESC").
		Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *curriculumRepository) SetCertificateTemplate(ctx context.Context, courseID uint, templateID *uint) error {
	result := r.db.WithContext(ctx).Model(&models.Course{}).
		Where("id = ?", courseID).
		Update("certificate_template_id", templateID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *curriculumRepository) CountCoursesUsingTemplate(ctx context.Context, templateID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Course{}).
		Where("certificate_template_id = ?", templateID).
		Count(&total).Error
	return total, err
}

func (r *curriculumRepository) CreateLesson(ctx context.Context, lesson *models.Lesson) error {
	return r.insertOrdered(ctx, "courses", lesson.CourseID, &models.Lesson{}, "course_id", func(tx *gorm.DB, order int) error {
		lesson.ID = 0
		lesson.Order = order
		return tx.Create(lesson).Error
	})
}

func (r *curriculumRepository) CreateConcept(ctx context.Context, concept *models.Concept) error {
	return r.insertOrdered(ctx, "lessons", concept.LessonID, &models.Concept{}, "lesson_id", func(tx *gorm.DB, order int) error {
		concept.ID = 0
		concept.Order = order
		return tx.Create(concept).Error
	})
}

func (r *curriculumRepository) CreateContent(ctx context.Context, content *models.LessonContent) error {
	return r.insertOrdered(ctx, "concepts", content.ConceptID, &models.LessonContent{}, "concept_id", func(tx *gorm.DB, order int) error {
		content.ID = 0
		content.Order = order
		return tx.Create(content).Error
	})
}

// insertOrdered assigns max(sort_order)+1 under a row lock on the parent. Soft-deleted
// siblings keep their slot so a restore never collides. A unique violation means a
// concurrent writer won the slot; the insert is retried and the violation is returned
// once the attempts are exhausted.
func (r *curriculumRepository) insertOrdered(ctx context.Context, parentTable string, parentID uint, child interface{}, parentColumn string, insert func(tx *gorm.DB, order int) error) error {
	var err error
	for attempt := 0; attempt < orderAttempts; attempt++ {
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var parent struct{ ID uint }
			locked := tx.Table(parentTable).
				Clauses(clause.Locking{Strength: "UPDATE"}).
				Select("id").
				Where("id = ? AND deleted_at IS NULL", parentID).
				Scan(&parent)
			if locked.Error != nil {
				return locked.Error
			}
			if locked.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}

			var maxOrder int
			if err := tx.Unscoped().Model(child).
				Where(fmt.Sprintf("%s = ?", parentColumn), parentID).
				Select("COALESCE(MAX(sort_order), 0)").
				Scan(&maxOrder).Error; err != nil {
				return err
			}

			return insert(tx, maxOrder+1)
		})
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}
	return err
}

func (r *curriculumRepository) GetLesson(ctx context.Context, id uint) (models.Lesson, error) {
	var lesson models.Lesson
	if err := r.db.WithContext(ctx).Scopes(visibleLessons).
		Where("lessons.id = ?", id).
		Take(&lesson).Error; err != nil {
		return models.Lesson{}, err
	}
	return lesson, nil
}

func (r *curriculumRepository) GetConcept(ctx context.Context, id uint) (models.Concept, uint, error) {
	var concept models.Concept
	if err := r.db.WithContext(ctx).Scopes(visibleConcepts).
		Where("concepts.id = ?", id).
		Take(&concept).Error; err != nil {
		return models.Concept{}, 0, err
	}

	courseID, err := r.courseOf(ctx, "lessons.id = ?", concept.LessonID)
	if err != nil {
		return models.Concept{}, 0, err
	}
	return concept, courseID, nil
}

func (r *curriculumRepository) GetContent(ctx context.Context, id uint) (models.LessonContent, uint, error) {
	var content models.LessonContent
	if err := r.db.WithContext(ctx).Scopes(visibleContents).
		Where("lesson_contents.id = ?", id).
		Take(&content).Error; err != nil {
		return models.LessonContent{}, 0, err
	}

	var lessonIDs []uint
	if err := r.db.WithContext(ctx).Model(&models.Concept{}).
		Where("id = ?", content.ConceptID).
		Pluck("lesson_id", &lessonIDs).Error; err != nil {
		return models.LessonContent{}, 0, err
	}
	if len(lessonIDs) == 0 {
		return models.LessonContent{}, 0, gorm.ErrRecordNotFound
	}

	courseID, err := r.courseOf(ctx, "lessons.id = ?", lessonIDs[0])
	if err != nil {
		return models.LessonContent{}, 0, err
	}
	return content, courseID, nil
}

func (r *curriculumRepository) courseOf(ctx context.Context, condition string, args ...interface{}) (uint, error) {
	var courseIDs []uint
	if err := r.db.WithContext(ctx).Model(&models.Lesson{}).
		Where(condition, args...).
		Pluck("lessons.course_id", &courseIDs).Error; err != nil {
		return 0, err
	}
	if len(courseIDs) == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return courseIDs[0], nil
}

func (r *curriculumRepository) ListLessons(ctx context.Context, courseID uint) ([]models.Lesson, error) {
	var lessons []models.Lesson
	if err := r.db.WithContext(ctx).Scopes(visibleLessons).
		Where("lessons.course_id = ?", courseID).
		Order("lessons.sort_order ASC").
		Find(&lessons).Error; err != nil {
		return nil, err
	}
	return lessons, nil
}

func (r *curriculumRepository) ListConcepts(ctx context.Context, lessonID uint) ([]models.Concept, error) {
	var concepts []models.Concept
	if err := r.db.WithContext(ctx).Scopes(visibleConcepts).
		Where("concepts.lesson_id = ?", lessonID).
		Order("concepts.sort_order ASC").
		Find(&concepts).Error; err != nil {
		return nil, err
	}
	return concepts, nil
}

func (r *curriculumRepository) ListContents(ctx context.Context, conceptID uint) ([]models.LessonContent, error) {
	var contents []models.LessonContent
	if err := r.db.WithContext(ctx).Scopes(visibleContents).
		Where("lesson_contents.concept_id = ?", conceptID).
		Order("lesson_contents.sort_order ASC").
		Find(&contents).Error; err != nil {
		return nil, err
	}
	return contents, nil
}

// Curriculum loads the nested tree. Preloads apply the soft-delete filter per level,
// so a deleted lesson or concept drops its entire subtree.
func (r *curriculumRepository) Curriculum(ctx context.Context, courseID uint) (models.Course, error) {
	ordered := func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }

	var course models.Course
	if err := r.db.WithContext(ctx).
		Preload("Lessons", ordered).
		Preload("Lessons.Concepts", ordered).
		Preload("Lessons.Concepts.Contents", ordered).
		Preload("Lessons.Concepts.Contents.Questions", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&course, courseID).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *curriculumRepository) Locate(ctx context.Context, kind NodeKind, id uint) (NodeRef, error) {
	var row struct {
		CourseID  uint
		DeletedAt *time.Time
	}

	db := r.db.WithContext(ctx)
	var query *gorm.DB
	switch kind {
	case NodeCourse:
		query = db.Table("courses").Select("courses.id AS course_id, courses.deleted_at").Where("courses.id = ?", id)
	case NodeLesson:
		query = db.Table("lessons").Select("lessons.course_id, lessons.deleted_at").Where("lessons.id = ?", id)
	case NodeConcept:
		query = db.Table("concepts").
			Joins("JOIN lessons ON lessons.id = concepts.lesson_id").
			Select("lessons.course_id, concepts.deleted_at").
			Where("concepts.id = ?", id)
	case NodeContent:
		query = db.Table("lesson_contents").
			Joins("JOIN concepts ON concepts.id = lesson_contents.concept_id").
			Joins("JOIN lessons ON lessons.id = concepts.lesson_id").
			Select("lessons.course_id, lesson_contents.deleted_at").
			Where("lesson_contents.id = ?", id)
	default:
		return NodeRef{}, fmt.Errorf("unknown node kind %q", kind)
	}

	result := query.Scan(&row)
	if result.Error != nil {
		return NodeRef{}, result.Error
	}
	if result.RowsAffected == 0 {
		return NodeRef{}, gorm.ErrRecordNotFound
	}

	return NodeRef{Kind: kind, ID: id, CourseID: row.CourseID, DeletedAt: row.DeletedAt}, nil
}

func (r *curriculumRepository) SoftDelete(ctx context.Context, kind NodeKind, id uint) error {
	model, err := nodeModel(kind)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).Delete(model, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *curriculumRepository) Restore(ctx context.Context, kind NodeKind, id uint) error {
	model, err := nodeModel(kind)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).Unscoped().Model(model).
		Where("id = ? AND deleted_at IS NOT NULL", id).
		Update("deleted_at", nil)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func nodeModel(kind NodeKind) (interface{}, error) {
	switch kind {
	case NodeCourse:
		return &models.Course{}, nil
	case NodeLesson:
		return &models.Lesson{}, nil
	case NodeConcept:
		return &models.Concept{}, nil
	case NodeContent:
		return &models.LessonContent{}, nil
	default:
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}
}
