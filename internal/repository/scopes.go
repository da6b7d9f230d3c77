package repository

import "gorm.io/gorm"

// Every read of a curriculum node joins its ancestors so a node whose ancestor is
// soft-deleted disappears even though its own deleted_at is still NULL.

func visibleLessons(db *gorm.DB) *gorm.DB {
	return db.Joins("JOIN courses ON courses.id = lessons.course_id AND courses.deleted_at IS NULL")
}

func visibleConcepts(db *gorm.DB) *gorm.DB {
	return db.
		Joins("JOIN lessons ON lessons.id = concepts.lesson_id AND lessons.deleted_at IS NULL").
		Joins("JOIN courses ON courses.id = lessons.course_id AND courses.deleted_at IS NULL")
}

func visibleContents(db *gorm.DB) *gorm.DB {
	return db.
		Joins("JOIN concepts ON concepts.id = lesson_contents.concept_id AND concepts.deleted_at IS NULL").
		Joins("JOIN lessons ON lessons.id = concepts.lesson_id AND lessons.deleted_at IS NULL").
		Joins("JOIN courses ON courses.id = lessons.course_id AND courses.deleted_at IS NULL")
}

// countedContents narrows visible contents of a course to the progress denominator.
func countedContents(courseID uint, videoOnly bool) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = visibleContents(db).Where("lessons.course_id = ?", courseID)
		if videoOnly {
			db = db.Where("lesson_contents.video_url IS NOT NULL AND lesson_contents.video_url <> ''")
		}
		return db
	}
}
