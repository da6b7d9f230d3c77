package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

func softDeleteAt(t *testing.T, db *gorm.DB, model interface{}, id uint, at time.Time) {
	t.Helper()
	require.NoError(t, db.Unscoped().Model(model).Where("id = ?", id).Update("deleted_at", at.UTC()).Error)
}

func unscopedCount(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var total int64
	require.NoError(t, db.Unscoped().Model(model).Count(&total).Error)
	return total
}

func TestPurgeRemovesExpiredSubtree(t *testing.T) {
	f := newFixture(t, 2, 1)
	svc := NewPurgeService(f.repos.Purge, 10*time.Minute, testLogger())
	ctx := context.Background()

	progress := NewProgressService(f.repos, testValidator(), nil, time.Minute, "video_only", nil, testLogger())
	_, err := progress.MarkCompleted(ctx, studentPrincipal, f.course.ID, f.contents[0].ID, video())
	require.NoError(t, err)

	softDeleteAt(t, f.db, &models.Lesson{}, f.lesson.ID, time.Now().Add(-20*time.Minute))

	report, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Lessons)
	require.Equal(t, 1, report.Concepts)
	require.Equal(t, 3, report.Contents)
	require.Zero(t, report.Courses)

	require.Zero(t, unscopedCount(t, f.db, &models.Lesson{}))
	require.Zero(t, unscopedCount(t, f.db, &models.LessonContent{}))
	require.Zero(t, unscopedCount(t, f.db, &models.ContentCompletion{}))
	require.Equal(t, int64(1), unscopedCount(t, f.db, &models.Course{}))
}

func TestPurgeKeepsNodesInsideWindow(t *testing.T) {
	f := newFixture(t, 1, 0)
	svc := NewPurgeService(f.repos.Purge, 10*time.Minute, testLogger())

	softDeleteAt(t, f.db, &models.LessonContent{}, f.contents[0].ID, time.Now().Add(-time.Minute))

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.Total())
	require.Equal(t, int64(1), unscopedCount(t, f.db, &models.LessonContent{}))
}

func TestPurgeRetainsCourseWithCertificates(t *testing.T) {
	f := newFixture(t, 1, 0)
	svc := NewPurgeService(f.repos.Purge, 10*time.Minute, testLogger())

	require.NoError(t, f.db.Omit("Student", "Course").Create(&models.Certificate{
		StudentID:      f.student.ID,
		CourseID:       f.course.ID,
		VerificationID: "5b0c6f5e-8f7a-4a52-9d8e-2f6f0c6a1b11",
		ArtifactURL:    "https://files.example.com/cert.html",
		ArtifactType:   "text/html; charset=utf-8",
		IssueDate:      time.Now(),
	}).Error)
	softDeleteAt(t, f.db, &models.Course{}, f.course.ID, time.Now().Add(-time.Hour))

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Retained)
	require.Zero(t, report.Courses)
	require.Equal(t, int64(1), unscopedCount(t, f.db, &models.Course{}))
	require.Equal(t, int64(1), unscopedCount(t, f.db, &models.Certificate{}))
}

func TestPurgeRemovesExpiredCourse(t *testing.T) {
	f := newFixture(t, 1, 0)
	svc := NewPurgeService(f.repos.Purge, 10*time.Minute, testLogger())

	softDeleteAt(t, f.db, &models.Course{}, f.course.ID, time.Now().Add(-time.Hour))

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Courses)
	require.Zero(t, unscopedCount(t, f.db, &models.Course{}))
	require.Zero(t, unscopedCount(t, f.db, &models.Enrollment{}))
}
