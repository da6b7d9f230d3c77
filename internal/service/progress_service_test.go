package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/config"
	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

func newProgressService(t *testing.T, f *fixture, policy string, publisher EventPublisher) (ProgressService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewProgressService(f.repos, testValidator(), client, time.Minute, policy, publisher, testLogger()), mr
}

func video() dto.CompleteContentRequest {
	return dto.CompleteContentRequest{Modality: models.ContentTypeVideo}
}

func TestMarkCompletedReachesFullProgress(t *testing.T) {
	f := newFixture(t, 4, 0)
	publisher := &recordingPublisher{}
	svc, _ := newProgressService(t, f, config.DenominatorVideoOnly, publisher)
	ctx := context.Background()

	var result dto.ProgressResponse
	var err error
	for _, content := range f.contents[:3] {
		result, err = svc.MarkCompleted(ctx, studentPrincipal, f.course.ID, content.ID, video())
		require.NoError(t, err)
	}
	require.Equal(t, 75.0, result.ProgressPercentage)
	require.Equal(t, 3, result.CompletedCount)
	require.Equal(t, 4, result.TotalCount)
	require.Equal(t, ReasonProgressIncomplete, result.EligibilityReason)

	result, err = svc.MarkCompleted(ctx, studentPrincipal, f.course.ID, f.contents[3].ID, video())
	require.NoError(t, err)
	require.Equal(t, 100.0, result.ProgressPercentage)
	require.Equal(t, ReasonNoAssignmentAttempts, result.EligibilityReason)
	require.False(t, result.CertificateEligible)

	again, err := svc.MarkCompleted(ctx, studentPrincipal, f.course.ID, f.contents[3].ID, video())
	require.NoError(t, err)
	require.Equal(t, 100.0, again.ProgressPercentage)
	require.Equal(t, 4, again.CompletedCount)
	require.Len(t, again.CompletedContentIDs, 4)

	require.Eventually(t, func() bool { return publisher.count(SubjectCourseCompleted) == 1 }, time.Second, 10*time.Millisecond)

	var marks int64
	require.NoError(t, f.db.Model(&models.ContentCompletion{}).Count(&marks).Error)
	require.Equal(t, int64(4), marks)
}

func TestVideoOnlyPolicyIgnoresTextContent(t *testing.T) {
	f := newFixture(t, 0, 2)
	svc, _ := newProgressService(t, f, config.DenominatorVideoOnly, nil)

	result, err := svc.MarkCompleted(context.Background(), studentPrincipal, f.course.ID, f.contents[0].ID, dto.CompleteContentRequest{Modality: models.ContentTypeText})
	require.NoError(t, err)
	require.Equal(t, 0.0, result.ProgressPercentage)
	require.Equal(t, 0, result.TotalCount)
	require.Equal(t, []uint{f.contents[0].ID}, result.CompletedContentIDs)
}

func TestAllContentPolicyCountsEveryItem(t *testing.T) {
	f := newFixture(t, 2, 2)
	svc, _ := newProgressService(t, f, config.DenominatorAllContent, nil)
	ctx := context.Background()

	_, err := svc.MarkCompleted(ctx, studentPrincipal, f.course.ID, f.contents[0].ID, video())
	require.NoError(t, err)
	result, err := svc.MarkCompleted(ctx, studentPrincipal, f.course.ID, f.contents[3].ID, dto.CompleteContentRequest{Modality: models.ContentTypePDF})
	require.NoError(t, err)

	require.Equal(t, 50.0, result.ProgressPercentage)
	require.Equal(t, 4, result.TotalCount)
	require.Equal(t, config.DenominatorAllContent, result.Denominator)
}

func TestRefreshExcludesContentUnderDeletedAncestor(t *testing.T) {
	f := newFixture(t, 2, 0)
	svc, _ := newProgressService(t, f, config.DenominatorVideoOnly, nil)
	ctx := context.Background()

	extra := models.Concept{LessonID: f.lesson.ID, Title: "Extra", Order: 2}
	require.NoError(t, f.db.Create(&extra).Error)
	for i := 1; i <= 2; i++ {
		require.NoError(t, f.db.Create(&models.LessonContent{
			ConceptID:   extra.ID,
			Title:       "extra",
			ContentType: models.ContentTypeVideo,
			VideoURL:    "https://cdn.example.com/extra.mp4",
			Order:       i,
		}).Error)
	}

	for _, content := range f.contents {
		_, err := svc.MarkCompleted(ctx, studentPrincipal, f.course.ID, content.ID, video())
		require.NoError(t, err)
	}
	before, err := svc.Refresh(ctx, studentPrincipal, f.course.ID)
	require.NoError(t, err)
	require.Equal(t, 50.0, before.ProgressPercentage)

	require.NoError(t, f.repos.Curriculum.SoftDelete(ctx, repository.NodeConcept, extra.ID))

	after, err := svc.Refresh(ctx, studentPrincipal, f.course.ID)
	require.NoError(t, err)
	require.Equal(t, 100.0, after.ProgressPercentage)
	require.Equal(t, 2, after.TotalCount)
	require.NotNil(t, after.RefreshedAt)
}

func TestRefreshWithoutCompletionsCreatesNoRow(t *testing.T) {
	f := newFixture(t, 2, 0)
	svc, _ := newProgressService(t, f, config.DenominatorVideoOnly, nil)

	result, err := svc.Refresh(context.Background(), studentPrincipal, f.course.ID)
	require.NoError(t, err)
	require.Equal(t, 0.0, result.ProgressPercentage)
	require.Nil(t, result.RefreshedAt)

	var rows int64
	require.NoError(t, f.db.Model(&models.StudentProgress{}).Count(&rows).Error)
	require.Zero(t, rows)
}

func TestGetProgressCachesUntilNextCompletion(t *testing.T) {
	f := newFixture(t, 2, 0)
	svc, mr := newProgressService(t, f, config.DenominatorVideoOnly, nil)
	ctx := context.Background()

	_, err := svc.MarkCompleted(ctx, studentPrincipal, f.course.ID, f.contents[0].ID, video())
	require.NoError(t, err)

	first, err := svc.GetProgress(ctx, studentPrincipal, f.course.ID)
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.True(t, mr.Exists(progressCacheKey(f.student.ID, f.course.ID)))

	second, err := svc.GetProgress(ctx, studentPrincipal, f.course.ID)
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.Equal(t, 50.0, second.ProgressPercentage)

	_, err = svc.MarkCompleted(ctx, studentPrincipal, f.course.ID, f.contents[1].ID, video())
	require.NoError(t, err)
	require.False(t, mr.Exists(progressCacheKey(f.student.ID, f.course.ID)))

	third, err := svc.GetProgress(ctx, studentPrincipal, f.course.ID)
	require.NoError(t, err)
	require.False(t, third.CacheHit)
	require.Equal(t, 100.0, third.ProgressPercentage)
}

func TestInvalidateCourseDropsEveryStudentView(t *testing.T) {
	f := newFixture(t, 1, 0)
	svc, mr := newProgressService(t, f, config.DenominatorVideoOnly, nil)

	require.NoError(t, mr.Set(progressCacheKey(1, f.course.ID), "{}"))
	require.NoError(t, mr.Set(progressCacheKey(2, f.course.ID), "{}"))
	require.NoError(t, mr.Set(progressCacheKey(1, f.course.ID+1), "{}"))

	svc.InvalidateCourse(context.Background(), f.course.ID)

	require.False(t, mr.Exists(progressCacheKey(1, f.course.ID)))
	require.False(t, mr.Exists(progressCacheKey(2, f.course.ID)))
	require.True(t, mr.Exists(progressCacheKey(1, f.course.ID+1)))
}

func TestMarkCompletedRejections(t *testing.T) {
	f := newFixture(t, 1, 1)
	svc, _ := newProgressService(t, f, config.DenominatorVideoOnly, nil)
	ctx := context.Background()

	_, err := svc.MarkCompleted(ctx, studentPrincipal, f.course.ID, f.contents[1].ID, video())
	require.ErrorIs(t, err, ErrModalityUnsupported)

	_, err = svc.MarkCompleted(ctx, strangerPrincipal, f.course.ID, f.contents[0].ID, video())
	require.ErrorIs(t, err, ErrNotEnrolled)

	_, err = svc.MarkCompleted(ctx, instructorPrincipal, f.course.ID, f.contents[0].ID, video())
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.MarkCompleted(ctx, studentPrincipal, f.course.ID, 9999, video())
	require.ErrorIs(t, err, ErrContentNotFound)

	_, err = svc.MarkCompleted(ctx, studentPrincipal, f.course.ID, f.contents[0].ID, dto.CompleteContentRequest{Modality: "audio"})
	require.Error(t, err)
}
