package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/config"
	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/pkg/certificate"
)

type stubRenderer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *stubRenderer) Render(_ context.Context, tpl certificate.Template, fields certificate.Fields) (certificate.Artifact, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.err != nil {
		return certificate.Artifact{}, r.err
	}
	return certificate.Artifact{
		Data:        []byte(tpl.Body + fields.StudentName + fields.CertificateID),
		ContentType: "text/html; charset=utf-8",
		Extension:   ".html",
	}, nil
}

type certificateHarness struct {
	*fixture
	svc       CertificateService
	renderer  *stubRenderer
	storage   *memoryStorage
	publisher *recordingPublisher
}

func newCertificateHarness(t *testing.T) *certificateHarness {
	t.Helper()
	h := &certificateHarness{
		fixture:   newFixture(t, 2, 1),
		renderer:  &stubRenderer{},
		storage:   newMemoryStorage(),
		publisher: &recordingPublisher{},
	}
	h.svc = NewCertificateService(h.repos, CertificateServiceConfig{
		Policy:        config.DenominatorVideoOnly,
		VerifyBaseURL: "https://lms.example.com/verify/",
		Renderer:      h.renderer,
		Storage:       h.storage,
		Publisher:     h.publisher,
	}, testLogger())
	return h
}

// complete marks every video of the course as watched.
func (h *certificateHarness) complete(t *testing.T) {
	t.Helper()
	progress := NewProgressService(h.repos, testValidator(), nil, time.Minute, config.DenominatorVideoOnly, nil, testLogger())
	for _, content := range h.contents {
		if !content.HasVideo() {
			continue
		}
		_, err := progress.MarkCompleted(context.Background(), studentPrincipal, h.course.ID, content.ID, video())
		require.NoError(t, err)
	}
}

// answer submits the given answers in assignment order.
func (h *certificateHarness) answer(t *testing.T, assignments []models.Assignment, answers ...string) {
	t.Helper()
	req := dto.AssignmentSubmitRequest{}
	for i, answer := range answers {
		req.Answers = append(req.Answers, dto.AnswerInput{AssignmentID: assignments[i].ID, Answer: answer})
	}
	_, err := newAssignmentService(h.fixture, nil).Submit(context.Background(), studentPrincipal, h.course.ID, req)
	require.NoError(t, err)
}

func (h *certificateHarness) eligible(t *testing.T) {
	t.Helper()
	assignments := h.addAssignments(t, "Capital of France?", "Paris", "2 + 2?", "4")
	h.complete(t)
	h.answer(t, assignments, "Paris", "4")
}

func (h *certificateHarness) certificateRows(t *testing.T) int64 {
	t.Helper()
	var rows int64
	require.NoError(t, h.db.Model(&models.Certificate{}).Count(&rows).Error)
	return rows
}

func TestEligibilityReasonsInOrder(t *testing.T) {
	h := newCertificateHarness(t)
	ctx := context.Background()

	result, err := h.svc.Eligibility(ctx, studentPrincipal, h.course.ID)
	require.NoError(t, err)
	require.False(t, result.Eligible)
	require.Equal(t, ReasonProgressIncomplete, result.Reason)

	h.complete(t)
	assignments := h.addAssignments(t, "Capital of France?", "Paris", "2 + 2?", "4")

	result, err = h.svc.Eligibility(ctx, studentPrincipal, h.course.ID)
	require.NoError(t, err)
	require.Equal(t, 100.0, result.ProgressPercentage)
	require.Equal(t, ReasonNoAssignmentAttempts, result.Reason)

	h.answer(t, assignments, "Paris", "5")
	result, err = h.svc.Eligibility(ctx, studentPrincipal, h.course.ID)
	require.NoError(t, err)
	require.Equal(t, 50.0, result.AssignmentScore)
	require.Equal(t, ReasonScoreBelowThreshold, result.Reason)

	h.answer(t, assignments, "Paris", "4")
	require.NoError(t, h.repos.Curriculum.SetCertificateTemplate(ctx, h.course.ID, nil))
	result, err = h.svc.Eligibility(ctx, studentPrincipal, h.course.ID)
	require.NoError(t, err)
	require.Equal(t, ReasonTemplateMissing, result.Reason)

	require.NoError(t, h.repos.Curriculum.SetCertificateTemplate(ctx, h.course.ID, &h.template.ID))
	result, err = h.svc.Eligibility(ctx, studentPrincipal, h.course.ID)
	require.NoError(t, err)
	require.True(t, result.Eligible)
	require.Empty(t, result.Reason)
}

func TestEligibilityAveragesStoredSubmissions(t *testing.T) {
	h := newCertificateHarness(t)
	ctx := context.Background()
	h.eligible(t)

	h.addAssignments(t, "3 + 3?", "6", "4 + 4?", "8")

	result, err := h.svc.Eligibility(ctx, studentPrincipal, h.course.ID)
	require.NoError(t, err)
	require.True(t, result.Eligible)
	require.Equal(t, 100.0, result.AssignmentScore)

	assignments, err := newAssignmentService(h.fixture, nil).Result(ctx, studentPrincipal, h.course.ID)
	require.NoError(t, err)
	require.Equal(t, 4, assignments.TotalAssignments)
	require.Equal(t, 2, assignments.Attempted)
	require.Equal(t, 100.0, assignments.Score)
	require.True(t, assignments.Passed)
}

func TestIssueRejectsIneligibleStudent(t *testing.T) {
	h := newCertificateHarness(t)

	_, err := h.svc.Issue(context.Background(), studentPrincipal, h.course.ID)
	var ineligible *IneligibleError
	require.True(t, errors.As(err, &ineligible))
	require.Equal(t, ReasonProgressIncomplete, ineligible.Reason)
	require.Zero(t, h.certificateRows(t))
	require.Zero(t, h.renderer.calls)
}

func TestIssueIsIdempotent(t *testing.T) {
	h := newCertificateHarness(t)
	h.eligible(t)
	ctx := context.Background()

	first, err := h.svc.Issue(ctx, studentPrincipal, h.course.ID)
	require.NoError(t, err)
	require.True(t, first.Created)
	require.NotEmpty(t, first.ArtifactURL)
	require.Equal(t, "https://lms.example.com/verify/"+first.VerificationID, first.VerifyURL)

	second, err := h.svc.Issue(ctx, studentPrincipal, h.course.ID)
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, first.VerificationID, second.VerificationID)
	require.Equal(t, first.ArtifactURL, second.ArtifactURL)

	require.Equal(t, int64(1), h.certificateRows(t))
	require.Equal(t, 1, h.storage.count())
	require.Eventually(t, func() bool { return h.publisher.count(SubjectCertificateIssued) == 1 }, time.Second, 10*time.Millisecond)

	eligibility, err := h.svc.Eligibility(ctx, studentPrincipal, h.course.ID)
	require.NoError(t, err)
	require.True(t, eligibility.Eligible)
	require.True(t, eligibility.AlreadyIssued)
	require.Empty(t, eligibility.Reason)
}

func TestConcurrentIssueCreatesOneCertificate(t *testing.T) {
	h := newCertificateHarness(t)
	h.eligible(t)

	const callers = 8
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			response, err := h.svc.Issue(context.Background(), studentPrincipal, h.course.ID)
			ids[i] = response.VerificationID
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}
	require.Equal(t, int64(1), h.certificateRows(t))
}

func TestIssueLosingInsertRaceRemovesArtifact(t *testing.T) {
	h := newCertificateHarness(t)
	h.eligible(t)

	winner := models.Certificate{
		StudentID:      h.student.ID,
		CourseID:       h.course.ID,
		VerificationID: "0f8fad5b-d9cb-469f-a165-70867728950e",
		ArtifactURL:    "https://files.example.com/winner.html",
		ArtifactType:   "text/html; charset=utf-8",
		IssueDate:      time.Now().UTC(),
	}
	h.storage.onUpload = func() {
		require.NoError(t, h.db.Create(&winner).Error)
	}

	response, err := h.svc.Issue(context.Background(), studentPrincipal, h.course.ID)
	require.NoError(t, err)
	require.False(t, response.Created)
	require.Equal(t, winner.VerificationID, response.VerificationID)
	require.Equal(t, int64(1), h.certificateRows(t))
	require.Zero(t, h.storage.count())
	require.Len(t, h.storage.removed, 1)
}

func TestIssueSurvivesCallerCancellation(t *testing.T) {
	h := newCertificateHarness(t)
	h.eligible(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.storage.onUpload = cancel

	response, err := h.svc.Issue(ctx, studentPrincipal, h.course.ID)
	require.NoError(t, err)
	require.True(t, response.Created)
	require.Equal(t, int64(1), h.certificateRows(t))
}

func TestIssueFailuresLeaveNoCertificate(t *testing.T) {
	t.Run("render", func(t *testing.T) {
		h := newCertificateHarness(t)
		h.eligible(t)
		h.renderer.err = errors.New("font missing")

		_, err := h.svc.Issue(context.Background(), studentPrincipal, h.course.ID)
		require.ErrorIs(t, err, ErrIssuanceFailed)
		require.Zero(t, h.certificateRows(t))
		require.Zero(t, h.storage.count())
	})

	t.Run("storage", func(t *testing.T) {
		h := newCertificateHarness(t)
		h.eligible(t)
		h.storage.err = errors.New("bucket offline")

		_, err := h.svc.Issue(context.Background(), studentPrincipal, h.course.ID)
		require.ErrorIs(t, err, ErrIssuanceFailed)
		require.Zero(t, h.certificateRows(t))

		h.storage.err = nil
		response, err := h.svc.Issue(context.Background(), studentPrincipal, h.course.ID)
		require.NoError(t, err)
		require.True(t, response.Created)
	})
}

func TestIssueWithRealRenderer(t *testing.T) {
	h := newCertificateHarness(t)
	h.eligible(t)
	renderer, err := certificate.NewRenderer()
	require.NoError(t, err)
	svc := NewCertificateService(h.repos, CertificateServiceConfig{
		Policy:   config.DenominatorVideoOnly,
		Renderer: renderer,
		Storage:  h.storage,
	}, testLogger())

	response, err := svc.Issue(context.Background(), studentPrincipal, h.course.ID)
	require.NoError(t, err)
	require.Equal(t, "text/html; charset=utf-8", response.ArtifactType)
	require.Equal(t, 1, h.storage.count())
}

func TestVerifyCertificate(t *testing.T) {
	h := newCertificateHarness(t)
	h.eligible(t)
	ctx := context.Background()

	issued, err := h.svc.Issue(ctx, studentPrincipal, h.course.ID)
	require.NoError(t, err)

	verified, err := h.svc.Verify(ctx, issued.VerificationID)
	require.NoError(t, err)
	require.True(t, verified.Valid)
	require.Equal(t, "ada", verified.Student)
	require.Equal(t, "Ada Lovelace", verified.StudentName)
	require.Equal(t, h.course.Title, verified.Course)
	require.Equal(t, issued.VerificationID, verified.VerificationID)

	unknown, err := h.svc.Verify(ctx, uuid.NewString())
	require.ErrorIs(t, err, ErrCertificateNotFound)
	require.False(t, unknown.Valid)

	malformed, err := h.svc.Verify(ctx, "not-a-uuid")
	require.ErrorIs(t, err, ErrCertificateNotFound)
	require.False(t, malformed.Valid)
}

func TestCertificateGetAndList(t *testing.T) {
	h := newCertificateHarness(t)
	ctx := context.Background()

	_, err := h.svc.Get(ctx, studentPrincipal, h.course.ID)
	require.ErrorIs(t, err, ErrCertificateNotFound)

	h.eligible(t)
	issued, err := h.svc.Issue(ctx, studentPrincipal, h.course.ID)
	require.NoError(t, err)

	got, err := h.svc.Get(ctx, studentPrincipal, h.course.ID)
	require.NoError(t, err)
	require.Equal(t, issued.VerificationID, got.VerificationID)

	mine, err := h.svc.ListMine(ctx, studentPrincipal)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	_, err = h.svc.Issue(ctx, strangerPrincipal, h.course.ID)
	require.ErrorIs(t, err, ErrNotEnrolled)
}
