package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/config"
	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// PassThreshold is the minimum aggregate assignment score, in percent, for a pass.
const PassThreshold = 75.0

// assignmentAggregate is the course-level assignment result.
type assignmentAggregate struct {
	Total     int
	Attempted int
	Correct   int
	Score     float64
	Passed    bool
	Outcomes  []dto.AssignmentOutcome
}

// aggregateAssignments averages the stored submission scores of a student. Submit
// stores a row for every course assignment, so unanswered ones count as zero there;
// assignments added after the last submission have no row and do not dilute the
// average. No submissions means no pass.
func aggregateAssignments(assignments []models.Assignment, submissions []models.AssignmentSubmission) assignmentAggregate {
	byAssignment := make(map[uint]models.AssignmentSubmission, len(submissions))
	for _, submission := range submissions {
		byAssignment[submission.AssignmentID] = submission
	}

	agg := assignmentAggregate{Total: len(assignments), Outcomes: make([]dto.AssignmentOutcome, 0, len(assignments))}
	var sum float64
	for _, assignment := range assignments {
		outcome := dto.AssignmentOutcome{AssignmentID: assignment.ID}
		if submission, ok := byAssignment[assignment.ID]; ok {
			agg.Attempted++
			outcome.Attempted = true
			outcome.SubmittedAnswer = submission.SubmittedAnswer
			outcome.IsCorrect = submission.IsCorrect
			outcome.Score = submission.Score
			sum += submission.Score
			if submission.IsCorrect {
				agg.Correct++
			}
		}
		agg.Outcomes = append(agg.Outcomes, outcome)
	}

	if agg.Attempted > 0 {
		agg.Score = math.Round(sum/float64(agg.Attempted)*100) / 100
	}
	agg.Passed = agg.Attempted > 0 && agg.Score >= PassThreshold
	return agg
}

func (a assignmentAggregate) passStatus() string {
	if a.Passed {
		return models.PassStatusPass
	}
	return models.PassStatusFail
}

// gradeAnswer compares trimmed answers case-insensitively; a blank answer is wrong.
func gradeAnswer(submitted, expected string) bool {
	submitted = strings.TrimSpace(submitted)
	if submitted == "" {
		return false
	}
	return strings.EqualFold(submitted, strings.TrimSpace(expected))
}

// decideEligibility returns the first failing reason, or "" when eligible.
func decideEligibility(progress models.StudentProgress, agg assignmentAggregate, templateAvailable bool) string {
	switch {
	case !progress.IsComplete():
		return ReasonProgressIncomplete
	case agg.Attempted == 0:
		return ReasonNoAssignmentAttempts
	case !agg.Passed:
		return ReasonScoreBelowThreshold
	case !templateAvailable:
		return ReasonTemplateMissing
	default:
		return ""
	}
}

// standing is everything the progress view and the certificate engine need to know
// about one student in one course.
type standing struct {
	Progress     models.StudentProgress
	Aggregate    assignmentAggregate
	Template     models.CertificateTemplate
	HasTemplate  bool
	Certificate  models.Certificate
	Issued       bool
	Reason       string
	ProgressSeen bool
}

func (s standing) eligible() bool {
	return s.Reason == ""
}

// standingReader evaluates a student's standing from the stored state.
type standingReader struct {
	progress     repository.ProgressRepository
	assignments  repository.AssignmentRepository
	certificates repository.CertificateRepository
	templates    repository.CertificateTemplateRepository
	policy       string
}

func (r standingReader) videoOnly() bool {
	return r.policy != config.DenominatorAllContent
}

// recompute refreshes the materialised progress. A student without completion events
// gets an unsaved zero row carrying the current denominator.
func (r standingReader) recompute(ctx context.Context, studentID, courseID uint, at time.Time) (models.StudentProgress, bool, error) {
	progress, found, err := r.progress.Recompute(ctx, studentID, courseID, r.videoOnly(), r.policy, at)
	if err != nil {
		return models.StudentProgress{}, false, err
	}
	if !found {
		return models.StudentProgress{StudentID: studentID, CourseID: courseID, Denominator: r.policy}, false, nil
	}
	return progress, true, nil
}

// template resolves the template assigned to the course. A course without an
// assignment, or whose assignment no longer resolves, has no template.
func (r standingReader) template(ctx context.Context, course models.Course) (models.CertificateTemplate, bool, error) {
	if course.CertificateTemplateID == nil {
		return models.CertificateTemplate{}, false, nil
	}
	tpl, err := r.templates.GetByID(ctx, *course.CertificateTemplateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.CertificateTemplate{}, false, nil
		}
		return models.CertificateTemplate{}, false, err
	}
	return tpl, true, nil
}

// stored reads the materialised progress without recomputing it.
func (r standingReader) stored(ctx context.Context, studentID, courseID uint) (models.StudentProgress, bool, error) {
	progress, err := r.progress.Get(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.StudentProgress{StudentID: studentID, CourseID: courseID, Denominator: r.policy}, false, nil
		}
		return models.StudentProgress{}, false, err
	}
	return progress, true, nil
}

// evaluate recomputes progress and assembles the full standing from it.
func (r standingReader) evaluate(ctx context.Context, studentID uint, course models.Course, at time.Time) (standing, error) {
	progress, seen, err := r.recompute(ctx, studentID, course.ID, at)
	if err != nil {
		return standing{}, err
	}
	return r.assemble(ctx, studentID, course, progress, seen)
}

// assemble aggregates assignments, resolves the template and looks up an issued
// certificate around a known progress row.
func (r standingReader) assemble(ctx context.Context, studentID uint, course models.Course, progress models.StudentProgress, seen bool) (standing, error) {
	assignments, err := r.assignments.ListByCourse(ctx, course.ID)
	if err != nil {
		return standing{}, err
	}
	submissions, err := r.assignments.ListSubmissions(ctx, studentID, course.ID)
	if err != nil {
		return standing{}, err
	}
	agg := aggregateAssignments(assignments, submissions)

	tpl, hasTemplate, err := r.template(ctx, course)
	if err != nil {
		return standing{}, err
	}

	result := standing{
		Progress:     progress,
		Aggregate:    agg,
		Template:     tpl,
		HasTemplate:  hasTemplate,
		ProgressSeen: seen,
		Reason:       decideEligibility(progress, agg, hasTemplate),
	}

	certificate, err := r.certificates.GetByStudentCourse(ctx, studentID, course.ID)
	switch {
	case err == nil:
		result.Certificate = certificate
		result.Issued = true
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return standing{}, err
	}

	return result, nil
}
