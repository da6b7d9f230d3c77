package service

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
)

func newQuizService(f *fixture) QuizService {
	return NewQuizService(f.repos, NewOptionSelector(rand.New(rand.NewSource(11))), testValidator(), testLogger())
}

func sampleQuiz(conceptID uint) dto.QuizCreateRequest {
	return dto.QuizCreateRequest{Questions: []dto.QuestionInput{
		{
			QuestionText:  "Who designed the analytical engine?",
			Options:       []string{"Babbage", "Turing", "Hopper", "Lovelace", "Knuth", ""},
			CorrectAnswer: "Babbage",
			ConceptID:     &conceptID,
		},
		{
			QuestionText:  "Year of the difference engine?",
			Options:       []string{"1822", "1900"},
			CorrectAnswer: "1822",
			ConceptID:     &conceptID,
		},
		{
			QuestionText:  "Punched cards came from?",
			Options:       []string{"Jacquard"},
			CorrectAnswer: "Jacquard",
		},
	}}
}

func TestCreateLessonQuizOncePerLesson(t *testing.T) {
	f := newFixture(t, 1, 0)
	svc := newQuizService(f)
	ctx := context.Background()

	quiz, err := svc.CreateLessonQuiz(ctx, instructorPrincipal, f.lesson.ID, sampleQuiz(f.concept.ID))
	require.NoError(t, err)
	require.Equal(t, "Foundations quiz", quiz.Title)
	require.Len(t, quiz.Questions, 3)

	_, err = svc.CreateLessonQuiz(ctx, instructorPrincipal, f.lesson.ID, sampleQuiz(f.concept.ID))
	require.ErrorIs(t, err, ErrQuizExists)

	_, err = svc.CreateLessonQuiz(ctx, rivalPrincipal, f.lesson.ID, sampleQuiz(f.concept.ID))
	require.ErrorIs(t, err, ErrNotCourseOwner)
}

func TestLessonQuizRendersSelectedOptions(t *testing.T) {
	f := newFixture(t, 1, 0)
	svc := newQuizService(f)
	ctx := context.Background()

	_, err := svc.LessonQuiz(ctx, studentPrincipal, f.lesson.ID)
	require.ErrorIs(t, err, ErrQuizNotFound)

	_, err = svc.CreateLessonQuiz(ctx, instructorPrincipal, f.lesson.ID, sampleQuiz(f.concept.ID))
	require.NoError(t, err)

	quiz, err := svc.LessonQuiz(ctx, studentPrincipal, f.lesson.ID)
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 3)

	first := quiz.Questions[0]
	require.Len(t, first.Options, 4)
	require.Contains(t, first.Options, "Babbage")
	require.NotContains(t, first.Options, "")
	require.ElementsMatch(t, []string{"1822", "1900"}, quiz.Questions[1].Options)
	require.Equal(t, []string{"Jacquard"}, quiz.Questions[2].Options)

	_, err = svc.LessonQuiz(ctx, strangerPrincipal, f.lesson.ID)
	require.ErrorIs(t, err, ErrNotEnrolled)
}

func TestSubmitPracticeSuggestsConcepts(t *testing.T) {
	f := newFixture(t, 1, 0)
	svc := newQuizService(f)
	ctx := context.Background()

	created, err := svc.CreateLessonQuiz(ctx, instructorPrincipal, f.lesson.ID, sampleQuiz(f.concept.ID))
	require.NoError(t, err)

	result, err := svc.SubmitPractice(ctx, studentPrincipal, f.lesson.ID, dto.QuizSubmitRequest{Answers: []dto.QuizAnswerInput{
		{QuestionID: created.Questions[0].ID, Answer: "turing"},
		{QuestionID: created.Questions[1].ID, Answer: "1900"},
		{QuestionID: created.Questions[2].ID, Answer: " jacquard "},
	}})
	require.NoError(t, err)
	require.Equal(t, 3, result.Total)
	require.Equal(t, 1, result.Correct)
	require.Equal(t, 33.33, result.Score)
	require.Len(t, result.WrongAnswers, 2)
	require.Equal(t, "Babbage", result.WrongAnswers[0].CorrectAnswer)
	require.Equal(t, []dto.RevisionSuggestion{{ConceptID: f.concept.ID, Title: f.concept.Title}}, result.Suggestions)
}

func TestQuizQuestionConceptMustBelongToLesson(t *testing.T) {
	f := newFixture(t, 1, 0)
	svc := newQuizService(f)
	ctx := context.Background()

	foreign := uint(9999)
	_, err := svc.CreateLessonQuiz(ctx, instructorPrincipal, f.lesson.ID, dto.QuizCreateRequest{Questions: []dto.QuestionInput{
		{QuestionText: "Q", Options: []string{"A"}, CorrectAnswer: "A", ConceptID: &foreign},
	}})
	require.ErrorIs(t, err, ErrConceptNotFound)

	_, err = svc.CreateLessonQuiz(ctx, instructorPrincipal, f.lesson.ID, dto.QuizCreateRequest{Questions: []dto.QuestionInput{
		{QuestionText: "Q", Options: []string{"A"}, CorrectAnswer: "   "},
	}})
	require.ErrorIs(t, err, ErrInvalidQuestion)
}

func TestAddContentQuestionShowsInCurriculum(t *testing.T) {
	f := newFixture(t, 1, 0)
	svc := newQuizService(f)
	ctx := context.Background()

	question, err := svc.AddContentQuestion(ctx, instructorPrincipal, f.contents[0].ID, dto.QuestionInput{
		QuestionText:  "What does the engine compute?",
		Options:       []string{"Polynomials", "Sorting", "Graphs"},
		CorrectAnswer: "Polynomials",
	})
	require.NoError(t, err)
	require.NotNil(t, question.ConceptID)
	require.Equal(t, f.concept.ID, *question.ConceptID)

	tree, err := newCurriculumService(f, nil).Curriculum(ctx, studentPrincipal, f.course.ID)
	require.NoError(t, err)
	views := tree.Lessons[0].Concepts[0].Contents[0].Questions
	require.Len(t, views, 1)
	require.ElementsMatch(t, []string{"Polynomials", "Sorting", "Graphs"}, views[0].Options)

	_, err = svc.AddContentQuestion(ctx, studentPrincipal, f.contents[0].ID, dto.QuestionInput{QuestionText: "Q", Options: []string{"A"}, CorrectAnswer: "A"})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestAddContentQuestionRejectsConceptFromAnotherCourse(t *testing.T) {
	f := newFixture(t, 1, 0)
	svc := newQuizService(f)
	ctx := context.Background()

	var rival models.Instructor
	require.NoError(t, f.db.Where("user_id = ?", rivalPrincipal.UserID).First(&rival).Error)
	course := models.Course{InstructorID: rival.ID, Title: "Rival course"}
	require.NoError(t, f.db.Create(&course).Error)
	lesson := models.Lesson{CourseID: course.ID, Title: "Elsewhere", Order: 1}
	require.NoError(t, f.db.Create(&lesson).Error)
	foreign := models.Concept{LessonID: lesson.ID, Title: "Private notes", Order: 1}
	require.NoError(t, f.db.Create(&foreign).Error)

	_, err := svc.AddContentQuestion(ctx, instructorPrincipal, f.contents[0].ID, dto.QuestionInput{
		QuestionText:  "Q",
		Options:       []string{"A"},
		CorrectAnswer: "A",
		ConceptID:     &foreign.ID,
	})
	require.ErrorIs(t, err, ErrConceptNotFound)

	var rows int64
	require.NoError(t, f.db.Model(&models.QuizQuestion{}).Count(&rows).Error)
	require.Zero(t, rows)
}
