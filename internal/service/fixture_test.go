package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

var (
	instructorPrincipal = Principal{UserID: 100, Role: RoleInstructor}
	studentPrincipal    = Principal{UserID: 200, Role: RoleStudent}
	strangerPrincipal   = Principal{UserID: 300, Role: RoleStudent}
	rivalPrincipal      = Principal{UserID: 400, Role: RoleInstructor}
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// newTestDB opens an isolated in-memory sqlite database with the full schema.
// A single connection keeps concurrent tests free of sqlite table locks.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// fixture is one instructor's course with a single lesson and concept, and an
// enrolled student.
type fixture struct {
	db         *gorm.DB
	repos      Repositories
	instructor models.Instructor
	student    models.Student
	template   models.CertificateTemplate
	course     models.Course
	lesson     models.Lesson
	concept    models.Concept
	contents   []models.LessonContent
}

// newFixture seeds videos video-bearing contents followed by texts text-only contents.
func newFixture(t *testing.T, videos, texts int) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{db: db, repos: NewRepositories(db)}

	f.instructor = models.Instructor{UserID: instructorPrincipal.UserID, Username: "babbage", FirstName: "Charles", LastName: "Babbage"}
	require.NoError(t, db.Create(&f.instructor).Error)
	require.NoError(t, db.Create(&models.Instructor{UserID: rivalPrincipal.UserID, Username: "rival"}).Error)

	f.student = models.Student{UserID: studentPrincipal.UserID, Username: "ada", FirstName: "Ada", LastName: "Lovelace"}
	require.NoError(t, db.Create(&f.student).Error)
	require.NoError(t, db.Create(&models.Student{UserID: strangerPrincipal.UserID, Username: "stranger"}).Error)

	f.template = models.CertificateTemplate{
		Name:         DefaultTemplateName,
		Type:         models.TemplateTypeDefault,
		FileType:     models.TemplateFileHTML,
		HTMLTemplate: "<h1>{{student_name}}</h1><p>{{course_title}}</p>",
	}
	require.NoError(t, db.Create(&f.template).Error)

	f.course = models.Course{InstructorID: f.instructor.ID, Title: "Analytical Engines", CertificateTemplateID: &f.template.ID}
	require.NoError(t, db.Create(&f.course).Error)

	f.lesson = models.Lesson{CourseID: f.course.ID, Title: "Foundations", Order: 1}
	require.NoError(t, db.Create(&f.lesson).Error)

	f.concept = models.Concept{LessonID: f.lesson.ID, Title: "Difference engines", Order: 1}
	require.NoError(t, db.Create(&f.concept).Error)

	for i := 0; i < videos+texts; i++ {
		content := models.LessonContent{
			ConceptID:   f.concept.ID,
			Title:       fmt.Sprintf("Part %d", i+1),
			ContentType: models.ContentTypeText,
			TextContent: "notes",
			Order:       i + 1,
		}
		if i < videos {
			content.ContentType = models.ContentTypeVideo
			content.VideoURL = fmt.Sprintf("https://cdn.example.com/part-%d.mp4", i+1)
		}
		require.NoError(t, db.Create(&content).Error)
		f.contents = append(f.contents, content)
	}

	require.NoError(t, db.Create(&models.Enrollment{StudentID: f.student.ID, CourseID: f.course.ID, Source: models.EnrollmentSourceFree}).Error)
	return f
}

// addAssignments creates course assignments from question/answer pairs.
func (f *fixture) addAssignments(t *testing.T, pairs ...string) []models.Assignment {
	t.Helper()
	require.Zero(t, len(pairs)%2)
	var created []models.Assignment
	for i := 0; i < len(pairs); i += 2 {
		assignment := models.Assignment{CourseID: f.course.ID, InstructorID: f.instructor.ID, Question: pairs[i], Answer: pairs[i+1]}
		assignment.SetOptions(nil)
		require.NoError(t, f.db.Create(&assignment).Error)
		created = append(created, assignment)
	}
	return created
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *recordingPublisher) count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, s := range p.subjects {
		if s == subject {
			total++
		}
	}
	return total
}

type memoryStorage struct {
	mu       sync.Mutex
	uploads  map[string][]byte
	removed  []string
	err      error
	onUpload func()
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{uploads: map[string][]byte{}}
}

func (s *memoryStorage) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%d-%s", len(s.uploads)+len(s.removed)+1, strings.ToLower(name))
	s.uploads[key] = data
	if s.onUpload != nil {
		s.onUpload()
	}
	return "https://files.example.com/" + key, nil
}

func (s *memoryStorage) Remove(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.TrimPrefix(url, "https://files.example.com/")
	if _, ok := s.uploads[key]; !ok {
		return fmt.Errorf("no upload at %s", url)
	}
	delete(s.uploads, key)
	s.removed = append(s.removed, url)
	return nil
}

func (s *memoryStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}
