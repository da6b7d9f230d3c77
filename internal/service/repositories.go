package service

import (
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// Repositories groups the persistence collaborators shared by the services.
type Repositories struct {
	Students     repository.StudentRepository
	Instructors  repository.InstructorRepository
	Curriculum   repository.CurriculumRepository
	Enrollments  repository.EnrollmentRepository
	Progress     repository.ProgressRepository
	Assignments  repository.AssignmentRepository
	Quizzes      repository.QuizRepository
	Certificates repository.CertificateRepository
	Templates    repository.CertificateTemplateRepository
	Payments     repository.PaymentRepository
	Purge        repository.PurgeRepository
}

// NewRepositories builds every GORM repository over db.
func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Students:     repository.NewStudentRepository(db),
		Instructors:  repository.NewInstructorRepository(db),
		Curriculum:   repository.NewCurriculumRepository(db),
		Enrollments:  repository.NewEnrollmentRepository(db),
		Progress:     repository.NewProgressRepository(db),
		Assignments:  repository.NewAssignmentRepository(db),
		Quizzes:      repository.NewQuizRepository(db),
		Certificates: repository.NewCertificateRepository(db),
		Templates:    repository.NewCertificateTemplateRepository(db),
		Payments:     repository.NewPaymentRepository(db),
		Purge:        repository.NewPurgeRepository(db),
	}
}

func (r Repositories) guard() accessGuard {
	return newAccessGuard(r.Students, r.Instructors, r.Curriculum, r.Enrollments)
}

func (r Repositories) standing(policy string) standingReader {
	return standingReader{
		progress:     r.Progress,
		assignments:  r.Assignments,
		certificates: r.Certificates,
		templates:    r.Templates,
		policy:       policy,
	}
}
