package service

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// Roles carried by authenticated principals.
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID uint
	Role   string
}

// IsAdmin reports an administrator.
func (p Principal) IsAdmin() bool {
	return strings.EqualFold(p.Role, RoleAdmin)
}

// IsStudent reports a learner.
func (p Principal) IsStudent() bool {
	return strings.EqualFold(p.Role, RoleStudent)
}

// accessGuard resolves profiles and answers ownership and enrollment questions for services.
type accessGuard struct {
	students    repository.StudentRepository
	instructors repository.InstructorRepository
	courses     repository.CurriculumRepository
	enrollments repository.EnrollmentRepository
}

func newAccessGuard(students repository.StudentRepository, instructors repository.InstructorRepository, courses repository.CurriculumRepository, enrollments repository.EnrollmentRepository) accessGuard {
	return accessGuard{students: students, instructors: instructors, courses: courses, enrollments: enrollments}
}

func (g accessGuard) student(ctx context.Context, p Principal) (models.Student, error) {
	if !p.IsStudent() {
		return models.Student{}, ErrForbidden
	}
	student, err := g.students.GetByUserID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Student{}, ErrProfileNotFound
		}
		return models.Student{}, err
	}
	return student, nil
}

func (g accessGuard) instructor(ctx context.Context, p Principal) (models.Instructor, error) {
	if p.IsStudent() {
		return models.Instructor{}, ErrForbidden
	}
	instructor, err := g.instructors.GetByUserID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Instructor{}, ErrProfileNotFound
		}
		return models.Instructor{}, err
	}
	return instructor, nil
}

func (g accessGuard) course(ctx context.Context, courseID uint) (models.Course, error) {
	course, err := g.courses.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, ErrCourseNotFound
		}
		return models.Course{}, err
	}
	return course, nil
}

// ownedCourse loads a live course the caller may modify. Admins bypass ownership.
func (g accessGuard) ownedCourse(ctx context.Context, p Principal, courseID uint) (models.Course, error) {
	course, err := g.course(ctx, courseID)
	if err != nil {
		return models.Course{}, err
	}
	if p.IsAdmin() {
		return course, nil
	}
	instructor, err := g.instructor(ctx, p)
	if err != nil {
		return models.Course{}, err
	}
	if course.InstructorID != instructor.ID {
		return models.Course{}, ErrNotCourseOwner
	}
	return course, nil
}

// enrolledStudent loads the caller's student profile and a live course they are enrolled in.
func (g accessGuard) enrolledStudent(ctx context.Context, p Principal, courseID uint) (models.Student, models.Course, error) {
	student, err := g.student(ctx, p)
	if err != nil {
		return models.Student{}, models.Course{}, err
	}
	course, err := g.course(ctx, courseID)
	if err != nil {
		return models.Student{}, models.Course{}, err
	}
	enrolled, err := g.enrollments.Exists(ctx, student.ID, course.ID)
	if err != nil {
		return models.Student{}, models.Course{}, err
	}
	if !enrolled {
		return models.Student{}, models.Course{}, ErrNotEnrolled
	}
	return student, course, nil
}

// reader loads a course readable by the caller: its instructor, an admin or an enrolled student.
func (g accessGuard) reader(ctx context.Context, p Principal, courseID uint) (models.Course, error) {
	if p.IsStudent() {
		_, course, err := g.enrolledStudent(ctx, p, courseID)
		return course, err
	}
	return g.ownedCourse(ctx, p, courseID)
}
