package models

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&Instructor{},
		&Student{},
		&CertificateTemplate{},
		&Course{},
		&Lesson{},
		&Concept{},
		&LessonContent{},
		&Quiz{},
		&QuizQuestion{},
		&Enrollment{},
		&ContentCompletion{},
		&StudentProgress{},
		&Assignment{},
		&AssignmentSubmission{},
		&Certificate{},
		&CoursePayment{},
	}
}
