package service

import (
	"errors"
	"fmt"
)

var (
	// ErrCourseNotFound indicates the course does not exist or is soft-deleted.
	ErrCourseNotFound = errors.New("course not found")
	// ErrLessonNotFound indicates the lesson is missing or hidden by a deleted ancestor.
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrConceptNotFound indicates the concept is missing or hidden by a deleted ancestor.
	ErrConceptNotFound = errors.New("concept not found")
	// ErrContentNotFound indicates the content item is missing or hidden by a deleted ancestor.
	ErrContentNotFound = errors.New("content not found")
	// ErrContentNotInCourse indicates the content belongs to another course.
	ErrContentNotInCourse = errors.New("content does not belong to course")
	// ErrModalityUnsupported indicates a completion mark for a modality the content lacks.
	ErrModalityUnsupported = errors.New("content does not support modality")
	// ErrOrderConflict indicates concurrent inserts kept colliding on the sibling order.
	ErrOrderConflict = errors.New("concurrent update on sibling order, retry")
	// ErrRestoreWindowExpired indicates the node is past its retention window.
	ErrRestoreWindowExpired = errors.New("restore window expired")
	// ErrNodeNotDeleted indicates a restore on a live node.
	ErrNodeNotDeleted = errors.New("node is not deleted")
	// ErrContentPayloadMissing indicates a content item without the payload its type needs.
	ErrContentPayloadMissing = errors.New("content payload missing for content type")
	// ErrStorageUnavailable indicates no file storage is configured or it failed.
	ErrStorageUnavailable = errors.New("file storage unavailable")
	// ErrUnsupportedMedia indicates an uploaded lesson file is neither video nor pdf.
	ErrUnsupportedMedia = errors.New("unsupported media type")

	// ErrProfileNotFound indicates the caller has no student or instructor profile.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrNotCourseOwner indicates the caller does not own the course.
	ErrNotCourseOwner = errors.New("course belongs to another instructor")
	// ErrNotEnrolled indicates the student is not enrolled in the course.
	ErrNotEnrolled = errors.New("student not enrolled in course")
	// ErrForbidden indicates the caller's role may not perform the operation.
	ErrForbidden = errors.New("operation not permitted for role")

	// ErrAssignmentNotFound indicates the assignment does not exist in the course.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrUnknownAssignment indicates an answer for an assignment outside the course.
	ErrUnknownAssignment = errors.New("answer references unknown assignment")

	// ErrQuizExists indicates the lesson already has a quiz.
	ErrQuizExists = errors.New("lesson already has a quiz")
	// ErrQuizNotFound indicates the lesson has no quiz.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidQuestion indicates the correct answer is blank.
	ErrInvalidQuestion = errors.New("question requires a correct answer")

	// ErrTemplateNotFound indicates the certificate template does not exist or is not visible.
	ErrTemplateNotFound = errors.New("certificate template not found")
	// ErrTemplateInUse indicates a template still assigned to a course.
	ErrTemplateInUse = errors.New("certificate template is assigned to a course")
	// ErrTemplateUnsupported indicates an uploaded template of an unknown format.
	ErrTemplateUnsupported = errors.New("unsupported certificate template format")
	// ErrTemplateTooLarge indicates an uploaded template beyond the size limit.
	ErrTemplateTooLarge = errors.New("certificate template exceeds maximum size")
	// ErrCertificateNotFound indicates no certificate has been issued.
	ErrCertificateNotFound = errors.New("certificate not found")
	// ErrIssuanceFailed indicates rendering or storage failed; the request can be retried.
	ErrIssuanceFailed = errors.New("certificate issuance failed, retry later")

	// ErrCourseIsFree indicates a payment order for a free course.
	ErrCourseIsFree = errors.New("course is free, enroll directly")
	// ErrPaymentRequired indicates a direct enrollment into a paid course.
	ErrPaymentRequired = errors.New("course requires payment")
	// ErrAlreadyEnrolled indicates an order for a course the student already has.
	ErrAlreadyEnrolled = errors.New("student already enrolled")
	// ErrPaymentNotFound indicates an unknown gateway order.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrPaymentSignatureMismatch indicates the gateway signature did not verify.
	ErrPaymentSignatureMismatch = errors.New("payment signature mismatch")
	// ErrPaymentClosed indicates a verify call on an order that already failed.
	ErrPaymentClosed = errors.New("payment order is closed, create a new order")
	// ErrPaymentGateway indicates the gateway could not be reached.
	ErrPaymentGateway = errors.New("payment gateway unavailable")
	// ErrNothingToPay indicates a bulk order whose courses are all free or already owned.
	ErrNothingToPay = errors.New("no payable courses in order")
	// ErrBulkOrder indicates a single-course verify call on a bulk order.
	ErrBulkOrder = errors.New("order covers several courses, verify it as a bulk order")
)

// Eligibility reason codes, reported in the order they are checked.
const (
	ReasonProgressIncomplete   = "progress_incomplete"
	ReasonNoAssignmentAttempts = "no_assignment_attempts"
	ReasonScoreBelowThreshold  = "score_below_threshold"
	ReasonTemplateMissing      = "template_missing"
)

// IneligibleError reports why a certificate cannot be issued yet.
type IneligibleError struct {
	Reason string
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("certificate not eligible: %s", e.Reason)
}
