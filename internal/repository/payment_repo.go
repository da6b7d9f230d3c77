package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// PaymentRepository persists gateway orders for course purchases. Every method
// that changes state works on a whole order so bulk checkouts settle together.
type PaymentRepository interface {
	Create(ctx context.Context, payments ...*models.CoursePayment) error
	ListByOrderID(ctx context.Context, orderID string) ([]models.CoursePayment, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.CoursePayment, error)
	MarkFailed(ctx context.Context, orderID, paymentID, signature string) error
	CompleteAndEnroll(ctx context.Context, orderID, paymentID, signature string, enrollments []*models.Enrollment) ([]bool, error)
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository instantiates a GORM-backed payment repository.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create stores the rows of one order in a single transaction.
func (r *paymentRepository) Create(ctx context.Context, payments ...*models.CoursePayment) error {
	if len(payments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, payment := range payments {
			if err := tx.Omit("Course").Create(payment).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListByOrderID returns the rows of an order, or gorm.ErrRecordNotFound.
func (r *paymentRepository) ListByOrderID(ctx context.Context, orderID string) ([]models.CoursePayment, error) {
	var payments []models.CoursePayment
	if err := r.db.WithContext(ctx).
		Where("gateway_order_id = ?", orderID).
		Order("id ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return payments, nil
}

func (r *paymentRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.CoursePayment, error) {
	var payments []models.CoursePayment
	if err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// MarkFailed moves the pending rows of an order into the terminal failed state.
func (r *paymentRepository) MarkFailed(ctx context.Context, orderID, paymentID, signature string) error {
	return r.db.WithContext(ctx).Model(&models.CoursePayment{}).
		Where("gateway_order_id = ? AND status = ?", orderID, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":             models.PaymentStatusFailed,
			"gateway_payment_id": paymentID,
			"gateway_signature":  signature,
		}).Error
}

// CompleteAndEnroll marks every row of the order paid and writes one enrollment per
// row atomically. Unless all rows were still pending nothing changes and
// gorm.ErrRecordNotFound is returned. The booleans report, per enrollment, whether
// a new row was written.
func (r *paymentRepository) CompleteAndEnroll(ctx context.Context, orderID, paymentID, signature string, enrollments []*models.Enrollment) ([]bool, error) {
	created := make([]bool, len(enrollments))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.CoursePayment{}).
			Where("gateway_order_id = ? AND status = ?", orderID, models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"status":             models.PaymentStatusSuccess,
				"is_paid":            true,
				"gateway_payment_id": paymentID,
				"gateway_signature":  signature,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 || result.RowsAffected != int64(len(enrollments)) {
			return gorm.ErrRecordNotFound
		}

		for i, enrollment := range enrollments {
			ok, err := createEnrollment(tx, enrollment)
			if err != nil {
				return err
			}
			created[i] = ok
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
