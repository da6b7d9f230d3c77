package models

import "time"

// Payment statuses. Failed is terminal for an order.
const (
	PaymentStatusPending = "pending"
	PaymentStatusSuccess = "success"
	PaymentStatusFailed  = "failed"
)

// CoursePayment tracks one course inside a gateway order. A bulk order holds one
// row per course, all sharing the gateway order id.
type CoursePayment struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	StudentID        uint      `gorm:"not null;index" json:"student_id"`
	CourseID         uint      `gorm:"not null;index;uniqueIndex:idx_payment_order_course,priority:2" json:"course_id"`
	GatewayOrderID   string    `gorm:"size:100;not null;uniqueIndex:idx_payment_order_course,priority:1" json:"order_id"`
	GatewayPaymentID string    `gorm:"size:100" json:"payment_id,omitempty"`
	GatewaySignature string    `gorm:"size:255" json:"-"`
	OriginalPrice    float64   `gorm:"not null" json:"original_price"`
	DiscountPercent  float64   `gorm:"not null;default:0" json:"discount_percent"`
	AmountPaid       float64   `gorm:"not null" json:"amount"`
	Currency         string    `gorm:"size:8;not null" json:"currency"`
	Status           string    `gorm:"size:16;not null" json:"status"`
	IsPaid           bool      `gorm:"not null;default:false" json:"is_paid"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Course           Course    `gorm:"foreignKey:CourseID" json:"-"`
}
