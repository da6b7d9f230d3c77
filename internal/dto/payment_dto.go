package dto

import (
	"time"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// EnrollmentResponse acknowledges an enrollment.
type EnrollmentResponse struct {
	CourseID   uint      `json:"course_id"`
	Source     string    `json:"source"`
	Created    bool      `json:"created"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// PaymentOrderResponse is what the checkout widget needs to collect a payment.
type PaymentOrderResponse struct {
	OrderID         string  `json:"order_id"`
	CourseID        uint    `json:"course_id"`
	KeyID           string  `json:"key_id"`
	Amount          float64 `json:"amount"`
	AmountMinor     int64   `json:"amount_minor"`
	Currency        string  `json:"currency"`
	OriginalPrice   float64 `json:"original_price"`
	DiscountPercent float64 `json:"discount_percent"`
}

// BulkOrderRequest lists the courses of a cart checkout.
type BulkOrderRequest struct {
	CourseIDs []uint `json:"course_ids" validate:"required,min=1,max=20,dive,gt=0"`
}

// BulkOrderItem is one course priced inside a bulk order.
type BulkOrderItem struct {
	CourseID        uint    `json:"course_id"`
	Amount          float64 `json:"amount"`
	OriginalPrice   float64 `json:"original_price"`
	DiscountPercent float64 `json:"discount_percent"`
}

// BulkOrderResponse is one gateway order covering several courses. Skipped lists
// requested courses that are free or already owned.
type BulkOrderResponse struct {
	OrderID     string          `json:"order_id"`
	KeyID       string          `json:"key_id"`
	Amount      float64         `json:"amount"`
	AmountMinor int64           `json:"amount_minor"`
	Currency    string          `json:"currency"`
	Items       []BulkOrderItem `json:"items"`
	Skipped     []uint          `json:"skipped,omitempty"`
}

// BulkPaymentResponse reports every course settled by one verified order.
type BulkPaymentResponse struct {
	OrderID  string            `json:"order_id"`
	Payments []PaymentResponse `json:"payments"`
}

// PaymentVerifyRequest carries the gateway's checkout callback fields.
type PaymentVerifyRequest struct {
	OrderID   string `json:"razorpay_order_id" validate:"required,max=100"`
	PaymentID string `json:"razorpay_payment_id" validate:"required,max=100"`
	Signature string `json:"razorpay_signature" validate:"required,hexadecimal,max=255"`
}

// PaymentResponse is the serialized payment record.
type PaymentResponse struct {
	OrderID   string    `json:"order_id"`
	PaymentID string    `json:"payment_id,omitempty"`
	CourseID  uint      `json:"course_id"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	IsPaid    bool      `json:"is_paid"`
	Enrolled  bool      `json:"enrolled"`
	CreatedAt time.Time `json:"created_at"`
}

// ProfileRequest upserts the caller's student or instructor profile.
type ProfileRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=64"`
	FirstName string `json:"first_name" validate:"omitempty,max=100"`
	LastName  string `json:"last_name" validate:"omitempty,max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
	Bio       string `json:"bio" validate:"omitempty,max=2000"`
}

// ProfileResponse is the serialized profile.
type ProfileResponse struct {
	ID          uint   `json:"id"`
	UserID      uint   `json:"user_id"`
	Role        string `json:"role"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

// NewPaymentResponse converts a model into a DTO.
func NewPaymentResponse(model models.CoursePayment, enrolled bool) PaymentResponse {
	return PaymentResponse{
		OrderID:   model.GatewayOrderID,
		PaymentID: model.GatewayPaymentID,
		CourseID:  model.CourseID,
		Amount:    model.AmountPaid,
		Currency:  model.Currency,
		Status:    model.Status,
		IsPaid:    model.IsPaid,
		Enrolled:  enrolled,
		CreatedAt: model.CreatedAt,
	}
}

// NewPaymentResponseSlice converts payments into DTOs.
func NewPaymentResponseSlice(payments []models.CoursePayment) []PaymentResponse {
	responses := make([]PaymentResponse, 0, len(payments))
	for _, payment := range payments {
		responses = append(responses, NewPaymentResponse(payment, payment.IsPaid))
	}
	return responses
}
