package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/observability"
	"github.com/noah-isme/gema-lms-api/pkg/razorpay"
)

// PaymentGateway creates orders and checks checkout signatures.
type PaymentGateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, req razorpay.OrderRequest) (razorpay.Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

// PaymentService runs the order, verify, mark paid and enroll flow for paid courses,
// for one course or a cart of several under one gateway order.
type PaymentService interface {
	CreateOrder(ctx context.Context, principal Principal, courseID uint) (dto.PaymentOrderResponse, error)
	CreateBulkOrder(ctx context.Context, principal Principal, req dto.BulkOrderRequest) (dto.BulkOrderResponse, error)
	Verify(ctx context.Context, principal Principal, req dto.PaymentVerifyRequest) (dto.PaymentResponse, error)
	VerifyBulk(ctx context.Context, principal Principal, req dto.PaymentVerifyRequest) (dto.BulkPaymentResponse, error)
	List(ctx context.Context, principal Principal) ([]dto.PaymentResponse, error)
}

type paymentService struct {
	repos     Repositories
	guard     accessGuard
	gateway   PaymentGateway
	currency  string
	publisher EventPublisher
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewPaymentService constructs the payment service. A nil gateway rejects every order.
func NewPaymentService(repos Repositories, gateway PaymentGateway, currency string, publisher EventPublisher, validate *validator.Validate, logger zerolog.Logger) PaymentService {
	if strings.TrimSpace(currency) == "" {
		currency = "INR"
	}
	return &paymentService{
		repos:     repos,
		guard:     repos.guard(),
		gateway:   gateway,
		currency:  strings.ToUpper(currency),
		publisher: publisher,
		validate:  validate,
		logger:    logger.With().Str("component", "payment_service").Logger(),
	}
}

func (s *paymentService) CreateOrder(ctx context.Context, principal Principal, courseID uint) (dto.PaymentOrderResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-lms-api/internal/service/payment")
	ctx, span := tracer.Start(ctx, "payment.create_order")
	span.SetAttributes(attribute.Int64("payment.course_id", int64(courseID)))
	defer span.End()

	student, err := s.guard.student(ctx, principal)
	if err != nil {
		span.RecordError(err)
		return dto.PaymentOrderResponse{}, err
	}
	course, err := s.guard.course(ctx, courseID)
	if err != nil {
		span.RecordError(err)
		return dto.PaymentOrderResponse{}, err
	}

	amount := course.EffectivePrice()
	if amount <= 0 {
		return dto.PaymentOrderResponse{}, ErrCourseIsFree
	}

	enrolled, err := s.repos.Enrollments.Exists(ctx, student.ID, course.ID)
	if err != nil {
		return dto.PaymentOrderResponse{}, err
	}
	if enrolled {
		return dto.PaymentOrderResponse{}, ErrAlreadyEnrolled
	}

	if s.gateway == nil {
		span.SetStatus(codes.Error, "gateway_not_configured")
		return dto.PaymentOrderResponse{}, ErrPaymentGateway
	}

	order, err := s.gateway.CreateOrder(ctx, razorpay.OrderRequest{
		Amount:   razorpay.ToMinorUnits(amount),
		Currency: s.currency,
		Receipt:  fmt.Sprintf("c%d-s%d", course.ID, student.ID),
		Notes: map[string]string{
			"course_id":  fmt.Sprint(course.ID),
			"student_id": fmt.Sprint(student.ID),
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway_failed")
		s.logger.Error().Err(err).Uint("course_id", course.ID).Uint("student_id", student.ID).Msg("payment order creation failed")
		return dto.PaymentOrderResponse{}, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	payment := models.CoursePayment{
		StudentID:       student.ID,
		CourseID:        course.ID,
		GatewayOrderID:  order.ID,
		OriginalPrice:   course.Price,
		DiscountPercent: course.Discount,
		AmountPaid:      amount,
		Currency:        s.currency,
		Status:          models.PaymentStatusPending,
	}
	if err := s.repos.Payments.Create(ctx, &payment); err != nil {
		span.RecordError(err)
		return dto.PaymentOrderResponse{}, err
	}

	observability.Payments().WithLabelValues(models.PaymentStatusPending).Inc()
	span.SetAttributes(attribute.String("payment.order_id", order.ID))
	s.logger.Info().Str("order_id", order.ID).Uint("course_id", course.ID).Uint("student_id", student.ID).Float64("amount", amount).Msg("payment order created")

	return dto.PaymentOrderResponse{
		OrderID:         order.ID,
		CourseID:        course.ID,
		KeyID:           s.gateway.KeyID(),
		Amount:          amount,
		AmountMinor:     razorpay.ToMinorUnits(amount),
		Currency:        s.currency,
		OriginalPrice:   course.Price,
		DiscountPercent: course.Discount,
	}, nil
}

// CreateBulkOrder prices a cart and opens one gateway order for every payable
// course in it. Free and already owned courses are skipped, not rejected.
func (s *paymentService) CreateBulkOrder(ctx context.Context, principal Principal, req dto.BulkOrderRequest) (dto.BulkOrderResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-lms-api/internal/service/payment")
	ctx, span := tracer.Start(ctx, "payment.create_bulk_order")
	defer span.End()

	if err := s.validate.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.BulkOrderResponse{}, err
	}

	student, err := s.guard.student(ctx, principal)
	if err != nil {
		span.RecordError(err)
		return dto.BulkOrderResponse{}, err
	}

	var (
		courses []models.Course
		skipped []uint
		total   float64
	)
	seen := make(map[uint]struct{}, len(req.CourseIDs))
	for _, courseID := range req.CourseIDs {
		if _, ok := seen[courseID]; ok {
			continue
		}
		seen[courseID] = struct{}{}

		course, err := s.guard.course(ctx, courseID)
		if err != nil {
			span.RecordError(err)
			return dto.BulkOrderResponse{}, err
		}
		enrolled, err := s.repos.Enrollments.Exists(ctx, student.ID, course.ID)
		if err != nil {
			return dto.BulkOrderResponse{}, err
		}
		if enrolled || course.EffectivePrice() <= 0 {
			skipped = append(skipped, course.ID)
			continue
		}
		courses = append(courses, course)
		total += course.EffectivePrice()
	}
	span.SetAttributes(attribute.Int("payment.courses", len(courses)), attribute.Int("payment.skipped", len(skipped)))

	if len(courses) == 0 {
		return dto.BulkOrderResponse{}, ErrNothingToPay
	}
	if s.gateway == nil {
		span.SetStatus(codes.Error, "gateway_not_configured")
		return dto.BulkOrderResponse{}, ErrPaymentGateway
	}

	total = math.Round(total*100) / 100
	order, err := s.gateway.CreateOrder(ctx, razorpay.OrderRequest{
		Amount:   razorpay.ToMinorUnits(total),
		Currency: s.currency,
		Receipt:  fmt.Sprintf("bulk-s%d-n%d", student.ID, len(courses)),
		Notes: map[string]string{
			"student_id": fmt.Sprint(student.ID),
			"course_ids": joinIDs(courses),
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway_failed")
		s.logger.Error().Err(err).Uint("student_id", student.ID).Int("courses", len(courses)).Msg("bulk payment order creation failed")
		return dto.BulkOrderResponse{}, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	rows := make([]*models.CoursePayment, 0, len(courses))
	items := make([]dto.BulkOrderItem, 0, len(courses))
	for _, course := range courses {
		rows = append(rows, &models.CoursePayment{
			StudentID:       student.ID,
			CourseID:        course.ID,
			GatewayOrderID:  order.ID,
			OriginalPrice:   course.Price,
			DiscountPercent: course.Discount,
			AmountPaid:      course.EffectivePrice(),
			Currency:        s.currency,
			Status:          models.PaymentStatusPending,
		})
		items = append(items, dto.BulkOrderItem{
			CourseID:        course.ID,
			Amount:          course.EffectivePrice(),
			OriginalPrice:   course.Price,
			DiscountPercent: course.Discount,
		})
	}
	if err := s.repos.Payments.Create(ctx, rows...); err != nil {
		span.RecordError(err)
		return dto.BulkOrderResponse{}, err
	}

	observability.Payments().WithLabelValues(models.PaymentStatusPending).Add(float64(len(rows)))
	span.SetAttributes(attribute.String("payment.order_id", order.ID))
	s.logger.Info().Str("order_id", order.ID).Uint("student_id", student.ID).Int("courses", len(rows)).Float64("amount", total).Msg("bulk payment order created")

	return dto.BulkOrderResponse{
		OrderID:     order.ID,
		KeyID:       s.gateway.KeyID(),
		Amount:      total,
		AmountMinor: razorpay.ToMinorUnits(total),
		Currency:    s.currency,
		Items:       items,
		Skipped:     skipped,
	}, nil
}

func joinIDs(courses []models.Course) string {
	ids := make([]string, 0, len(courses))
	for _, course := range courses {
		ids = append(ids, strconv.FormatUint(uint64(course.ID), 10))
	}
	return strings.Join(ids, ",")
}

// Verify settles a single-course order. Bulk orders are verified through VerifyBulk.
func (s *paymentService) Verify(ctx context.Context, principal Principal, req dto.PaymentVerifyRequest) (dto.PaymentResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-lms-api/internal/service/payment")
	ctx, span := tracer.Start(ctx, "payment.verify")
	span.SetAttributes(attribute.String("payment.order_id", req.OrderID))
	defer span.End()

	payments, err := s.verifyOrder(ctx, principal, req, false)
	if err != nil {
		return dto.PaymentResponse{}, err
	}
	return dto.NewPaymentResponse(payments[0], true), nil
}

// VerifyBulk settles every course of an order, single or bulk.
func (s *paymentService) VerifyBulk(ctx context.Context, principal Principal, req dto.PaymentVerifyRequest) (dto.BulkPaymentResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-lms-api/internal/service/payment")
	ctx, span := tracer.Start(ctx, "payment.verify_bulk")
	span.SetAttributes(attribute.String("payment.order_id", req.OrderID))
	defer span.End()

	payments, err := s.verifyOrder(ctx, principal, req, true)
	if err != nil {
		return dto.BulkPaymentResponse{}, err
	}

	response := dto.BulkPaymentResponse{OrderID: payments[0].GatewayOrderID, Payments: make([]dto.PaymentResponse, 0, len(payments))}
	for _, payment := range payments {
		response.Payments = append(response.Payments, dto.NewPaymentResponse(payment, true))
	}
	return response, nil
}

// verifyOrder checks the gateway signature, then marks every row of the order paid
// and enrolls the student in one transaction. A mismatched signature closes the
// order for good.
func (s *paymentService) verifyOrder(ctx context.Context, principal Principal, req dto.PaymentVerifyRequest, allowBulk bool) ([]models.CoursePayment, error) {
	span := trace.SpanFromContext(ctx)

	if err := s.validate.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return nil, err
	}

	student, err := s.guard.student(ctx, principal)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	payments, err := s.order(ctx, student.ID, req.OrderID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !allowBulk && len(payments) > 1 {
		return nil, ErrBulkOrder
	}
	span.SetAttributes(attribute.Int("payment.courses", len(payments)))

	orderID := payments[0].GatewayOrderID
	switch payments[0].Status {
	case models.PaymentStatusSuccess:
		return payments, nil
	case models.PaymentStatusFailed:
		return nil, ErrPaymentClosed
	}

	if s.gateway == nil {
		return nil, ErrPaymentGateway
	}

	if !s.gateway.VerifySignature(orderID, req.PaymentID, req.Signature) {
		if err := s.repos.Payments.MarkFailed(ctx, orderID, req.PaymentID, req.Signature); err != nil {
			span.RecordError(err)
			return nil, err
		}
		observability.Payments().WithLabelValues(models.PaymentStatusFailed).Add(float64(len(payments)))
		span.SetStatus(codes.Error, "signature_mismatch")
		s.logger.Warn().Str("order_id", orderID).Uint("student_id", student.ID).Int("courses", len(payments)).Msg("payment signature mismatch")
		return nil, ErrPaymentSignatureMismatch
	}

	enrollments := make([]*models.Enrollment, 0, len(payments))
	for _, payment := range payments {
		enrollments = append(enrollments, &models.Enrollment{StudentID: student.ID, CourseID: payment.CourseID, Source: models.EnrollmentSourcePayment})
	}
	created, err := s.repos.Payments.CompleteAndEnroll(ctx, orderID, req.PaymentID, req.Signature, enrollments)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "complete_failed")
			return nil, err
		}
		// Another verify call moved the order out of pending first.
		current, lookupErr := s.order(ctx, student.ID, orderID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if current[0].Status == models.PaymentStatusSuccess {
			return current, nil
		}
		return nil, ErrPaymentClosed
	}

	for i := range payments {
		payments[i].Status = models.PaymentStatusSuccess
		payments[i].IsPaid = true
		payments[i].GatewayPaymentID = req.PaymentID
	}

	observability.Payments().WithLabelValues(models.PaymentStatusSuccess).Add(float64(len(payments)))
	for i, payment := range payments {
		s.logger.Info().
			Str("order_id", orderID).
			Uint("student_id", student.ID).
			Uint("course_id", payment.CourseID).
			Bool("enrollment_created", created[i]).
			Msg("payment verified")

		publishAsync(ctx, s.publisher, s.logger, SubjectPaymentVerified, map[string]interface{}{
			"order_id":   orderID,
			"payment_id": payment.GatewayPaymentID,
			"student_id": student.ID,
			"course_id":  payment.CourseID,
			"amount":     payment.AmountPaid,
			"currency":   payment.Currency,
		})
		if created[i] {
			publishAsync(ctx, s.publisher, s.logger, SubjectEnrollmentCreated, map[string]interface{}{
				"student_id": student.ID,
				"course_id":  payment.CourseID,
				"source":     enrollments[i].Source,
			})
		}
	}

	return payments, nil
}

func (s *paymentService) List(ctx context.Context, principal Principal) ([]dto.PaymentResponse, error) {
	student, err := s.guard.student(ctx, principal)
	if err != nil {
		return nil, err
	}

	payments, err := s.repos.Payments.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, err
	}
	return dto.NewPaymentResponseSlice(payments), nil
}

// order loads the rows of a student's order. Orders of other students are reported as unknown.
func (s *paymentService) order(ctx context.Context, studentID uint, orderID string) ([]models.CoursePayment, error) {
	payments, err := s.repos.Payments.ListByOrderID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if payments[0].StudentID != studentID {
		return nil, ErrPaymentNotFound
	}
	return payments, nil
}
