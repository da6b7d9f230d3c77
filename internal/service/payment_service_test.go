package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/pkg/razorpay"
)

// fakeGateway signs like the real client but issues orders locally.
type fakeGateway struct {
	*razorpay.Client
	mu     sync.Mutex
	orders []razorpay.OrderRequest
	err    error
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	client, err := razorpay.New(razorpay.Config{KeyID: "rzp_test_key", KeySecret: "rzp_test_secret"}, testLogger())
	require.NoError(t, err)
	return &fakeGateway{Client: client}
}

func (g *fakeGateway) CreateOrder(_ context.Context, req razorpay.OrderRequest) (razorpay.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return razorpay.Order{}, g.err
	}
	g.orders = append(g.orders, req)
	return razorpay.Order{
		ID:       fmt.Sprintf("order_%d", len(g.orders)),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

func (f *fixture) paidCourse(t *testing.T, price, discount float64) models.Course {
	t.Helper()
	course := models.Course{InstructorID: f.instructor.ID, Title: "Paid engines", Price: price, Discount: discount, CertificateTemplateID: &f.template.ID}
	require.NoError(t, f.db.Create(&course).Error)
	return course
}

func TestCreateOrderRejectsFreeCourse(t *testing.T) {
	f := newFixture(t, 1, 0)
	svc := NewPaymentService(f.repos, newFakeGateway(t), "inr", nil, testValidator(), testLogger())

	_, err := svc.CreateOrder(context.Background(), studentPrincipal, f.course.ID)
	require.ErrorIs(t, err, ErrCourseIsFree)
}

func TestPaymentVerifyEnrollsStudent(t *testing.T) {
	f := newFixture(t, 1, 0)
	gateway := newFakeGateway(t)
	publisher := &recordingPublisher{}
	svc := NewPaymentService(f.repos, gateway, "inr", publisher, testValidator(), testLogger())
	course := f.paidCourse(t, 500, 10)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, studentPrincipal, course.ID)
	require.NoError(t, err)
	require.Equal(t, 450.0, order.Amount)
	require.Equal(t, int64(45000), order.AmountMinor)
	require.Equal(t, "INR", order.Currency)
	require.Equal(t, "rzp_test_key", order.KeyID)
	require.Equal(t, fmt.Sprintf("c%d-s%d", course.ID, f.student.ID), gateway.orders[0].Receipt)

	pending, err := f.repos.Payments.ListByOrderID(ctx, order.OrderID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, models.PaymentStatusPending, pending[0].Status)

	req := dto.PaymentVerifyRequest{OrderID: order.OrderID, PaymentID: "pay_1", Signature: gateway.Sign(order.OrderID, "pay_1")}
	paid, err := svc.Verify(ctx, studentPrincipal, req)
	require.NoError(t, err)
	require.True(t, paid.IsPaid)
	require.True(t, paid.Enrolled)
	require.Equal(t, models.PaymentStatusSuccess, paid.Status)

	enrolled, err := f.repos.Enrollments.Exists(ctx, f.student.ID, course.ID)
	require.NoError(t, err)
	require.True(t, enrolled)

	again, err := svc.Verify(ctx, studentPrincipal, req)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusSuccess, again.Status)

	_, err = svc.CreateOrder(ctx, studentPrincipal, course.ID)
	require.ErrorIs(t, err, ErrAlreadyEnrolled)

	require.Eventually(t, func() bool {
		return publisher.count(SubjectPaymentVerified) == 1 && publisher.count(SubjectEnrollmentCreated) == 1
	}, time.Second, 10*time.Millisecond)

	history, err := svc.List(ctx, studentPrincipal)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestPaymentSignatureMismatchClosesOrder(t *testing.T) {
	f := newFixture(t, 1, 0)
	gateway := newFakeGateway(t)
	svc := NewPaymentService(f.repos, gateway, "inr", nil, testValidator(), testLogger())
	course := f.paidCourse(t, 200, 0)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, studentPrincipal, course.ID)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, studentPrincipal, dto.PaymentVerifyRequest{OrderID: order.OrderID, PaymentID: "pay_1", Signature: "deadbeef"})
	require.ErrorIs(t, err, ErrPaymentSignatureMismatch)

	failed, err := f.repos.Payments.ListByOrderID(ctx, order.OrderID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusFailed, failed[0].Status)
	require.False(t, failed[0].IsPaid)

	_, err = svc.Verify(ctx, studentPrincipal, dto.PaymentVerifyRequest{OrderID: order.OrderID, PaymentID: "pay_1", Signature: gateway.Sign(order.OrderID, "pay_1")})
	require.ErrorIs(t, err, ErrPaymentClosed)

	enrolled, err := f.repos.Enrollments.Exists(ctx, f.student.ID, course.ID)
	require.NoError(t, err)
	require.False(t, enrolled)

	retry, err := svc.CreateOrder(ctx, studentPrincipal, course.ID)
	require.NoError(t, err)
	require.NotEqual(t, order.OrderID, retry.OrderID)
}

func TestPaymentVerifyHidesOtherStudentsOrders(t *testing.T) {
	f := newFixture(t, 1, 0)
	gateway := newFakeGateway(t)
	svc := NewPaymentService(f.repos, gateway, "inr", nil, testValidator(), testLogger())
	course := f.paidCourse(t, 200, 0)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, studentPrincipal, course.ID)
	require.NoError(t, err)

	_, err = svc.Verify(ctx, strangerPrincipal, dto.PaymentVerifyRequest{OrderID: order.OrderID, PaymentID: "pay_1", Signature: gateway.Sign(order.OrderID, "pay_1")})
	require.ErrorIs(t, err, ErrPaymentNotFound)

	_, err = svc.Verify(ctx, studentPrincipal, dto.PaymentVerifyRequest{OrderID: "order_missing", PaymentID: "pay_1", Signature: "abcd"})
	require.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestCreateOrderGatewayFailures(t *testing.T) {
	f := newFixture(t, 1, 0)
	course := f.paidCourse(t, 200, 0)
	ctx := context.Background()

	unconfigured := NewPaymentService(f.repos, nil, "inr", nil, testValidator(), testLogger())
	_, err := unconfigured.CreateOrder(ctx, studentPrincipal, course.ID)
	require.ErrorIs(t, err, ErrPaymentGateway)

	gateway := newFakeGateway(t)
	gateway.err = errors.New("upstream timeout")
	failing := NewPaymentService(f.repos, gateway, "inr", nil, testValidator(), testLogger())
	_, err = failing.CreateOrder(ctx, studentPrincipal, course.ID)
	require.ErrorIs(t, err, ErrPaymentGateway)

	history, err := failing.List(ctx, studentPrincipal)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestBulkOrderCoversPayableCourses(t *testing.T) {
	f := newFixture(t, 1, 0)
	gateway := newFakeGateway(t)
	publisher := &recordingPublisher{}
	svc := NewPaymentService(f.repos, gateway, "inr", publisher, testValidator(), testLogger())
	first := f.paidCourse(t, 500, 10)
	second := f.paidCourse(t, 199.99, 0)
	free := f.paidCourse(t, 300, 100)
	ctx := context.Background()

	order, err := svc.CreateBulkOrder(ctx, studentPrincipal, dto.BulkOrderRequest{
		CourseIDs: []uint{first.ID, second.ID, first.ID, free.ID, f.course.ID},
	})
	require.NoError(t, err)
	require.Equal(t, 649.99, order.Amount)
	require.Equal(t, int64(64999), order.AmountMinor)
	require.Len(t, order.Items, 2)
	require.ElementsMatch(t, []uint{free.ID, f.course.ID}, order.Skipped)
	require.Len(t, gateway.orders, 1)

	rows, err := f.repos.Payments.ListByOrderID(ctx, order.OrderID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	req := dto.PaymentVerifyRequest{OrderID: order.OrderID, PaymentID: "pay_bulk", Signature: gateway.Sign(order.OrderID, "pay_bulk")}
	_, err = svc.Verify(ctx, studentPrincipal, req)
	require.ErrorIs(t, err, ErrBulkOrder)

	settled, err := svc.VerifyBulk(ctx, studentPrincipal, req)
	require.NoError(t, err)
	require.Equal(t, order.OrderID, settled.OrderID)
	require.Len(t, settled.Payments, 2)
	for _, payment := range settled.Payments {
		require.True(t, payment.IsPaid)
		require.Equal(t, models.PaymentStatusSuccess, payment.Status)
		enrolled, err := f.repos.Enrollments.Exists(ctx, f.student.ID, payment.CourseID)
		require.NoError(t, err)
		require.True(t, enrolled)
	}

	again, err := svc.VerifyBulk(ctx, studentPrincipal, req)
	require.NoError(t, err)
	require.Len(t, again.Payments, 2)

	_, err = svc.CreateBulkOrder(ctx, studentPrincipal, dto.BulkOrderRequest{CourseIDs: []uint{first.ID, second.ID}})
	require.ErrorIs(t, err, ErrNothingToPay)

	require.Eventually(t, func() bool {
		return publisher.count(SubjectPaymentVerified) == 2 && publisher.count(SubjectEnrollmentCreated) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestBulkOrderSignatureMismatchClosesEveryCourse(t *testing.T) {
	f := newFixture(t, 1, 0)
	gateway := newFakeGateway(t)
	svc := NewPaymentService(f.repos, gateway, "inr", nil, testValidator(), testLogger())
	first := f.paidCourse(t, 100, 0)
	second := f.paidCourse(t, 200, 0)
	ctx := context.Background()

	order, err := svc.CreateBulkOrder(ctx, studentPrincipal, dto.BulkOrderRequest{CourseIDs: []uint{first.ID, second.ID}})
	require.NoError(t, err)

	_, err = svc.VerifyBulk(ctx, studentPrincipal, dto.PaymentVerifyRequest{OrderID: order.OrderID, PaymentID: "pay_1", Signature: "deadbeef"})
	require.ErrorIs(t, err, ErrPaymentSignatureMismatch)

	rows, err := f.repos.Payments.ListByOrderID(ctx, order.OrderID)
	require.NoError(t, err)
	for _, row := range rows {
		require.Equal(t, models.PaymentStatusFailed, row.Status)
	}

	_, err = svc.VerifyBulk(ctx, strangerPrincipal, dto.PaymentVerifyRequest{OrderID: order.OrderID, PaymentID: "pay_1", Signature: gateway.Sign(order.OrderID, "pay_1")})
	require.ErrorIs(t, err, ErrPaymentNotFound)
	_, err = svc.VerifyBulk(ctx, studentPrincipal, dto.PaymentVerifyRequest{OrderID: order.OrderID, PaymentID: "pay_1", Signature: gateway.Sign(order.OrderID, "pay_1")})
	require.ErrorIs(t, err, ErrPaymentClosed)

	_, err = svc.CreateBulkOrder(ctx, studentPrincipal, dto.BulkOrderRequest{})
	require.Error(t, err)
}

func TestEnrollFreeAndPaidCourses(t *testing.T) {
	f := newFixture(t, 1, 0)
	publisher := &recordingPublisher{}
	svc := NewEnrollmentService(f.repos, publisher, testLogger())
	ctx := context.Background()

	first, err := svc.Enroll(ctx, strangerPrincipal, f.course.ID)
	require.NoError(t, err)
	require.True(t, first.Created)
	require.Equal(t, models.EnrollmentSourceFree, first.Source)

	second, err := svc.Enroll(ctx, strangerPrincipal, f.course.ID)
	require.NoError(t, err)
	require.False(t, second.Created)

	paid := f.paidCourse(t, 99, 0)
	_, err = svc.Enroll(ctx, strangerPrincipal, paid.ID)
	require.ErrorIs(t, err, ErrPaymentRequired)

	free := f.paidCourse(t, 99, 100)
	_, err = svc.Enroll(ctx, strangerPrincipal, free.ID)
	require.NoError(t, err)

	_, err = svc.Enroll(ctx, instructorPrincipal, f.course.ID)
	require.ErrorIs(t, err, ErrForbidden)

	mine, err := svc.ListMine(ctx, strangerPrincipal)
	require.NoError(t, err)
	require.Len(t, mine, 2)

	require.Eventually(t, func() bool { return publisher.count(SubjectEnrollmentCreated) == 2 }, time.Second, 10*time.Millisecond)
}
