package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/middleware"
)

func TestDomainEventCarriesCorrelationID(t *testing.T) {
	ctx := middleware.ContextWithCorrelation(context.Background(), "req-42")

	event := newDomainEvent(ctx, "node-1", "lms.certificates.issued", map[string]uint{"course_id": 7})
	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "req-42", decoded["correlation_id"])
	require.Equal(t, "lms.certificates.issued", decoded["subject"])
	require.NotEmpty(t, decoded["id"])

	bare, err := json.Marshal(newDomainEvent(context.Background(), "node-1", "lms.payments.verified", nil))
	require.NoError(t, err)
	require.NotContains(t, string(bare), "correlation_id")
}

type contextRecordingPublisher struct {
	seen chan context.Context
}

func (p *contextRecordingPublisher) Publish(ctx context.Context, _ string, _ interface{}) error {
	p.seen <- ctx
	return nil
}

func TestPublishAsyncOutlivesCancelledRequest(t *testing.T) {
	publisher := &contextRecordingPublisher{seen: make(chan context.Context, 1)}
	parent, cancel := context.WithCancel(middleware.ContextWithCorrelation(context.Background(), "req-7"))
	cancel()

	publishAsync(parent, publisher, testLogger(), SubjectEnrollmentCreated, nil)

	select {
	case ctx := <-publisher.seen:
		require.NoError(t, ctx.Err())
		require.Equal(t, "req-7", middleware.CorrelationIDFromContext(ctx))
	case <-time.After(2 * time.Second):
		t.Fatal("event was not published")
	}
}
