package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/middleware"
)

// Domain event subjects, relative to the configured prefix.
const (
	SubjectCertificateIssued = "certificates.issued"
	SubjectCourseCompleted   = "progress.course_completed"
	SubjectPaymentVerified   = "payments.verified"
	SubjectEnrollmentCreated = "enrollments.created"
)

// EventPublisher emits domain events. Delivery is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload interface{}) error
}

type domainEvent struct {
	ID            string      `json:"id"`
	Source        string      `json:"source"`
	Subject       string      `json:"subject"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Payload       interface{} `json:"payload"`
	SentAt        time.Time   `json:"sent_at"`
}

// newDomainEvent stamps the payload with the correlation id of the request that caused it.
func newDomainEvent(ctx context.Context, source, subject string, payload interface{}) domainEvent {
	return domainEvent{
		ID:            uuid.NewString(),
		Source:        source,
		Subject:       subject,
		CorrelationID: middleware.CorrelationIDFromContext(ctx),
		Payload:       payload,
		SentAt:        time.Now().UTC(),
	}
}

type natsPublisher struct {
	conn   *nats.Conn
	prefix string
	nodeID string
	logger zerolog.Logger
}

// NewEventPublisher publishes on NATS below prefix. A nil connection yields a
// publisher that only logs.
func NewEventPublisher(conn *nats.Conn, prefix string, logger zerolog.Logger) EventPublisher {
	log := logger.With().Str("component", "event_publisher").Logger()
	if conn == nil {
		return noopPublisher{logger: log}
	}
	return &natsPublisher{
		conn:   conn,
		prefix: strings.Trim(prefix, "."),
		nodeID: uuid.NewString(),
		logger: log,
	}
}

func (p *natsPublisher) Publish(ctx context.Context, subject string, payload interface{}) error {
	fullSubject := subject
	if p.prefix != "" {
		fullSubject = p.prefix + "." + subject
	}

	data, err := json.Marshal(newDomainEvent(ctx, p.nodeID, fullSubject, payload))
	if err != nil {
		return err
	}

	if err := p.conn.Publish(fullSubject, data); err != nil {
		return err
	}
	p.logger.Debug().Str("subject", fullSubject).Msg("event published")
	return nil
}

type noopPublisher struct {
	logger zerolog.Logger
}

func (p noopPublisher) Publish(ctx context.Context, subject string, payload interface{}) error {
	p.logger.Debug().Str("subject", subject).Msg("event dropped, no broker configured")
	return nil
}

// publishAsync hands the event to the publisher without holding up the caller.
// The request may finish first, so only its values are carried over.
func publishAsync(parent context.Context, publisher EventPublisher, logger zerolog.Logger, subject string, payload interface{}) {
	if publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), 5*time.Second)
		defer cancel()
		if err := publisher.Publish(ctx, subject, payload); err != nil {
			logger.Warn().Err(err).Str("subject", subject).Msg("failed to publish event")
		}
	}()
}
