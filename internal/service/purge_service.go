package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-api/internal/observability"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// PurgeService hard-deletes curriculum nodes whose restore window has elapsed.
type PurgeService interface {
	Run(ctx context.Context) (repository.PurgeReport, error)
}

type purgeService struct {
	repo      repository.PurgeRepository
	retention time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewPurgeService constructs the deferred hard-delete sweeper.
func NewPurgeService(repo repository.PurgeRepository, retention time.Duration, logger zerolog.Logger) PurgeService {
	if retention <= 0 {
		retention = 10 * time.Minute
	}
	return &purgeService{
		repo:      repo,
		retention: retention,
		logger:    logger.With().Str("component", "purge_service").Logger(),
		now:       time.Now,
	}
}

func (s *purgeService) Run(ctx context.Context) (repository.PurgeReport, error) {
	cutoff := s.now().UTC().Add(-s.retention)
	report, err := s.repo.PurgeExpired(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Time("cutoff", cutoff).Msg("purge sweep failed")
		return repository.PurgeReport{}, err
	}

	counter := observability.PurgedNodes()
	counter.WithLabelValues("course").Add(float64(report.Courses))
	counter.WithLabelValues("lesson").Add(float64(report.Lessons))
	counter.WithLabelValues("concept").Add(float64(report.Concepts))
	counter.WithLabelValues("content").Add(float64(report.Contents))

	if report.Total() > 0 || report.Retained > 0 {
		s.logger.Info().
			Int("courses", report.Courses).
			Int("lessons", report.Lessons).
			Int("concepts", report.Concepts).
			Int("contents", report.Contents).
			Int("retained", report.Retained).
			Msg("purged expired curriculum nodes")
	}
	return report, nil
}
