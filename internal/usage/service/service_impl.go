package service

import (
	"context"
	"strings"
	"time"

	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/clock"
	usagedomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/usage/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  usagedomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  usagedomain.Repository
}

func New(p Params) usagedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("usage.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, projectID snowflake.ID, metricType string, value float64) error {
	metricType = strings.TrimSpace(metricType)
	if metricType == "" {
		return usagedomain.ErrInvalidMetricType
	}
	if value <= 0 {
		return usagedomain.ErrInvalidValue
	}

	metric := &usagedomain.UsageMetric{
		ID:          s.genID.Generate(),
		ProjectID:   projectID,
		MetricType:  metricType,
		MetricValue: value,
		RecordedAt:  s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, metric); err != nil {
		s.log.Warn("failed to record usage metric",
			zap.String("project_id", projectID.String()),
			zap.String("metric_type", metricType),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) WindowSum(ctx context.Context, projectID snowflake.ID, metricType string, window time.Duration) (float64, error) {
	if window <= 0 {
		return 0, usagedomain.ErrInvalidWindow
	}
	now := s.clock.Now()
	return s.repo.SumBetween(ctx, s.db, projectID, metricType, now.Add(-window), now)
}

// BaselineAverage measures the baseline period ending where the current
// detection window begins, so a spike in progress does not inflate its own
// baseline. The mean is per bucket of the detection-window size, which makes
// it directly comparable to a WindowSum over the same bucket.
func (s *Service) BaselineAverage(ctx context.Context, projectID snowflake.ID, metricType string, baseline, bucket time.Duration) (float64, error) {
	if baseline <= 0 || bucket <= 0 || bucket > baseline {
		return 0, usagedomain.ErrInvalidWindow
	}

	now := s.clock.Now()
	to := now.Add(-bucket)
	from := to.Add(-baseline)

	total, err := s.repo.SumBetween(ctx, s.db, projectID, metricType, from, to)
	if err != nil {
		return 0, err
	}

	buckets := float64(baseline / bucket)
	if buckets < 1 {
		buckets = 1
	}
	return total / buckets, nil
}

func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, usagedomain.ErrInvalidWindow
	}
	cutoff := s.clock.Now().Add(-retention)
	removed, err := s.repo.DeleteOlderThan(ctx, s.db, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.Info("pruned usage metrics", zap.Int64("removed", removed), zap.Time("cutoff", cutoff))
	}
	return removed, nil
}
