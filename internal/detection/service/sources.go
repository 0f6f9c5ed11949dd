package service

import (
	"context"
	"time"

	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/clock"
	detectiondomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/detection/domain"
	usagedomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/usage/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Default signal sources read the series that calling services already
// record: auth failure and key creation counters land in usage metrics, raw
// query text lands in pattern samples. Deployments with richer telemetry can
// provide their own sources instead.

type SourceParams struct {
	fx.In

	DB    *gorm.DB
	Clock clock.Clock
	Repo  detectiondomain.Repository
	Usage usagedomain.Service
}

type sampleTableSource struct {
	db    *gorm.DB
	clock clock.Clock
	repo  detectiondomain.Repository
}

func NewSQLInjectionSource(p SourceParams) detectiondomain.SQLInjectionSource {
	return &sampleTableSource{db: p.DB, clock: p.Clock, repo: p.Repo}
}

func (s *sampleTableSource) Samples(ctx context.Context, projectID snowflake.ID, window time.Duration) ([]string, error) {
	rows, err := s.repo.ListSamplesSince(ctx, s.db, projectID, s.clock.Now().Add(-window))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Sample)
	}
	return out, nil
}

type usageCounterSource struct {
	usage      usagedomain.Service
	metricType string
}

func (s *usageCounterSource) count(ctx context.Context, projectID snowflake.ID, window time.Duration) (int64, error) {
	total, err := s.usage.WindowSum(ctx, projectID, s.metricType, window)
	if err != nil {
		return 0, err
	}
	return int64(total), nil
}

type bruteForceSource struct{ usageCounterSource }

func NewBruteForceSource(p SourceParams) detectiondomain.BruteForceSource {
	return &bruteForceSource{usageCounterSource{usage: p.Usage, metricType: usagedomain.MetricAuthFailures}}
}

func (s *bruteForceSource) FailedAttempts(ctx context.Context, projectID snowflake.ID, window time.Duration) (int64, error) {
	return s.count(ctx, projectID, window)
}

type keyCreationSource struct{ usageCounterSource }

func NewKeyCreationSource(p SourceParams) detectiondomain.KeyCreationSource {
	return &keyCreationSource{usageCounterSource{usage: p.Usage, metricType: usagedomain.MetricAPIKeysCreated}}
}

func (s *keyCreationSource) KeysCreated(ctx context.Context, projectID snowflake.ID, window time.Duration) (int64, error) {
	return s.count(ctx, projectID, window)
}
