package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/clock"
	usagedomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/usage/domain"
	usagerepo "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/usage/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type usageEnv struct {
	db    *gorm.DB
	clock *clock.FakeClock
	genID *snowflake.Node
	svc   usagedomain.Service
}

func newUsageEnv(t *testing.T) *usageEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&usagedomain.UsageMetric{}))

	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  usagerepo.Provide(),
	})
	return &usageEnv{db: db, clock: clk, genID: node, svc: svc}
}

func (e *usageEnv) recordAt(t *testing.T, projectID snowflake.ID, metricType string, value float64, ago time.Duration) {
	t.Helper()
	require.NoError(t, e.db.Create(&usagedomain.UsageMetric{
		ID:          e.genID.Generate(),
		ProjectID:   projectID,
		MetricType:  metricType,
		MetricValue: value,
		RecordedAt:  e.clock.Now().Add(-ago),
	}).Error)
}

func TestRecordValidatesInput(t *testing.T) {
	env := newUsageEnv(t)
	projectID := env.genID.Generate()
	ctx := context.Background()

	assert.ErrorIs(t, env.svc.Record(ctx, projectID, "  ", 1), usagedomain.ErrInvalidMetricType)
	assert.ErrorIs(t, env.svc.Record(ctx, projectID, "db_queries_per_day", 0), usagedomain.ErrInvalidValue)
	assert.ErrorIs(t, env.svc.Record(ctx, projectID, "db_queries_per_day", -3), usagedomain.ErrInvalidValue)

	require.NoError(t, env.svc.Record(ctx, projectID, "db_queries_per_day", 5))
	var count int64
	require.NoError(t, env.db.Model(&usagedomain.UsageMetric{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestWindowSumScopesByProjectMetricAndTime(t *testing.T) {
	env := newUsageEnv(t)
	projectID := env.genID.Generate()
	otherProject := env.genID.Generate()
	ctx := context.Background()

	env.recordAt(t, projectID, "requests", 10, 10*time.Minute)
	env.recordAt(t, projectID, "requests", 20, 40*time.Minute)
	env.recordAt(t, projectID, "errors", 99, 10*time.Minute)
	env.recordAt(t, otherProject, "requests", 500, 10*time.Minute)
	env.recordAt(t, projectID, "requests", 77, 2*time.Hour)

	sum, err := env.svc.WindowSum(ctx, projectID, "requests", time.Hour)
	require.NoError(t, err)
	assert.InDelta(t, 30, sum, 0.001)

	sum, err = env.svc.WindowSum(ctx, projectID, "requests", 15*time.Minute)
	require.NoError(t, err)
	assert.InDelta(t, 10, sum, 0.001)

	_, err = env.svc.WindowSum(ctx, projectID, "requests", 0)
	assert.ErrorIs(t, err, usagedomain.ErrInvalidWindow)
}

func TestBaselineAverageExcludesCurrentWindow(t *testing.T) {
	env := newUsageEnv(t)
	projectID := env.genID.Generate()
	ctx := context.Background()

	// Four baseline buckets of one hour each, 120 total, spread over the
	// four hours preceding the current window.
	env.recordAt(t, projectID, "requests", 30, 90*time.Minute)
	env.recordAt(t, projectID, "requests", 30, 150*time.Minute)
	env.recordAt(t, projectID, "requests", 30, 210*time.Minute)
	env.recordAt(t, projectID, "requests", 30, 270*time.Minute)
	// Inside the current window; must not contaminate the baseline.
	env.recordAt(t, projectID, "requests", 900, 30*time.Minute)
	// Older than the baseline period.
	env.recordAt(t, projectID, "requests", 400, 6*time.Hour)

	avg, err := env.svc.BaselineAverage(ctx, projectID, "requests", 4*time.Hour, time.Hour)
	require.NoError(t, err)
	assert.InDelta(t, 30, avg, 0.001)
}

func TestBaselineAverageValidatesWindows(t *testing.T) {
	env := newUsageEnv(t)
	projectID := env.genID.Generate()
	ctx := context.Background()

	_, err := env.svc.BaselineAverage(ctx, projectID, "requests", 0, time.Hour)
	assert.ErrorIs(t, err, usagedomain.ErrInvalidWindow)
	_, err = env.svc.BaselineAverage(ctx, projectID, "requests", time.Hour, 0)
	assert.ErrorIs(t, err, usagedomain.ErrInvalidWindow)
	// A bucket wider than the baseline has no full bucket to average over.
	_, err = env.svc.BaselineAverage(ctx, projectID, "requests", time.Hour, 2*time.Hour)
	assert.ErrorIs(t, err, usagedomain.ErrInvalidWindow)
}

func TestPruneRemovesOnlyExpiredSamples(t *testing.T) {
	env := newUsageEnv(t)
	projectID := env.genID.Generate()
	ctx := context.Background()

	env.recordAt(t, projectID, "requests", 1, 29*24*time.Hour)
	env.recordAt(t, projectID, "requests", 1, 31*24*time.Hour)
	env.recordAt(t, projectID, "requests", 1, 45*24*time.Hour)

	removed, err := env.svc.Prune(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	var remaining int64
	require.NoError(t, env.db.Model(&usagedomain.UsageMetric{}).Count(&remaining).Error)
	assert.EqualValues(t, 1, remaining)

	_, err = env.svc.Prune(ctx, 0)
	assert.ErrorIs(t, err, usagedomain.ErrInvalidWindow)
}
