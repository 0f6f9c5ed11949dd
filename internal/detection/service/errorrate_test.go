package service

import (
	"context"
	"testing"
	"time"

	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/config"
	detectiondomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/detection/domain"
	usagedomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/usage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func (e *detectionEnv) errorRateDetector() detectiondomain.ErrorRateDetector {
	return NewErrorRateDetector(ErrorRateParams{
		DB:         e.db,
		Log:        zap.NewNop(),
		GenID:      e.genID,
		Clock:      e.clock,
		Repo:       e.repo,
		Usage:      e.usage,
		Thresholds: config.NewStaticThresholdHolder(config.DefaultThresholdConfig()),
	})
}

func TestErrorRateDetectorBelowMinRequests(t *testing.T) {
	env := newDetectionEnv(t)
	detector := env.errorRateDetector()
	projectID := env.genID.Generate()
	now := env.clock.Now()

	// 80% error rate but only 50 requests: below the 100-request floor.
	env.recordAt(t, projectID, usagedomain.MetricRequests, 50, now.Add(-10*time.Minute))
	env.recordAt(t, projectID, usagedomain.MetricErrors, 40, now.Add(-10*time.Minute))

	results, err := detector.EvaluateProject(context.Background(), projectID)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestErrorRateDetectorFlagsSevereForInvestigation(t *testing.T) {
	env := newDetectionEnv(t)
	detector := env.errorRateDetector()
	projectID := env.genID.Generate()
	now := env.clock.Now()

	env.recordAt(t, projectID, usagedomain.MetricRequests, 200, now.Add(-10*time.Minute))
	env.recordAt(t, projectID, usagedomain.MetricErrors, 160, now.Add(-10*time.Minute))

	results, err := detector.EvaluateProject(context.Background(), projectID)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, detectiondomain.SeveritySevere, results[0].Severity)
	// A failing project is investigated, never auto-suspended.
	assert.Equal(t, detectiondomain.ActionInvestigate, results[0].ActionTaken)
	assert.InDelta(t, 80.0, results[0].Multiplier, 0.01)
	assert.EqualValues(t, 160, results[0].OccurrenceCount)
}

func TestErrorRateDetectorCriticalTier(t *testing.T) {
	env := newDetectionEnv(t)
	detector := env.errorRateDetector()
	projectID := env.genID.Generate()
	now := env.clock.Now()

	// 60% of 200 requests: above the 50% threshold, below the 75% severe tier.
	env.recordAt(t, projectID, usagedomain.MetricRequests, 200, now.Add(-10*time.Minute))
	env.recordAt(t, projectID, usagedomain.MetricErrors, 120, now.Add(-10*time.Minute))

	results, err := detector.EvaluateProject(context.Background(), projectID)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, detectiondomain.SeverityCritical, results[0].Severity)
	assert.Equal(t, detectiondomain.ActionInvestigate, results[0].ActionTaken)
}

func TestErrorRateDetectorBelowRateThreshold(t *testing.T) {
	env := newDetectionEnv(t)
	detector := env.errorRateDetector()
	projectID := env.genID.Generate()
	now := env.clock.Now()

	env.recordAt(t, projectID, usagedomain.MetricRequests, 200, now.Add(-10*time.Minute))
	env.recordAt(t, projectID, usagedomain.MetricErrors, 80, now.Add(-10*time.Minute))

	results, err := detector.EvaluateProject(context.Background(), projectID)
	require.NoError(t, err)
	assert.Empty(t, results)
}
