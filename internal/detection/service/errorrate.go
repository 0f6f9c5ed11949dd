package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/clock"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/config"
	detectiondomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/detection/domain"
	usagedomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/usage/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ErrorRateParams struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       detectiondomain.Repository
	Usage      usagedomain.Service
	Thresholds *config.ThresholdHolder
}

type errorRateDetector struct {
	detectorBase
	usage      usagedomain.Service
	thresholds *config.ThresholdHolder
}

func NewErrorRateDetector(p ErrorRateParams) detectiondomain.ErrorRateDetector {
	return &errorRateDetector{
		detectorBase: newDetectorBase(p.DB, p.Log.Named("detection.errorrate"), p.GenID, p.Clock, p.Repo),
		usage:        p.Usage,
		thresholds:   p.Thresholds,
	}
}

func (s *errorRateDetector) Type() detectiondomain.DetectorType {
	return detectiondomain.DetectorErrorRate
}

// EvaluateProject flags a project whose error percentage over the detection
// window clears the threshold with enough total requests to be meaningful.
// A failing project is flagged for investigation, never auto-suspended: a
// high error rate usually means the project is broken, not abusive.
func (s *errorRateDetector) EvaluateProject(ctx context.Context, projectID snowflake.ID) ([]detectiondomain.DetectionResult, error) {
	cfg := s.thresholds.Get().ErrorRate

	projCfg, err := s.projectConfig(ctx, projectID, detectiondomain.DetectorErrorRate)
	if err != nil {
		return nil, err
	}
	if projCfg != nil && !projCfg.Enabled {
		return nil, detectiondomain.ErrSkipped
	}

	rateThreshold := cfg.ThresholdPercentage
	minRequests := float64(cfg.MinRequests)
	windowMinutes := cfg.WindowMinutes
	if projCfg != nil {
		if projCfg.ThresholdOverride != nil {
			rateThreshold = *projCfg.ThresholdOverride
		}
		if projCfg.MinSampleOverride != nil {
			minRequests = *projCfg.MinSampleOverride
		}
		if projCfg.WindowMinutesOverride != nil {
			windowMinutes = *projCfg.WindowMinutesOverride
		}
	}

	window := time.Duration(windowMinutes) * time.Minute
	total, err := s.usage.WindowSum(ctx, projectID, usagedomain.MetricRequests, window)
	if err != nil {
		return nil, err
	}
	errored, err := s.usage.WindowSum(ctx, projectID, usagedomain.MetricErrors, window)
	if err != nil {
		return nil, err
	}

	var rate float64
	if total > 0 {
		rate = errored / total * 100
	}

	engine := thresholdEngine{
		threshold: rateThreshold,
		minSample: minRequests,
		tiers:     detectiondomain.TiersFromConfig(cfg.Tiers),
	}
	severity, ok := engine.classify(rate, total)
	if !ok {
		return nil, nil
	}

	action := detectiondomain.ActionWarning
	if severity.Rank() >= detectiondomain.SeverityCritical.Rank() {
		action = detectiondomain.ActionInvestigate
	}

	result := &detectiondomain.DetectionResult{
		ID:              s.genID.Generate(),
		ProjectID:       projectID,
		Type:            string(detectiondomain.DetectorErrorRate),
		Severity:        severity,
		Multiplier:      rate,
		OccurrenceCount: int64(errored),
		WindowMS:        window.Milliseconds(),
		DetectedAt:      s.clock.Now(),
		Description: fmt.Sprintf("error rate %.1f%% over %d requests in window",
			rate, int64(total)),
		Evidence: datatypes.JSONMap{
			"error_rate_percent": rate,
			"total_requests":     total,
			"errored_requests":   errored,
		},
		ActionTaken: action,
	}
	if err := s.persist(ctx, result); err != nil {
		return nil, err
	}
	return []detectiondomain.DetectionResult{*result}, nil
}
