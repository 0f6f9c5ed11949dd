package service

import (
	"context"
	"fmt"
	"sort"
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

type SpikeParams struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       detectiondomain.Repository
	Usage      usagedomain.Service
	Thresholds *config.ThresholdHolder
}

type spikeDetector struct {
	detectorBase
	usage      usagedomain.Service
	thresholds *config.ThresholdHolder
}

func NewSpikeDetector(p SpikeParams) detectiondomain.SpikeDetector {
	return &spikeDetector{
		detectorBase: newDetectorBase(p.DB, p.Log.Named("detection.spike"), p.GenID, p.Clock, p.Repo),
		usage:        p.Usage,
		thresholds:   p.Thresholds,
	}
}

func (s *spikeDetector) Type() detectiondomain.DetectorType { return detectiondomain.DetectorSpike }

// EvaluateProject compares the last detection window against the per-bucket
// baseline average for every cap-type usage series. A series flags when the
// current window is at least the multiplier threshold above baseline and the
// baseline itself clears the minimum-usage guard, which keeps near-zero
// baselines from producing absurd multipliers.
func (s *spikeDetector) EvaluateProject(ctx context.Context, projectID snowflake.ID) ([]detectiondomain.DetectionResult, error) {
	cfg := s.thresholds.Get().Spike

	projCfg, err := s.projectConfig(ctx, projectID, detectiondomain.DetectorSpike)
	if err != nil {
		return nil, err
	}
	if projCfg != nil && !projCfg.Enabled {
		return nil, detectiondomain.ErrSkipped
	}

	multiplierThreshold := cfg.ThresholdMultiplier
	minUsage := cfg.MinUsageThreshold
	windowMinutes := cfg.WindowMinutes
	if projCfg != nil {
		if projCfg.ThresholdOverride != nil {
			multiplierThreshold = *projCfg.ThresholdOverride
		}
		if projCfg.MinSampleOverride != nil {
			minUsage = *projCfg.MinSampleOverride
		}
		if projCfg.WindowMinutesOverride != nil {
			windowMinutes = *projCfg.WindowMinutesOverride
		}
	}

	window := time.Duration(windowMinutes) * time.Minute
	baseline := time.Duration(cfg.BaselineHours) * time.Hour
	engine := thresholdEngine{
		threshold: multiplierThreshold,
		minSample: minUsage,
		tiers:     detectiondomain.TiersFromConfig(cfg.Tiers),
	}

	capTypes := make([]string, 0, len(s.thresholds.Get().Caps))
	for capType := range s.thresholds.Get().Caps {
		capTypes = append(capTypes, capType)
	}
	sort.Strings(capTypes)

	var results []detectiondomain.DetectionResult
	for _, capType := range capTypes {
		result, err := s.evaluateSeries(ctx, projectID, capType, window, baseline, engine)
		if err != nil {
			s.log.Warn("spike evaluation failed for series",
				zap.String("project_id", projectID.String()),
				zap.String("cap_type", capType),
				zap.Error(err),
			)
			continue
		}
		if result != nil {
			results = append(results, *result)
		}
	}
	return results, nil
}

func (s *spikeDetector) evaluateSeries(ctx context.Context, projectID snowflake.ID, capType string, window, baseline time.Duration, engine thresholdEngine) (*detectiondomain.DetectionResult, error) {
	avg, err := s.usage.BaselineAverage(ctx, projectID, capType, baseline, window)
	if err != nil {
		return nil, err
	}
	current, err := s.usage.WindowSum(ctx, projectID, capType, window)
	if err != nil {
		return nil, err
	}

	var multiplier float64
	if avg > 0 {
		multiplier = current / avg
	}

	severity, ok := engine.classify(multiplier, avg)
	if !ok {
		return nil, nil
	}

	action := detectiondomain.ActionWarning
	if severity.Rank() >= detectiondomain.SeverityCritical.Rank() {
		action = detectiondomain.ActionSuspension
	}

	result := &detectiondomain.DetectionResult{
		ID:              s.genID.Generate(),
		ProjectID:       projectID,
		Type:            string(detectiondomain.DetectorSpike),
		Severity:        severity,
		Multiplier:      multiplier,
		OccurrenceCount: int64(current),
		WindowMS:        window.Milliseconds(),
		DetectedAt:      s.clock.Now(),
		Description: fmt.Sprintf("usage spike on %s: %.0f in window vs baseline avg %.1f (%.1fx)",
			capType, current, avg, multiplier),
		Evidence: datatypes.JSONMap{
			"cap_type":         capType,
			"baseline_average": avg,
			"current_usage":    current,
			"multiplier":       multiplier,
		},
		ActionTaken: action,
	}
	if err := s.persist(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}
