package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/clock"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/config"
	detectiondomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/detection/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Injection rules are ordered most to least severe so a tautology is not
// classified as a bare keyword hit. The first matching rule decides the
// sample's severity.
var sqlInjectionRules = []struct {
	re       *regexp.Regexp
	severity detectiondomain.Severity
}{
	{regexp.MustCompile(`(?i)\b(or|and)\s+['"]?\d+['"]?\s*=\s*['"]?\d+`), detectiondomain.SeveritySevere},
	{regexp.MustCompile(`(?i)union(\s+all)?\s+select`), detectiondomain.SeveritySevere},
	{regexp.MustCompile(`(?i)(;|\|\||&&)\s*(drop|truncate|exec|xp_cmdshell|shutdown)\b`), detectiondomain.SeveritySevere},
	{regexp.MustCompile(`['"]\s*(--|#|/\*)`), detectiondomain.SeverityCritical},
	{regexp.MustCompile(`(?i)['"]\s*(or|and)\b`), detectiondomain.SeverityCritical},
	{regexp.MustCompile(`(?i)\b(select|insert|update|delete|drop|alter|create)\b`), detectiondomain.SeverityWarning},
}

// Fixed confidence per matched-rule severity. The flag's severity comes from
// the average confidence across all matches in the window.
var injectionConfidence = map[detectiondomain.Severity]float64{
	detectiondomain.SeveritySevere:   0.95,
	detectiondomain.SeverityCritical: 0.8,
	detectiondomain.SeverityWarning:  0.6,
}

type PatternParams struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         detectiondomain.Repository
	Thresholds   *config.ThresholdHolder
	SQLInjection detectiondomain.SQLInjectionSource
	BruteForce   detectiondomain.BruteForceSource
	KeyCreation  detectiondomain.KeyCreationSource
}

type patternDetector struct {
	detectorBase
	thresholds *config.ThresholdHolder
	sqli       detectiondomain.SQLInjectionSource
	brute      detectiondomain.BruteForceSource
	keys       detectiondomain.KeyCreationSource
}

func NewPatternDetector(p PatternParams) detectiondomain.PatternDetector {
	return &patternDetector{
		detectorBase: newDetectorBase(p.DB, p.Log.Named("detection.pattern"), p.GenID, p.Clock, p.Repo),
		thresholds:   p.Thresholds,
		sqli:         p.SQLInjection,
		brute:        p.BruteForce,
		keys:         p.KeyCreation,
	}
}

func (s *patternDetector) Type() detectiondomain.DetectorType {
	return detectiondomain.DetectorPattern
}

// EvaluateProject runs every enabled signature against the project. Each
// signature flags independently, so one tick can log several results for the
// same project. A failing signature is logged and does not block the others.
func (s *patternDetector) EvaluateProject(ctx context.Context, projectID snowflake.ID) ([]detectiondomain.DetectionResult, error) {
	cfg := s.thresholds.Get().Pattern

	projCfg, err := s.projectConfig(ctx, projectID, detectiondomain.DetectorPattern)
	if err != nil {
		return nil, err
	}
	if projCfg != nil && !projCfg.Enabled {
		return nil, detectiondomain.ErrSkipped
	}

	windowMinutes := cfg.WindowMinutes
	if projCfg != nil && projCfg.WindowMinutesOverride != nil {
		windowMinutes = *projCfg.WindowMinutesOverride
	}
	window := time.Duration(windowMinutes) * time.Minute
	actions := detectiondomain.ActionsFromConfig(cfg.ActionRules)

	var results []detectiondomain.DetectionResult
	if cfg.SQLInjection.Enabled {
		result, err := s.evaluateSQLInjection(ctx, projectID, cfg.SQLInjection, window, actions)
		if err != nil {
			s.log.Warn("sql injection signature failed",
				zap.String("project_id", projectID.String()), zap.Error(err))
		} else if result != nil {
			results = append(results, *result)
		}
	}
	if cfg.BruteForce.Enabled {
		count, err := s.brute.FailedAttempts(ctx, projectID, window)
		if err != nil {
			s.log.Warn("brute force signature failed",
				zap.String("project_id", projectID.String()), zap.Error(err))
		} else {
			result, err := s.evaluateCount(ctx, projectID, detectiondomain.SignatureAuthBruteForce,
				count, cfg.BruteForce, window, actions, "failed authentication attempts")
			if err == nil && result != nil {
				results = append(results, *result)
			}
		}
	}
	if cfg.RapidKeys.Enabled {
		count, err := s.keys.KeysCreated(ctx, projectID, window)
		if err != nil {
			s.log.Warn("rapid key creation signature failed",
				zap.String("project_id", projectID.String()), zap.Error(err))
		} else {
			result, err := s.evaluateCount(ctx, projectID, detectiondomain.SignatureRapidKeyCreation,
				count, cfg.RapidKeys, window, actions, "api keys created")
			if err == nil && result != nil {
				results = append(results, *result)
			}
		}
	}
	return results, nil
}

func (s *patternDetector) evaluateSQLInjection(ctx context.Context, projectID snowflake.ID, th config.SignatureThresholds, window time.Duration, actions detectiondomain.ActionTable) (*detectiondomain.DetectionResult, error) {
	samples, err := s.sqli.Samples(ctx, projectID, window)
	if err != nil {
		return nil, err
	}

	var (
		hits            int64
		confidenceTotal float64
	)
	for _, sample := range samples {
		for _, rule := range sqlInjectionRules {
			if rule.re.MatchString(sample) {
				hits++
				confidenceTotal += injectionConfidence[rule.severity]
				break
			}
		}
	}
	if hits < int64(th.MinHits) {
		return nil, nil
	}

	avgConfidence := confidenceTotal / float64(hits)
	severity := detectiondomain.SeverityWarning
	switch {
	case avgConfidence >= 0.9:
		severity = detectiondomain.SeveritySevere
	case avgConfidence >= 0.7:
		severity = detectiondomain.SeverityCritical
	}

	result := &detectiondomain.DetectionResult{
		ID:              s.genID.Generate(),
		ProjectID:       projectID,
		Type:            detectiondomain.SignatureSQLInjection,
		Severity:        severity,
		OccurrenceCount: hits,
		WindowMS:        window.Milliseconds(),
		DetectedAt:      s.clock.Now(),
		Description: fmt.Sprintf("sql injection patterns in %d of %d samples (avg confidence %.2f)",
			hits, len(samples), avgConfidence),
		Evidence: datatypes.JSONMap{
			"matched_samples":    hits,
			"scanned_samples":    len(samples),
			"average_confidence": avgConfidence,
		},
		ActionTaken: actions.Resolve(severity, int(hits)),
	}
	if err := s.persist(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *patternDetector) evaluateCount(ctx context.Context, projectID snowflake.ID, signature string, count int64, th config.SignatureThresholds, window time.Duration, actions detectiondomain.ActionTable, what string) (*detectiondomain.DetectionResult, error) {
	engine := thresholdEngine{
		threshold: float64(th.MinHits),
		minSample: float64(th.MinHits),
		tiers: detectiondomain.TierTable{
			{MinValue: float64(th.SevereCount), Severity: detectiondomain.SeveritySevere},
			{MinValue: float64(th.CriticalCount), Severity: detectiondomain.SeverityCritical},
			{MinValue: float64(th.MinHits), Severity: detectiondomain.SeverityWarning},
		},
	}
	severity, ok := engine.classify(float64(count), float64(count))
	if !ok {
		return nil, nil
	}

	result := &detectiondomain.DetectionResult{
		ID:              s.genID.Generate(),
		ProjectID:       projectID,
		Type:            signature,
		Severity:        severity,
		OccurrenceCount: count,
		WindowMS:        window.Milliseconds(),
		DetectedAt:      s.clock.Now(),
		Description:     fmt.Sprintf("%d %s in window", count, what),
		Evidence: datatypes.JSONMap{
			"count": count,
		},
		ActionTaken: actions.Resolve(severity, int(count)),
	}
	if err := s.persist(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}
