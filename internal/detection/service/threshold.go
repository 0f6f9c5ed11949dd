package service

import (
	"context"
	"time"

	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/cache"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/clock"
	detectiondomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/detection/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const projectConfigTTL = time.Minute

// thresholdEngine is the one shape shared by every detector: a measurement
// guarded by a minimum sample, classified against a tier table. Spikes feed
// it a multiplier, error rates a percentage, signatures an occurrence count.
type thresholdEngine struct {
	threshold float64
	minSample float64
	tiers     detectiondomain.TierTable
}

// classify returns the severity tier for value, or false when the detection
// guard (threshold or minimum sample) is not met.
func (e thresholdEngine) classify(value, sample float64) (detectiondomain.Severity, bool) {
	if sample < e.minSample {
		return "", false
	}
	if value < e.threshold {
		return "", false
	}
	return e.tiers.Classify(value)
}

// detectorBase carries the plumbing every detector shares, including the
// TTL-cached per-project config lookup.
type detectorBase struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     detectiondomain.Repository
	cfgCache cache.Cache[string, *detectiondomain.ProjectDetectionConfig]
}

func newDetectorBase(db *gorm.DB, log *zap.Logger, genID *snowflake.Node, clk clock.Clock, repo detectiondomain.Repository) detectorBase {
	return detectorBase{
		db:       db,
		log:      log,
		genID:    genID,
		clock:    clk,
		repo:     repo,
		cfgCache: cache.NewTTLCacheWithNow[string, *detectiondomain.ProjectDetectionConfig](clk.Now),
	}
}

func (b *detectorBase) projectConfig(ctx context.Context, projectID snowflake.ID, detectorType detectiondomain.DetectorType) (*detectiondomain.ProjectDetectionConfig, error) {
	key := projectID.String() + ":" + string(detectorType)
	if cached, ok := b.cfgCache.Get(key); ok {
		return cached, nil
	}
	cfg, err := b.repo.FindProjectConfig(ctx, b.db, projectID, detectorType)
	if err != nil {
		return nil, err
	}
	b.cfgCache.Set(key, cfg, projectConfigTTL)
	return cfg, nil
}

func (b *detectorBase) persist(ctx context.Context, result *detectiondomain.DetectionResult) error {
	if err := b.repo.InsertResult(ctx, b.db, result); err != nil {
		b.log.Warn("failed to persist detection result",
			zap.String("project_id", result.ProjectID.String()),
			zap.String("type", result.Type),
			zap.Error(err),
		)
		return err
	}
	return nil
}
