package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertResult(ctx context.Context, db *gorm.DB, result *DetectionResult) error
	ListResultsByProject(ctx context.Context, db *gorm.DB, projectID snowflake.ID, limit int) ([]DetectionResult, error)
	FindProjectConfig(ctx context.Context, db *gorm.DB, projectID snowflake.ID, detectorType DetectorType) (*ProjectDetectionConfig, error)
	UpsertProjectConfig(ctx context.Context, db *gorm.DB, cfg *ProjectDetectionConfig) error
	InsertSample(ctx context.Context, db *gorm.DB, sample *PatternSample) error
	ListSamplesSince(ctx context.Context, db *gorm.DB, projectID snowflake.ID, since time.Time) ([]PatternSample, error)
}
