package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/detection/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertResult(ctx context.Context, db *gorm.DB, result *domain.DetectionResult) error {
	if result == nil {
		return nil
	}
	return db.WithContext(ctx).Create(result).Error
}

func (r *repo) ListResultsByProject(ctx context.Context, db *gorm.DB, projectID snowflake.ID, limit int) ([]domain.DetectionResult, error) {
	var results []domain.DetectionResult
	stmt := db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("detected_at desc, id desc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *repo) FindProjectConfig(ctx context.Context, db *gorm.DB, projectID snowflake.ID, detectorType domain.DetectorType) (*domain.ProjectDetectionConfig, error) {
	var cfg domain.ProjectDetectionConfig
	err := db.WithContext(ctx).
		Where("project_id = ? AND detector_type = ?", projectID, detectorType).
		First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *repo) UpsertProjectConfig(ctx context.Context, db *gorm.DB, cfg *domain.ProjectDetectionConfig) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "detector_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled", "threshold_override", "min_sample_override", "window_minutes_override", "updated_at"}),
		}).
		Create(cfg).Error
}

func (r *repo) InsertSample(ctx context.Context, db *gorm.DB, sample *domain.PatternSample) error {
	return db.WithContext(ctx).Create(sample).Error
}

func (r *repo) ListSamplesSince(ctx context.Context, db *gorm.DB, projectID snowflake.ID, since time.Time) ([]domain.PatternSample, error) {
	var samples []domain.PatternSample
	err := db.WithContext(ctx).
		Where("project_id = ? AND recorded_at >= ?", projectID, since.UTC()).
		Order("recorded_at asc").
		Find(&samples).Error
	if err != nil {
		return nil, err
	}
	return samples, nil
}
