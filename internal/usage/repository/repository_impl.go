package repository

import (
	"context"
	"time"

	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/usage/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, metric *domain.UsageMetric) error {
	if metric == nil {
		return nil
	}
	return db.WithContext(ctx).Create(metric).Error
}

func (r *repo) SumBetween(ctx context.Context, db *gorm.DB, projectID snowflake.ID, metricType string, from, to time.Time) (float64, error) {
	var total *float64
	err := db.WithContext(ctx).Model(&domain.UsageMetric{}).
		Select("SUM(metric_value)").
		Where("project_id = ? AND metric_type = ? AND recorded_at >= ? AND recorded_at < ?",
			projectID, metricType, from.UTC(), to.UTC()).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *repo) DeleteOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("recorded_at < ?", cutoff.UTC()).
		Delete(&domain.UsageMetric{})
	return res.RowsAffected, res.Error
}
