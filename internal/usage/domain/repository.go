package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, metric *UsageMetric) error
	SumBetween(ctx context.Context, db *gorm.DB, projectID snowflake.ID, metricType string, from, to time.Time) (float64, error)
	DeleteOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
}
