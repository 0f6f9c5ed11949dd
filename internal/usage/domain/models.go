// Package domain contains persistence models for raw usage metrics.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Metric series recorded by calling services beyond the cap-type series
// (cap types are recorded under their own name, e.g. "db_queries_per_day").
const (
	MetricRequests       = "requests"
	MetricErrors         = "errors"
	MetricAuthFailures   = "auth_failures"
	MetricAPIKeysCreated = "api_keys_created"
)

// UsageMetric is an append-only sample of metered activity. Rows are never
// mutated; old rows are pruned by the retention job.
type UsageMetric struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	ProjectID   snowflake.ID `json:"project_id" gorm:"not null;index:ix_usage_project_metric_time,priority:1"`
	MetricType  string       `json:"metric_type" gorm:"type:text;not null;index:ix_usage_project_metric_time,priority:2"`
	MetricValue float64      `json:"metric_value" gorm:"not null;default:1"`
	RecordedAt  time.Time    `json:"recorded_at" gorm:"not null;index:ix_usage_project_metric_time,priority:3"`
}

// TableName sets the database table name.
func (UsageMetric) TableName() string { return "usage_metrics" }
