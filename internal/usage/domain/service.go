package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Record appends one sample. At-least-once semantics; usage accounting is
	// advisory, not transactionally exact.
	Record(ctx context.Context, projectID snowflake.ID, metricType string, value float64) error
	// WindowSum totals a series over the most recent window.
	WindowSum(ctx context.Context, projectID snowflake.ID, metricType string, window time.Duration) (float64, error)
	// BaselineAverage returns the mean per-bucket usage over the baseline
	// period that precedes the current detection window.
	BaselineAverage(ctx context.Context, projectID snowflake.ID, metricType string, baseline, bucket time.Duration) (float64, error)
	// Prune deletes samples older than the retention cutoff and returns the
	// number of rows removed.
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

var (
	ErrInvalidMetricType = errors.New("invalid_metric_type")
	ErrInvalidValue      = errors.New("invalid_metric_value")
	ErrInvalidWindow     = errors.New("invalid_window")
)
