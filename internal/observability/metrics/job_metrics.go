// Package metrics exposes prometheus instruments for the background abuse
// jobs. Instruments are registered once per process; tests build their own
// instance against a private registry.
package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	suspensiondomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/suspension/domain"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	JobErrorReasonDeadlineExceeded = "deadline_exceeded"
	JobErrorReasonLockContention   = "lock_contention"
	JobErrorReasonDB               = "db"
	JobErrorReasonUnknown          = "unknown"
)

// Config carries the constant labels stamped on every series.
type Config struct {
	ServiceName string
	Environment string
}

// JobMetrics captures abuse-job health signals: run counts, latency,
// per-reason errors, detections and actions taken.
type JobMetrics struct {
	jobRuns      *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	jobErrors    *prometheus.CounterVec
	jobSkips     *prometheus.CounterVec
	projects     *prometheus.CounterVec
	detections   *prometheus.CounterVec
	actionsTaken *prometheus.CounterVec
}

var (
	jobMetricsOnce sync.Once
	jobMetrics     *JobMetrics
)

// Jobs returns the singleton job metrics registry.
func Jobs() *JobMetrics {
	return JobsWithConfig(Config{})
}

// JobsWithConfig returns the singleton job metrics registry using config labels.
func JobsWithConfig(cfg Config) *JobMetrics {
	jobMetricsOnce.Do(func() {
		jobMetrics = newJobMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return jobMetrics
}

// ResetJobMetricsForTest resets the job metrics singleton for tests.
func ResetJobMetricsForTest() {
	jobMetricsOnce = sync.Once{}
	jobMetrics = nil
}

func newJobMetrics(registerer prometheus.Registerer, cfg Config) *JobMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "guardian"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "guardian_abusejob_runs_total",
		Help:        "Abuse job runs by job name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "guardian_abusejob_duration_seconds",
		Help:        "Abuse job latency to keep detection freshness within its interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "guardian_abusejob_errors_total",
		Help:        "Abuse job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	jobSkips := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "guardian_abusejob_skipped_ticks_total",
		Help:        "Ticks skipped because the previous run of the job was still in flight.",
		ConstLabels: constLabels,
	}, []string{"job"})
	projects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "guardian_abusejob_projects_checked_total",
		Help:        "Projects evaluated per job, to gauge sweep throughput.",
		ConstLabels: constLabels,
	}, []string{"job"})
	detections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "guardian_abusejob_detections_total",
		Help:        "Positive detections by job and severity.",
		ConstLabels: constLabels,
	}, []string{"job", "severity"})
	actionsTaken := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "guardian_abusejob_actions_total",
		Help:        "Actions routed from detections, by job and action.",
		ConstLabels: constLabels,
	}, []string{"job", "action"})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobErrors,
		jobSkips,
		projects,
		detections,
		actionsTaken,
	)

	return &JobMetrics{
		jobRuns:      jobRuns,
		jobDuration:  jobDuration,
		jobErrors:    jobErrors,
		jobSkips:     jobSkips,
		projects:     projects,
		detections:   detections,
		actionsTaken: actionsTaken,
	}
}

// IncJobRun increments the run counter for a job.
func (m *JobMetrics) IncJobRun(job string) {
	if m == nil || m.jobRuns == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records job latency in seconds.
func (m *JobMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// IncJobError increments the job error counter with a classified reason.
func (m *JobMetrics) IncJobError(job string, err error) {
	if m == nil || m.jobErrors == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyJobErrorReason(err)).Inc()
}

// IncSkippedTick records a tick dropped because the job was still running.
func (m *JobMetrics) IncSkippedTick(job string) {
	if m == nil || m.jobSkips == nil {
		return
	}
	m.jobSkips.WithLabelValues(job).Inc()
}

// AddProjectsChecked adds to the per-job project sweep counter.
func (m *JobMetrics) AddProjectsChecked(job string, count int) {
	if m == nil || m.projects == nil || count <= 0 {
		return
	}
	m.projects.WithLabelValues(job).Add(float64(count))
}

// IncDetection counts one positive detection.
func (m *JobMetrics) IncDetection(job, severity string) {
	if m == nil || m.detections == nil {
		return
	}
	m.detections.WithLabelValues(job, severity).Inc()
}

// IncActionTaken counts one routed action.
func (m *JobMetrics) IncActionTaken(job, action string) {
	if m == nil || m.actionsTaken == nil {
		return
	}
	m.actionsTaken.WithLabelValues(job, action).Inc()
}

// ClassifyJobErrorReason maps job errors to low-cardinality reasons.
func ClassifyJobErrorReason(err error) string {
	if err == nil {
		return JobErrorReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return JobErrorReasonDeadlineExceeded
	}
	if errors.Is(err, suspensiondomain.ErrLockContention) {
		return JobErrorReasonLockContention
	}
	if isDBError(err) {
		return JobErrorReasonDB
	}
	return JobErrorReasonUnknown
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	return errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrDuplicatedKey)
}
