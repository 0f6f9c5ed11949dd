// Package jobs orchestrates the periodic abuse sweeps: each detector runs
// over all active projects on an interval, routing positive detections to
// the suspension state machine or the notification dispatcher.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	auditdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/audit/domain"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/clock"
	detectiondomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/detection/domain"
	notifdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/notification/domain"
	obsmetrics "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/observability/metrics"
	projectdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/project/domain"
	suspensiondomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/suspension/domain"
	usagedomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/usage/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	JobSpikeDetection     = "spike_detection"
	JobErrorRateDetection = "error_rate_detection"
	JobPatternDetection   = "pattern_detection"
	JobUsagePrune         = "usage_prune"
)

var ErrInvalidConfig = errors.New("jobs: missing required dependency")

// JobResult summarizes one job run. Errors holds per-project failures; one
// bad project never aborts the sweep.
type JobResult struct {
	Job             string
	Skipped         bool
	Success         bool
	Duration        time.Duration
	ProjectsChecked int
	Detections      int
	ActionsTaken    int
	Errors          []string
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Projects   projectdomain.Repository
	Spike      detectiondomain.SpikeDetector
	ErrorRate  detectiondomain.ErrorRateDetector
	Pattern    detectiondomain.PatternDetector
	Suspension suspensiondomain.Service
	Dispatcher notifdomain.Dispatcher
	Usage      usagedomain.Service
	AuditSvc   auditdomain.Service
	Metrics    *obsmetrics.JobMetrics
	Config     Config `optional:"true"`
}

type Runner struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	projects   projectdomain.Repository
	spike      detectiondomain.SpikeDetector
	errorRate  detectiondomain.ErrorRateDetector
	pattern    detectiondomain.PatternDetector
	suspension suspensiondomain.Service
	dispatcher notifdomain.Dispatcher
	usage      usagedomain.Service
	auditSvc   auditdomain.Service
	metrics    *obsmetrics.JobMetrics

	// One mutex per job name so a slow sweep makes the next tick skip
	// instead of piling up.
	jobLocks map[string]*sync.Mutex
}

func New(p Params) (*Runner, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Projects == nil ||
		p.Spike == nil || p.ErrorRate == nil || p.Pattern == nil ||
		p.Suspension == nil || p.Dispatcher == nil || p.Usage == nil || p.AuditSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Runner{
		db:         p.DB,
		log:        p.Log.Named("jobs").With(zap.String("component", "jobs")),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		projects:   p.Projects,
		spike:      p.Spike,
		errorRate:  p.ErrorRate,
		pattern:    p.Pattern,
		suspension: p.Suspension,
		dispatcher: p.Dispatcher,
		usage:      p.Usage,
		auditSvc:   p.AuditSvc,
		metrics:    p.Metrics,
		jobLocks: map[string]*sync.Mutex{
			JobSpikeDetection:     {},
			JobErrorRateDetection: {},
			JobPatternDetection:   {},
			JobUsagePrune:         {},
		},
	}, nil
}

func (r *Runner) RunSpikeDetection(ctx context.Context) (JobResult, error) {
	return r.runDetectionJob(ctx, JobSpikeDetection, r.spike)
}

func (r *Runner) RunErrorRateDetection(ctx context.Context) (JobResult, error) {
	return r.runDetectionJob(ctx, JobErrorRateDetection, r.errorRate)
}

func (r *Runner) RunPatternDetection(ctx context.Context) (JobResult, error) {
	return r.runDetectionJob(ctx, JobPatternDetection, r.pattern)
}

// RunUsagePrune deletes usage samples older than the retention window.
func (r *Runner) RunUsagePrune(parent context.Context) (JobResult, error) {
	job := JobUsagePrune
	lock := r.jobLocks[job]
	if !lock.TryLock() {
		r.metrics.IncSkippedTick(job)
		r.log.Info("previous run still in flight, skipping tick", zap.String("job", job))
		return JobResult{Job: job, Skipped: true}, nil
	}
	defer lock.Unlock()

	start := r.clock.Now()
	r.metrics.IncJobRun(job)
	ctx, cancel := context.WithTimeout(parent, r.cfg.JobTimeout)
	defer cancel()

	removed, err := r.usage.Prune(ctx, r.cfg.Retention)
	duration := r.clock.Now().Sub(start)
	r.metrics.ObserveJobDuration(job, duration)
	if err != nil {
		r.metrics.IncJobError(job, err)
		return JobResult{Job: job, Duration: duration, Errors: []string{err.Error()}},
			fmt.Errorf("%s: %w", job, err)
	}

	r.log.Info("usage prune finished",
		zap.Int64("removed", removed),
		zap.Duration("duration", duration),
	)
	return JobResult{Job: job, Success: true, Duration: duration}, nil
}

// RunOnce runs every enabled job sequentially and joins their errors.
func (r *Runner) RunOnce(ctx context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) (JobResult, error)
	}{
		{JobSpikeDetection, r.RunSpikeDetection},
		{JobErrorRateDetection, r.RunErrorRateDetection},
		{JobPatternDetection, r.RunPatternDetection},
		{JobUsagePrune, r.RunUsagePrune},
	}
	for _, job := range jobs {
		if !r.isJobEnabled(job.Name) {
			continue
		}
		_, runErr := job.Run(ctx)
		err = errors.Join(err, runErr)
	}
	return err
}

func (r *Runner) RunForever(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := r.RunOnce(ctx); err != nil {
			r.log.Warn("job run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) isJobEnabled(jobName string) bool {
	// Empty EnabledJobs means all jobs run (monolith mode).
	if len(r.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range r.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

func (r *Runner) runDetectionJob(parent context.Context, job string, detector detectiondomain.Detector) (JobResult, error) {
	lock := r.jobLocks[job]
	if !lock.TryLock() {
		r.metrics.IncSkippedTick(job)
		r.log.Info("previous run still in flight, skipping tick", zap.String("job", job))
		return JobResult{Job: job, Skipped: true}, nil
	}
	defer lock.Unlock()

	start := r.clock.Now()
	r.metrics.IncJobRun(job)
	ctx, cancel := context.WithTimeout(parent, r.cfg.JobTimeout)
	defer cancel()

	result := r.sweep(ctx, job, detector)
	result.Duration = r.clock.Now().Sub(start)
	r.metrics.ObserveJobDuration(job, result.Duration)
	r.metrics.AddProjectsChecked(job, result.ProjectsChecked)

	log := r.log.With(
		zap.String("job", job),
		zap.Int("projects_checked", result.ProjectsChecked),
		zap.Int("detections", result.Detections),
		zap.Int("actions_taken", result.ActionsTaken),
		zap.Duration("duration", result.Duration),
	)
	if len(result.Errors) > 0 {
		log.Warn("job finished with project failures", zap.Strings("errors", result.Errors))
	} else {
		log.Info("job finished")
	}
	return result, nil
}

// sweep evaluates every active project through the detector on a bounded
// worker pool. Per-project failures are collected, counted and skipped.
func (r *Runner) sweep(ctx context.Context, job string, detector detectiondomain.Detector) JobResult {
	result := JobResult{Job: job, Success: true}

	projects, err := r.projects.ListByStatus(ctx, r.db, projectdomain.StatusActive)
	if err != nil {
		r.metrics.IncJobError(job, err)
		result.Success = false
		result.Errors = append(result.Errors, "list projects: "+err.Error())
		return result
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	work := make(chan snowflake.ID)

	for i := 0; i < r.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for projectID := range work {
				detections, err := detector.EvaluateProject(ctx, projectID)
				if errors.Is(err, detectiondomain.ErrSkipped) {
					mu.Lock()
					result.ProjectsChecked++
					mu.Unlock()
					continue
				}
				if err != nil {
					r.metrics.IncJobError(job, err)
					mu.Lock()
					result.ProjectsChecked++
					result.Errors = append(result.Errors, projectID.String()+": "+err.Error())
					mu.Unlock()
					continue
				}

				var actions int
				var routeErrs []string
				for _, detection := range detections {
					r.metrics.IncDetection(job, string(detection.Severity))
					if detection.ActionTaken == detectiondomain.ActionNone {
						continue
					}
					if err := r.routeAction(ctx, detection); err != nil {
						r.metrics.IncJobError(job, err)
						routeErrs = append(routeErrs, projectID.String()+": "+err.Error())
						continue
					}
					r.metrics.IncActionTaken(job, string(detection.ActionTaken))
					actions++
				}

				mu.Lock()
				result.ProjectsChecked++
				result.Detections += len(detections)
				result.ActionsTaken += actions
				result.Errors = append(result.Errors, routeErrs...)
				mu.Unlock()
			}
		}()
	}

	for _, project := range projects {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			result.Errors = append(result.Errors, ctx.Err().Error())
			return result
		case work <- project.ID:
		}
	}
	close(work)
	wg.Wait()
	return result
}

func (r *Runner) routeAction(ctx context.Context, detection detectiondomain.DetectionResult) error {
	switch detection.ActionTaken {
	case detectiondomain.ActionSuspension:
		capType, _ := detection.Evidence["cap_type"].(string)
		_, err := r.suspension.Suspend(ctx, suspensiondomain.SuspendRequest{
			ProjectID: detection.ProjectID,
			Reason: suspensiondomain.Reason{
				CapType: capType,
				Details: detection.Description,
			},
			CapExceeded: capType,
			Type:        suspensiondomain.TypeAutomatic,
			Metadata: map[string]any{
				"detection_id":   detection.ID.String(),
				"detection_type": detection.Type,
				"severity":       string(detection.Severity),
			},
		})
		return err

	case detectiondomain.ActionInvestigate:
		r.auditDetection(ctx, detection, "project.flagged_for_investigation")
		r.dispatcher.Dispatch(notifdomain.Event{
			ProjectID: detection.ProjectID,
			Type:      notifdomain.TypeDetection,
			Subject:   "Your project was flagged for investigation",
			Body:      detection.Description,
			Metadata:  map[string]any{"detection_id": detection.ID.String()},
		})
		return nil

	case detectiondomain.ActionWarning:
		r.dispatcher.Dispatch(notifdomain.Event{
			ProjectID: detection.ProjectID,
			Type:      notifdomain.TypeWarning,
			Subject:   "Unusual activity on your project",
			Body:      detection.Description,
			Metadata:  map[string]any{"detection_id": detection.ID.String()},
		})
		return nil
	}
	return nil
}

func (r *Runner) auditDetection(ctx context.Context, detection detectiondomain.DetectionResult, action string) {
	targetID := detection.ID.String()
	event := auditdomain.Event{
		ProjectID:  &detection.ProjectID,
		ActorType:  auditdomain.ActorTypeSystem,
		Action:     action,
		TargetType: "detection_result",
		TargetID:   &targetID,
		Metadata: map[string]any{
			"detection_type": detection.Type,
			"severity":       string(detection.Severity),
		},
	}
	if err := r.auditSvc.LogEvent(ctx, event); err != nil {
		r.log.Warn("failed to audit detection", zap.String("action", action), zap.Error(err))
	}
}
