package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	auditdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/audit/domain"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/clock"
	detectiondomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/detection/domain"
	notifdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/notification/domain"
	obsmetrics "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/observability/metrics"
	projectdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/project/domain"
	projectrepo "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/project/repository"
	suspensiondomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/suspension/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type detectorStub struct {
	detectorType detectiondomain.DetectorType
	mu           sync.Mutex
	evaluate     func(ctx context.Context, projectID snowflake.ID) ([]detectiondomain.DetectionResult, error)
	calls        []snowflake.ID
}

func (d *detectorStub) Type() detectiondomain.DetectorType { return d.detectorType }

func (d *detectorStub) EvaluateProject(ctx context.Context, projectID snowflake.ID) ([]detectiondomain.DetectionResult, error) {
	d.mu.Lock()
	d.calls = append(d.calls, projectID)
	fn := d.evaluate
	d.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx, projectID)
}

func (d *detectorStub) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type suspensionRecorder struct {
	mu       sync.Mutex
	requests []suspensiondomain.SuspendRequest
	err      error
}

func (s *suspensionRecorder) Suspend(_ context.Context, req suspensiondomain.SuspendRequest) (*suspensiondomain.SuspensionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.requests = append(s.requests, req)
	return &suspensiondomain.SuspensionRecord{ProjectID: req.ProjectID}, nil
}

func (s *suspensionRecorder) suspended() []suspensiondomain.SuspendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]suspensiondomain.SuspendRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *suspensionRecorder) Unsuspend(context.Context, snowflake.ID, string, string) (*suspensiondomain.SuspensionRecord, error) {
	return nil, nil
}
func (s *suspensionRecorder) GetStatus(context.Context, snowflake.ID) (suspensiondomain.Status, error) {
	return suspensiondomain.Status{}, nil
}
func (s *suspensionRecorder) GetAllActive(context.Context) ([]suspensiondomain.SuspensionRecord, error) {
	return nil, nil
}
func (s *suspensionRecorder) GetHistory(context.Context, snowflake.ID, int) ([]suspensiondomain.SuspensionRecord, error) {
	return nil, nil
}
func (s *suspensionRecorder) SuspendForCapViolation(context.Context, snowflake.ID, string, float64, int64) (*suspensiondomain.SuspensionRecord, error) {
	return nil, nil
}

type dispatcherRecorder struct {
	mu     sync.Mutex
	events []notifdomain.Event
}

func (d *dispatcherRecorder) Dispatch(event notifdomain.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *dispatcherRecorder) dispatched() []notifdomain.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]notifdomain.Event, len(d.events))
	copy(out, d.events)
	return out
}

func (d *dispatcherRecorder) SetPreference(context.Context, notifdomain.Preference) error { return nil }

func (d *dispatcherRecorder) ListDeliveries(context.Context, snowflake.ID, int) ([]notifdomain.Delivery, error) {
	return nil, nil
}

type usageStub struct {
	mu         sync.Mutex
	pruned     []time.Duration
	prunedRows int64
}

func (u *usageStub) Record(context.Context, snowflake.ID, string, float64) error { return nil }
func (u *usageStub) WindowSum(context.Context, snowflake.ID, string, time.Duration) (float64, error) {
	return 0, nil
}
func (u *usageStub) BaselineAverage(context.Context, snowflake.ID, string, time.Duration, time.Duration) (float64, error) {
	return 0, nil
}

func (u *usageStub) Prune(_ context.Context, retention time.Duration) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pruned = append(u.pruned, retention)
	return u.prunedRows, nil
}

type auditRecorder struct {
	mu     sync.Mutex
	events []auditdomain.Event
}

func (a *auditRecorder) LogEvent(_ context.Context, event auditdomain.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *auditRecorder) List(context.Context, auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	return auditdomain.ListResponse{}, nil
}

type runnerEnv struct {
	db         *gorm.DB
	clock      *clock.FakeClock
	genID      *snowflake.Node
	runner     *Runner
	spike      *detectorStub
	errorRate  *detectorStub
	pattern    *detectorStub
	suspension *suspensionRecorder
	dispatcher *dispatcherRecorder
	usage      *usageStub
	audit      *auditRecorder
}

func newRunnerEnv(t *testing.T, cfg Config) *runnerEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&projectdomain.Project{}))

	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	env := &runnerEnv{
		db:         db,
		clock:      clk,
		genID:      node,
		spike:      &detectorStub{detectorType: detectiondomain.DetectorSpike},
		errorRate:  &detectorStub{detectorType: detectiondomain.DetectorErrorRate},
		pattern:    &detectorStub{detectorType: detectiondomain.DetectorPattern},
		suspension: &suspensionRecorder{},
		dispatcher: &dispatcherRecorder{},
		usage:      &usageStub{},
		audit:      &auditRecorder{},
	}

	runner, err := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      clk,
		Projects:   projectrepo.Provide(),
		Spike:      env.spike,
		ErrorRate:  env.errorRate,
		Pattern:    env.pattern,
		Suspension: env.suspension,
		Dispatcher: env.dispatcher,
		Usage:      env.usage,
		AuditSvc:   env.audit,
		Metrics:    obsmetrics.Jobs(),
		Config:     cfg,
	})
	require.NoError(t, err)
	env.runner = runner
	return env
}

func (e *runnerEnv) createProjects(t *testing.T, count int, status projectdomain.ProjectStatus) []snowflake.ID {
	t.Helper()
	ids := make([]snowflake.ID, 0, count)
	for i := 0; i < count; i++ {
		project := &projectdomain.Project{
			ID:        e.genID.Generate(),
			Name:      fmt.Sprintf("proj-%d", i),
			Status:    status,
			CreatedAt: e.clock.Now(),
			UpdatedAt: e.clock.Now(),
		}
		require.NoError(t, e.db.Create(project).Error)
		ids = append(ids, project.ID)
	}
	return ids
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSpikeJobSweepsActiveProjectsOnly(t *testing.T) {
	env := newRunnerEnv(t, Config{WorkerCount: 2})
	env.createProjects(t, 3, projectdomain.StatusActive)
	env.createProjects(t, 2, projectdomain.StatusSuspended)

	result, err := env.runner.RunSpikeDetection(context.Background())
	require.NoError(t, err)

	assert.Equal(t, JobSpikeDetection, result.Job)
	assert.False(t, result.Skipped)
	assert.Equal(t, 3, result.ProjectsChecked)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 3, env.spike.callCount())
	assert.Zero(t, env.errorRate.callCount())
}

func TestSweepIsolatesProjectFailures(t *testing.T) {
	env := newRunnerEnv(t, Config{WorkerCount: 1})
	ids := env.createProjects(t, 3, projectdomain.StatusActive)
	badProject := ids[1]

	env.spike.evaluate = func(_ context.Context, projectID snowflake.ID) ([]detectiondomain.DetectionResult, error) {
		if projectID == badProject {
			return nil, errors.New("usage store unavailable")
		}
		return []detectiondomain.DetectionResult{{
			ID:          env.genID.Generate(),
			ProjectID:   projectID,
			Type:        string(detectiondomain.DetectorSpike),
			Severity:    detectiondomain.SeverityWarning,
			ActionTaken: detectiondomain.ActionWarning,
			Description: "usage above baseline",
		}}, nil
	}

	result, err := env.runner.RunSpikeDetection(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.ProjectsChecked)
	assert.Equal(t, 2, result.Detections)
	assert.Equal(t, 2, result.ActionsTaken)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], badProject.String())
	assert.Len(t, env.dispatcher.dispatched(), 2)
}

func TestSweepCountsSkippedProjectsAsChecked(t *testing.T) {
	env := newRunnerEnv(t, Config{WorkerCount: 2})
	env.createProjects(t, 2, projectdomain.StatusActive)

	env.pattern.evaluate = func(context.Context, snowflake.ID) ([]detectiondomain.DetectionResult, error) {
		return nil, detectiondomain.ErrSkipped
	}

	result, err := env.runner.RunPatternDetection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.ProjectsChecked)
	assert.Zero(t, result.Detections)
	assert.Empty(t, result.Errors)
}

func TestRouteActionSuspendsOnSevereDetection(t *testing.T) {
	env := newRunnerEnv(t, Config{WorkerCount: 1})
	ids := env.createProjects(t, 1, projectdomain.StatusActive)
	detectionID := env.genID.Generate()

	env.spike.evaluate = func(_ context.Context, projectID snowflake.ID) ([]detectiondomain.DetectionResult, error) {
		return []detectiondomain.DetectionResult{{
			ID:          detectionID,
			ProjectID:   projectID,
			Type:        string(detectiondomain.DetectorSpike),
			Severity:    detectiondomain.SeveritySevere,
			ActionTaken: detectiondomain.ActionSuspension,
			Description: "usage 12x above baseline",
			Evidence:    map[string]any{"cap_type": "db_queries_per_day"},
		}}, nil
	}

	result, err := env.runner.RunSpikeDetection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.ActionsTaken)

	suspended := env.suspension.suspended()
	require.Len(t, suspended, 1)
	assert.Equal(t, ids[0], suspended[0].ProjectID)
	assert.Equal(t, "db_queries_per_day", suspended[0].CapExceeded)
	assert.Equal(t, suspensiondomain.TypeAutomatic, suspended[0].Type)
	assert.Equal(t, detectionID.String(), suspended[0].Metadata["detection_id"])
}

func TestRouteActionInvestigateAuditsAndNotifies(t *testing.T) {
	env := newRunnerEnv(t, Config{WorkerCount: 1})
	env.createProjects(t, 1, projectdomain.StatusActive)

	env.errorRate.evaluate = func(_ context.Context, projectID snowflake.ID) ([]detectiondomain.DetectionResult, error) {
		return []detectiondomain.DetectionResult{{
			ID:          env.genID.Generate(),
			ProjectID:   projectID,
			Type:        string(detectiondomain.DetectorErrorRate),
			Severity:    detectiondomain.SeveritySevere,
			ActionTaken: detectiondomain.ActionInvestigate,
			Description: "error rate 80% over 200 requests",
		}}, nil
	}

	result, err := env.runner.RunErrorRateDetection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.ActionsTaken)
	assert.Empty(t, env.suspension.suspended())

	events := env.dispatcher.dispatched()
	require.Len(t, events, 1)
	assert.Equal(t, notifdomain.TypeDetection, events[0].Type)

	env.audit.mu.Lock()
	defer env.audit.mu.Unlock()
	require.Len(t, env.audit.events, 1)
	assert.Equal(t, "project.flagged_for_investigation", env.audit.events[0].Action)
}

func TestRouteActionFailureIsRecordedNotFatal(t *testing.T) {
	env := newRunnerEnv(t, Config{WorkerCount: 1})
	env.createProjects(t, 1, projectdomain.StatusActive)
	env.suspension.err = errors.New("lock contention")

	env.spike.evaluate = func(_ context.Context, projectID snowflake.ID) ([]detectiondomain.DetectionResult, error) {
		return []detectiondomain.DetectionResult{{
			ID:          env.genID.Generate(),
			ProjectID:   projectID,
			Severity:    detectiondomain.SeveritySevere,
			ActionTaken: detectiondomain.ActionSuspension,
		}}, nil
	}

	result, err := env.runner.RunSpikeDetection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Detections)
	assert.Zero(t, result.ActionsTaken)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "lock contention")
}

func TestOverlappingTickIsSkipped(t *testing.T) {
	env := newRunnerEnv(t, Config{WorkerCount: 1})
	env.createProjects(t, 1, projectdomain.StatusActive)

	entered := make(chan struct{})
	release := make(chan struct{})
	env.spike.evaluate = func(context.Context, snowflake.ID) ([]detectiondomain.DetectionResult, error) {
		close(entered)
		<-release
		return nil, nil
	}

	done := make(chan JobResult, 1)
	go func() {
		result, _ := env.runner.RunSpikeDetection(context.Background())
		done <- result
	}()

	<-entered
	second, err := env.runner.RunSpikeDetection(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Skipped)

	close(release)
	first := <-done
	assert.False(t, first.Skipped)
	assert.Equal(t, 1, first.ProjectsChecked)
}

func TestUsagePruneUsesConfiguredRetention(t *testing.T) {
	env := newRunnerEnv(t, Config{Retention: 7 * 24 * time.Hour})
	env.usage.prunedRows = 42

	result, err := env.runner.RunUsagePrune(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)

	env.usage.mu.Lock()
	defer env.usage.mu.Unlock()
	require.Len(t, env.usage.pruned, 1)
	assert.Equal(t, 7*24*time.Hour, env.usage.pruned[0])
}

func TestRunOnceHonorsEnabledJobs(t *testing.T) {
	env := newRunnerEnv(t, Config{
		WorkerCount: 1,
		EnabledJobs: []string{JobErrorRateDetection},
	})
	env.createProjects(t, 2, projectdomain.StatusActive)

	require.NoError(t, env.runner.RunOnce(context.Background()))

	assert.Zero(t, env.spike.callCount())
	assert.Zero(t, env.pattern.callCount())
	assert.Equal(t, 2, env.errorRate.callCount())
	env.usage.mu.Lock()
	defer env.usage.mu.Unlock()
	assert.Empty(t, env.usage.pruned)
}

func TestRunOnceRunsEverythingByDefault(t *testing.T) {
	env := newRunnerEnv(t, Config{WorkerCount: 1})
	env.createProjects(t, 1, projectdomain.StatusActive)

	require.NoError(t, env.runner.RunOnce(context.Background()))

	assert.Equal(t, 1, env.spike.callCount())
	assert.Equal(t, 1, env.errorRate.callCount())
	assert.Equal(t, 1, env.pattern.callCount())
	env.usage.mu.Lock()
	defer env.usage.mu.Unlock()
	assert.Len(t, env.usage.pruned, 1)
}
