package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	auditdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/audit/domain"
	auditrepo "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/audit/repository"
	auditservice "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/audit/service"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/clock"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/config"
	projectdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/project/domain"
	projectrepo "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/project/repository"
	quotadomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/quota/domain"
	quotarepo "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/quota/repository"
	suspensiondomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/suspension/domain"
	usagedomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/usage/domain"
	usagerepo "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/usage/repository"
	usageservice "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/usage/service"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type capViolationRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (s *capViolationRecorder) SuspendForCapViolation(_ context.Context, projectID snowflake.ID, capType string, _ float64, _ int64) (*suspensiondomain.SuspensionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, projectID.String()+":"+capType)
	return &suspensiondomain.SuspensionRecord{ProjectID: projectID}, nil
}

func (s *capViolationRecorder) violations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *capViolationRecorder) Suspend(context.Context, suspensiondomain.SuspendRequest) (*suspensiondomain.SuspensionRecord, error) {
	return nil, nil
}
func (s *capViolationRecorder) Unsuspend(context.Context, snowflake.ID, string, string) (*suspensiondomain.SuspensionRecord, error) {
	return nil, nil
}
func (s *capViolationRecorder) GetStatus(context.Context, snowflake.ID) (suspensiondomain.Status, error) {
	return suspensiondomain.Status{}, nil
}
func (s *capViolationRecorder) GetAllActive(context.Context) ([]suspensiondomain.SuspensionRecord, error) {
	return nil, nil
}
func (s *capViolationRecorder) GetHistory(context.Context, snowflake.ID, int) ([]suspensiondomain.SuspensionRecord, error) {
	return nil, nil
}

type quotaEnv struct {
	db         *gorm.DB
	clock      *clock.FakeClock
	genID      *snowflake.Node
	svc        quotadomain.Service
	suspension *capViolationRecorder
}

func newQuotaEnv(t *testing.T) *quotaEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&projectdomain.Project{},
		&quotadomain.Quota{},
		&usagedomain.UsageMetric{},
		&auditdomain.AuditLog{},
	))

	clk := clock.NewFakeClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	recorder := &capViolationRecorder{}

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  auditrepo.Provide(),
	})
	usageSvc := usageservice.New(usageservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  usagerepo.Provide(),
	})
	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		Repo:       quotarepo.Provide(),
		Projects:   projectrepo.Provide(),
		Usage:      usageSvc,
		Suspension: recorder,
		AuditSvc:   auditSvc,
		Thresholds: config.NewStaticThresholdHolder(config.DefaultThresholdConfig()),
	})
	return &quotaEnv{db: db, clock: clk, genID: node, svc: svc, suspension: recorder}
}

func (e *quotaEnv) createProject(t *testing.T, status projectdomain.ProjectStatus) snowflake.ID {
	t.Helper()
	project := &projectdomain.Project{
		ID:        e.genID.Generate(),
		Name:      "proj-" + t.Name(),
		Status:    status,
		CreatedAt: e.clock.Now(),
		UpdatedAt: e.clock.Now(),
	}
	require.NoError(t, e.db.Create(project).Error)
	return project.ID
}

func TestInitializeProjectIsIdempotent(t *testing.T) {
	env := newQuotaEnv(t)
	projectID := env.createProject(t, projectdomain.StatusActive)
	ctx := context.Background()

	require.NoError(t, env.svc.InitializeProject(ctx, projectID))

	// Bump one cap, then initialize again; the change must survive.
	_, err := env.svc.UpdateQuota(ctx, projectID, quotadomain.CapDBQueriesPerDay, 20_000)
	require.NoError(t, err)
	require.NoError(t, env.svc.InitializeProject(ctx, projectID))

	var rows []quotadomain.Quota
	require.NoError(t, env.db.Where("project_id = ?", projectID).Find(&rows).Error)
	assert.Len(t, rows, len(quotadomain.AllCapTypes()))
	for _, row := range rows {
		if row.CapType == quotadomain.CapDBQueriesPerDay {
			assert.EqualValues(t, 20_000, row.CapValue)
		}
	}
}

func TestGetQuotasServesDefaultsForMissingRows(t *testing.T) {
	env := newQuotaEnv(t)
	projectID := env.createProject(t, projectdomain.StatusActive)

	quotas := env.svc.GetQuotas(context.Background(), projectID)
	require.Len(t, quotas, len(quotadomain.AllCapTypes()))

	byType := map[quotadomain.CapType]int64{}
	for _, quota := range quotas {
		byType[quota.CapType] = quota.CapValue
	}
	assert.EqualValues(t, 10_000, byType[quotadomain.CapDBQueriesPerDay])
	assert.EqualValues(t, 100, byType[quotadomain.CapRealtimeConnections])
}

func TestUpdateQuotaEnforcesOperatorBounds(t *testing.T) {
	env := newQuotaEnv(t)
	projectID := env.createProject(t, projectdomain.StatusActive)
	ctx := context.Background()

	_, err := env.svc.UpdateQuota(ctx, projectID, quotadomain.CapDBQueriesPerDay, 50)
	assert.ErrorIs(t, err, quotadomain.ErrInvalidCapValue)
	_, err = env.svc.UpdateQuota(ctx, projectID, quotadomain.CapDBQueriesPerDay, 2_000_000)
	assert.ErrorIs(t, err, quotadomain.ErrInvalidCapValue)
	_, err = env.svc.UpdateQuota(ctx, projectID, quotadomain.CapType("gpu_hours"), 10)
	assert.ErrorIs(t, err, quotadomain.ErrInvalidCapType)

	quota, err := env.svc.UpdateQuota(ctx, projectID, quotadomain.CapDBQueriesPerDay, 25_000)
	require.NoError(t, err)
	assert.EqualValues(t, 25_000, quota.CapValue)
}

func TestResetToDefaultsRewritesValues(t *testing.T) {
	env := newQuotaEnv(t)
	projectID := env.createProject(t, projectdomain.StatusActive)
	ctx := context.Background()

	_, err := env.svc.UpdateQuota(ctx, projectID, quotadomain.CapRealtimeConnections, 5_000)
	require.NoError(t, err)
	require.NoError(t, env.svc.ResetToDefaults(ctx, projectID))

	var quota quotadomain.Quota
	require.NoError(t, env.db.First(&quota, "project_id = ? AND cap_type = ?",
		projectID, quotadomain.CapRealtimeConnections).Error)
	assert.EqualValues(t, 100, quota.CapValue)
}

func TestCheckQuotaComparesUsageAgainstCap(t *testing.T) {
	env := newQuotaEnv(t)
	projectID := env.createProject(t, projectdomain.StatusActive)
	ctx := context.Background()

	check := env.svc.CheckQuota(ctx, projectID, quotadomain.CapDBQueriesPerDay, 9_000)
	assert.True(t, check.Allowed)
	assert.InDelta(t, 1_000, check.Remaining, 0.001)
	assert.EqualValues(t, 10_000, check.Limit)

	check = env.svc.CheckQuota(ctx, projectID, quotadomain.CapDBQueriesPerDay, 11_000)
	assert.False(t, check.Allowed)
	assert.Zero(t, check.Remaining)
}

func TestIsAllowedDeniesAndSuspendsOverCap(t *testing.T) {
	env := newQuotaEnv(t)
	projectID := env.createProject(t, projectdomain.StatusActive)
	ctx := context.Background()

	// Drive usage over the realtime connection cap inside its 1h window.
	require.NoError(t, env.db.Create(&usagedomain.UsageMetric{
		ID:          env.genID.Generate(),
		ProjectID:   projectID,
		MetricType:  string(quotadomain.CapRealtimeConnections),
		MetricValue: 150,
		RecordedAt:  env.clock.Now().Add(-10 * time.Minute),
	}).Error)

	allowed, err := env.svc.IsAllowed(ctx, projectID, quotadomain.CapRealtimeConnections)
	require.NoError(t, err)
	assert.False(t, allowed)
	require.Len(t, env.suspension.violations(), 1)
	assert.Equal(t, projectID.String()+":realtime_connections", env.suspension.violations()[0])
}

func TestIsAllowedPermitsUsageUnderCap(t *testing.T) {
	env := newQuotaEnv(t)
	projectID := env.createProject(t, projectdomain.StatusActive)

	allowed, err := env.svc.IsAllowed(context.Background(), projectID, quotadomain.CapRealtimeConnections)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Empty(t, env.suspension.violations())
}

func TestIsAllowedDeniesSuspendedProject(t *testing.T) {
	env := newQuotaEnv(t)
	projectID := env.createProject(t, projectdomain.StatusSuspended)

	_, err := env.svc.IsAllowed(context.Background(), projectID, quotadomain.CapDBQueriesPerDay)
	assert.ErrorIs(t, err, quotadomain.ErrProjectSuspended)
}

func TestRecordRejectsUnknownCapType(t *testing.T) {
	env := newQuotaEnv(t)
	projectID := env.createProject(t, projectdomain.StatusActive)
	ctx := context.Background()

	assert.ErrorIs(t, env.svc.Record(ctx, projectID, quotadomain.CapType("gpu_hours"), 1), quotadomain.ErrInvalidCapType)
	require.NoError(t, env.svc.Record(ctx, projectID, quotadomain.CapDBQueriesPerDay, 3))

	var count int64
	require.NoError(t, env.db.Model(&usagedomain.UsageMetric{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestIsAllowedFailsOpenOnUsageStoreError(t *testing.T) {
	env := newQuotaEnv(t)
	projectID := env.createProject(t, projectdomain.StatusActive)
	ctx := context.Background()

	// Break the usage store so the window sum errors out. The check must not
	// turn a storage outage into a denial.
	require.NoError(t, env.db.Migrator().DropTable(&usagedomain.UsageMetric{}))

	allowed, err := env.svc.IsAllowed(ctx, projectID, quotadomain.CapDBQueriesPerDay)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Empty(t, env.suspension.violations())

	var logs []auditdomain.AuditLog
	require.NoError(t, env.db.Where("action = ?", "quota.check_failed_open").Find(&logs).Error)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].ProjectID)
	assert.Equal(t, projectID, *logs[0].ProjectID)
}
