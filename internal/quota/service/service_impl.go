package service

import (
	"context"
	"time"

	auditdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/audit/domain"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/clock"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/config"
	projectdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/project/domain"
	quotadomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/quota/domain"
	suspensiondomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/suspension/domain"
	usagedomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/usage/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       quotadomain.Repository
	Projects   projectdomain.Repository
	Usage      usagedomain.Service
	Suspension suspensiondomain.Service
	AuditSvc   auditdomain.Service
	Thresholds *config.ThresholdHolder
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       quotadomain.Repository
	projects   projectdomain.Repository
	usage      usagedomain.Service
	suspension suspensiondomain.Service
	auditSvc   auditdomain.Service
	thresholds *config.ThresholdHolder
}

func New(p Params) quotadomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("quota.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		projects:   p.Projects,
		usage:      p.Usage,
		suspension: p.Suspension,
		auditSvc:   p.AuditSvc,
		thresholds: p.Thresholds,
	}
}

func (s *Service) capLimit(capType quotadomain.CapType) config.CapLimit {
	cfg := s.thresholds.Get()
	if limit, ok := cfg.Caps[string(capType)]; ok {
		return limit
	}
	// Unknown cap types are rejected at the API edge; this is a safety net
	// for stale threshold files.
	return config.CapLimit{Default: 0, Min: 0, Max: 0, WindowHours: 24}
}

func (s *Service) InitializeProject(ctx context.Context, projectID snowflake.ID) error {
	now := s.clock.Now()
	for _, capType := range quotadomain.AllCapTypes() {
		quota := &quotadomain.Quota{
			ID:        s.genID.Generate(),
			ProjectID: projectID,
			CapType:   capType,
			CapValue:  s.capLimit(capType).Default,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.InsertIfMissing(ctx, s.db, quota); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) GetQuotas(ctx context.Context, projectID snowflake.ID) []quotadomain.Quota {
	rows, err := s.repo.ListByProject(ctx, s.db, projectID)
	if err != nil {
		s.log.Warn("failed to load quotas, serving defaults",
			zap.String("project_id", projectID.String()),
			zap.Error(err),
		)
		rows = nil
	}

	byType := make(map[quotadomain.CapType]quotadomain.Quota, len(rows))
	for _, row := range rows {
		byType[row.CapType] = row
	}

	out := make([]quotadomain.Quota, 0, len(quotadomain.AllCapTypes()))
	for _, capType := range quotadomain.AllCapTypes() {
		if row, ok := byType[capType]; ok {
			out = append(out, row)
			continue
		}
		out = append(out, quotadomain.Quota{
			ProjectID: projectID,
			CapType:   capType,
			CapValue:  s.capLimit(capType).Default,
		})
	}
	return out
}

func (s *Service) UpdateQuota(ctx context.Context, projectID snowflake.ID, capType quotadomain.CapType, value int64) (*quotadomain.Quota, error) {
	if _, ok := quotadomain.ParseCapType(string(capType)); !ok {
		return nil, quotadomain.ErrInvalidCapType
	}
	limit := s.capLimit(capType)
	if value < limit.Min || value > limit.Max {
		return nil, quotadomain.ErrInvalidCapValue
	}

	now := s.clock.Now()
	quota := &quotadomain.Quota{
		ID:        s.genID.Generate(),
		ProjectID: projectID,
		CapType:   capType,
		CapValue:  value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Upsert(ctx, s.db, quota); err != nil {
		return nil, err
	}
	return quota, nil
}

func (s *Service) ResetToDefaults(ctx context.Context, projectID snowflake.ID) error {
	now := s.clock.Now()
	for _, capType := range quotadomain.AllCapTypes() {
		quota := &quotadomain.Quota{
			ID:        s.genID.Generate(),
			ProjectID: projectID,
			CapType:   capType,
			CapValue:  s.capLimit(capType).Default,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.Upsert(ctx, s.db, quota); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) CheckQuota(ctx context.Context, projectID snowflake.ID, capType quotadomain.CapType, currentUsage float64) quotadomain.QuotaCheck {
	limit := s.capLimit(capType).Default
	row, err := s.repo.FindByProjectAndType(ctx, s.db, projectID, capType)
	if err != nil {
		s.log.Warn("failed to load quota row, using default cap",
			zap.String("project_id", projectID.String()),
			zap.String("cap_type", string(capType)),
			zap.Error(err),
		)
	} else if row != nil {
		limit = row.CapValue
	}

	remaining := float64(limit) - currentUsage
	if remaining < 0 {
		remaining = 0
	}
	return quotadomain.QuotaCheck{
		Allowed:   currentUsage <= float64(limit),
		Remaining: remaining,
		Limit:     limit,
	}
}

func (s *Service) IsAllowed(ctx context.Context, projectID snowflake.ID, capType quotadomain.CapType) (bool, error) {
	if _, ok := quotadomain.ParseCapType(string(capType)); !ok {
		return false, quotadomain.ErrInvalidCapType
	}

	project, err := s.projects.FindByID(ctx, s.db, projectID)
	if err == nil && project.Status == projectdomain.StatusSuspended {
		return false, quotadomain.ErrProjectSuspended
	}
	if err != nil && err != projectdomain.ErrNotFound {
		// Status lookup failed on a storage error: fail open below.
		s.failOpenAudit(ctx, projectID, capType, err)
		return true, nil
	}

	window := time.Duration(s.capLimit(capType).WindowHours) * time.Hour
	currentUsage, err := s.usage.WindowSum(ctx, projectID, string(capType), window)
	if err != nil {
		// A store outage must not turn into a false denial of service.
		s.failOpenAudit(ctx, projectID, capType, err)
		return true, nil
	}

	check := s.CheckQuota(ctx, projectID, capType, currentUsage)
	if !check.Allowed {
		if _, err := s.suspension.SuspendForCapViolation(ctx, projectID, string(capType), currentUsage, check.Limit); err != nil {
			s.log.Error("failed to suspend project for cap violation",
				zap.String("project_id", projectID.String()),
				zap.String("cap_type", string(capType)),
				zap.Error(err),
			)
		}
		return false, nil
	}
	return true, nil
}

func (s *Service) Record(ctx context.Context, projectID snowflake.ID, capType quotadomain.CapType, amount float64) error {
	if _, ok := quotadomain.ParseCapType(string(capType)); !ok {
		return quotadomain.ErrInvalidCapType
	}
	if amount <= 0 {
		amount = 1
	}
	return s.usage.Record(ctx, projectID, string(capType), amount)
}

func (s *Service) failOpenAudit(ctx context.Context, projectID snowflake.ID, capType quotadomain.CapType, cause error) {
	s.log.Error("quota check failed open",
		zap.String("project_id", projectID.String()),
		zap.String("cap_type", string(capType)),
		zap.Error(cause),
	)
	target := string(capType)
	event := auditdomain.Event{
		ProjectID:  &projectID,
		ActorType:  auditdomain.ActorTypeSystem,
		Action:     "quota.check_failed_open",
		TargetType: "quota",
		TargetID:   &target,
		Metadata:   map[string]any{"error": cause.Error()},
	}
	if err := s.auditSvc.LogEvent(ctx, event); err != nil {
		s.log.Warn("failed to audit fail-open quota check", zap.Error(err))
	}
}
