package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	auditdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/audit/domain"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/clock"
	notifdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/notification/domain"
	overridedomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/override/domain"
	projectdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/project/domain"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/projectlock"
	quotadomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/quota/domain"
	suspensiondomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/suspension/domain"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const lockTTL = 10 * time.Second

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        overridedomain.Repository
	Projects    projectdomain.Repository
	Suspensions suspensiondomain.Repository
	Quotas      quotadomain.Repository
	QuotaSvc    quotadomain.Service
	Dispatcher  notifdomain.Dispatcher
	AuditSvc    auditdomain.Service
	Locker      *projectlock.Locker `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        overridedomain.Repository
	projects    projectdomain.Repository
	suspensions suspensiondomain.Repository
	quotas      quotadomain.Repository
	quotaSvc    quotadomain.Service
	dispatcher  notifdomain.Dispatcher
	auditSvc    auditdomain.Service
	locker      *projectlock.Locker
}

func New(p Params) overridedomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("override.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		projects:    p.Projects,
		suspensions: p.Suspensions,
		quotas:      p.Quotas,
		quotaSvc:    p.QuotaSvc,
		dispatcher:  p.Dispatcher,
		auditSvc:    p.AuditSvc,
		locker:      p.Locker,
	}
}

func (s *Service) Validate(req overridedomain.Request) error {
	if _, ok := overridedomain.ParseOverrideAction(string(req.Action)); !ok {
		return overridedomain.ErrInvalidAction
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" || len(reason) > overridedomain.MaxReasonLength {
		return overridedomain.ErrInvalidReason
	}
	if req.Action.TouchesCaps() {
		if len(req.NewCaps) == 0 {
			return overridedomain.ErrMissingCaps
		}
		for key, value := range req.NewCaps {
			if _, ok := quotadomain.ParseCapType(key); !ok {
				return overridedomain.ErrInvalidCapKey
			}
			if value < overridedomain.MinOverrideCapValue || value > overridedomain.MaxOverrideCapValue {
				return overridedomain.ErrInvalidCapValue
			}
		}
	}
	return nil
}

// Perform applies the override and records it in the same transaction, so
// history never shows a change that did not happen. The notification and
// audit writes run after commit and are best-effort.
func (s *Service) Perform(ctx context.Context, req overridedomain.Request, performedBy, ipAddress string) (*overridedomain.OverrideRecord, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	if req.Action.Unsuspends() {
		release, err := s.acquireLock(ctx, req.ProjectID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	project, err := s.projects.FindByID(ctx, s.db, req.ProjectID)
	if err != nil {
		return nil, err
	}
	previousStatus := project.Status
	previousCaps := s.capSnapshot(ctx, req.ProjectID)

	now := s.clock.Now()
	record := &overridedomain.OverrideRecord{
		ID:             s.genID.Generate(),
		ProjectID:      req.ProjectID,
		Action:         req.Action,
		Reason:         strings.TrimSpace(req.Reason),
		PreviousCaps:   previousCaps,
		PerformedBy:    performedBy,
		PerformedAt:    now,
		PreviousStatus: previousStatus,
		NewStatus:      previousStatus,
	}
	if ipAddress != "" {
		record.IPAddress = &ipAddress
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.Action.Unsuspends() {
			if err := s.unsuspendInTx(ctx, tx, req.ProjectID, record); err != nil {
				return err
			}
		}
		if req.Action.TouchesCaps() {
			if err := s.applyCapsInTx(ctx, tx, req, record, now); err != nil {
				return err
			}
		}
		return s.repo.Insert(ctx, tx, record)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("manual override performed",
		zap.String("project_id", req.ProjectID.String()),
		zap.String("action", string(req.Action)),
		zap.String("performed_by", performedBy),
	)
	s.afterPerform(ctx, record, ipAddress)
	return record, nil
}

func (s *Service) unsuspendInTx(ctx context.Context, tx *gorm.DB, projectID snowflake.ID, record *overridedomain.OverrideRecord) error {
	existing, err := s.suspensions.FindUnresolved(ctx, tx, projectID)
	if err != nil {
		return err
	}
	if existing == nil {
		return suspensiondomain.ErrNotSuspended
	}
	if err := s.suspensions.Resolve(ctx, tx, existing.ID, record.PerformedAt, record.Reason); err != nil {
		return err
	}
	if _, err := s.projects.UpdateStatusIf(ctx, tx, projectID, projectdomain.StatusSuspended, projectdomain.StatusActive); err != nil {
		return err
	}
	record.NewStatus = projectdomain.StatusActive
	return nil
}

func (s *Service) applyCapsInTx(ctx context.Context, tx *gorm.DB, req overridedomain.Request, record *overridedomain.OverrideRecord, now time.Time) error {
	newCaps := make(datatypes.JSONMap, len(record.PreviousCaps))
	for key, value := range record.PreviousCaps {
		newCaps[key] = value
	}
	for key, value := range req.NewCaps {
		quota := &quotadomain.Quota{
			ID:        s.genID.Generate(),
			ProjectID: req.ProjectID,
			CapType:   quotadomain.CapType(key),
			CapValue:  value,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.quotas.Upsert(ctx, tx, quota); err != nil {
			return err
		}
		newCaps[key] = value
	}
	record.NewCaps = newCaps
	return nil
}

func (s *Service) GetHistory(ctx context.Context, req overridedomain.HistoryRequest) (overridedomain.HistoryResponse, error) {
	limit := req.PageSize
	if limit <= 0 {
		limit = 20
	}

	var cursor *overridedomain.ListCursor
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return overridedomain.HistoryResponse{}, overridedomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(decoded.ID)
		if err != nil {
			return overridedomain.HistoryResponse{}, overridedomain.ErrInvalidPageToken
		}
		performedAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return overridedomain.HistoryResponse{}, overridedomain.ErrInvalidPageToken
		}
		cursor = &overridedomain.ListCursor{PerformedAt: performedAt, ID: id}
	}

	records, err := s.repo.ListByProject(ctx, s.db, req.ProjectID, cursor, limit+1)
	if err != nil {
		return overridedomain.HistoryResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(records, limit, func(record *overridedomain.OverrideRecord) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        record.ID.String(),
			CreatedAt: record.PerformedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	if len(records) > limit {
		records = records[:limit]
	}
	overrides := make([]overridedomain.OverrideRecord, 0, len(records))
	for _, record := range records {
		overrides = append(overrides, *record)
	}
	return overridedomain.HistoryResponse{
		PageInfo:  *pageInfo,
		Overrides: overrides,
	}, nil
}

func (s *Service) GetStatistics(ctx context.Context) (overridedomain.Statistics, error) {
	counts, err := s.repo.CountByAction(ctx, s.db)
	if err != nil {
		return overridedomain.Statistics{}, err
	}
	distinct, err := s.repo.CountDistinctProjects(ctx, s.db)
	if err != nil {
		return overridedomain.Statistics{}, err
	}
	recent, err := s.repo.CountSince(ctx, s.db, s.clock.Now().AddDate(0, 0, -30))
	if err != nil {
		return overridedomain.Statistics{}, err
	}

	stats := overridedomain.Statistics{
		ByAction:         make(map[overridedomain.OverrideAction]int64, len(counts)),
		DistinctProjects: distinct,
		Last30Days:       recent,
	}
	for _, count := range counts {
		stats.ByAction[count.Action] = count.Count
		stats.Total += count.Count
	}
	return stats, nil
}

func (s *Service) acquireLock(ctx context.Context, projectID snowflake.ID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	key := "suspension:" + projectID.String()
	token, ok, err := s.locker.TryLock(ctx, key, lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, suspensiondomain.ErrLockContention
	}
	return func() {
		if err := s.locker.Release(context.Background(), key, token); err != nil {
			s.log.Warn("failed to release override lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (s *Service) capSnapshot(ctx context.Context, projectID snowflake.ID) datatypes.JSONMap {
	quotas := s.quotaSvc.GetQuotas(ctx, projectID)
	snapshot := make(datatypes.JSONMap, len(quotas))
	for _, quota := range quotas {
		snapshot[string(quota.CapType)] = quota.CapValue
	}
	return snapshot
}

func (s *Service) afterPerform(ctx context.Context, record *overridedomain.OverrideRecord, ipAddress string) {
	actorID := record.PerformedBy
	targetID := record.ID.String()
	event := auditdomain.Event{
		ProjectID:  &record.ProjectID,
		ActorType:  auditdomain.ActorTypeOperator,
		ActorID:    &actorID,
		Action:     "project.override.performed",
		TargetType: "override_record",
		TargetID:   &targetID,
		Metadata: map[string]any{
			"override_action": string(record.Action),
			"previous_status": string(record.PreviousStatus),
			"new_status":      string(record.NewStatus),
		},
		IPAddress: ipAddress,
	}
	if err := s.auditSvc.LogEvent(ctx, event); err != nil {
		s.log.Warn("failed to audit override", zap.Error(err))
	}

	s.dispatcher.Dispatch(notifdomain.Event{
		ProjectID: record.ProjectID,
		Type:      notifdomain.TypeOverride,
		Subject:   "A manual override was applied to your project",
		Body: fmt.Sprintf("Action %s was performed on project %s. Reason: %s.",
			record.Action, record.ProjectID.String(), record.Reason),
		Metadata: map[string]any{"override_id": record.ID.String()},
	})
}
