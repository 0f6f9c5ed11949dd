package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	auditdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/audit/domain"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/clock"
	notifdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/notification/domain"
	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/projectlock"
	projectdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/project/domain"
	suspensiondomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/suspension/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const lockTTL = 10 * time.Second

// errRaced marks a transition that lost a concurrent status flip; the caller
// re-reads and treats the operation as an idempotent no-op.
var errRaced = errors.New("suspension transition raced")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       suspensiondomain.Repository
	Projects   projectdomain.Repository
	Dispatcher notifdomain.Dispatcher
	AuditSvc   auditdomain.Service
	Locker     *projectlock.Locker `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       suspensiondomain.Repository
	projects   projectdomain.Repository
	dispatcher notifdomain.Dispatcher
	auditSvc   auditdomain.Service
	locker     *projectlock.Locker
}

func New(p Params) suspensiondomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("suspension.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		projects:   p.Projects,
		dispatcher: p.Dispatcher,
		auditSvc:   p.AuditSvc,
		locker:     p.Locker,
	}
}

func (s *Service) Suspend(ctx context.Context, req suspensiondomain.SuspendRequest) (*suspensiondomain.SuspensionRecord, error) {
	if req.Type == "" {
		req.Type = suspensiondomain.TypeAutomatic
	}
	if req.Type != suspensiondomain.TypeManual && req.Type != suspensiondomain.TypeAutomatic {
		return nil, suspensiondomain.ErrInvalidType
	}
	if strings.TrimSpace(req.Reason.Details) == "" && strings.TrimSpace(req.Reason.CapType) == "" {
		return nil, suspensiondomain.ErrInvalidReason
	}

	release, err := s.acquireLock(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		record  *suspensiondomain.SuspensionRecord
		created bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindUnresolved(ctx, tx, req.ProjectID)
		if err != nil {
			return err
		}
		if existing != nil {
			// Already suspended: idempotent no-op, no duplicate record.
			record = existing
			return nil
		}

		flipped, err := s.projects.UpdateStatusIf(ctx, tx, req.ProjectID, projectdomain.StatusActive, projectdomain.StatusSuspended)
		if err != nil {
			return err
		}
		if !flipped {
			if _, err := s.projects.FindByID(ctx, tx, req.ProjectID); err != nil {
				return err
			}
			return errRaced
		}

		newRecord := &suspensiondomain.SuspensionRecord{
			ID:                  s.genID.Generate(),
			ProjectID:           req.ProjectID,
			ReasonCapType:       req.Reason.CapType,
			ReasonCurrentValue:  req.Reason.CurrentValue,
			ReasonLimitExceeded: req.Reason.LimitExceeded,
			ReasonDetails:       req.Reason.Details,
			CapExceeded:         req.CapExceeded,
			Metadata:            datatypes.JSONMap(req.Metadata),
			SuspendedAt:         s.clock.Now(),
			Notes:               req.Notes,
			SuspensionType:      req.Type,
		}
		if err := s.repo.Insert(ctx, tx, newRecord); err != nil {
			return err
		}
		record = newRecord
		created = true
		return nil
	})
	if errors.Is(err, errRaced) {
		// A concurrent suspend won; surface its record.
		return s.repo.FindUnresolved(ctx, s.db, req.ProjectID)
	}
	if err != nil {
		return nil, err
	}

	if created {
		s.log.Info("project suspended",
			zap.String("project_id", req.ProjectID.String()),
			zap.String("suspension_type", string(req.Type)),
			zap.String("cap_exceeded", req.CapExceeded),
		)
		s.afterSuspend(ctx, record, req.PerformedBy)
	}
	return record, nil
}

func (s *Service) Unsuspend(ctx context.Context, projectID snowflake.ID, notes, resolvedBy string) (*suspensiondomain.SuspensionRecord, error) {
	release, err := s.acquireLock(ctx, projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	var record *suspensiondomain.SuspensionRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindUnresolved(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if existing == nil {
			return suspensiondomain.ErrNotSuspended
		}

		resolvedAt := s.clock.Now()
		if err := s.repo.Resolve(ctx, tx, existing.ID, resolvedAt, notes); err != nil {
			return err
		}
		if _, err := s.projects.UpdateStatusIf(ctx, tx, projectID, projectdomain.StatusSuspended, projectdomain.StatusActive); err != nil {
			return err
		}

		existing.ResolvedAt = &resolvedAt
		if notes != "" {
			existing.Notes = notes
		}
		record = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("project unsuspended",
		zap.String("project_id", projectID.String()),
		zap.String("resolved_by", resolvedBy),
	)
	s.auditEvent(ctx, projectID, "project.unsuspended", record.ID.String(), resolvedBy, map[string]any{
		"notes": notes,
	})
	return record, nil
}

func (s *Service) GetStatus(ctx context.Context, projectID snowflake.ID) (suspensiondomain.Status, error) {
	project, err := s.projects.FindByID(ctx, s.db, projectID)
	if err != nil {
		return suspensiondomain.Status{}, err
	}
	record, err := s.repo.FindUnresolved(ctx, s.db, projectID)
	if err != nil {
		return suspensiondomain.Status{}, err
	}
	return suspensiondomain.Status{
		ProjectStatus: project.Status,
		ActiveRecord:  record,
	}, nil
}

func (s *Service) GetAllActive(ctx context.Context) ([]suspensiondomain.SuspensionRecord, error) {
	return s.repo.ListUnresolved(ctx, s.db)
}

func (s *Service) GetHistory(ctx context.Context, projectID snowflake.ID, limit int) ([]suspensiondomain.SuspensionRecord, error) {
	return s.repo.ListByProject(ctx, s.db, projectID, limit)
}

func (s *Service) SuspendForCapViolation(ctx context.Context, projectID snowflake.ID, capType string, currentValue float64, limit int64) (*suspensiondomain.SuspensionRecord, error) {
	return s.Suspend(ctx, suspensiondomain.SuspendRequest{
		ProjectID: projectID,
		Reason: suspensiondomain.Reason{
			CapType:       capType,
			CurrentValue:  currentValue,
			LimitExceeded: limit,
			Details:       fmt.Sprintf("usage %.0f exceeded cap %d for %s", currentValue, limit, capType),
		},
		CapExceeded: capType,
		Type:        suspensiondomain.TypeAutomatic,
	})
}

// acquireLock serializes transitions per project across replicas when a
// locker is configured. Lock contention surfaces as an error so callers
// retry on the next tick instead of racing.
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
			s.log.Warn("failed to release suspension lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (s *Service) afterSuspend(ctx context.Context, record *suspensiondomain.SuspensionRecord, performedBy string) {
	s.auditEvent(ctx, record.ProjectID, "project.suspended", record.ID.String(), performedBy, map[string]any{
		"suspension_type": string(record.SuspensionType),
		"cap_exceeded":    record.CapExceeded,
		"reason":          record.ReasonDetails,
	})

	s.dispatcher.Dispatch(notifdomain.Event{
		ProjectID: record.ProjectID,
		Type:      notifdomain.TypeSuspension,
		Subject:   "Your project has been suspended",
		Body: fmt.Sprintf(
			"Project %s was suspended (%s). Reason: %s. Contact support to appeal.",
			record.ProjectID.String(), record.SuspensionType, record.ReasonDetails,
		),
		Metadata: map[string]any{"suspension_id": record.ID.String()},
	})
}

func (s *Service) auditEvent(ctx context.Context, projectID snowflake.ID, action, targetID, actor string, metadata map[string]any) {
	actorType := auditdomain.ActorTypeSystem
	var actorID *string
	if actor != "" {
		actorType = auditdomain.ActorTypeOperator
		actorID = &actor
	}
	event := auditdomain.Event{
		ProjectID:  &projectID,
		ActorType:  actorType,
		ActorID:    actorID,
		Action:     action,
		TargetType: "suspension_record",
		TargetID:   &targetID,
		Metadata:   metadata,
	}
	if err := s.auditSvc.LogEvent(ctx, event); err != nil {
		s.log.Warn("failed to audit suspension event", zap.String("action", action), zap.Error(err))
	}
}
