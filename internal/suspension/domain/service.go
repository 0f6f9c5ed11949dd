package domain

import (
	"context"
	"errors"

	projectdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/project/domain"
	"github.com/bwmarrin/snowflake"
)

type SuspendRequest struct {
	ProjectID   snowflake.ID
	Reason      Reason
	CapExceeded string
	Notes       string
	Type        SuspensionType
	PerformedBy string
	Metadata    map[string]any
}

type Status struct {
	ProjectStatus projectdomain.ProjectStatus `json:"project_status"`
	ActiveRecord  *SuspensionRecord           `json:"active_record,omitempty"`
}

// Service is the single authority over the ACTIVE <-> SUSPENDED transition.
// Suspend is idempotent; Unsuspend on an active project is an explicit error.
// Automated detectors never call Unsuspend.
type Service interface {
	Suspend(ctx context.Context, req SuspendRequest) (*SuspensionRecord, error)
	Unsuspend(ctx context.Context, projectID snowflake.ID, notes, resolvedBy string) (*SuspensionRecord, error)
	GetStatus(ctx context.Context, projectID snowflake.ID) (Status, error)
	GetAllActive(ctx context.Context) ([]SuspensionRecord, error)
	GetHistory(ctx context.Context, projectID snowflake.ID, limit int) ([]SuspensionRecord, error)
	SuspendForCapViolation(ctx context.Context, projectID snowflake.ID, capType string, currentValue float64, limit int64) (*SuspensionRecord, error)
}

var (
	ErrNotSuspended   = errors.New("project_not_suspended")
	ErrInvalidReason  = errors.New("invalid_suspension_reason")
	ErrInvalidType    = errors.New("invalid_suspension_type")
	ErrLockContention = errors.New("suspension_lock_contention")
)
