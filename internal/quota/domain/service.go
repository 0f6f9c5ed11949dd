package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Service is the quota ledger exposed to calling services as QuotaManager.
type Service interface {
	// InitializeProject applies default caps, idempotently, for cap types not
	// already present.
	InitializeProject(ctx context.Context, projectID snowflake.ID) error
	// GetQuotas never fails: missing rows are reported at their defaults and
	// storage errors degrade to the full default set.
	GetQuotas(ctx context.Context, projectID snowflake.ID) []Quota
	UpdateQuota(ctx context.Context, projectID snowflake.ID, capType CapType, value int64) (*Quota, error)
	ResetToDefaults(ctx context.Context, projectID snowflake.ID) error
	// CheckQuota is a pure comparison of usage against the project's cap.
	CheckQuota(ctx context.Context, projectID snowflake.ID, capType CapType, currentUsage float64) QuotaCheck
	// IsAllowed fetches current usage for the cap's measurement window and
	// compares it against the cap. Storage failures fail open. A suspended
	// project is denied with ErrProjectSuspended so callers can surface
	// support-contact guidance instead of a generic failure.
	IsAllowed(ctx context.Context, projectID snowflake.ID, capType CapType) (bool, error)
	// Record appends usage. At-least-once; advisory accounting.
	Record(ctx context.Context, projectID snowflake.ID, capType CapType, amount float64) error
}

var (
	ErrInvalidCapType  = errors.New("invalid_cap_type")
	ErrInvalidCapValue = errors.New("invalid_cap_value")
	ErrProjectSuspended = errors.New("project_suspended")
)
