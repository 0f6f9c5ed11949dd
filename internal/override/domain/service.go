package domain

import (
	"context"
	"errors"

	"github.com/Mkid095/nextmavens-developer-portal-sub001/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
)

// Cap values supplied through an override may exceed the normal operator
// bounds in the threshold file; the override path carries its own hard range.
const (
	MinOverrideCapValue = 0
	MaxOverrideCapValue = 1_000_000
)

const MaxReasonLength = 1000

type Request struct {
	ProjectID snowflake.ID
	Action    OverrideAction
	Reason    string
	// NewCaps is required when the action touches caps; keys are cap types,
	// values replace the current cap.
	NewCaps map[string]int64
}

type HistoryRequest struct {
	pagination.Pagination
	ProjectID snowflake.ID
}

type HistoryResponse struct {
	pagination.PageInfo
	Overrides []OverrideRecord `json:"overrides"`
}

type Statistics struct {
	Total            int64                    `json:"total"`
	ByAction         map[OverrideAction]int64 `json:"by_action"`
	DistinctProjects int64                    `json:"distinct_projects"`
	Last30Days       int64                    `json:"last_30_days"`
}

// Service is the operator-facing override workflow. Perform validates first
// and mutates nothing on a validation failure, so an invalid request leaves
// no record behind.
type Service interface {
	Validate(req Request) error
	Perform(ctx context.Context, req Request, performedBy, ipAddress string) (*OverrideRecord, error)
	GetHistory(ctx context.Context, req HistoryRequest) (HistoryResponse, error)
	GetStatistics(ctx context.Context) (Statistics, error)
}

var (
	ErrInvalidAction    = errors.New("invalid_override_action")
	ErrInvalidReason    = errors.New("invalid_override_reason")
	ErrInvalidCapKey    = errors.New("invalid_override_cap_key")
	ErrInvalidCapValue  = errors.New("invalid_override_cap_value")
	ErrMissingCaps      = errors.New("missing_override_caps")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
