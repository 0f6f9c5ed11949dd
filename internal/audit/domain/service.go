package domain

import (
	"context"
	"errors"
	"time"

	"github.com/Mkid095/nextmavens-developer-portal-sub001/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
)

// Event describes one auditable action.
type Event struct {
	ProjectID  *snowflake.ID
	ActorType  ActorType
	ActorID    *string
	Action     string
	TargetType string
	TargetID   *string
	Metadata   map[string]any
	IPAddress  string
	RequestID  string
}

type ListRequest struct {
	pagination.Pagination
	ProjectID  string
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	LogEvent(ctx context.Context, event Event) error
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
)
