package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// CapType is an enumerated resource dimension subject to quota.
type CapType string

const (
	CapDBQueriesPerDay        CapType = "db_queries_per_day"
	CapRealtimeConnections    CapType = "realtime_connections"
	CapStorageUploadsPerDay   CapType = "storage_uploads_per_day"
	CapFunctionInvocationsDay CapType = "function_invocations_per_day"
)

func AllCapTypes() []CapType {
	return []CapType{
		CapDBQueriesPerDay,
		CapRealtimeConnections,
		CapStorageUploadsPerDay,
		CapFunctionInvocationsDay,
	}
}

func ParseCapType(raw string) (CapType, bool) {
	switch CapType(raw) {
	case CapDBQueriesPerDay, CapRealtimeConnections, CapStorageUploadsPerDay, CapFunctionInvocationsDay:
		return CapType(raw), true
	default:
		return "", false
	}
}

// Quota is one cap row. Rows are never deleted; ResetToDefaults rewrites
// values instead.
type Quota struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	ProjectID snowflake.ID `json:"project_id" gorm:"not null;index:ux_quotas_project_cap,unique,priority:1"`
	CapType   CapType      `json:"cap_type" gorm:"type:text;not null;index:ux_quotas_project_cap,unique,priority:2"`
	CapValue  int64        `json:"cap_value" gorm:"not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Quota) TableName() string { return "quotas" }

// QuotaCheck is the result of comparing usage against a cap.
type QuotaCheck struct {
	Allowed   bool    `json:"allowed"`
	Remaining float64 `json:"remaining"`
	Limit     int64   `json:"limit"`
}
