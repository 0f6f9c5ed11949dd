package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type SuspensionType string

const (
	TypeManual    SuspensionType = "manual"
	TypeAutomatic SuspensionType = "automatic"
)

// Reason captures why a project was suspended.
type Reason struct {
	CapType       string  `json:"cap_type"`
	CurrentValue  float64 `json:"current_value"`
	LimitExceeded int64   `json:"limit_exceeded"`
	Details       string  `json:"details"`
}

// SuspensionRecord is the durable history of one suspension episode. At most
// one record per project may have a null ResolvedAt; records are never
// deleted.
type SuspensionRecord struct {
	ID                  snowflake.ID      `json:"id" gorm:"primaryKey"`
	ProjectID           snowflake.ID      `json:"project_id" gorm:"not null;index:ix_suspensions_project"`
	ReasonCapType       string            `json:"reason_cap_type" gorm:"type:text"`
	ReasonCurrentValue  float64           `json:"reason_current_value"`
	ReasonLimitExceeded int64             `json:"reason_limit_exceeded"`
	ReasonDetails       string            `json:"reason_details" gorm:"type:text"`
	CapExceeded         string            `json:"cap_exceeded" gorm:"type:text"`
	Metadata            datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	SuspendedAt         time.Time         `json:"suspended_at" gorm:"not null"`
	ResolvedAt          *time.Time        `json:"resolved_at" gorm:"index"`
	Notes               string            `json:"notes" gorm:"type:text"`
	SuspensionType      SuspensionType    `json:"suspension_type" gorm:"type:text;not null"`
}

// TableName sets the database table name.
func (SuspensionRecord) TableName() string { return "suspension_records" }

func (r *SuspensionRecord) Reason() Reason {
	return Reason{
		CapType:       r.ReasonCapType,
		CurrentValue:  r.ReasonCurrentValue,
		LimitExceeded: r.ReasonLimitExceeded,
		Details:       r.ReasonDetails,
	}
}
