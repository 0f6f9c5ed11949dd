// Package domain holds the manual-override audit trail: every operator
// correction to a project's suspension or caps is recorded with before and
// after snapshots.
package domain

import (
	"time"

	projectdomain "github.com/Mkid095/nextmavens-developer-portal-sub001/internal/project/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type OverrideAction string

const (
	ActionUnsuspend    OverrideAction = "unsuspend"
	ActionIncreaseCaps OverrideAction = "increase_caps"
	ActionBoth         OverrideAction = "both"
)

func ParseOverrideAction(raw string) (OverrideAction, bool) {
	switch OverrideAction(raw) {
	case ActionUnsuspend, ActionIncreaseCaps, ActionBoth:
		return OverrideAction(raw), true
	default:
		return "", false
	}
}

// Unsuspends reports whether the action flips project status back to active.
func (a OverrideAction) Unsuspends() bool {
	return a == ActionUnsuspend || a == ActionBoth
}

// TouchesCaps reports whether the action rewrites cap values.
func (a OverrideAction) TouchesCaps() bool {
	return a == ActionIncreaseCaps || a == ActionBoth
}

// OverrideRecord is immutable history. It is inserted in the same
// transaction as the state change it describes, so a record always means the
// change happened.
type OverrideRecord struct {
	ID             snowflake.ID                `json:"id" gorm:"primaryKey"`
	ProjectID      snowflake.ID                `json:"project_id" gorm:"not null;index:ix_overrides_project_time,priority:1"`
	Action         OverrideAction              `json:"action" gorm:"type:text;not null;index"`
	Reason         string                      `json:"reason" gorm:"type:text;not null"`
	PreviousCaps   datatypes.JSONMap           `json:"previous_caps" gorm:"type:jsonb"`
	NewCaps        datatypes.JSONMap           `json:"new_caps" gorm:"type:jsonb"`
	PerformedBy    string                      `json:"performed_by" gorm:"type:text;not null"`
	PerformedAt    time.Time                   `json:"performed_at" gorm:"not null;index:ix_overrides_project_time,priority:2"`
	IPAddress      *string                     `json:"ip_address" gorm:"type:text"`
	PreviousStatus projectdomain.ProjectStatus `json:"previous_status" gorm:"type:text;not null"`
	NewStatus      projectdomain.ProjectStatus `json:"new_status" gorm:"type:text;not null"`
}

// TableName sets the database table name.
func (OverrideRecord) TableName() string { return "override_records" }
