package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type NotificationType string

const (
	TypeSuspension NotificationType = "suspension"
	TypeDetection  NotificationType = "detection"
	TypeOverride   NotificationType = "override"
	TypeWarning    NotificationType = "warning"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSlack Channel = "slack"
)

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Recipient maps a user to its delivery addresses for one project, or for all
// of the user's projects when ProjectID is zero. Zero is stored instead of
// NULL so the project-specific row always sorts first regardless of how the
// dialect orders NULLs.
type Recipient struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID       snowflake.ID `json:"user_id" gorm:"not null;index"`
	ProjectID    snowflake.ID `json:"project_id" gorm:"not null;index"`
	Email        string       `json:"email" gorm:"type:text;not null"`
	SlackChannel string       `json:"slack_channel" gorm:"type:text"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Recipient) TableName() string { return "notification_recipients" }

// Preference filters what a user receives. A project-specific row overrides
// the user's global (zero project) row. The composite unique index is the
// conflict target for upserts, and storing zero instead of NULL keeps both
// the index and the override ordering portable across dialects.
// Enabled carries no column default: gorm omits zero values for defaulted
// columns, which would turn Enabled=false into true on insert.
type Preference struct {
	ID               snowflake.ID                `json:"id" gorm:"primaryKey"`
	UserID           snowflake.ID                `json:"user_id" gorm:"not null;index:ux_pref_user_project_type,unique,priority:1"`
	ProjectID        snowflake.ID                `json:"project_id" gorm:"not null;index:ux_pref_user_project_type,unique,priority:2"`
	NotificationType NotificationType            `json:"notification_type" gorm:"type:text;not null;index:ux_pref_user_project_type,unique,priority:3"`
	Enabled          bool                        `json:"enabled" gorm:"not null"`
	Channels         datatypes.JSONSlice[string] `json:"channels" gorm:"type:jsonb"`
	CreatedAt        time.Time                   `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time                   `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Preference) TableName() string { return "notification_preferences" }

// Delivery tracks one send attempt chain to one recipient on one channel.
type Delivery struct {
	ID               snowflake.ID     `json:"id" gorm:"primaryKey"`
	UserID           snowflake.ID     `json:"user_id" gorm:"not null;index"`
	ProjectID        snowflake.ID     `json:"project_id" gorm:"not null;index"`
	NotificationType NotificationType `json:"notification_type" gorm:"type:text;not null"`
	Channel          Channel          `json:"channel" gorm:"type:text;not null"`
	Status           DeliveryStatus   `json:"status" gorm:"type:text;not null;default:'pending'"`
	Attempts         int              `json:"attempts" gorm:"not null;default:0"`
	LastError        *string          `json:"last_error" gorm:"type:text"`
	CreatedAt        time.Time        `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	SentAt           *time.Time       `json:"sent_at"`
}

func (Delivery) TableName() string { return "notification_deliveries" }
