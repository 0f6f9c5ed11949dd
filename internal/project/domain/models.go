// Package domain holds the project entity referenced by the abuse-control engine.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type ProjectStatus string

const (
	StatusActive    ProjectStatus = "active"
	StatusSuspended ProjectStatus = "suspended"
)

// Project is owned by the provisioning service; this engine only flips Status
// through the suspension state machine.
type Project struct {
	ID        snowflake.ID  `json:"id" gorm:"primaryKey"`
	Name      string        `json:"name" gorm:"type:text;not null"`
	Status    ProjectStatus `json:"status" gorm:"type:text;not null;default:'active';index"`
	OwnerID   snowflake.ID  `json:"owner_id" gorm:"not null;index"`
	CreatedAt time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time     `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Project) TableName() string { return "projects" }

var ErrNotFound = errors.New("project_not_found")
