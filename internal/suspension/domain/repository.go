package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *SuspensionRecord) error
	// FindUnresolved returns the project's open record, or nil when none.
	FindUnresolved(ctx context.Context, db *gorm.DB, projectID snowflake.ID) (*SuspensionRecord, error)
	Resolve(ctx context.Context, db *gorm.DB, id snowflake.ID, resolvedAt time.Time, notes string) error
	ListUnresolved(ctx context.Context, db *gorm.DB) ([]SuspensionRecord, error)
	ListByProject(ctx context.Context, db *gorm.DB, projectID snowflake.ID, limit int) ([]SuspensionRecord, error)
}
