package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	ListByProject(ctx context.Context, db *gorm.DB, projectID snowflake.ID) ([]Quota, error)
	FindByProjectAndType(ctx context.Context, db *gorm.DB, projectID snowflake.ID, capType CapType) (*Quota, error)
	Upsert(ctx context.Context, db *gorm.DB, quota *Quota) error
	// InsertIfMissing inserts only when no row exists for (project, cap type).
	InsertIfMissing(ctx context.Context, db *gorm.DB, quota *Quota) error
}
