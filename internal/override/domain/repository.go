package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ListCursor positions a history page; zero value means "from the top".
type ListCursor struct {
	PerformedAt time.Time
	ID          snowflake.ID
}

// ActionCount is one row of the statistics group-by.
type ActionCount struct {
	Action OverrideAction `json:"action"`
	Count  int64          `json:"count"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *OverrideRecord) error
	ListByProject(ctx context.Context, db *gorm.DB, projectID snowflake.ID, cursor *ListCursor, limit int) ([]*OverrideRecord, error)
	CountByAction(ctx context.Context, db *gorm.DB) ([]ActionCount, error)
	CountDistinctProjects(ctx context.Context, db *gorm.DB) (int64, error)
	CountSince(ctx context.Context, db *gorm.DB, since time.Time) (int64, error)
}
