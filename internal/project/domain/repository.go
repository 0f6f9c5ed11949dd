package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Project, error)
	ListByStatus(ctx context.Context, db *gorm.DB, status ProjectStatus) ([]Project, error)
	// UpdateStatusIf flips status only when the current value matches from,
	// reporting whether a row changed. This is the optimistic guard the
	// suspension state machine relies on.
	UpdateStatusIf(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to ProjectStatus) (bool, error)
}
