package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// ListRecipients returns project-scoped recipients plus global rows for
	// users without a project-specific row.
	ListRecipients(ctx context.Context, db *gorm.DB, projectID snowflake.ID) ([]Recipient, error)
	// FindPreference resolves the effective preference for one user and type,
	// preferring the project-specific row over the global one. A nil result
	// means no row exists and defaults apply.
	FindPreference(ctx context.Context, db *gorm.DB, userID snowflake.ID, projectID snowflake.ID, notificationType NotificationType) (*Preference, error)
	UpsertPreference(ctx context.Context, db *gorm.DB, pref *Preference) error
	InsertDelivery(ctx context.Context, db *gorm.DB, delivery *Delivery) error
	UpdateDelivery(ctx context.Context, db *gorm.DB, delivery *Delivery) error
	ListDeliveries(ctx context.Context, db *gorm.DB, projectID snowflake.ID, limit int) ([]Delivery, error)
}
