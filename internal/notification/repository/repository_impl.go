package repository

import (
	"context"
	"errors"

	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/notification/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListRecipients(ctx context.Context, db *gorm.DB, projectID snowflake.ID) ([]domain.Recipient, error) {
	var rows []domain.Recipient
	// Global rows carry project_id = 0, so they sort after project-specific
	// rows under DESC on every dialect.
	err := db.WithContext(ctx).
		Where("project_id = ? OR project_id = 0", projectID).
		Order("user_id asc, project_id desc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	// Project-specific rows shadow a user's global row.
	seen := make(map[snowflake.ID]bool, len(rows))
	out := make([]domain.Recipient, 0, len(rows))
	for _, row := range rows {
		if seen[row.UserID] {
			continue
		}
		seen[row.UserID] = true
		out = append(out, row)
	}
	return out, nil
}

func (r *repo) FindPreference(ctx context.Context, db *gorm.DB, userID snowflake.ID, projectID snowflake.ID, notificationType domain.NotificationType) (*domain.Preference, error) {
	var pref domain.Preference
	err := db.WithContext(ctx).
		Where("user_id = ? AND notification_type = ? AND (project_id = ? OR project_id = 0)",
			userID, notificationType, projectID).
		Order("project_id desc"). // project-specific row before the zero global row
		First(&pref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pref, nil
}

func (r *repo) UpsertPreference(ctx context.Context, db *gorm.DB, pref *domain.Preference) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "project_id"}, {Name: "notification_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled", "channels", "updated_at"}),
		}).
		Create(pref).Error
}

func (r *repo) InsertDelivery(ctx context.Context, db *gorm.DB, delivery *domain.Delivery) error {
	return db.WithContext(ctx).Create(delivery).Error
}

func (r *repo) UpdateDelivery(ctx context.Context, db *gorm.DB, delivery *domain.Delivery) error {
	return db.WithContext(ctx).Model(&domain.Delivery{}).
		Where("id = ?", delivery.ID).
		Updates(map[string]any{
			"status":     delivery.Status,
			"attempts":   delivery.Attempts,
			"last_error": delivery.LastError,
			"sent_at":    delivery.SentAt,
		}).Error
}

func (r *repo) ListDeliveries(ctx context.Context, db *gorm.DB, projectID snowflake.ID, limit int) ([]domain.Delivery, error) {
	var rows []domain.Delivery
	stmt := db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at desc, id desc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
