package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/suspension/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.SuspensionRecord) error {
	if record == nil {
		return nil
	}
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) FindUnresolved(ctx context.Context, db *gorm.DB, projectID snowflake.ID) (*domain.SuspensionRecord, error) {
	var record domain.SuspensionRecord
	err := db.WithContext(ctx).
		Where("project_id = ? AND resolved_at IS NULL", projectID).
		Order("suspended_at desc").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repo) Resolve(ctx context.Context, db *gorm.DB, id snowflake.ID, resolvedAt time.Time, notes string) error {
	updates := map[string]any{"resolved_at": resolvedAt.UTC()}
	if notes != "" {
		updates["notes"] = notes
	}
	res := db.WithContext(ctx).Model(&domain.SuspensionRecord{}).
		Where("id = ? AND resolved_at IS NULL", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repo) ListUnresolved(ctx context.Context, db *gorm.DB) ([]domain.SuspensionRecord, error) {
	var records []domain.SuspensionRecord
	err := db.WithContext(ctx).
		Where("resolved_at IS NULL").
		Order("suspended_at desc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) ListByProject(ctx context.Context, db *gorm.DB, projectID snowflake.ID, limit int) ([]domain.SuspensionRecord, error) {
	var records []domain.SuspensionRecord
	stmt := db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("suspended_at desc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
