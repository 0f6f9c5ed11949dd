package repository

import (
	"context"
	"time"

	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/override/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.OverrideRecord) error {
	if record == nil {
		return nil
	}
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) ListByProject(ctx context.Context, db *gorm.DB, projectID snowflake.ID, cursor *domain.ListCursor, limit int) ([]*domain.OverrideRecord, error) {
	stmt := db.WithContext(ctx).Model(&domain.OverrideRecord{}).
		Where("project_id = ?", projectID).
		Order("performed_at desc, id desc")
	if cursor != nil {
		stmt = stmt.Where(
			"(performed_at < ?) OR (performed_at = ? AND id < ?)",
			cursor.PerformedAt.UTC(), cursor.PerformedAt.UTC(), cursor.ID,
		)
	}
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}

	var records []*domain.OverrideRecord
	if err := stmt.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) CountByAction(ctx context.Context, db *gorm.DB) ([]domain.ActionCount, error) {
	var counts []domain.ActionCount
	err := db.WithContext(ctx).Model(&domain.OverrideRecord{}).
		Select("action, COUNT(*) as count").
		Group("action").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *repo) CountDistinctProjects(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.OverrideRecord{}).
		Distinct("project_id").
		Count(&count).Error
	return count, err
}

func (r *repo) CountSince(ctx context.Context, db *gorm.DB, since time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.OverrideRecord{}).
		Where("performed_at >= ?", since.UTC()).
		Count(&count).Error
	return count, err
}
