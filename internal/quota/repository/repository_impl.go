package repository

import (
	"context"
	"errors"

	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/quota/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListByProject(ctx context.Context, db *gorm.DB, projectID snowflake.ID) ([]domain.Quota, error) {
	var quotas []domain.Quota
	err := db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("cap_type asc").
		Find(&quotas).Error
	if err != nil {
		return nil, err
	}
	return quotas, nil
}

func (r *repo) FindByProjectAndType(ctx context.Context, db *gorm.DB, projectID snowflake.ID, capType domain.CapType) (*domain.Quota, error) {
	var quota domain.Quota
	err := db.WithContext(ctx).
		Where("project_id = ? AND cap_type = ?", projectID, capType).
		First(&quota).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &quota, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, quota *domain.Quota) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "cap_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"cap_value", "updated_at"}),
		}).
		Create(quota).Error
}

func (r *repo) InsertIfMissing(ctx context.Context, db *gorm.DB, quota *domain.Quota) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "cap_type"}},
			DoNothing: true,
		}).
		Create(quota).Error
}
