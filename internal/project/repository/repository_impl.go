package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Mkid095/nextmavens-developer-portal-sub001/internal/project/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Project, error) {
	var project domain.Project
	err := db.WithContext(ctx).First(&project, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &project, nil
}

func (r *repo) ListByStatus(ctx context.Context, db *gorm.DB, status domain.ProjectStatus) ([]domain.Project, error) {
	var projects []domain.Project
	err := db.WithContext(ctx).
		Where("status = ?", status).
		Order("id asc").
		Find(&projects).Error
	if err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *repo) UpdateStatusIf(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.ProjectStatus) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.Project{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
