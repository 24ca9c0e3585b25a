package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"outlook_service/internal/app/model"
)

type EconomicRegionRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, row *model.EconomicRegion) error
	GetByCode(ctx context.Context, tx *gorm.DB, code string) (*model.EconomicRegion, error)
	List(ctx context.Context, tx *gorm.DB) ([]*model.EconomicRegion, error)
	Exists(ctx context.Context, tx *gorm.DB, code string) (bool, error)
	DeleteByCode(ctx context.Context, tx *gorm.DB, code string) (int64, error)
}

type economicRegionRepo struct {
	db *gorm.DB
}

func NewEconomicRegionRepo(db *gorm.DB) EconomicRegionRepo {
	return &economicRegionRepo{db: db}
}

func (r *economicRegionRepo) Upsert(ctx context.Context, tx *gorm.DB, row *model.EconomicRegion) error {
	t := pick(tx, r.db)
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	return t.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
		}).
		Create(row).Error
}

func (r *economicRegionRepo) GetByCode(ctx context.Context, tx *gorm.DB, code string) (*model.EconomicRegion, error) {
	t := pick(tx, r.db)
	if code == "" {
		return nil, nil
	}
	var out model.EconomicRegion
	err := t.WithContext(ctx).Where("code = ?", code).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *economicRegionRepo) List(ctx context.Context, tx *gorm.DB) ([]*model.EconomicRegion, error) {
	t := pick(tx, r.db)
	out := []*model.EconomicRegion{}
	if err := t.WithContext(ctx).Order("code ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *economicRegionRepo) Exists(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	return exists(ctx, pick(tx, r.db), &model.EconomicRegion{}, "code = ?", code)
}

func (r *economicRegionRepo) DeleteByCode(ctx context.Context, tx *gorm.DB, code string) (int64, error) {
	t := pick(tx, r.db)
	res := t.WithContext(ctx).Where("code = ?", code).Delete(&model.EconomicRegion{})
	return res.RowsAffected, res.Error
}
