package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"outlook_service/internal/app/model"
)

type UnitGroupRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, row *model.UnitGroup) error
	GetByNOC(ctx context.Context, tx *gorm.DB, noc string) (*model.UnitGroup, error)
	Exists(ctx context.Context, tx *gorm.DB, noc string) (bool, error)
	DeleteByNOC(ctx context.Context, tx *gorm.DB, noc string) (int64, error)
}

type unitGroupRepo struct {
	db *gorm.DB
}

func NewUnitGroupRepo(db *gorm.DB) UnitGroupRepo {
	return &unitGroupRepo{db: db}
}

func (r *unitGroupRepo) Upsert(ctx context.Context, tx *gorm.DB, row *model.UnitGroup) error {
	t := pick(tx, r.db)
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	return t.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "noc"}},
			DoUpdates: clause.AssignmentColumns([]string{"occupation", "updated_at"}),
		}).
		Create(row).Error
}

func (r *unitGroupRepo) GetByNOC(ctx context.Context, tx *gorm.DB, noc string) (*model.UnitGroup, error) {
	t := pick(tx, r.db)
	if noc == "" {
		return nil, nil
	}
	var out model.UnitGroup
	err := t.WithContext(ctx).Where("noc = ?", noc).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *unitGroupRepo) Exists(ctx context.Context, tx *gorm.DB, noc string) (bool, error) {
	return exists(ctx, pick(tx, r.db), &model.UnitGroup{}, "noc = ?", noc)
}

func (r *unitGroupRepo) DeleteByNOC(ctx context.Context, tx *gorm.DB, noc string) (int64, error) {
	t := pick(tx, r.db)
	res := t.WithContext(ctx).Where("noc = ?", noc).Delete(&model.UnitGroup{})
	return res.RowsAffected, res.Error
}
