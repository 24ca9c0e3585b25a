package repository

import (
	"context"

	"gorm.io/gorm"

	"outlook_service/internal/app/model"
)

type SectionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *model.Section) error
	GetByNOC(ctx context.Context, tx *gorm.DB, noc string) ([]*model.Section, error)
	DeleteByNOC(ctx context.Context, tx *gorm.DB, noc string) error
}

type sectionRepo struct {
	db *gorm.DB
}

func NewSectionRepo(db *gorm.DB) SectionRepo {
	return &sectionRepo{db: db}
}

func (r *sectionRepo) Create(ctx context.Context, tx *gorm.DB, row *model.Section) error {
	t := pick(tx, r.db)
	if row.Items == nil {
		row.Items = []string{}
	}
	return t.WithContext(ctx).Create(row).Error
}

// GetByNOC returns sections in insertion order.
func (r *sectionRepo) GetByNOC(ctx context.Context, tx *gorm.DB, noc string) ([]*model.Section, error) {
	t := pick(tx, r.db)
	out := []*model.Section{}
	if noc == "" {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("noc = ?", noc).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sectionRepo) DeleteByNOC(ctx context.Context, tx *gorm.DB, noc string) error {
	t := pick(tx, r.db)
	return t.WithContext(ctx).Where("noc = ?", noc).Delete(&model.Section{}).Error
}
