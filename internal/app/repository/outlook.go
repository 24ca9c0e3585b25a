package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"outlook_service/internal/app/model"
)

type OutlookRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *model.Outlook) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Outlook, error)
	Query(ctx context.Context, tx *gorm.DB, f model.OutlookFilter) ([]*model.Outlook, error)
	CountByNOC(ctx context.Context, tx *gorm.DB, noc string) (int64, error)
	CountByRegion(ctx context.Context, tx *gorm.DB, code string) (int64, error)
	CountByProgram(ctx context.Context, tx *gorm.DB, nid int) (int64, error)
}

type outlookRepo struct {
	db *gorm.DB
}

func NewOutlookRepo(db *gorm.DB) OutlookRepo {
	return &outlookRepo{db: db}
}

// Create inserts a new outlook. Outlooks are never updated in place, so a
// duplicate dedup key surfaces as the engine's unique violation.
func (r *outlookRepo) Create(ctx context.Context, tx *gorm.DB, row *model.Outlook) error {
	t := pick(tx, r.db)
	return t.WithContext(ctx).Create(row).Error
}

func (r *outlookRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*model.Outlook, error) {
	t := pick(tx, r.db)
	if id == 0 {
		return nil, nil
	}
	var out model.Outlook
	err := t.WithContext(ctx).Where("id = ?", id).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *outlookRepo) Query(ctx context.Context, tx *gorm.DB, f model.OutlookFilter) ([]*model.Outlook, error) {
	t := pick(tx, r.db)
	q := t.WithContext(ctx).Model(&model.Outlook{})
	if f.NOC != "" {
		q = q.Where("noc = ?", f.NOC)
	}
	if f.EconomicRegionCode != "" {
		q = q.Where("economic_region_code = ?", f.EconomicRegionCode)
	}
	if f.Province != "" {
		q = q.Where("province = ?", f.Province)
	}
	if f.Lang != "" {
		q = q.Where("lang = ?", f.Lang)
	}
	if f.ReleasedFrom != nil {
		q = q.Where("release_date >= ?", f.ReleasedFrom.UTC())
	}
	if f.ReleasedTo != nil {
		q = q.Where("release_date <= ?", f.ReleasedTo.UTC())
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	out := []*model.Outlook{}
	if err := q.Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *outlookRepo) CountByNOC(ctx context.Context, tx *gorm.DB, noc string) (int64, error) {
	return r.count(ctx, pick(tx, r.db), "noc = ?", noc)
}

func (r *outlookRepo) CountByRegion(ctx context.Context, tx *gorm.DB, code string) (int64, error) {
	return r.count(ctx, pick(tx, r.db), "economic_region_code = ?", code)
}

func (r *outlookRepo) CountByProgram(ctx context.Context, tx *gorm.DB, nid int) (int64, error) {
	return r.count(ctx, pick(tx, r.db), "program_nid = ?", nid)
}

func (r *outlookRepo) count(ctx context.Context, t *gorm.DB, query string, arg interface{}) (int64, error) {
	var n int64
	err := t.WithContext(ctx).Model(&model.Outlook{}).Where(query, arg).Count(&n).Error
	return n, err
}
