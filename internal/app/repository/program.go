package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"outlook_service/internal/app/model"
)

type ProgramRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, row *model.Program) error
	GetByNID(ctx context.Context, tx *gorm.DB, nid int) (*model.Program, error)
	List(ctx context.Context, tx *gorm.DB, programAreaID uint) ([]*model.Program, error)
	Exists(ctx context.Context, tx *gorm.DB, nid int) (bool, error)
	DeleteByNID(ctx context.Context, tx *gorm.DB, nid int) (int64, error)
	CountByArea(ctx context.Context, tx *gorm.DB, programAreaID uint) (int64, error)
}

type programRepo struct {
	db *gorm.DB
}

func NewProgramRepo(db *gorm.DB) ProgramRepo {
	return &programRepo{db: db}
}

// Upsert inserts the program under its catalog NID or updates the existing row.
func (r *programRepo) Upsert(ctx context.Context, tx *gorm.DB, row *model.Program) error {
	t := pick(tx, r.db)
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	if row.Keywords == nil {
		row.Keywords = []string{}
	}
	if row.NOC == nil {
		row.NOC = []string{}
	}
	if row.KnownNOCGroups == nil {
		row.KnownNOCGroups = []string{}
	}
	return t.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "nid"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "duration", "keywords", "noc", "known_noc_groups",
				"credential", "program_area_id", "updated_at",
			}),
		}).
		Create(row).Error
}

func (r *programRepo) GetByNID(ctx context.Context, tx *gorm.DB, nid int) (*model.Program, error) {
	t := pick(tx, r.db)
	var out model.Program
	err := t.WithContext(ctx).Preload("ProgramArea").Where("nid = ?", nid).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns programs ordered by NID, limited to one program area when programAreaID is set.
func (r *programRepo) List(ctx context.Context, tx *gorm.DB, programAreaID uint) ([]*model.Program, error) {
	t := pick(tx, r.db)
	out := []*model.Program{}
	q := t.WithContext(ctx).Order("nid ASC")
	if programAreaID != 0 {
		q = q.Where("program_area_id = ?", programAreaID)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *programRepo) Exists(ctx context.Context, tx *gorm.DB, nid int) (bool, error) {
	return exists(ctx, pick(tx, r.db), &model.Program{}, "nid = ?", nid)
}

func (r *programRepo) DeleteByNID(ctx context.Context, tx *gorm.DB, nid int) (int64, error) {
	t := pick(tx, r.db)
	res := t.WithContext(ctx).Where("nid = ?", nid).Delete(&model.Program{})
	return res.RowsAffected, res.Error
}

func (r *programRepo) CountByArea(ctx context.Context, tx *gorm.DB, programAreaID uint) (int64, error) {
	var n int64
	err := pick(tx, r.db).WithContext(ctx).Model(&model.Program{}).Where("program_area_id = ?", programAreaID).Count(&n).Error
	return n, err
}
