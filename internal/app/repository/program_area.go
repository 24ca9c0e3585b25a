package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"outlook_service/internal/app/model"
)

type ProgramAreaRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *model.ProgramArea) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*model.ProgramArea, error)
	GetByTitle(ctx context.Context, tx *gorm.DB, title string) (*model.ProgramArea, error)
	List(ctx context.Context, tx *gorm.DB) ([]*model.ProgramArea, error)
	DeleteByID(ctx context.Context, tx *gorm.DB, id uint) (int64, error)
}

type programAreaRepo struct {
	db *gorm.DB
}

func NewProgramAreaRepo(db *gorm.DB) ProgramAreaRepo {
	return &programAreaRepo{db: db}
}

// Create inserts the row. A non-zero ID is inserted as given; on Postgres the
// id sequence is then moved past it so later generated ids do not collide.
func (r *programAreaRepo) Create(ctx context.Context, tx *gorm.DB, row *model.ProgramArea) error {
	t := pick(tx, r.db)
	explicit := row.ID != 0
	if err := t.WithContext(ctx).Omit(clause.Associations).Create(row).Error; err != nil {
		return err
	}
	if explicit && t.Dialector.Name() == "postgres" {
		return t.WithContext(ctx).Exec(
			`SELECT setval(pg_get_serial_sequence('program_areas', 'id'), GREATEST((SELECT MAX(id) FROM program_areas), 1))`,
		).Error
	}
	return nil
}

func (r *programAreaRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*model.ProgramArea, error) {
	if id == 0 {
		return nil, nil
	}
	return r.take(ctx, pick(tx, r.db), "id = ?", id)
}

func (r *programAreaRepo) GetByTitle(ctx context.Context, tx *gorm.DB, title string) (*model.ProgramArea, error) {
	if title == "" {
		return nil, nil
	}
	return r.take(ctx, pick(tx, r.db), "title = ?", title)
}

func (r *programAreaRepo) take(ctx context.Context, t *gorm.DB, query string, arg interface{}) (*model.ProgramArea, error) {
	var out model.ProgramArea
	err := t.WithContext(ctx).Where(query, arg).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *programAreaRepo) List(ctx context.Context, tx *gorm.DB) ([]*model.ProgramArea, error) {
	t := pick(tx, r.db)
	out := []*model.ProgramArea{}
	if err := t.WithContext(ctx).Order("title ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *programAreaRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uint) (int64, error) {
	t := pick(tx, r.db)
	res := t.WithContext(ctx).Where("id = ?", id).Delete(&model.ProgramArea{})
	return res.RowsAffected, res.Error
}
