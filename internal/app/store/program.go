package store

import (
	"context"

	"gorm.io/gorm"

	"outlook_service/internal/app/apperr"
	"outlook_service/internal/app/model"
)

// ProgramAreaInput names a program area. ID is optional; when set it pins the
// title to that id and any disagreement with stored data is a conflict.
type ProgramAreaInput struct {
	ID    uint   `json:"id,omitempty" validate:"lte=9223372036854775807"`
	Title string `json:"title" validate:"notblank"`
}

type ProgramInput struct {
	NID            int              `json:"nid" validate:"gt=0"`
	Title          string           `json:"title" validate:"notblank"`
	Duration       *string          `json:"duration,omitempty"`
	Keywords       []string         `json:"keywords,omitempty"`
	NOC            []string         `json:"noc,omitempty"`
	KnownNOCGroups []string         `json:"known_noc_groups,omitempty"`
	Credential     model.Credential `json:"credential" validate:"required,oneof=Certificate Degree Diploma"`
	ProgramAreaID  uint             `json:"program_area_id" validate:"lte=9223372036854775807"`
}

// UpsertProgramArea returns the area stored under in.Title, creating it when absent.
func (s *Store) UpsertProgramArea(ctx context.Context, in ProgramAreaInput) (*model.ProgramArea, error) {
	const op = "UpsertProgramArea"
	if err := validateStruct(op, in); err != nil {
		return nil, err
	}

	var out *model.ProgramArea
	err := s.run(ctx, op, func(ctx context.Context) error {
		err := s.tx(ctx, func(tx *gorm.DB) error {
			existing, err := s.repos.ProgramAreas.GetByTitle(ctx, tx, in.Title)
			if err != nil {
				return err
			}
			if existing != nil {
				if in.ID != 0 && in.ID != existing.ID {
					return apperr.Newf(apperr.Conflict, op, "program area %q already has id %d, not %d", in.Title, existing.ID, in.ID)
				}
				out = existing
				return nil
			}
			if in.ID != 0 {
				byID, err := s.repos.ProgramAreas.GetByID(ctx, tx, in.ID)
				if err != nil {
					return err
				}
				if byID != nil {
					return apperr.Newf(apperr.Conflict, op, "program area id %d already belongs to %q", in.ID, byID.Title)
				}
			}
			row := &model.ProgramArea{ID: in.ID, Title: in.Title}
			if err := s.repos.ProgramAreas.Create(ctx, tx, row); err != nil {
				return err
			}
			out = row
			return nil
		})
		if err == nil || in.ID != 0 || apperr.KindOf(apperr.FromDB(op, err)) != apperr.Conflict {
			return err
		}
		// another writer inserted the same title first
		existing, rerr := s.repos.ProgramAreas.GetByTitle(ctx, nil, in.Title)
		if rerr != nil || existing == nil {
			return err
		}
		out = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetProgramArea(ctx context.Context, id uint) (*model.ProgramArea, error) {
	const op = "GetProgramArea"
	var out *model.ProgramArea
	err := s.run(ctx, op, func(ctx context.Context) error {
		var err error
		out, err = s.repos.ProgramAreas.GetByID(ctx, nil, id)
		if err == nil && out == nil {
			return apperr.Newf(apperr.NotFound, op, "program area %d not found", id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListProgramAreas(ctx context.Context) ([]*model.ProgramArea, error) {
	var out []*model.ProgramArea
	err := s.run(ctx, "ListProgramAreas", func(ctx context.Context) error {
		var err error
		out, err = s.repos.ProgramAreas.List(ctx, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteProgramArea is refused while programs still belong to the area.
func (s *Store) DeleteProgramArea(ctx context.Context, id uint) error {
	const op = "DeleteProgramArea"
	return s.run(ctx, op, func(ctx context.Context) error {
		err := s.tx(ctx, func(tx *gorm.DB) error {
			n, err := s.repos.Programs.CountByArea(ctx, tx, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return apperr.Newf(apperr.Conflict, op, "program area %d has %d programs", id, n)
			}
			deleted, err := s.repos.ProgramAreas.DeleteByID(ctx, tx, id)
			if err != nil {
				return err
			}
			if deleted == 0 {
				return apperr.Newf(apperr.NotFound, op, "program area %d not found", id)
			}
			return nil
		})
		return apperr.FromDelete(op, err)
	})
}

// UpsertProgram inserts the program under its catalog NID or replaces the
// stored fields of that NID. The credential is checked before any I/O.
func (s *Store) UpsertProgram(ctx context.Context, in ProgramInput) (*model.Program, error) {
	const op = "UpsertProgram"
	if err := validateStruct(op, in); err != nil {
		return nil, err
	}
	if !in.Credential.Valid() {
		return nil, apperr.Newf(apperr.Validation, op, "credential %q is not one of %v", in.Credential, model.Credentials)
	}

	row := &model.Program{
		NID:            in.NID,
		Title:          in.Title,
		Duration:       in.Duration,
		Keywords:       orEmpty(in.Keywords),
		NOC:            orEmpty(in.NOC),
		KnownNOCGroups: orEmpty(in.KnownNOCGroups),
		Credential:     in.Credential,
		ProgramAreaID:  in.ProgramAreaID,
	}
	var out *model.Program
	err := s.run(ctx, op, func(ctx context.Context) error {
		return s.tx(ctx, func(tx *gorm.DB) error {
			area, err := s.repos.ProgramAreas.GetByID(ctx, tx, in.ProgramAreaID)
			if err != nil {
				return err
			}
			if area == nil {
				return apperr.Newf(apperr.Reference, op, "program area %d does not exist", in.ProgramAreaID)
			}
			if err := s.repos.Programs.Upsert(ctx, tx, row); err != nil {
				return err
			}
			out, err = s.repos.Programs.GetByNID(ctx, tx, in.NID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetProgram(ctx context.Context, nid int) (*model.Program, error) {
	const op = "GetProgram"
	var out *model.Program
	err := s.run(ctx, op, func(ctx context.Context) error {
		var err error
		out, err = s.repos.Programs.GetByNID(ctx, nil, nid)
		if err == nil && out == nil {
			return apperr.Newf(apperr.NotFound, op, "program %d not found", nid)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListPrograms lists programs by NID, optionally within one program area.
func (s *Store) ListPrograms(ctx context.Context, programAreaID uint) ([]*model.Program, error) {
	var out []*model.Program
	err := s.run(ctx, "ListPrograms", func(ctx context.Context) error {
		var err error
		out, err = s.repos.Programs.List(ctx, nil, programAreaID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteProgram is refused while outlooks still link to the program.
func (s *Store) DeleteProgram(ctx context.Context, nid int) error {
	const op = "DeleteProgram"
	return s.run(ctx, op, func(ctx context.Context) error {
		err := s.tx(ctx, func(tx *gorm.DB) error {
			n, err := s.repos.Outlooks.CountByProgram(ctx, tx, nid)
			if err != nil {
				return err
			}
			if n > 0 {
				return apperr.Newf(apperr.Conflict, op, "program %d is referenced by %d outlooks", nid, n)
			}
			deleted, err := s.repos.Programs.DeleteByNID(ctx, tx, nid)
			if err != nil {
				return err
			}
			if deleted == 0 {
				return apperr.Newf(apperr.NotFound, op, "program %d not found", nid)
			}
			return nil
		})
		return apperr.FromDelete(op, err)
	})
}

func orEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
