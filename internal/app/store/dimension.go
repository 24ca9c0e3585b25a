package store

import (
	"context"

	"gorm.io/gorm"

	"outlook_service/internal/app/apperr"
	"outlook_service/internal/app/model"
)

// UpsertUnitGroup creates or renames the unit group keyed by noc.
func (s *Store) UpsertUnitGroup(ctx context.Context, noc, occupation string) (*model.UnitGroup, error) {
	const op = "UpsertUnitGroup"
	if err := requireText(op, "noc", noc); err != nil {
		return nil, err
	}
	if err := requireText(op, "occupation", occupation); err != nil {
		return nil, err
	}

	var out *model.UnitGroup
	err := s.run(ctx, op, func(ctx context.Context) error {
		return s.tx(ctx, func(tx *gorm.DB) error {
			if err := s.repos.UnitGroups.Upsert(ctx, tx, &model.UnitGroup{NOC: noc, Occupation: occupation}); err != nil {
				return err
			}
			var err error
			out, err = s.repos.UnitGroups.GetByNOC(ctx, tx, noc)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetUnitGroup(ctx context.Context, noc string) (*model.UnitGroup, error) {
	const op = "GetUnitGroup"
	var out *model.UnitGroup
	err := s.run(ctx, op, func(ctx context.Context) error {
		var err error
		out, err = s.repos.UnitGroups.GetByNOC(ctx, nil, noc)
		if err == nil && out == nil {
			return apperr.Newf(apperr.NotFound, op, "unit group %q not found", noc)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteUnitGroup removes a unit group together with its sections. It is
// refused while outlooks still reference the code.
func (s *Store) DeleteUnitGroup(ctx context.Context, noc string) error {
	const op = "DeleteUnitGroup"
	return s.run(ctx, op, func(ctx context.Context) error {
		err := s.tx(ctx, func(tx *gorm.DB) error {
			n, err := s.repos.Outlooks.CountByNOC(ctx, tx, noc)
			if err != nil {
				return err
			}
			if n > 0 {
				return apperr.Newf(apperr.Conflict, op, "unit group %q is referenced by %d outlooks", noc, n)
			}
			if err := s.repos.Sections.DeleteByNOC(ctx, tx, noc); err != nil {
				return err
			}
			deleted, err := s.repos.UnitGroups.DeleteByNOC(ctx, tx, noc)
			if err != nil {
				return err
			}
			if deleted == 0 {
				return apperr.Newf(apperr.NotFound, op, "unit group %q not found", noc)
			}
			return nil
		})
		return apperr.FromDelete(op, err)
	})
}

// AddSection attaches a titled list of items to a unit group.
func (s *Store) AddSection(ctx context.Context, noc, title string, items []string) (*model.Section, error) {
	const op = "AddSection"
	if err := requireText(op, "noc", noc); err != nil {
		return nil, err
	}
	if err := requireText(op, "title", title); err != nil {
		return nil, err
	}
	if items == nil {
		items = []string{}
	}

	row := &model.Section{NOC: noc, Title: title, Items: items}
	err := s.run(ctx, op, func(ctx context.Context) error {
		return s.tx(ctx, func(tx *gorm.DB) error {
			ok, err := s.repos.UnitGroups.Exists(ctx, tx, noc)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.Newf(apperr.Reference, op, "unit group %q does not exist", noc)
			}
			if err := s.repos.Sections.Create(ctx, tx, row); err != nil {
				if apperr.KindOf(apperr.FromDB(op, err)) == apperr.Conflict {
					return apperr.Newf(apperr.Conflict, op, "section %q already exists for unit group %q", title, noc)
				}
				return err
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// QuerySections lists the sections of a unit group in insertion order. An
// unknown code yields an empty list.
func (s *Store) QuerySections(ctx context.Context, noc string) ([]*model.Section, error) {
	var out []*model.Section
	err := s.run(ctx, "QuerySections", func(ctx context.Context) error {
		var err error
		out, err = s.repos.Sections.GetByNOC(ctx, nil, noc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpsertEconomicRegion(ctx context.Context, code, name string) (*model.EconomicRegion, error) {
	const op = "UpsertEconomicRegion"
	if err := requireText(op, "code", code); err != nil {
		return nil, err
	}
	if err := requireText(op, "name", name); err != nil {
		return nil, err
	}

	var out *model.EconomicRegion
	err := s.run(ctx, op, func(ctx context.Context) error {
		return s.tx(ctx, func(tx *gorm.DB) error {
			if err := s.repos.EconomicRegions.Upsert(ctx, tx, &model.EconomicRegion{Code: code, Name: name}); err != nil {
				return err
			}
			var err error
			out, err = s.repos.EconomicRegions.GetByCode(ctx, tx, code)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetEconomicRegion(ctx context.Context, code string) (*model.EconomicRegion, error) {
	const op = "GetEconomicRegion"
	var out *model.EconomicRegion
	err := s.run(ctx, op, func(ctx context.Context) error {
		var err error
		out, err = s.repos.EconomicRegions.GetByCode(ctx, nil, code)
		if err == nil && out == nil {
			return apperr.Newf(apperr.NotFound, op, "economic region %q not found", code)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListEconomicRegions(ctx context.Context) ([]*model.EconomicRegion, error) {
	var out []*model.EconomicRegion
	err := s.run(ctx, "ListEconomicRegions", func(ctx context.Context) error {
		var err error
		out, err = s.repos.EconomicRegions.List(ctx, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteEconomicRegion is refused while outlooks still reference the region.
func (s *Store) DeleteEconomicRegion(ctx context.Context, code string) error {
	const op = "DeleteEconomicRegion"
	return s.run(ctx, op, func(ctx context.Context) error {
		err := s.tx(ctx, func(tx *gorm.DB) error {
			n, err := s.repos.Outlooks.CountByRegion(ctx, tx, code)
			if err != nil {
				return err
			}
			if n > 0 {
				return apperr.Newf(apperr.Conflict, op, "economic region %q is referenced by %d outlooks", code, n)
			}
			deleted, err := s.repos.EconomicRegions.DeleteByCode(ctx, tx, code)
			if err != nil {
				return err
			}
			if deleted == 0 {
				return apperr.Newf(apperr.NotFound, op, "economic region %q not found", code)
			}
			return nil
		})
		return apperr.FromDelete(op, err)
	})
}
