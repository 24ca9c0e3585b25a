package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"outlook_service/internal/app/apperr"
	"outlook_service/internal/app/model"
)

// OutlookInput carries one outlook assessment. TrendsHash is derived from
// Trends and cannot be supplied.
type OutlookInput struct {
	NOC                string    `json:"noc" validate:"notblank"`
	EconomicRegionCode string    `json:"economic_region_code" validate:"notblank"`
	Title              string    `json:"title" validate:"notblank"`
	Category           string    `json:"outlook" validate:"notblank"`
	Trends             string    `json:"trends" validate:"notblank"`
	ReleaseDate        time.Time `json:"release_date"`
	Province           string    `json:"province" validate:"notblank"`
	Lang               string    `json:"lang,omitempty"`
	ProgramNID         *int      `json:"program_nid,omitempty"`
}

// RecordOutlook inserts a new outlook row. An identical dedup tuple is
// rejected with a conflict and leaves the stored row untouched.
func (s *Store) RecordOutlook(ctx context.Context, in OutlookInput) (*model.Outlook, error) {
	const op = "RecordOutlook"
	if err := validateStruct(op, in); err != nil {
		return nil, err
	}
	if in.ReleaseDate.IsZero() {
		return nil, apperr.New(apperr.Validation, op, "ReleaseDate is required")
	}
	if in.Lang == "" {
		in.Lang = model.DefaultLang
	}
	if !validLang(in.Lang) {
		return nil, apperr.Newf(apperr.Validation, op, "lang %q is not a language tag", in.Lang)
	}

	row := &model.Outlook{
		NOC:                in.NOC,
		EconomicRegionCode: in.EconomicRegionCode,
		Lang:               in.Lang,
		ReleaseDate:        in.ReleaseDate.UTC(),
		Province:           in.Province,
		Title:              in.Title,
		TrendsHash:         TrendsHash(in.Trends),
		Category:           in.Category,
		Trends:             in.Trends,
		ProgramNID:         in.ProgramNID,
	}
	err := s.run(ctx, op, func(ctx context.Context) error {
		return s.tx(ctx, func(tx *gorm.DB) error {
			if ok, err := s.repos.UnitGroups.Exists(ctx, tx, in.NOC); err != nil {
				return err
			} else if !ok {
				return apperr.Newf(apperr.Reference, op, "unit group %q does not exist", in.NOC)
			}
			if ok, err := s.repos.EconomicRegions.Exists(ctx, tx, in.EconomicRegionCode); err != nil {
				return err
			} else if !ok {
				return apperr.Newf(apperr.Reference, op, "economic region %q does not exist", in.EconomicRegionCode)
			}
			if in.ProgramNID != nil {
				if ok, err := s.repos.Programs.Exists(ctx, tx, *in.ProgramNID); err != nil {
					return err
				} else if !ok {
					return apperr.Newf(apperr.Reference, op, "program %d does not exist", *in.ProgramNID)
				}
			}
			if err := s.repos.Outlooks.Create(ctx, tx, row); err != nil {
				if apperr.KindOf(apperr.FromDB(op, err)) == apperr.Conflict {
					return apperr.Newf(apperr.Conflict, op, "outlook %q for %s/%s on %s already recorded",
						in.Title, in.NOC, in.EconomicRegionCode, row.ReleaseDate.Format("2006-01-02"))
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

func (s *Store) GetOutlook(ctx context.Context, id uint) (*model.Outlook, error) {
	const op = "GetOutlook"
	var out *model.Outlook
	err := s.run(ctx, op, func(ctx context.Context) error {
		var err error
		out, err = s.repos.Outlooks.GetByID(ctx, nil, id)
		if err == nil && out == nil {
			return apperr.Newf(apperr.NotFound, op, "outlook %d not found", id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// QueryOutlooks returns the outlooks matching every set field of f, oldest
// row first. Without a limit all matches are returned.
func (s *Store) QueryOutlooks(ctx context.Context, f model.OutlookFilter) ([]*model.Outlook, error) {
	const op = "QueryOutlooks"
	if f.Limit < 0 || f.Offset < 0 {
		return nil, apperr.New(apperr.Validation, op, "limit and offset must not be negative")
	}
	if f.ReleasedFrom != nil && f.ReleasedTo != nil && f.ReleasedTo.Before(*f.ReleasedFrom) {
		return nil, apperr.New(apperr.Validation, op, "released_to is before released_from")
	}
	var out []*model.Outlook
	err := s.run(ctx, op, func(ctx context.Context) error {
		var err error
		out, err = s.repos.Outlooks.Query(ctx, nil, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
