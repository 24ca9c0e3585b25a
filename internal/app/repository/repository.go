package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repos bundles every repository over one gorm handle.
type Repos struct {
	UnitGroups      UnitGroupRepo
	Sections        SectionRepo
	EconomicRegions EconomicRegionRepo
	ProgramAreas    ProgramAreaRepo
	Programs        ProgramRepo
	Outlooks        OutlookRepo
}

func New(db *gorm.DB) Repos {
	return Repos{
		UnitGroups:      NewUnitGroupRepo(db),
		Sections:        NewSectionRepo(db),
		EconomicRegions: NewEconomicRegionRepo(db),
		ProgramAreas:    NewProgramAreaRepo(db),
		Programs:        NewProgramRepo(db),
		Outlooks:        NewOutlookRepo(db),
	}
}

// pick returns the caller's transaction when there is one.
func pick(tx, db *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}

func exists(ctx context.Context, t *gorm.DB, m interface{}, query string, args ...interface{}) (bool, error) {
	var n int64
	if err := t.WithContext(ctx).Model(m).Where(query, args...).Limit(1).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
