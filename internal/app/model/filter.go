package model

import "time"

// OutlookFilter selects outlooks. Empty fields do not filter. The release
// date bounds are inclusive. Limit 0 returns every match.
type OutlookFilter struct {
	NOC                string     `json:"noc,omitempty" query:"noc"`
	EconomicRegionCode string     `json:"economic_region_code,omitempty" query:"economic_region_code"`
	Province           string     `json:"province,omitempty" query:"province"`
	Lang               string     `json:"lang,omitempty" query:"lang"`
	ReleasedFrom       *time.Time `json:"released_from,omitempty"`
	ReleasedTo         *time.Time `json:"released_to,omitempty"`
	Limit              int        `json:"limit,omitempty" query:"limit"`
	Offset             int        `json:"offset,omitempty" query:"offset"`
}
