package model

import (
	"time"

	"gorm.io/datatypes"
)

// UnitGroup is an occupation classification keyed by its NOC code.
type UnitGroup struct {
	NOC        string    `gorm:"column:noc;primaryKey" json:"noc"`
	Occupation string    `gorm:"not null" json:"occupation"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Sections   []Section `gorm:"foreignKey:NOC;references:NOC" json:"sections,omitempty"`
	Outlooks   []Outlook `gorm:"foreignKey:NOC;references:NOC" json:"-"`
}

// Section groups descriptive text items under a title. Titles are unique per NOC.
type Section struct {
	ID        uint                        `gorm:"primaryKey" json:"id"`
	NOC       string                      `gorm:"column:noc;not null;uniqueIndex:sections_noc_title_key" json:"noc"`
	Title     string                      `gorm:"not null;uniqueIndex:sections_noc_title_key" json:"title"`
	Items     datatypes.JSONSlice[string] `gorm:"not null" json:"items"`
	CreatedAt time.Time                   `json:"created_at"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

type EconomicRegion struct {
	Code      string    `gorm:"primaryKey" json:"code"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Outlooks  []Outlook `gorm:"foreignKey:EconomicRegionCode;references:Code" json:"-"`
}

type ProgramArea struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"not null;uniqueIndex" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Programs  []Program `gorm:"foreignKey:ProgramAreaID" json:"-"`
}

// Program is keyed by the catalog's own id (NID); the store never numbers programs itself.
type Program struct {
	NID            int                         `gorm:"column:nid;primaryKey;autoIncrement:false" json:"nid"`
	Title          string                      `gorm:"not null" json:"title"`
	Duration       *string                     `json:"duration,omitempty"`
	Keywords       datatypes.JSONSlice[string] `gorm:"not null" json:"keywords"`
	NOC            datatypes.JSONSlice[string] `gorm:"column:noc;not null" json:"noc"`
	KnownNOCGroups datatypes.JSONSlice[string] `gorm:"column:known_noc_groups;not null" json:"known_noc_groups"`
	Credential     Credential                  `gorm:"type:text;not null" json:"credential"`
	ProgramAreaID  uint                        `gorm:"not null;index" json:"program_area_id"`
	ProgramArea    *ProgramArea                `json:"program_area,omitempty"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

// Outlook is a labour market outlook for one occupation in one region,
// language, release and province. The eight columns of outlooks_dedup_key
// identify a record; re-ingesting identical data is rejected, not merged.
type Outlook struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	NOC                string    `gorm:"column:noc;not null;uniqueIndex:outlooks_dedup_key,priority:1" json:"noc"`
	EconomicRegionCode string    `gorm:"not null;uniqueIndex:outlooks_dedup_key,priority:2" json:"economic_region_code"`
	Lang               string    `gorm:"not null;default:EN;uniqueIndex:outlooks_dedup_key,priority:3" json:"lang"`
	ReleaseDate        time.Time `gorm:"not null;uniqueIndex:outlooks_dedup_key,priority:4" json:"release_date"`
	Province           string    `gorm:"not null;uniqueIndex:outlooks_dedup_key,priority:5" json:"province"`
	Title              string    `gorm:"not null;uniqueIndex:outlooks_dedup_key,priority:6" json:"title"`
	TrendsHash         string    `gorm:"not null;uniqueIndex:outlooks_dedup_key,priority:7" json:"trends_hash"`
	Category           string    `gorm:"column:outlook;not null;uniqueIndex:outlooks_dedup_key,priority:8" json:"outlook"`
	Trends             string    `gorm:"not null" json:"trends"`
	ProgramNID         *int      `gorm:"column:program_nid;index" json:"program_nid,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Credential is the academic credential a program confers.
type Credential string

const (
	CredentialCertificate Credential = "Certificate"
	CredentialDegree      Credential = "Degree"
	CredentialDiploma     Credential = "Diploma"
)

var Credentials = []Credential{CredentialCertificate, CredentialDegree, CredentialDiploma}

func (c Credential) Valid() bool {
	for _, v := range Credentials {
		if c == v {
			return true
		}
	}
	return false
}

const DefaultLang = "EN"

func (UnitGroup) TableName() string      { return "unit_groups" }
func (Section) TableName() string        { return "sections" }
func (EconomicRegion) TableName() string { return "economic_regions" }
func (ProgramArea) TableName() string    { return "program_areas" }
func (Program) TableName() string        { return "programs" }
func (Outlook) TableName() string        { return "outlooks" }
