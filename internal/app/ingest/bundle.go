package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"outlook_service/internal/app/model"
)

// Bundle is one upstream export: dimension data, the program catalog and the
// outlooks that reference them. JSON documents decode as well, being YAML.
type Bundle struct {
	UnitGroups      []UnitGroupRecord      `yaml:"unit_groups"`
	EconomicRegions []EconomicRegionRecord `yaml:"economic_regions"`
	ProgramAreas    []ProgramAreaRecord    `yaml:"program_areas"`
	Programs        []ProgramRecord        `yaml:"programs"`
	Outlooks        []OutlookRecord        `yaml:"outlooks"`
}

type UnitGroupRecord struct {
	NOC        string          `yaml:"noc"`
	Occupation string          `yaml:"occupation"`
	Sections   []SectionRecord `yaml:"sections"`
}

type SectionRecord struct {
	Title string   `yaml:"title"`
	Items []string `yaml:"items"`
}

type EconomicRegionRecord struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type ProgramAreaRecord struct {
	ID    uint   `yaml:"id"`
	Title string `yaml:"title"`
}

// ProgramRecord names its area by id or by title; the title wins when both are set.
type ProgramRecord struct {
	NID            int              `yaml:"nid"`
	Title          string           `yaml:"title"`
	Duration       *string          `yaml:"duration"`
	Keywords       []string         `yaml:"keywords"`
	NOC            []string         `yaml:"noc"`
	KnownNOCGroups []string         `yaml:"known_noc_groups"`
	Credential     model.Credential `yaml:"credential"`
	ProgramAreaID  uint             `yaml:"program_area_id"`
	ProgramArea    string           `yaml:"program_area"`
}

type OutlookRecord struct {
	NOC                string    `yaml:"noc"`
	EconomicRegionCode string    `yaml:"economic_region_code"`
	Title              string    `yaml:"title"`
	Outlook            string    `yaml:"outlook"`
	Trends             string    `yaml:"trends"`
	ReleaseDate        time.Time `yaml:"release_date"`
	Province           string    `yaml:"province"`
	Lang               string    `yaml:"lang"`
	ProgramNID         *int      `yaml:"program_nid"`
}

// DecodeBundle reads a bundle, rejecting unknown keys.
func DecodeBundle(r io.Reader) (*Bundle, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var b Bundle
	if err := dec.Decode(&b); err != nil {
		if errors.Is(err, io.EOF) {
			return &b, nil
		}
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	return &b, nil
}

func ReadBundleFile(path string) (*Bundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b, err := DecodeBundle(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Len is the number of records in the bundle, sections included.
func (b *Bundle) Len() int {
	n := len(b.EconomicRegions) + len(b.ProgramAreas) + len(b.Programs) + len(b.Outlooks)
	for _, ug := range b.UnitGroups {
		n += 1 + len(ug.Sections)
	}
	return n
}
