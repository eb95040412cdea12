package domain

import dErrors "orgchart/pkg/domain-errors"

// Sector tags a chart with the regulatory domain its compliance rules come
// from. New sectors are added here and in the rule table; nothing else
// branches on the value.
type Sector string

const (
	SectorHealth        Sector = "health"
	SectorEducation     Sector = "education"
	SectorManufacturing Sector = "manufacturing"
	SectorGeneric       Sector = "generic"
)

var validSectors = map[Sector]struct{}{
	SectorHealth:        {},
	SectorEducation:     {},
	SectorManufacturing: {},
	SectorGeneric:       {},
}

// ParseSector validates and returns a Sector.
func ParseSector(s string) (Sector, error) {
	sector := Sector(s)
	if _, ok := validSectors[sector]; !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown sector: "+s)
	}
	return sector, nil
}

func (s Sector) String() string { return string(s) }
