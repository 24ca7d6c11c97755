package model

import (
	"strings"

	"golang.org/x/text/cases"
)

// Industry is the closed set of industries the distribution table covers.
type Industry string

const (
	IndustryHealthcare    Industry = "healthcare"
	IndustryFinance       Industry = "finance"
	IndustryRetail        Industry = "retail"
	IndustryManufacturing Industry = "manufacturing"
	IndustryConstruction  Industry = "construction"
)

// Industries lists every known industry in declaration order.
var Industries = []Industry{
	IndustryHealthcare,
	IndustryFinance,
	IndustryRetail,
	IndustryManufacturing,
	IndustryConstruction,
}

// Valid reports whether i is one of the enumerated industries.
func (i Industry) Valid() bool {
	switch i {
	case IndustryHealthcare, IndustryFinance, IndustryRetail, IndustryManufacturing, IndustryConstruction:
		return true
	}
	return false
}

func (i Industry) String() string { return string(i) }

// ParseIndustry maps a case-insensitive industry name onto the enum.
func ParseIndustry(s string) (Industry, error) {
	// Casers are stateful; build one per call.
	ind := Industry(cases.Fold().String(strings.TrimSpace(s)))
	if !ind.Valid() {
		return "", NewValidationError("industry", "unknown industry %q", s)
	}
	return ind, nil
}
