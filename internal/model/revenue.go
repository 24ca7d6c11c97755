package model

import (
	"math"
	"strings"
)

// RevenueBand is a revenue bucket of the distribution table.
type RevenueBand string

const (
	Band10M  RevenueBand = "10M"
	Band100M RevenueBand = "100M"
	Band500M RevenueBand = "500M"
	Band1B   RevenueBand = "1B"
)

// RevenueBands lists the bands in ascending order.
var RevenueBands = []RevenueBand{Band10M, Band100M, Band500M, Band1B}

const million = 1_000_000.0

// MaxRevenue is the upper bound of the widest band, in dollars.
const MaxRevenue = 1000 * million

// Bounds returns the (lo, hi] interval of the band in dollars.
func (b RevenueBand) Bounds() (lo, hi float64) {
	switch b {
	case Band10M:
		return 0, 10 * million
	case Band100M:
		return 10 * million, 100 * million
	case Band500M:
		return 100 * million, 500 * million
	case Band1B:
		return 500 * million, MaxRevenue
	}
	return 0, 0
}

// Valid reports whether b is a known band.
func (b RevenueBand) Valid() bool {
	_, hi := b.Bounds()
	return hi > 0
}

func (b RevenueBand) String() string { return string(b) }

// ParseRevenueBand parses a band label such as "100M" (case-insensitive).
func ParseRevenueBand(label string) (RevenueBand, error) {
	b := RevenueBand(strings.ToUpper(strings.TrimSpace(label)))
	if !b.Valid() {
		return "", NewValidationError("revenue", "unknown revenue band %q", label)
	}
	return b, nil
}

// BandForRevenue maps a revenue in dollars onto its band. Intervals are
// open below and closed above: exactly 10M falls in "10M", 10M+1 in "100M".
func BandForRevenue(revenue float64) (RevenueBand, error) {
	if math.IsNaN(revenue) || math.IsInf(revenue, 0) || revenue <= 0 {
		return "", NewValidationError("revenue", "revenue must be a positive finite number, got %v", revenue)
	}
	for _, b := range RevenueBands {
		if _, hi := b.Bounds(); revenue <= hi {
			return b, nil
		}
	}
	return "", &LookupError{Revenue: revenue}
}

// BandForBounds returns the band whose interval is exactly (lo, hi].
func BandForBounds(lo, hi float64) (RevenueBand, bool) {
	for _, b := range RevenueBands {
		blo, bhi := b.Bounds()
		if blo == lo && bhi == hi {
			return b, true
		}
	}
	return "", false
}
