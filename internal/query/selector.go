package query

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cyberrisk/internal/model"
)

// RevenueSelector picks a revenue band either by label ("100M") or by a
// dollar amount that falls inside the band.
type RevenueSelector struct {
	label    string
	amount   float64
	isAmount bool
}

// BandLabel selects a band by its label.
func BandLabel(label string) RevenueSelector {
	return RevenueSelector{label: label}
}

// Amount selects the band containing a revenue in dollars.
func Amount(dollars float64) RevenueSelector {
	return RevenueSelector{amount: dollars, isAmount: true}
}

// ParseRevenueSelector reads a band label or a plain number.
func ParseRevenueSelector(s string) RevenueSelector {
	s = strings.TrimSpace(s)
	if b, err := model.ParseRevenueBand(s); err == nil {
		return BandLabel(string(b))
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return Amount(v)
	}
	// Unparseable input stays a label and fails in Band.
	return BandLabel(s)
}

// Band resolves the selector. Amounts must lie in (0, MaxRevenue].
func (r RevenueSelector) Band() (model.RevenueBand, error) {
	if !r.isAmount {
		return model.ParseRevenueBand(r.label)
	}
	if math.IsNaN(r.amount) || math.IsInf(r.amount, 0) || r.amount <= 0 || r.amount > model.MaxRevenue {
		return "", model.NewValidationError("revenue",
			"revenue %s outside (0, %s]", strconv.FormatFloat(r.amount, 'f', -1, 64),
			strconv.FormatFloat(model.MaxRevenue, 'f', -1, 64))
	}
	return model.BandForRevenue(r.amount)
}

func (r RevenueSelector) String() string {
	if r.isAmount {
		return strconv.FormatFloat(r.amount, 'f', -1, 64)
	}
	return r.label
}

// UnmarshalJSON accepts a JSON number (dollars) or a string (label or
// number).
func (r *RevenueSelector) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = ParseRevenueSelector(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return eris.Wrapf(err, "query: revenue selector %s", string(data))
	}
	*r = Amount(v)
	return nil
}

// MarshalJSON writes amounts as numbers and labels as strings.
func (r RevenueSelector) MarshalJSON() ([]byte, error) {
	if r.isAmount {
		return json.Marshal(r.amount)
	}
	return json.Marshal(r.label)
}
