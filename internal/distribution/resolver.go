package distribution

import (
	"github.com/sells-group/cyberrisk/internal/model"
)

// Resolver maps (industry, revenue) onto distribution parameters. It only
// reads its table, so it is safe for concurrent use.
type Resolver struct {
	table *Table
}

// NewResolver wraps a validated table.
func NewResolver(t *Table) *Resolver {
	return &Resolver{table: t}
}

// Resolve returns the parameters of the cell covering the company. Bad input
// yields a ValidationError; a revenue outside every band or a cell missing
// from the table yields a LookupError.
func (r *Resolver) Resolve(industry model.Industry, revenue float64) (model.DistributionParams, error) {
	if !industry.Valid() {
		return model.DistributionParams{}, model.NewValidationError("industry", "unknown industry %q", industry)
	}
	band, err := model.BandForRevenue(revenue)
	if err != nil {
		return model.DistributionParams{}, err
	}
	params, ok := r.table.cells[cellKey{industry: industry, band: band}]
	if !ok {
		return model.DistributionParams{}, &model.LookupError{Industry: industry, Band: band, Revenue: revenue}
	}
	return params, nil
}

// ResolveCompany is Resolve applied to a profile.
func (r *Resolver) ResolveCompany(c model.CompanyProfile) (model.DistributionParams, error) {
	return r.Resolve(c.Industry, c.Revenue)
}
