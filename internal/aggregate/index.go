// Package aggregate holds the immutable in-memory index that answers company
// and segment queries without touching raw simulation data.
package aggregate

import (
	"slices"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cyberrisk/internal/model"
	"github.com/sells-group/cyberrisk/internal/simulate"
)

type cellKey struct {
	industry model.Industry
	band     model.RevenueBand
}

// cell is the running sum of company averages for one (industry, band) pair.
type cell struct {
	sum   float64
	count int
}

// Index is built once per corpus generation and never mutated afterwards.
type Index struct {
	companies map[string]model.CompanyAggregate
	cells     map[cellKey]cell
	builtAt   time.Time
}

// SegmentResult is the mean of company averages over a segment.
type SegmentResult struct {
	Average float64 `json:"average_simulation_cost"`
	Matched int     `json:"matched_companies"`
}

// Cell summarizes one (industry, band) pair of the index.
type Cell struct {
	Industry model.Industry
	Band     model.RevenueBand
	Average  float64
	Count    int
}

// Empty returns an index with no companies.
func Empty() *Index {
	return &Index{
		companies: map[string]model.CompanyAggregate{},
		cells:     map[cellKey]cell{},
		builtAt:   time.Now().UTC(),
	}
}

// Build computes every company's aggregate from its runs in a single pass.
// Companies without runs are left out of the index.
func Build(corpus *model.Corpus) (*Index, error) {
	if corpus == nil {
		return Empty(), nil
	}
	rows := make([]model.CompanyAggregate, 0, len(corpus.Companies))
	for _, c := range corpus.Companies {
		runs := corpus.Runs[c.ID]
		if len(runs) == 0 {
			continue
		}
		rows = append(rows, simulate.Aggregate(c, runs))
	}
	return FromAggregates(rows)
}

// FromAggregates builds an index from already computed company aggregates,
// such as the rows cached by the store.
func FromAggregates(rows []model.CompanyAggregate) (*Index, error) {
	idx := Empty()
	for _, a := range rows {
		if _, dup := idx.companies[a.CompanyID]; dup {
			return nil, eris.Errorf("aggregate: duplicate company %s", a.CompanyID)
		}
		if !a.Industry.Valid() {
			return nil, eris.Wrapf(model.NewValidationError("industry", "unknown industry %q", a.Industry),
				"aggregate: company %s", a.CompanyID)
		}
		band, err := model.BandForRevenue(a.Revenue)
		if err != nil {
			return nil, eris.Wrapf(err, "aggregate: company %s", a.CompanyID)
		}
		idx.companies[a.CompanyID] = a

		k := cellKey{industry: a.Industry, band: band}
		c := idx.cells[k]
		c.sum += a.AverageSimulationCost
		c.count++
		idx.cells[k] = c
	}
	return idx, nil
}

// Len returns the number of indexed companies.
func (idx *Index) Len() int { return len(idx.companies) }

// BuiltAt returns when the index was built.
func (idx *Index) BuiltAt() time.Time { return idx.builtAt }

// Get returns the aggregate of one company.
func (idx *Index) Get(companyID string) (model.CompanyAggregate, error) {
	a, ok := idx.companies[companyID]
	if !ok {
		return model.CompanyAggregate{}, &model.NotFoundError{Resource: "company", ID: companyID}
	}
	return a, nil
}

// Segment averages the company averages of every company whose band is in
// revenues and whose industry is in industries. An empty slice matches every
// value of that dimension. A segment with no companies yields NotFoundError.
func (idx *Index) Segment(revenues []model.RevenueBand, industries []model.Industry) (SegmentResult, error) {
	for _, b := range revenues {
		if !b.Valid() {
			return SegmentResult{}, model.NewValidationError("revenues", "unknown revenue band %q", b)
		}
	}
	for _, i := range industries {
		if !i.Valid() {
			return SegmentResult{}, model.NewValidationError("industries", "unknown industry %q", i)
		}
	}
	if len(revenues) == 0 {
		revenues = model.RevenueBands
	}
	if len(industries) == 0 {
		industries = model.Industries
	}

	var (
		sum   float64
		count int
	)
	for _, i := range dedupe(industries) {
		for _, b := range dedupe(revenues) {
			c := idx.cells[cellKey{industry: i, band: b}]
			sum += c.sum
			count += c.count
		}
	}
	if count == 0 {
		return SegmentResult{}, &model.NotFoundError{Resource: "segment"}
	}
	return SegmentResult{Average: sum / float64(count), Matched: count}, nil
}

// Cells returns every populated (industry, band) pair in enum order.
func (idx *Index) Cells() []Cell {
	var out []Cell
	for _, i := range model.Industries {
		for _, b := range model.RevenueBands {
			c, ok := idx.cells[cellKey{industry: i, band: b}]
			if !ok {
				continue
			}
			out = append(out, Cell{Industry: i, Band: b, Average: c.sum / float64(c.count), Count: c.count})
		}
	}
	return out
}

func dedupe[T comparable](in []T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
