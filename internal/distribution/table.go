// Package distribution resolves the frequency and severity parameters for a
// company from the static industry × revenue-band stats table.
package distribution

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/cyberrisk/internal/model"
)

//go:embed default_stats.json
var defaultStats []byte

// Cell is one row of the stats table.
type Cell struct {
	Frequency float64 `yaml:"frequency"`
	Cost      float64 `yaml:"cost"`
}

// Record is the list form of a table row, with explicit revenue bounds.
type Record struct {
	Industry   string  `yaml:"industry"`
	RevenueMin float64 `yaml:"revenue_min"`
	RevenueMax float64 `yaml:"revenue_max"`
	Frequency  float64 `yaml:"frequency"`
	Cost       float64 `yaml:"cost"`
}

type cellKey struct {
	industry model.Industry
	band     model.RevenueBand
}

// Table is an immutable, validated stats table.
type Table struct {
	cells map[cellKey]model.DistributionParams
}

// LoadTable reads a stats table from a JSON or YAML file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "distribution: read table %s", path)
	}
	return ParseTable(data)
}

// DefaultTable returns the table bundled with the binary.
func DefaultTable() (*Table, error) {
	return ParseTable(defaultStats)
}

// ParseTable accepts either the nested form
//
//	{industry: {band: {frequency, cost}}}
//
// or the record form
//
//	{records: [{industry, revenue_min, revenue_max, frequency, cost}]}
//
// where each record's bounds must coincide with a known band.
func ParseTable(data []byte) (*Table, error) {
	var probe map[string]yaml.Node
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, eris.Wrap(err, "distribution: parse table")
	}

	t := &Table{cells: make(map[cellKey]model.DistributionParams)}

	if _, ok := probe["records"]; ok {
		var wrapper struct {
			Records []Record `yaml:"records"`
		}
		if err := yaml.Unmarshal(data, &wrapper); err != nil {
			return nil, eris.Wrap(err, "distribution: parse records")
		}
		for i, r := range wrapper.Records {
			band, ok := model.BandForBounds(r.RevenueMin, r.RevenueMax)
			if !ok {
				return nil, eris.Errorf("distribution: record %d: bounds (%v, %v] match no revenue band", i, r.RevenueMin, r.RevenueMax)
			}
			if err := t.add(r.Industry, band, Cell{Frequency: r.Frequency, Cost: r.Cost}); err != nil {
				return nil, eris.Wrapf(err, "distribution: record %d", i)
			}
		}
		return t, nil
	}

	var nested map[string]map[string]Cell
	if err := yaml.Unmarshal(data, &nested); err != nil {
		return nil, eris.Wrap(err, "distribution: parse nested table")
	}
	for industry, bands := range nested {
		for label, cell := range bands {
			band, err := model.ParseRevenueBand(label)
			if err != nil {
				return nil, eris.Wrapf(err, "distribution: industry %s", industry)
			}
			if err := t.add(industry, band, cell); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func (t *Table) add(industry string, band model.RevenueBand, cell Cell) error {
	ind, err := model.ParseIndustry(industry)
	if err != nil {
		return eris.Wrap(err, "distribution: table row")
	}
	key := cellKey{industry: ind, band: band}
	if _, dup := t.cells[key]; dup {
		return eris.Errorf("distribution: duplicate cell %s/%s", ind, band)
	}
	params := model.NewDistributionParams(cell.Frequency, cell.Cost)
	if err := params.Validate(); err != nil {
		return eris.Wrapf(err, "distribution: cell %s/%s", ind, band)
	}
	t.cells[key] = params
	return nil
}

// Len returns the number of populated cells.
func (t *Table) Len() int { return len(t.cells) }
