package report

import (
	"encoding/csv"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/cyberrisk/internal/aggregate"
)

// AllLabel marks the overall row of a grid.
const AllLabel = "all"

// GridRow is the average company cost of one (industry, band) segment.
type GridRow struct {
	Industry              string          `csv:"industry"`
	RevenueBand           string          `csv:"revenue_band"`
	Companies             int             `csv:"companies"`
	AverageSimulationCost decimal.Decimal `csv:"average_simulation_cost"`
}

var gridHeader = []string{"industry", "revenue_band", "companies", "average_simulation_cost"}

// SegmentGrid lists every populated (industry, band) segment of idx in enum
// order, followed by an overall row. Averages are rounded to cents.
func SegmentGrid(idx *aggregate.Index) []GridRow {
	cells := idx.Cells()
	rows := make([]GridRow, 0, len(cells)+1)
	for _, c := range cells {
		rows = append(rows, GridRow{
			Industry:              c.Industry.String(),
			RevenueBand:           c.Band.String(),
			Companies:             c.Count,
			AverageSimulationCost: decimal.NewFromFloat(c.Average).Round(2),
		})
	}
	if all, err := idx.Segment(nil, nil); err == nil {
		rows = append(rows, GridRow{
			Industry:              AllLabel,
			RevenueBand:           AllLabel,
			Companies:             all.Matched,
			AverageSimulationCost: decimal.NewFromFloat(all.Average).Round(2),
		})
	}
	return rows
}

// WriteGridCSV writes rows as CSV with a header.
func WriteGridCSV(w io.Writer, rows []GridRow) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(GridRow{}); err != nil {
		return eris.Wrap(err, "report: write grid header")
	}
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return eris.Wrapf(err, "report: write grid row %s/%s", r.Industry, r.RevenueBand)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush grid")
}

// WriteGridXLSX writes rows as a single-sheet workbook.
func WriteGridXLSX(w io.Writer, rows []GridRow) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("segments")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range gridHeader {
		header.AddCell().SetString(h)
	}
	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Industry)
		row.AddCell().SetString(r.RevenueBand)
		row.AddCell().SetInt(r.Companies)
		row.AddCell().SetFloat(r.AverageSimulationCost.InexactFloat64())
	}

	return eris.Wrap(f.Write(w), "report: write workbook")
}
