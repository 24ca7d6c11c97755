// Package report renders simulation output and segment summaries as CSV
// and XLSX.
package report

import (
	"encoding/csv"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/cyberrisk/internal/model"
)

// eventRecord is one line of the simulation output CSV. Costs are written
// as plain decimals with no exponent.
type eventRecord struct {
	SimulationID int             `csv:"simulation_id"`
	AttackID     int             `csv:"attack_id"`
	Cost         decimal.Decimal `csv:"cost"`
}

// WriteEventsCSV writes every attack event of runs with the header
// simulation_id,attack_id,cost. Runs without attacks contribute no lines.
func WriteEventsCSV(w io.Writer, runs []model.SimulationRun) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(eventRecord{}); err != nil {
		return eris.Wrap(err, "report: write events header")
	}
	for _, r := range runs {
		for _, ev := range r.Events {
			rec := eventRecord{
				SimulationID: ev.SimulationID,
				AttackID:     ev.AttackID,
				Cost:         decimal.NewFromFloat(ev.Cost),
			}
			if err := enc.Encode(rec); err != nil {
				return eris.Wrapf(err, "report: write event %d/%d", ev.SimulationID, ev.AttackID)
			}
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush events")
}
