package simulate

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/cyberrisk/internal/model"
)

// Totals extracts the per-run total costs.
func Totals(runs []model.SimulationRun) []float64 {
	out := make([]float64, len(runs))
	for i, r := range runs {
		out[i] = r.TotalCost
	}
	return out
}

// Summarize computes loss statistics over the run totals. Quantiles
// interpolate linearly between order statistics and StdDev is the
// population deviation. An empty input yields zero metrics.
func Summarize(runs []model.SimulationRun) model.SimulationMetrics {
	if len(runs) == 0 {
		return model.SimulationMetrics{}
	}
	totals := Totals(runs)
	slices.Sort(totals)

	mean, std := stat.PopMeanStdDev(totals, nil)
	return model.SimulationMetrics{
		Total:  floats.Sum(totals),
		Mean:   mean,
		Median: quantile(totals, 0.5),
		StdDev: std,
		Min:    floats.Min(totals),
		Max:    floats.Max(totals),
		P95:    quantile(totals, 0.95),
	}
}

// quantile returns the p-quantile of sorted, interpolating linearly between
// the order statistics at rank (n-1)*p.
func quantile(sorted []float64, p float64) float64 {
	h := float64(len(sorted)-1) * p
	lo := int(math.Floor(h))
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// Aggregate derives the company aggregate from a complete run set.
func Aggregate(company model.CompanyProfile, runs []model.SimulationRun) model.CompanyAggregate {
	m := Summarize(runs)
	return model.CompanyAggregate{
		CompanyID:             company.ID,
		Industry:              company.Industry,
		Revenue:               company.Revenue,
		AverageSimulationCost: m.Mean,
		NumSimulations:        len(runs),
		Metrics:               m,
	}
}
