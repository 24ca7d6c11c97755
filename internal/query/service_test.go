package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cyberrisk/internal/aggregate"
	"github.com/sells-group/cyberrisk/internal/model"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	idx, err := aggregate.FromAggregates([]model.CompanyAggregate{
		{CompanyID: "C1", Industry: model.IndustryFinance, Revenue: 50_000_000, AverageSimulationCost: 120_000.0, NumSimulations: 10_000},
		{CompanyID: "C2", Industry: model.IndustryFinance, Revenue: 300_000_000, AverageSimulationCost: 80_000.0},
		{CompanyID: "C3", Industry: model.IndustryRetail, Revenue: 9_000_000, AverageSimulationCost: 10_000.0},
	})
	require.NoError(t, err)
	return NewService(aggregate.NewHolder(idx))
}

func TestResultsByID(t *testing.T) {
	svc := newTestService(t)

	a, err := svc.ResultsByID("C1")
	require.NoError(t, err)
	assert.Equal(t, 120_000.0, a.AverageSimulationCost)
	assert.Equal(t, 10_000, a.NumSimulations)

	_, err = svc.ResultsByID("UNKNOWN")
	assert.True(t, model.IsNotFound(err))

	_, err = svc.ResultsByID("")
	assert.Equal(t, model.KindValidation, model.ErrorKind(err))
}

func TestResultsBySegment(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		name    string
		seg     Segment
		want    float64
		matched int
	}{
		{"wildcard", Segment{}, (120_000 + 80_000 + 10_000) / 3.0, 3},
		{"industry case-insensitive", Segment{Industries: []string{"FINANCE"}}, 100_000, 2},
		{"band label", Segment{Revenues: []RevenueSelector{BandLabel("100m")}}, 120_000, 1},
		{"amount maps to band", Segment{Revenues: []RevenueSelector{Amount(50_000_000)}}, 120_000, 1},
		{"label and amount", Segment{
			Revenues:   []RevenueSelector{BandLabel("500M"), Amount(10_000_000)},
			Industries: []string{"finance", "retail"},
		}, 45_000, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.ResultsBySegment(tt.seg)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, res.Average, 1e-9)
			assert.Equal(t, tt.matched, res.Matched)
		})
	}
}

func TestResultsBySegment_Errors(t *testing.T) {
	svc := newTestService(t)

	tests := []struct {
		name string
		seg  Segment
		kind string
	}{
		{"unknown industry", Segment{Industries: []string{"mining"}}, model.KindValidation},
		{"unknown label", Segment{Revenues: []RevenueSelector{BandLabel("5B")}}, model.KindValidation},
		{"zero amount", Segment{Revenues: []RevenueSelector{Amount(0)}}, model.KindValidation},
		{"amount above range", Segment{Revenues: []RevenueSelector{Amount(2e9)}}, model.KindValidation},
		{"too many selectors", Segment{Industries: make([]string, maxSelectors+1)}, model.KindValidation},
		{"no match", Segment{Industries: []string{"construction"}}, model.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ResultsBySegment(tt.seg)
			require.Error(t, err)
			assert.Equal(t, tt.kind, model.ErrorKind(err))
		})
	}
}

func TestResultsBySegment_SeesSwappedIndex(t *testing.T) {
	holder := aggregate.NewHolder(nil)
	svc := NewService(holder)

	_, err := svc.ResultsBySegment(Segment{})
	assert.True(t, model.IsNotFound(err))

	idx, err := aggregate.FromAggregates([]model.CompanyAggregate{
		{CompanyID: "C1", Industry: model.IndustryRetail, Revenue: 1e6, AverageSimulationCost: 3},
	})
	require.NoError(t, err)
	holder.Swap(idx)

	res, err := svc.ResultsBySegment(Segment{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)
}

func TestRevenueSelector_JSON(t *testing.T) {
	var seg Segment
	err := json.Unmarshal([]byte(`{"revenues":[50000000,"100M","2.5e8"],"industries":["finance"]}`), &seg)
	require.NoError(t, err)
	require.Len(t, seg.Revenues, 3)

	bands := make([]model.RevenueBand, 0, 3)
	for _, r := range seg.Revenues {
		b, err := r.Band()
		require.NoError(t, err)
		bands = append(bands, b)
	}
	assert.Equal(t, []model.RevenueBand{model.Band100M, model.Band100M, model.Band500M}, bands)

	out, err := json.Marshal(seg.Revenues)
	require.NoError(t, err)
	assert.JSONEq(t, `[50000000,"100M",250000000]`, string(out))

	err = json.Unmarshal([]byte(`{"revenues":[true]}`), &seg)
	assert.Error(t, err)
}

func TestParseRevenueSelector(t *testing.T) {
	assert.Equal(t, "1B", ParseRevenueSelector(" 1b ").String())
	assert.Equal(t, "10000000", ParseRevenueSelector("1e7").String())

	_, err := ParseRevenueSelector("lots").Band()
	assert.Equal(t, model.KindValidation, model.ErrorKind(err))
}
