package simulate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cyberrisk/internal/distribution"
	"github.com/sells-group/cyberrisk/internal/model"
)

var financeCo = model.CompanyProfile{ID: "C1", Revenue: 50_000_000, Industry: model.IndustryFinance}

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

func TestRun_TotalEqualsSumOfEvents(t *testing.T) {
	e := newEngine(t, Config{})
	params := model.NewDistributionParams(1.5, 20_000)

	runs, err := e.Run(context.Background(), financeCo, params, WithSimulations(2000), WithSeed(7))
	require.NoError(t, err)
	require.Len(t, runs, 2000)

	var sawEmpty bool
	for i, r := range runs {
		assert.Equal(t, i+1, r.SimulationID)
		assert.Equal(t, "C1", r.CompanyID)

		var sum float64
		for j, ev := range r.Events {
			assert.Equal(t, r.SimulationID, ev.SimulationID)
			assert.Equal(t, j+1, ev.AttackID)
			sum += ev.Cost
		}
		assert.Equal(t, sum, r.TotalCost)
		if len(r.Events) == 0 {
			sawEmpty = true
			assert.Zero(t, r.TotalCost)
		}
	}
	// P(0 attacks) = e^-1.5 ≈ 0.22, so 2000 runs include empty ones.
	assert.True(t, sawEmpty)
}

func TestRun_ReproducibleWithSeed(t *testing.T) {
	e := newEngine(t, Config{})
	params := model.NewDistributionParams(2.0, 100_000)

	a, err := e.Run(context.Background(), financeCo, params, WithSimulations(500), WithSeed(42))
	require.NoError(t, err)
	b, err := e.Run(context.Background(), financeCo, params, WithSimulations(500), WithSeed(42))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := e.Run(context.Background(), financeCo, params, WithSimulations(500), WithStream(42, 1))
	require.NoError(t, err)
	assert.NotEqual(t, Totals(a), Totals(c))
}

func TestRun_FinanceExample(t *testing.T) {
	tbl, err := distribution.ParseTable([]byte(`{"finance": {"100M": {"frequency": 2.0, "cost": 100000}}}`))
	require.NoError(t, err)
	params, err := distribution.NewResolver(tbl).ResolveCompany(financeCo)
	require.NoError(t, err)
	require.Equal(t, model.DistributionParams{Lambda: 2.0, CostMean: 100_000, CostStd: 10_000}, params)

	e := newEngine(t, Config{})
	first, err := e.Run(context.Background(), financeCo, params, WithSimulations(3), WithSeed(2024))
	require.NoError(t, err)
	require.Len(t, first, 3)

	for range 3 {
		again, err := e.Run(context.Background(), financeCo, params, WithSimulations(3), WithSeed(2024))
		require.NoError(t, err)
		assert.Equal(t, Totals(first), Totals(again))
	}

	other, err := e.Run(context.Background(), financeCo, params, WithSimulations(3), WithSeed(2025))
	require.NoError(t, err)
	assert.NotEqual(t, Totals(first), Totals(other))
}

func TestRun_ConvergesToLambdaTimesMean(t *testing.T) {
	if testing.Short() {
		t.Skip("large simulation")
	}
	e := newEngine(t, Config{})
	params := model.NewDistributionParams(2.0, 100_000)

	runs, err := e.Run(context.Background(), financeCo, params, WithSimulations(100_000), WithSeed(99))
	require.NoError(t, err)

	m := Summarize(runs)
	want := params.Lambda * params.CostMean
	// Standard error is ~450 here; 1% is more than four of them.
	assert.InEpsilon(t, want, m.Mean, 0.01)
}

func TestRun_DefaultSimulationCount(t *testing.T) {
	params := model.NewDistributionParams(0.5, 1000)

	runs, err := newEngine(t, Config{}).Run(context.Background(), financeCo, params, WithSeed(1))
	require.NoError(t, err)
	assert.Len(t, runs, DefaultSimulations)

	runs, err = newEngine(t, Config{DefaultSimulations: 25}).Run(context.Background(), financeCo, params, WithSeed(1))
	require.NoError(t, err)
	assert.Len(t, runs, 25)
}

func TestRun_Validation(t *testing.T) {
	e := newEngine(t, Config{})
	params := model.NewDistributionParams(1, 1000)

	for _, n := range []int{0, -3, MaxSimulations + 1, 1_000_000_000_000} {
		_, err := e.Run(context.Background(), financeCo, params, WithSimulations(n))
		assert.Equal(t, model.KindValidation, model.ErrorKind(err), "n=%d", n)
	}

	_, err := e.Run(context.Background(), model.CompanyProfile{}, params, WithSimulations(1))
	assert.Equal(t, model.KindValidation, model.ErrorKind(err))

	_, err = e.Run(context.Background(), financeCo, model.DistributionParams{Lambda: -1, CostMean: 1, CostStd: 1}, WithSimulations(1))
	assert.Equal(t, model.KindValidation, model.ErrorKind(err))
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEngine(t, Config{}).Run(ctx, financeCo, model.NewDistributionParams(1, 1000), WithSimulations(10))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_NegativeCostPolicy(t *testing.T) {
	// A deviation far above the mean makes negative draws common.
	wide := model.DistributionParams{Lambda: 4, CostMean: 1, CostStd: 10}

	allow := newEngine(t, Config{NegativeCosts: model.NegativeCostAllow})
	runs, err := allow.Run(context.Background(), financeCo, wide, WithSimulations(500), WithSeed(3))
	require.NoError(t, err)
	assert.True(t, anyCost(runs, func(c float64) bool { return c < 0 }))

	clamp := newEngine(t, Config{NegativeCosts: model.NegativeCostClamp})
	runs, err = clamp.Run(context.Background(), financeCo, wide, WithSimulations(500), WithSeed(3))
	require.NoError(t, err)
	assert.False(t, anyCost(runs, func(c float64) bool { return c < 0 }))
	assert.True(t, anyCost(runs, func(c float64) bool { return c == 0 }))
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := New(Config{NegativeCosts: "floor"})
	assert.Error(t, err)

	_, err = New(Config{DefaultSimulations: -1})
	assert.Error(t, err)

	_, err = New(Config{DefaultSimulations: MaxSimulations + 1})
	assert.Equal(t, model.KindValidation, model.ErrorKind(err))
}

func anyCost(runs []model.SimulationRun, pred func(float64) bool) bool {
	for _, r := range runs {
		for _, ev := range r.Events {
			if pred(ev.Cost) {
				return true
			}
		}
	}
	return false
}
