package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cyberrisk/internal/aggregate"
	"github.com/sells-group/cyberrisk/internal/api"
	"github.com/sells-group/cyberrisk/internal/config"
	"github.com/sells-group/cyberrisk/internal/metrics"
	"github.com/sells-group/cyberrisk/internal/model"
)

func TestRefreshIndex_ReloadsUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	loader := func(context.Context) (*aggregate.Index, error) {
		calls.Add(1)
		return aggregate.FromAggregates([]model.CompanyAggregate{
			{CompanyID: "C1", Industry: model.IndustryRetail, Revenue: 5_000_000, AverageSimulationCost: 10, NumSimulations: 1},
		})
	}
	server := api.New(aggregate.NewHolder(nil), loader, metrics.New(), config.ServerConfig{CORSOrigins: []string{"*"}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		refreshIndex(ctx, server, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results/C1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServe_LoadsStoredAggregates(t *testing.T) {
	testConfig(t)
	ctx := context.Background()

	st, err := openStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	_, err = generateCompanies(ctx, st, 5, 1)
	require.NoError(t, err)
	_, _, err = simulateAll(ctx, st, metrics.New())
	require.NoError(t, err)

	server := api.New(aggregate.NewHolder(nil), aggregate.FromStoreAggregates(st), metrics.New(), cfg.Server)
	require.NoError(t, server.Reload(ctx))

	rec := httptest.NewRecorder()
	server.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results/segment", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"matched_companies":5`)
}
