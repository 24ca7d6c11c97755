package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cyberrisk/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func expectCompany(mock pgxmock.PgxPoolIface, c model.CompanyProfile) {
	mock.ExpectQuery(`SELECT company_id, revenue, industry FROM companies WHERE company_id = \$1`).
		WithArgs(c.ID).
		WillReturnRows(pgxmock.NewRows([]string{"company_id", "revenue", "industry"}).
			AddRow(c.ID, c.Revenue, string(c.Industry)))
}

func TestPostgresStore_GetCompany_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT company_id, revenue, industry FROM companies WHERE company_id = \$1`).
		WithArgs("C404").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetCompany(context.Background(), "C404")
	assert.True(t, model.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCompany_DriverError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT company_id, revenue, industry FROM companies`).
		WithArgs("C1").
		WillReturnError(fmt.Errorf("conn closed"))

	_, err := s.GetCompany(context.Background(), "C1")
	assert.True(t, model.IsStorage(err))
	assert.Contains(t, err.Error(), "postgres: get company C1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveGeneration(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	gen := model.Generation{ID: "gen-1", Seed: 7, Companies: 3, Simulations: 10, BatchSeed: 9, CreatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec(`TRUNCATE attack_events, simulation_runs, company_aggregates, companies`).
		WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectExec(`INSERT INTO generations`).
		WithArgs("gen-1", int64(7), 3, 10, int64(9), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"companies"}, companyColumns).WillReturnResult(3)
	mock.ExpectCommit()

	require.NoError(t, s.SaveGeneration(context.Background(), gen, testCompanies))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PersistRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	runs := makeRuns("C1", []int{1, 0, 2}, 100)

	mock.ExpectBegin()
	expectCompany(mock, testCompanies[0])
	for _, table := range []string{"attack_events", "simulation_runs", "company_aggregates"} {
		mock.ExpectExec(`DELETE FROM ` + table + ` WHERE company_id = \$1`).
			WithArgs("C1").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
	}
	mock.ExpectCopyFrom(pgx.Identifier{"simulation_runs"}, runColumns).WillReturnResult(3)
	mock.ExpectCopyFrom(pgx.Identifier{"attack_events"}, eventColumns).WillReturnResult(3)
	mock.ExpectExec(`INSERT INTO company_aggregates`).
		WithArgs("C1", 100.0, 3,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.PersistRuns(context.Background(), "C1", runs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PersistRuns_CopyFailureRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	expectCompany(mock, testCompanies[0])
	for _, table := range []string{"attack_events", "simulation_runs", "company_aggregates"} {
		mock.ExpectExec(`DELETE FROM ` + table).
			WithArgs("C1").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
	}
	mock.ExpectCopyFrom(pgx.Identifier{"simulation_runs"}, runColumns).
		WillReturnError(fmt.Errorf("connection reset by peer"))
	mock.ExpectRollback()

	err := s.PersistRuns(context.Background(), "C1", makeRuns("C1", []int{1}, 1))
	require.Error(t, err)
	assert.True(t, model.IsStorage(err))
	assert.Contains(t, err.Error(), "copy runs C1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PersistRuns_UnknownCompany(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT company_id, revenue, industry FROM companies`).
		WithArgs("C9").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := s.PersistRuns(context.Background(), "C9", makeRuns("C9", []int{1}, 1))
	assert.True(t, model.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PersistRuns_BeginError(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectBegin().WillReturnError(fmt.Errorf("connection refused"))

	err := s.PersistRuns(context.Background(), "C1", makeRuns("C1", []int{1}, 1))
	assert.True(t, model.IsStorage(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRuns_WithEvents(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	expectCompany(mock, testCompanies[0])
	mock.ExpectQuery(`SELECT company_id, simulation_id, total_cost FROM simulation_runs WHERE company_id = \$1`).
		WithArgs("C1").
		WillReturnRows(pgxmock.NewRows([]string{"company_id", "simulation_id", "total_cost"}).
			AddRow("C1", 1, 10.0).
			AddRow("C1", 2, 0.0))
	mock.ExpectQuery(`SELECT simulation_id, attack_id, cost FROM attack_events`).
		WithArgs("C1").
		WillReturnRows(pgxmock.NewRows([]string{"simulation_id", "attack_id", "cost"}).
			AddRow(1, 1, 4.0).
			AddRow(1, 2, 6.0))

	runs, err := s.GetRuns(context.Background(), "C1", true)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Len(t, runs[0].Events, 2)
	assert.Empty(t, runs[1].Events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestGeneration_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectQuery(`SELECT id, seed, companies, simulations, batch_seed, created_at FROM generations`).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.LatestGeneration(context.Background())
	assert.True(t, model.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestGeneration(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, seed, companies, simulations, batch_seed, created_at FROM generations`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "seed", "companies", "simulations", "batch_seed", "created_at"}).
			AddRow("gen-1", int64(42), 3, 500, int64(7), created))

	gen, err := s.LatestGeneration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Generation{ID: "gen-1", Seed: 42, Companies: 3, Simulations: 500, BatchSeed: 7, CreatedAt: created}, *gen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkSimulated(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`UPDATE generations SET simulations = \$1, batch_seed = \$2 WHERE id = \$3`).
		WithArgs(500, int64(7), "gen-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.MarkSimulated(context.Background(), "gen-1", 500, 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkSimulated_UnknownGeneration(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`UPDATE generations`).
		WithArgs(500, int64(7), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.MarkSimulated(context.Background(), "missing", 500, 7)
	assert.True(t, model.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadAggregates(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	cols := []string{"company_id", "revenue", "industry", "average_simulation_cost", "num_simulations",
		"total", "mean", "median", "std_dev", "min_cost", "max_cost", "p95"}
	mock.ExpectQuery(`FROM company_aggregates a JOIN companies c`).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("C1", 50e6, "finance", 120000.0, 10000, 1.2e9, 120000.0, 100000.0, 90000.0, 0.0, 900000.0, 300000.0))

	aggs, err := s.LoadAggregates(context.Background())
	require.NoError(t, err)
	require.Len(t, aggs, 1)
	assert.Equal(t, model.IndustryFinance, aggs[0].Industry)
	assert.Equal(t, 10000, aggs[0].NumSimulations)
	assert.InDelta(t, 300000, aggs[0].Metrics.P95, 0)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS generations`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
