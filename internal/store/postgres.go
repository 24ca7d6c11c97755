package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sells-group/cyberrisk/internal/db"
	"github.com/sells-group/cyberrisk/internal/model"
	"github.com/sells-group/cyberrisk/internal/simulate"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// queries holds the hot point lookups; the pool caches their prepared form
// per connection.
var queries = map[string]string{
	"get_company":       `SELECT company_id, revenue, industry FROM companies WHERE company_id = $1`,
	"get_runs":          `SELECT company_id, simulation_id, total_cost FROM simulation_runs WHERE company_id = $1 ORDER BY simulation_id`,
	"get_events":        `SELECT simulation_id, attack_id, cost FROM attack_events WHERE company_id = $1 ORDER BY simulation_id, attack_id`,
	"latest_generation": `SELECT id, seed, companies, simulations, batch_seed, created_at FROM generations ORDER BY created_at DESC LIMIT 1`,
}

var (
	companyColumns = []string{"company_id", "generation_id", "position", "revenue", "industry"}
	runColumns     = []string{"company_id", "simulation_id", "total_cost"}
	eventColumns   = []string{"company_id", "simulation_id", "attack_id", "cost"}
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, model.NewStorageError("postgres: parse config", err)
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Statements are prepared lazily: the tables may not exist until Migrate.
	pgxCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, model.NewStorageError("postgres: create pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, model.NewStorageError("postgres: ping", err)
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS generations (
	id          TEXT PRIMARY KEY,
	seed        BIGINT NOT NULL,
	companies   INTEGER NOT NULL,
	simulations INTEGER NOT NULL,
	batch_seed  BIGINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS companies (
	company_id    TEXT PRIMARY KEY,
	generation_id TEXT NOT NULL REFERENCES generations(id),
	position      INTEGER NOT NULL,
	revenue       DOUBLE PRECISION NOT NULL,
	industry      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS simulation_runs (
	company_id    TEXT NOT NULL REFERENCES companies(company_id),
	simulation_id INTEGER NOT NULL,
	total_cost    DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (company_id, simulation_id)
);

CREATE TABLE IF NOT EXISTS attack_events (
	company_id    TEXT NOT NULL,
	simulation_id INTEGER NOT NULL,
	attack_id     INTEGER NOT NULL,
	cost          DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (company_id, simulation_id, attack_id),
	FOREIGN KEY (company_id, simulation_id) REFERENCES simulation_runs(company_id, simulation_id)
);

CREATE TABLE IF NOT EXISTS company_aggregates (
	company_id              TEXT PRIMARY KEY REFERENCES companies(company_id),
	average_simulation_cost DOUBLE PRECISION NOT NULL,
	num_simulations         INTEGER NOT NULL,
	total                   DOUBLE PRECISION NOT NULL,
	mean                    DOUBLE PRECISION NOT NULL,
	median                  DOUBLE PRECISION NOT NULL,
	std_dev                 DOUBLE PRECISION NOT NULL,
	min_cost                DOUBLE PRECISION NOT NULL,
	max_cost                DOUBLE PRECISION NOT NULL,
	p95                     DOUBLE PRECISION NOT NULL,
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_companies_position ON companies(position);
CREATE INDEX IF NOT EXISTS idx_generations_created_at ON generations(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return model.NewStorageError("postgres: ping", s.pool.Ping(ctx))
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return model.NewStorageError("postgres: migrate", err)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// SaveGeneration replaces every company, run and aggregate with a new
// generation in one transaction. Companies are loaded with COPY.
func (s *PostgresStore) SaveGeneration(ctx context.Context, gen model.Generation, companies []model.CompanyProfile) error {
	if err := validateGeneration(companies); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.NewStorageError("postgres: begin save generation", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `TRUNCATE attack_events, simulation_runs, company_aggregates, companies`); err != nil {
		return model.NewStorageError("postgres: clear previous generation", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO generations (id, seed, companies, simulations, batch_seed, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		gen.ID, int64(gen.Seed), gen.Companies, gen.Simulations, int64(gen.BatchSeed), gen.CreatedAt.UTC(), //nolint:gosec
	)
	if err != nil {
		return model.NewStorageError("postgres: insert generation "+gen.ID, err)
	}

	rows := make([][]any, len(companies))
	for i, c := range companies {
		rows[i] = []any{c.ID, gen.ID, i, c.Revenue, string(c.Industry)}
	}
	if _, err := db.CopyFrom(ctx, tx, "companies", companyColumns, rows); err != nil {
		return model.NewStorageError("postgres: copy companies", err)
	}

	return model.NewStorageError("postgres: commit save generation", tx.Commit(ctx))
}

func (s *PostgresStore) LatestGeneration(ctx context.Context) (*model.Generation, error) {
	var (
		gen             model.Generation
		seed, batchSeed int64
	)
	err := s.pool.QueryRow(ctx, queries["latest_generation"]).
		Scan(&gen.ID, &seed, &gen.Companies, &gen.Simulations, &batchSeed, &gen.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &model.NotFoundError{Resource: "generation"}
	}
	if err != nil {
		return nil, model.NewStorageError("postgres: latest generation", err)
	}
	gen.Seed = uint64(seed)           //nolint:gosec
	gen.BatchSeed = uint64(batchSeed) //nolint:gosec
	return &gen, nil
}

// MarkSimulated records the simulation count and batch seed of the run
// that produced the generation's current results.
func (s *PostgresStore) MarkSimulated(ctx context.Context, generationID string, simulations int, batchSeed uint64) error {
	if simulations <= 0 {
		return model.NewValidationError("simulations", "must be positive, got %d", simulations)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE generations SET simulations = $1, batch_seed = $2 WHERE id = $3`,
		simulations, int64(batchSeed), generationID, //nolint:gosec
	)
	if err != nil {
		return model.NewStorageError("postgres: mark generation "+generationID, err)
	}
	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{Resource: "generation", ID: generationID}
	}
	return nil
}

type pgQueryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) GetCompany(ctx context.Context, companyID string) (*model.CompanyProfile, error) {
	return pgGetCompany(ctx, s.pool, companyID)
}

func pgGetCompany(ctx context.Context, q pgQueryer, companyID string) (*model.CompanyProfile, error) {
	c, err := scanCompany(q.QueryRow(ctx, queries["get_company"], companyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &model.NotFoundError{Resource: "company", ID: companyID}
	}
	if err != nil {
		return nil, model.NewStorageError("postgres: get company "+companyID, err)
	}
	return &c, nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context) ([]model.CompanyProfile, error) {
	rows, err := s.pool.Query(ctx, `SELECT company_id, revenue, industry FROM companies ORDER BY position`)
	if err != nil {
		return nil, model.NewStorageError("postgres: list companies", err)
	}
	defer rows.Close()

	out := []model.CompanyProfile{}
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, model.NewStorageError("postgres: scan company", err)
		}
		out = append(out, c)
	}
	return out, model.NewStorageError("postgres: iterate companies", rows.Err())
}

// PersistRuns atomically replaces the company's runs, events and cached
// aggregate. Runs and events are loaded with COPY.
func (s *PostgresStore) PersistRuns(ctx context.Context, companyID string, runs []model.SimulationRun) error {
	if err := validateRuns(companyID, runs); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.NewStorageError("postgres: begin persist runs", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	company, err := pgGetCompany(ctx, tx, companyID)
	if err != nil {
		return err
	}

	for _, q := range []string{
		`DELETE FROM attack_events WHERE company_id = $1`,
		`DELETE FROM simulation_runs WHERE company_id = $1`,
		`DELETE FROM company_aggregates WHERE company_id = $1`,
	} {
		if _, err := tx.Exec(ctx, q, companyID); err != nil {
			return model.NewStorageError("postgres: clear runs "+companyID, err)
		}
	}

	runRows := make([][]any, 0, len(runs))
	var eventRows [][]any
	for _, r := range runs {
		runRows = append(runRows, []any{companyID, r.SimulationID, r.TotalCost})
		for _, ev := range r.Events {
			eventRows = append(eventRows, []any{companyID, ev.SimulationID, ev.AttackID, ev.Cost})
		}
	}
	if _, err := db.CopyFrom(ctx, tx, "simulation_runs", runColumns, runRows); err != nil {
		return model.NewStorageError("postgres: copy runs "+companyID, err)
	}
	if _, err := db.CopyFrom(ctx, tx, "attack_events", eventColumns, eventRows); err != nil {
		return model.NewStorageError("postgres: copy events "+companyID, err)
	}

	agg := simulate.Aggregate(*company, runs)
	m := agg.Metrics
	_, err = tx.Exec(ctx,
		`INSERT INTO company_aggregates (company_id, average_simulation_cost, num_simulations,
			total, mean, median, std_dev, min_cost, max_cost, p95, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		companyID, agg.AverageSimulationCost, agg.NumSimulations,
		m.Total, m.Mean, m.Median, m.StdDev, m.Min, m.Max, m.P95, time.Now().UTC(),
	)
	if err != nil {
		return model.NewStorageError("postgres: insert aggregate "+companyID, err)
	}

	return model.NewStorageError("postgres: commit persist runs "+companyID, tx.Commit(ctx))
}

func (s *PostgresStore) GetRuns(ctx context.Context, companyID string, withEvents bool) ([]model.SimulationRun, error) {
	if _, err := s.GetCompany(ctx, companyID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, queries["get_runs"], companyID)
	if err != nil {
		return nil, model.NewStorageError("postgres: get runs "+companyID, err)
	}
	runs, err := scanRuns(rows)
	rows.Close()
	if err != nil {
		return nil, model.NewStorageError("postgres: scan runs "+companyID, err)
	}
	if !withEvents {
		return runs, nil
	}

	evRows, err := s.pool.Query(ctx, queries["get_events"], companyID)
	if err != nil {
		return nil, model.NewStorageError("postgres: get events "+companyID, err)
	}
	events, err := scanEvents(evRows)
	evRows.Close()
	if err != nil {
		return nil, model.NewStorageError("postgres: scan events "+companyID, err)
	}
	attachEvents(runs, events)
	return runs, nil
}

// LoadCorpus reads every company and run without per-attack events.
func (s *PostgresStore) LoadCorpus(ctx context.Context) (*model.Corpus, error) {
	companies, err := s.ListCompanies(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT company_id, simulation_id, total_cost FROM simulation_runs ORDER BY company_id, simulation_id`)
	if err != nil {
		return nil, model.NewStorageError("postgres: load runs", err)
	}
	runs, err := scanRuns(rows)
	rows.Close()
	if err != nil {
		return nil, model.NewStorageError("postgres: scan runs", err)
	}
	return &model.Corpus{Companies: companies, Runs: groupRuns(runs)}, nil
}

func (s *PostgresStore) LoadAggregates(ctx context.Context) ([]model.CompanyAggregate, error) {
	rows, err := s.pool.Query(ctx, aggregateSelect+` ORDER BY c.position`)
	if err != nil {
		return nil, model.NewStorageError("postgres: load aggregates", err)
	}
	defer rows.Close()

	out := []model.CompanyAggregate{}
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, model.NewStorageError("postgres: scan aggregate", err)
		}
		out = append(out, a)
	}
	return out, model.NewStorageError("postgres: iterate aggregates", rows.Err())
}
