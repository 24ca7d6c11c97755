package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/cyberrisk/internal/model"
	"github.com/sells-group/cyberrisk/internal/simulate"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, model.NewStorageError("sqlite: open", err)
	}
	// One connection, so the per-connection pragmas hold and batch workers
	// queue on writes instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, model.NewStorageError("sqlite: exec "+pragma, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS generations (
	id          TEXT PRIMARY KEY,
	seed        INTEGER NOT NULL,
	companies   INTEGER NOT NULL,
	simulations INTEGER NOT NULL,
	batch_seed  INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS companies (
	company_id    TEXT PRIMARY KEY,
	generation_id TEXT NOT NULL REFERENCES generations(id),
	position      INTEGER NOT NULL,
	revenue       REAL NOT NULL,
	industry      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS simulation_runs (
	company_id    TEXT NOT NULL REFERENCES companies(company_id),
	simulation_id INTEGER NOT NULL,
	total_cost    REAL NOT NULL,
	PRIMARY KEY (company_id, simulation_id)
);

CREATE TABLE IF NOT EXISTS attack_events (
	company_id    TEXT NOT NULL,
	simulation_id INTEGER NOT NULL,
	attack_id     INTEGER NOT NULL,
	cost          REAL NOT NULL,
	PRIMARY KEY (company_id, simulation_id, attack_id),
	FOREIGN KEY (company_id, simulation_id) REFERENCES simulation_runs(company_id, simulation_id)
);

CREATE TABLE IF NOT EXISTS company_aggregates (
	company_id              TEXT PRIMARY KEY REFERENCES companies(company_id),
	average_simulation_cost REAL NOT NULL,
	num_simulations         INTEGER NOT NULL,
	total                   REAL NOT NULL,
	mean                    REAL NOT NULL,
	median                  REAL NOT NULL,
	std_dev                 REAL NOT NULL,
	min_cost                REAL NOT NULL,
	max_cost                REAL NOT NULL,
	p95                     REAL NOT NULL,
	updated_at              DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_companies_position ON companies(position);
CREATE INDEX IF NOT EXISTS idx_generations_created_at ON generations(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return model.NewStorageError("sqlite: migrate", err)
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return model.NewStorageError("sqlite: ping", s.db.PingContext(ctx))
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveGeneration replaces every company, run and aggregate with a new
// generation in one transaction.
func (s *SQLiteStore) SaveGeneration(ctx context.Context, gen model.Generation, companies []model.CompanyProfile) error {
	if err := validateGeneration(companies); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.NewStorageError("sqlite: begin save generation", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, q := range []string{
		`DELETE FROM attack_events`,
		`DELETE FROM simulation_runs`,
		`DELETE FROM company_aggregates`,
		`DELETE FROM companies`,
	} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return model.NewStorageError("sqlite: clear previous generation", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO generations (id, seed, companies, simulations, batch_seed, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		gen.ID, int64(gen.Seed), gen.Companies, gen.Simulations, int64(gen.BatchSeed), gen.CreatedAt.UTC(), //nolint:gosec
	)
	if err != nil {
		return model.NewStorageError("sqlite: insert generation "+gen.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO companies (company_id, generation_id, position, revenue, industry) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return model.NewStorageError("sqlite: prepare insert company", err)
	}
	defer stmt.Close() //nolint:errcheck

	for i, c := range companies {
		if _, err := stmt.ExecContext(ctx, c.ID, gen.ID, i, c.Revenue, string(c.Industry)); err != nil {
			return model.NewStorageError("sqlite: insert company "+c.ID, err)
		}
	}

	return model.NewStorageError("sqlite: commit save generation", tx.Commit())
}

func (s *SQLiteStore) LatestGeneration(ctx context.Context) (*model.Generation, error) {
	var (
		gen             model.Generation
		seed, batchSeed int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, seed, companies, simulations, batch_seed, created_at FROM generations ORDER BY created_at DESC LIMIT 1`,
	).Scan(&gen.ID, &seed, &gen.Companies, &gen.Simulations, &batchSeed, &gen.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Resource: "generation"}
	}
	if err != nil {
		return nil, model.NewStorageError("sqlite: latest generation", err)
	}
	gen.Seed = uint64(seed)           //nolint:gosec
	gen.BatchSeed = uint64(batchSeed) //nolint:gosec
	return &gen, nil
}

// MarkSimulated records the simulation count and batch seed of the run
// that produced the generation's current results.
func (s *SQLiteStore) MarkSimulated(ctx context.Context, generationID string, simulations int, batchSeed uint64) error {
	if simulations <= 0 {
		return model.NewValidationError("simulations", "must be positive, got %d", simulations)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE generations SET simulations = ?, batch_seed = ? WHERE id = ?`,
		simulations, int64(batchSeed), generationID, //nolint:gosec
	)
	if err != nil {
		return model.NewStorageError("sqlite: mark generation "+generationID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.NewStorageError("sqlite: mark generation "+generationID, err)
	}
	if n == 0 {
		return &model.NotFoundError{Resource: "generation", ID: generationID}
	}
	return nil
}

func (s *SQLiteStore) GetCompany(ctx context.Context, companyID string) (*model.CompanyProfile, error) {
	return s.getCompany(ctx, s.db, companyID)
}

type sqliteQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) getCompany(ctx context.Context, q sqliteQueryer, companyID string) (*model.CompanyProfile, error) {
	c, err := scanCompany(q.QueryRowContext(ctx,
		`SELECT company_id, revenue, industry FROM companies WHERE company_id = ?`, companyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.NotFoundError{Resource: "company", ID: companyID}
	}
	if err != nil {
		return nil, model.NewStorageError("sqlite: get company "+companyID, err)
	}
	return &c, nil
}

func (s *SQLiteStore) ListCompanies(ctx context.Context) ([]model.CompanyProfile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT company_id, revenue, industry FROM companies ORDER BY position`)
	if err != nil {
		return nil, model.NewStorageError("sqlite: list companies", err)
	}
	defer rows.Close() //nolint:errcheck

	out := []model.CompanyProfile{}
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, model.NewStorageError("sqlite: scan company", err)
		}
		out = append(out, c)
	}
	return out, model.NewStorageError("sqlite: iterate companies", rows.Err())
}

// PersistRuns atomically replaces the company's runs, events and cached
// aggregate.
func (s *SQLiteStore) PersistRuns(ctx context.Context, companyID string, runs []model.SimulationRun) error {
	if err := validateRuns(companyID, runs); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.NewStorageError("sqlite: begin persist runs", err)
	}
	defer tx.Rollback() //nolint:errcheck

	company, err := s.getCompany(ctx, tx, companyID)
	if err != nil {
		return err
	}

	for _, q := range []string{
		`DELETE FROM attack_events WHERE company_id = ?`,
		`DELETE FROM simulation_runs WHERE company_id = ?`,
		`DELETE FROM company_aggregates WHERE company_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, companyID); err != nil {
			return model.NewStorageError("sqlite: clear runs "+companyID, err)
		}
	}

	runStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO simulation_runs (company_id, simulation_id, total_cost) VALUES (?, ?, ?)`)
	if err != nil {
		return model.NewStorageError("sqlite: prepare insert run", err)
	}
	defer runStmt.Close() //nolint:errcheck

	eventStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO attack_events (company_id, simulation_id, attack_id, cost) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return model.NewStorageError("sqlite: prepare insert event", err)
	}
	defer eventStmt.Close() //nolint:errcheck

	for _, r := range runs {
		if _, err := runStmt.ExecContext(ctx, companyID, r.SimulationID, r.TotalCost); err != nil {
			return model.NewStorageError("sqlite: insert run "+companyID, err)
		}
		for _, ev := range r.Events {
			if _, err := eventStmt.ExecContext(ctx, companyID, ev.SimulationID, ev.AttackID, ev.Cost); err != nil {
				return model.NewStorageError("sqlite: insert event "+companyID, err)
			}
		}
	}

	agg := simulate.Aggregate(*company, runs)
	m := agg.Metrics
	_, err = tx.ExecContext(ctx,
		`INSERT INTO company_aggregates (company_id, average_simulation_cost, num_simulations,
			total, mean, median, std_dev, min_cost, max_cost, p95, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		companyID, agg.AverageSimulationCost, agg.NumSimulations,
		m.Total, m.Mean, m.Median, m.StdDev, m.Min, m.Max, m.P95, time.Now().UTC(),
	)
	if err != nil {
		return model.NewStorageError("sqlite: insert aggregate "+companyID, err)
	}

	return model.NewStorageError("sqlite: commit persist runs "+companyID, tx.Commit())
}

func (s *SQLiteStore) GetRuns(ctx context.Context, companyID string, withEvents bool) ([]model.SimulationRun, error) {
	if _, err := s.getCompany(ctx, s.db, companyID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT company_id, simulation_id, total_cost FROM simulation_runs WHERE company_id = ? ORDER BY simulation_id`,
		companyID)
	if err != nil {
		return nil, model.NewStorageError("sqlite: get runs "+companyID, err)
	}
	runs, err := collectRuns(rows)
	if err != nil {
		return nil, model.NewStorageError("sqlite: scan runs "+companyID, err)
	}
	if !withEvents {
		return runs, nil
	}

	evRows, err := s.db.QueryContext(ctx,
		`SELECT simulation_id, attack_id, cost FROM attack_events WHERE company_id = ? ORDER BY simulation_id, attack_id`,
		companyID)
	if err != nil {
		return nil, model.NewStorageError("sqlite: get events "+companyID, err)
	}
	events, err := collectEvents(evRows)
	if err != nil {
		return nil, model.NewStorageError("sqlite: scan events "+companyID, err)
	}
	attachEvents(runs, events)
	return runs, nil
}

// LoadCorpus reads every company and run without per-attack events.
func (s *SQLiteStore) LoadCorpus(ctx context.Context) (*model.Corpus, error) {
	companies, err := s.ListCompanies(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT company_id, simulation_id, total_cost FROM simulation_runs ORDER BY company_id, simulation_id`)
	if err != nil {
		return nil, model.NewStorageError("sqlite: load runs", err)
	}
	runs, err := collectRuns(rows)
	if err != nil {
		return nil, model.NewStorageError("sqlite: scan runs", err)
	}
	return &model.Corpus{Companies: companies, Runs: groupRuns(runs)}, nil
}

func (s *SQLiteStore) LoadAggregates(ctx context.Context) ([]model.CompanyAggregate, error) {
	rows, err := s.db.QueryContext(ctx, aggregateSelect+` ORDER BY c.position`)
	if err != nil {
		return nil, model.NewStorageError("sqlite: load aggregates", err)
	}
	defer rows.Close() //nolint:errcheck

	out := []model.CompanyAggregate{}
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, model.NewStorageError("sqlite: scan aggregate", err)
		}
		out = append(out, a)
	}
	return out, model.NewStorageError("sqlite: iterate aggregates", rows.Err())
}

const aggregateSelect = `SELECT a.company_id, c.revenue, c.industry, a.average_simulation_cost, a.num_simulations,
	a.total, a.mean, a.median, a.std_dev, a.min_cost, a.max_cost, a.p95
	FROM company_aggregates a JOIN companies c ON c.company_id = a.company_id`

// rowIterator is satisfied by *sql.Rows and pgx.Rows.
type rowIterator interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collectRuns(rows interface {
	rowIterator
	Close() error
}) ([]model.SimulationRun, error) {
	defer rows.Close() //nolint:errcheck
	return scanRuns(rows)
}

func scanRuns(rows rowIterator) ([]model.SimulationRun, error) {
	out := []model.SimulationRun{}
	for rows.Next() {
		var r model.SimulationRun
		if err := rows.Scan(&r.CompanyID, &r.SimulationID, &r.TotalCost); err != nil {
			return nil, eris.Wrap(err, "scan run")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func collectEvents(rows interface {
	rowIterator
	Close() error
}) (map[int][]model.AttackEvent, error) {
	defer rows.Close() //nolint:errcheck
	return scanEvents(rows)
}

func scanEvents(rows rowIterator) (map[int][]model.AttackEvent, error) {
	out := make(map[int][]model.AttackEvent)
	for rows.Next() {
		var ev model.AttackEvent
		if err := rows.Scan(&ev.SimulationID, &ev.AttackID, &ev.Cost); err != nil {
			return nil, eris.Wrap(err, "scan event")
		}
		out[ev.SimulationID] = append(out[ev.SimulationID], ev)
	}
	return out, rows.Err()
}

func groupRuns(runs []model.SimulationRun) map[string][]model.SimulationRun {
	out := make(map[string][]model.SimulationRun)
	for _, r := range runs {
		out[r.CompanyID] = append(out[r.CompanyID], r)
	}
	return out
}
