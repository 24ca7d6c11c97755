// Package store persists generations, simulation runs, attack events and the
// per-company aggregates derived from them.
package store

import (
	"context"
	"strings"

	"github.com/sells-group/cyberrisk/internal/model"
)

// Store defines the persistence interface for simulation results. Every
// driver failure is returned as a *model.StorageError.
type Store interface {
	// Generations and companies
	SaveGeneration(ctx context.Context, gen model.Generation, companies []model.CompanyProfile) error
	LatestGeneration(ctx context.Context) (*model.Generation, error)
	MarkSimulated(ctx context.Context, generationID string, simulations int, batchSeed uint64) error
	GetCompany(ctx context.Context, companyID string) (*model.CompanyProfile, error)
	ListCompanies(ctx context.Context) ([]model.CompanyProfile, error)

	// Runs
	PersistRuns(ctx context.Context, companyID string, runs []model.SimulationRun) error
	GetRuns(ctx context.Context, companyID string, withEvents bool) ([]model.SimulationRun, error)

	// Bulk reads for index builds
	LoadCorpus(ctx context.Context) (*model.Corpus, error)
	LoadAggregates(ctx context.Context) ([]model.CompanyAggregate, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// reservedCompanyID would be shadowed by the static /results/segment route.
const reservedCompanyID = "segment"

// validateGeneration checks the companies of a new generation before any
// write happens.
func validateGeneration(companies []model.CompanyProfile) error {
	seen := make(map[string]struct{}, len(companies))
	for _, c := range companies {
		if err := c.Validate(); err != nil {
			return err
		}
		if strings.EqualFold(c.ID, reservedCompanyID) {
			return model.NewValidationError("company_id", "%q is reserved", c.ID)
		}
		if _, dup := seen[c.ID]; dup {
			return model.NewValidationError("company_id", "duplicate company %s", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}

// validateRuns checks that every run belongs to companyID and that the
// simulation ids are unique.
func validateRuns(companyID string, runs []model.SimulationRun) error {
	if companyID == "" {
		return model.NewValidationError("company_id", "must not be empty")
	}
	if len(runs) == 0 {
		return model.NewValidationError("runs", "company %s has no runs", companyID)
	}
	seen := make(map[int]struct{}, len(runs))
	for _, r := range runs {
		if r.CompanyID != companyID {
			return model.NewValidationError("runs", "run %d belongs to %q, not %q", r.SimulationID, r.CompanyID, companyID)
		}
		if _, dup := seen[r.SimulationID]; dup {
			return model.NewValidationError("runs", "duplicate simulation id %d", r.SimulationID)
		}
		seen[r.SimulationID] = struct{}{}
	}
	return nil
}

// attachEvents appends each event to the run with the matching simulation id.
func attachEvents(runs []model.SimulationRun, events map[int][]model.AttackEvent) {
	for i := range runs {
		if ev, ok := events[runs[i].SimulationID]; ok {
			runs[i].Events = ev
		} else {
			runs[i].Events = []model.AttackEvent{}
		}
	}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCompany(row scannable) (model.CompanyProfile, error) {
	var (
		c        model.CompanyProfile
		industry string
	)
	if err := row.Scan(&c.ID, &c.Revenue, &industry); err != nil {
		return c, err
	}
	c.Industry = model.Industry(industry)
	return c, nil
}

func scanAggregate(row scannable) (model.CompanyAggregate, error) {
	var (
		a        model.CompanyAggregate
		industry string
		m        = &a.Metrics
	)
	err := row.Scan(&a.CompanyID, &a.Revenue, &industry, &a.AverageSimulationCost, &a.NumSimulations,
		&m.Total, &m.Mean, &m.Median, &m.StdDev, &m.Min, &m.Max, &m.P95)
	a.Industry = model.Industry(industry)
	return a, err
}
