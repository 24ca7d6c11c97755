// Package simulate draws Monte Carlo loss scenarios for a company: a Poisson
// number of attacks per simulation, each with a Normal cost.
package simulate

import (
	"context"
	"math/rand/v2"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sells-group/cyberrisk/internal/model"
)

// DefaultSimulations is used when neither the call nor the engine config
// sets a simulation count.
const DefaultSimulations = 10_000

// MaxSimulations caps the simulations of one Run. Every run is held in
// memory until the caller persists it.
const MaxSimulations = 1_000_000

// cancelCheckEvery is how many simulations run between context checks.
const cancelCheckEvery = 1024

// Config holds engine-wide settings. Engines are immutable after New.
type Config struct {
	DefaultSimulations int
	NegativeCosts      model.NegativeCostPolicy
}

// Engine runs simulations. It holds no mutable state, so one Engine can
// serve any number of concurrent Run calls.
type Engine struct {
	cfg Config
}

// New validates cfg and returns an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.DefaultSimulations == 0 {
		cfg.DefaultSimulations = DefaultSimulations
	}
	if cfg.DefaultSimulations < 0 || cfg.DefaultSimulations > MaxSimulations {
		return nil, model.NewValidationError("default_simulations", "must be between 1 and %d, got %d", MaxSimulations, cfg.DefaultSimulations)
	}
	if cfg.NegativeCosts == "" {
		cfg.NegativeCosts = model.NegativeCostAllow
	}
	if !cfg.NegativeCosts.Valid() {
		return nil, model.NewValidationError("negative_cost_policy", "unknown policy %q", cfg.NegativeCosts)
	}
	return &Engine{cfg: cfg}, nil
}

type runOptions struct {
	simulations *int
	seeded      bool
	seed        uint64
	stream      uint64
}

// RunOption customizes a single Run call.
type RunOption func(*runOptions)

// WithSimulations sets the number of simulations. Non-positive values make
// Run fail with a ValidationError.
func WithSimulations(n int) RunOption {
	return func(o *runOptions) { o.simulations = &n }
}

// WithSeed makes the run reproducible.
func WithSeed(seed uint64) RunOption {
	return WithStream(seed, 0)
}

// WithStream selects an independent random stream under a master seed, so
// a batch can derive one stream per company from a single seed.
func WithStream(seed, stream uint64) RunOption {
	return func(o *runOptions) {
		o.seeded = true
		o.seed = seed
		o.stream = stream
	}
}

// Run simulates losses for company. Each returned run carries its events
// and a TotalCost equal to their sum; a run with no attacks totals 0.
// Given equal seed, stream, params and count the output is identical.
func (e *Engine) Run(ctx context.Context, company model.CompanyProfile, params model.DistributionParams, opts ...RunOption) ([]model.SimulationRun, error) {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}

	n := e.cfg.DefaultSimulations
	if o.simulations != nil {
		n = *o.simulations
	}
	if n <= 0 {
		return nil, model.NewValidationError("number_of_simulations", "must be a positive integer, got %d", n)
	}
	if n > MaxSimulations {
		return nil, model.NewValidationError("number_of_simulations", "must be at most %d, got %d", MaxSimulations, n)
	}
	if company.ID == "" {
		return nil, model.NewValidationError("company_id", "must not be empty")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	if !o.seeded {
		o.seed, o.stream = rand.Uint64(), rand.Uint64()
	}
	src := rand.NewPCG(o.seed, o.stream)
	freq := distuv.Poisson{Lambda: params.Lambda, Src: src}
	sev := distuv.Normal{Mu: params.CostMean, Sigma: params.CostStd, Src: src}
	clamp := e.cfg.NegativeCosts == model.NegativeCostClamp

	runs := make([]model.SimulationRun, n)
	for i := range runs {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, eris.Wrapf(err, "simulate: company %s cancelled after %d simulations", company.ID, i)
			}
		}

		simID := i + 1
		attacks := int(freq.Rand())
		run := model.SimulationRun{CompanyID: company.ID, SimulationID: simID}
		if attacks > 0 {
			run.Events = make([]model.AttackEvent, attacks)
		}
		for a := range attacks {
			cost := sev.Rand()
			if clamp && cost < 0 {
				cost = 0
			}
			run.Events[a] = model.AttackEvent{SimulationID: simID, AttackID: a + 1, Cost: cost}
			run.TotalCost += cost
		}
		runs[i] = run
	}
	return runs, nil
}
