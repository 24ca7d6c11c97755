// Package batch simulates a generation of companies concurrently and
// persists each company's runs.
package batch

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/cyberrisk/internal/distribution"
	"github.com/sells-group/cyberrisk/internal/metrics"
	"github.com/sells-group/cyberrisk/internal/model"
	"github.com/sells-group/cyberrisk/internal/resilience"
	"github.com/sells-group/cyberrisk/internal/simulate"
)

// Operation names used in failure logs.
const (
	OpResolve  = "resolve"
	OpSimulate = "simulate"
	OpPersist  = "persist"
)

// RunWriter persists one company's run set atomically.
type RunWriter interface {
	PersistRuns(ctx context.Context, companyID string, runs []model.SimulationRun) error
}

// Config holds batch settings.
type Config struct {
	// Simulations per company. Zero uses the engine default.
	Simulations int
	// Seed is the master seed; company i draws from stream i.
	Seed uint64
	// MaxConcurrent bounds the companies in flight. Default: 4.
	MaxConcurrent int
	// CompanyTimeout bounds simulate plus persist for one company. Zero
	// disables it.
	CompanyTimeout time.Duration
	Retry          resilience.RetryConfig
}

// Runner drives one batch. It is safe to reuse across batches.
type Runner struct {
	resolver *distribution.Resolver
	engine   *simulate.Engine
	store    RunWriter
	metrics  *metrics.Metrics
	cfg      Config
}

// Report summarizes a finished batch.
type Report struct {
	Succeeded   int
	Failed      int
	FailedIDs   []string
	Simulations int64
	Duration    time.Duration
}

// NewRunner creates a Runner. m may be nil.
func NewRunner(resolver *distribution.Resolver, engine *simulate.Engine, store RunWriter, m *metrics.Metrics, cfg Config) *Runner {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Runner{resolver: resolver, engine: engine, store: store, metrics: m, cfg: cfg}
}

// companyError records which step of a company failed.
type companyError struct {
	op  string
	err error
}

func (e *companyError) Error() string { return e.op + ": " + e.err.Error() }
func (e *companyError) Unwrap() error { return e.err }

// Run processes every company. A failing or timed-out company is logged,
// counted and skipped; it never aborts the batch. Run only returns an
// error when ctx itself is cancelled, together with the partial report.
func (r *Runner) Run(ctx context.Context, companies []model.CompanyProfile) (*Report, error) {
	start := time.Now()
	if len(companies) == 0 {
		zap.L().Info("no companies to simulate")
		return &Report{}, nil
	}

	zap.L().Info("processing batch",
		zap.Int("companies", len(companies)),
		zap.Int("concurrency", r.cfg.MaxConcurrent),
		zap.Uint64("seed", r.cfg.Seed),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrent)

	var (
		succeeded, failed, sims atomic.Int64
		mu                      sync.Mutex
		failedIDs               []string
	)

	for i, c := range companies {
		g.Go(func() error {
			log := zap.L().With(zap.String("company_id", c.ID))
			companyStart := time.Now()

			n, err := r.processCompany(gctx, c, uint64(i)) //nolint:gosec
			if r.metrics != nil {
				r.metrics.CompanyDuration.Observe(time.Since(companyStart).Seconds())
			}
			if err != nil {
				failed.Add(1)
				mu.Lock()
				failedIDs = append(failedIDs, c.ID)
				mu.Unlock()
				r.count("failed")

				op := "unknown"
				var ce *companyError
				if errors.As(err, &ce) {
					op = ce.op
				}
				log.Error("company failed",
					zap.String("operation", op),
					zap.String("kind", model.ErrorKind(err)),
					zap.Error(err),
				)
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			sims.Add(int64(n))
			r.count("succeeded")
			log.Debug("company complete", zap.Int("simulations", n))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch: processing")
	}

	slices.SortFunc(failedIDs, compareIDs)
	report := &Report{
		Succeeded:   int(succeeded.Load()),
		Failed:      int(failed.Load()),
		FailedIDs:   failedIDs,
		Simulations: sims.Load(),
		Duration:    time.Since(start),
	}

	zap.L().Info("batch complete",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int64("simulations", report.Simulations),
		zap.Duration("duration", report.Duration),
	)

	if err := ctx.Err(); err != nil {
		return report, eris.Wrap(err, "batch: interrupted")
	}
	return report, nil
}

func (r *Runner) processCompany(ctx context.Context, c model.CompanyProfile, stream uint64) (int, error) {
	if r.cfg.CompanyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.CompanyTimeout)
		defer cancel()
	}

	params, err := r.resolver.ResolveCompany(c)
	if err != nil {
		return 0, &companyError{op: OpResolve, err: err}
	}

	opts := []simulate.RunOption{simulate.WithStream(r.cfg.Seed, stream)}
	if r.cfg.Simulations > 0 {
		opts = append(opts, simulate.WithSimulations(r.cfg.Simulations))
	}
	runs, err := r.engine.Run(ctx, c, params, opts...)
	if err != nil {
		return 0, &companyError{op: OpSimulate, err: err}
	}
	if r.metrics != nil {
		r.metrics.SimulationsRun.Add(float64(len(runs)))
	}

	retry := r.cfg.Retry
	logRetry := resilience.RetryLogger(c.ID, OpPersist)
	retry.OnRetry = func(attempt int, err error) {
		logRetry(attempt, err)
		if r.metrics != nil {
			r.metrics.PersistRetries.Inc()
		}
	}
	err = resilience.Do(ctx, retry, func(ctx context.Context) error {
		return r.store.PersistRuns(ctx, c.ID, runs)
	})
	if err != nil {
		return 0, &companyError{op: OpPersist, err: err}
	}
	return len(runs), nil
}

func (r *Runner) count(result string) {
	if r.metrics != nil {
		r.metrics.CompaniesProcessed.WithLabelValues(result).Inc()
	}
}

// compareIDs orders "C2" before "C10".
func compareIDs(a, b string) int {
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
