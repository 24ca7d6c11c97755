package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cyberrisk/internal/batch"
	"github.com/sells-group/cyberrisk/internal/metrics"
	"github.com/sells-group/cyberrisk/internal/model"
	"github.com/sells-group/cyberrisk/internal/resilience"
	"github.com/sells-group/cyberrisk/internal/store"
)

var (
	simulateCount       int
	simulateSeed        uint64
	simulateConcurrency int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Simulate every stored company and persist the runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("simulations") {
			cfg.Simulation.DefaultSimulations = simulateCount
		}
		if cmd.Flags().Changed("seed") {
			cfg.Batch.Seed = simulateSeed
		}
		if cmd.Flags().Changed("concurrency") {
			cfg.Batch.MaxConcurrentCompanies = simulateConcurrency
		}
		if err := validateModes("store", "simulate"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		report, gen, err := simulateAll(ctx, st, metrics.New())
		if report != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "simulated %d companies (%d failed, %d simulations) in %s\n",
				report.Succeeded, report.Failed, report.Simulations, report.Duration.Round(time.Millisecond))
		}
		if gen != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "generation %s: %d companies, %d simulations each (batch seed %d)\n",
				gen.ID, gen.Companies, gen.Simulations, gen.BatchSeed)
		}
		return err
	},
}

// simulateAll runs the batch over every stored company and records the
// simulation count and batch seed on the generation. It returns the
// generation as stored afterwards.
func simulateAll(ctx context.Context, st store.Store, m *metrics.Metrics) (*batch.Report, *model.Generation, error) {
	gen, err := st.LatestGeneration(ctx)
	if model.IsNotFound(err) {
		return nil, nil, eris.New("simulate: no companies stored, run generate first")
	}
	if err != nil {
		return nil, nil, err
	}
	companies, err := st.ListCompanies(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(companies) == 0 {
		return nil, nil, eris.New("simulate: no companies stored, run generate first")
	}

	resolver, err := initResolver()
	if err != nil {
		return nil, nil, err
	}
	engine, err := initEngine()
	if err != nil {
		return nil, nil, err
	}

	runner := batch.NewRunner(resolver, engine, st, m, batch.Config{
		Simulations:    cfg.Simulation.DefaultSimulations,
		Seed:           cfg.Batch.Seed,
		MaxConcurrent:  cfg.Batch.MaxConcurrentCompanies,
		CompanyTimeout: time.Duration(cfg.Batch.CompanyTimeoutSecs) * time.Second,
		Retry: resilience.FromRetryConfig(
			cfg.Batch.Retry.MaxAttempts,
			cfg.Batch.Retry.InitialBackoffMs,
			cfg.Batch.Retry.MaxBackoffMs,
		),
	})

	report, err := runner.Run(ctx, companies)
	if report != nil && report.Failed > 0 {
		zap.L().Warn("some companies failed",
			zap.Int("failed", report.Failed),
			zap.Strings("company_ids", report.FailedIDs),
		)
	}
	if err != nil || report.Succeeded == 0 {
		return report, gen, err
	}

	if err := st.MarkSimulated(ctx, gen.ID, cfg.Simulation.DefaultSimulations, cfg.Batch.Seed); err != nil {
		return report, gen, err
	}
	gen, err = st.LatestGeneration(ctx)
	if err != nil {
		return report, nil, err
	}
	return report, gen, nil
}

func init() {
	simulateCmd.Flags().IntVar(&simulateCount, "simulations", 0, "simulations per company (default from config)")
	simulateCmd.Flags().Uint64Var(&simulateSeed, "seed", 0, "master seed (default from config)")
	simulateCmd.Flags().IntVar(&simulateConcurrency, "concurrency", 0, "companies simulated in parallel (default from config)")
	rootCmd.AddCommand(simulateCmd)
}
