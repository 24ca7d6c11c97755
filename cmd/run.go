package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cyberrisk/internal/model"
	"github.com/sells-group/cyberrisk/internal/report"
	"github.com/sells-group/cyberrisk/internal/simulate"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate one ad-hoc company and write its attack events as CSV",
	Long:  "Simulates a company described on the command line without touching the store. Output columns: simulation_id,attack_id,cost.",
	RunE: func(cmd *cobra.Command, args []string) error {
		industry, _ := cmd.Flags().GetString("industry")
		revenue, _ := cmd.Flags().GetFloat64("revenue")
		sims, _ := cmd.Flags().GetInt("simulations")
		out, _ := cmd.Flags().GetString("out")

		var opts []simulate.RunOption
		if cmd.Flags().Changed("simulations") {
			opts = append(opts, simulate.WithSimulations(sims))
		}
		if cmd.Flags().Changed("seed") {
			seed, _ := cmd.Flags().GetUint64("seed")
			opts = append(opts, simulate.WithSeed(seed))
		}

		w, closeFn, err := openOutput(cmd.OutOrStdout(), out)
		if err != nil {
			return err
		}
		defer closeFn()

		return runAdhoc(cmd.Context(), w, industry, revenue, opts...)
	},
}

// runAdhoc simulates a single company and writes its events.
func runAdhoc(ctx context.Context, w io.Writer, industry string, revenue float64, opts ...simulate.RunOption) error {
	ind, err := model.ParseIndustry(industry)
	if err != nil {
		return err
	}
	company := model.CompanyProfile{ID: "adhoc", Industry: ind, Revenue: revenue}
	if err := company.Validate(); err != nil {
		return err
	}

	resolver, err := initResolver()
	if err != nil {
		return err
	}
	params, err := resolver.ResolveCompany(company)
	if err != nil {
		return err
	}
	engine, err := initEngine()
	if err != nil {
		return err
	}

	runs, err := engine.Run(ctx, company, params, opts...)
	if err != nil {
		return err
	}

	m := simulate.Summarize(runs)
	zap.L().Info("ad-hoc simulation complete",
		zap.String("industry", string(ind)),
		zap.Float64("revenue", revenue),
		zap.Int("simulations", len(runs)),
		zap.Float64("average_simulation_cost", m.Mean),
	)
	return report.WriteEventsCSV(w, runs)
}

// openOutput returns stdout when path is empty, otherwise a created file.
func openOutput(stdout io.Writer, path string) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "create output %s", path)
	}
	return f, func() {
		if err := f.Close(); err != nil {
			zap.L().Warn("close output", zap.String("path", path), zap.Error(err))
		}
	}, nil
}

func init() {
	runCmd.Flags().String("industry", "", "industry of the company (required)")
	runCmd.Flags().Float64("revenue", 0, "annual revenue in dollars (required)")
	runCmd.Flags().Int("simulations", 0, "number of simulations, at most 1000000 (default from config)")
	runCmd.Flags().Uint64("seed", 0, "seed for a reproducible run")
	runCmd.Flags().String("out", "", "output file (default stdout)")
	_ = runCmd.MarkFlagRequired("industry")
	_ = runCmd.MarkFlagRequired("revenue")
	rootCmd.AddCommand(runCmd)
}
