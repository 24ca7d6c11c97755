package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cyberrisk/internal/company"
	"github.com/sells-group/cyberrisk/internal/model"
	"github.com/sells-group/cyberrisk/internal/store"
)

var (
	generateCount int
	generateSeed  uint64
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new set of synthetic companies",
	Long:  "Replaces the stored companies, runs and aggregates with a freshly generated set of companies.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("count") {
			cfg.Generate.NumCompanies = generateCount
		}
		if cmd.Flags().Changed("seed") {
			cfg.Generate.Seed = generateSeed
		}
		if err := validateModes("store", "generate"); err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		gen, err := generateCompanies(cmd.Context(), st, cfg.Generate.NumCompanies, cfg.Generate.Seed)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "generation %s: %d companies (seed %d)\n", gen.ID, gen.Companies, gen.Seed)
		return nil
	},
}

// generateCompanies creates n companies and stores them as a new generation.
func generateCompanies(ctx context.Context, st store.Store, n int, seed uint64) (model.Generation, error) {
	companies, err := company.Generate(n, seed)
	if err != nil {
		return model.Generation{}, err
	}

	gen := model.Generation{
		ID:        uuid.NewString(),
		Seed:      seed,
		Companies: len(companies),
		CreatedAt: time.Now().UTC(),
	}
	if err := st.SaveGeneration(ctx, gen, companies); err != nil {
		return model.Generation{}, err
	}

	zap.L().Info("generation saved",
		zap.String("generation_id", gen.ID),
		zap.Int("companies", gen.Companies),
		zap.Uint64("seed", seed),
	)
	return gen, nil
}

// validateModes runs Validate for each mode and returns the first failure.
func validateModes(modes ...string) error {
	for _, m := range modes {
		if err := cfg.Validate(m); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	generateCmd.Flags().IntVar(&generateCount, "count", 0, "number of companies (default from config)")
	generateCmd.Flags().Uint64Var(&generateSeed, "seed", 0, "generation seed (default from config)")
	rootCmd.AddCommand(generateCmd)
}
