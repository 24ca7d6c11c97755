package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cyberrisk/internal/config"
)

var (
	cfg     *config.Config
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "cyberrisk",
	Short: "Cyber-attack loss simulation and results service",
	Long:  "Generates synthetic companies, simulates yearly cyber-attack losses per company with Monte Carlo draws, persists the results and serves per-company and per-segment averages over HTTP.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadFile(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
