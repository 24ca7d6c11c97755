package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/cyberrisk/internal/report"
	"github.com/sells-group/cyberrisk/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export <company_id>",
	Short: "Write the persisted attack events of one company as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		w, closeFn, err := openOutput(cmd.OutOrStdout(), out)
		if err != nil {
			return err
		}
		defer closeFn()

		return exportEvents(cmd.Context(), st, args[0], w)
	},
}

func exportEvents(ctx context.Context, st store.Store, companyID string, w io.Writer) error {
	runs, err := st.GetRuns(ctx, companyID, true)
	if err != nil {
		return err
	}
	return report.WriteEventsCSV(w, runs)
}

func init() {
	exportCmd.Flags().String("out", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}
