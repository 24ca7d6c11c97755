package main

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/cyberrisk/internal/aggregate"
	"github.com/sells-group/cyberrisk/internal/report"
	"github.com/sells-group/cyberrisk/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write average simulated cost per industry and revenue band",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")
		if format != "csv" && format != "xlsx" {
			return eris.Errorf("unsupported report format: %s", format)
		}

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

		return writeReport(cmd.Context(), st, format, w)
	},
}

func writeReport(ctx context.Context, st store.Store, format string, w io.Writer) error {
	idx, err := aggregate.FromStoreAggregates(st)(ctx)
	if err != nil {
		return err
	}
	rows := report.SegmentGrid(idx)
	if format == "xlsx" {
		return report.WriteGridXLSX(w, rows)
	}
	return report.WriteGridCSV(w, rows)
}

func init() {
	reportCmd.Flags().String("format", "csv", "output format: csv or xlsx")
	reportCmd.Flags().String("out", "", "output file (default stdout)")
	rootCmd.AddCommand(reportCmd)
}
