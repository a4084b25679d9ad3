package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/parkadvisor/core/decisionlog"
	"github.com/kilianp07/parkadvisor/pkg/export"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the decision log as CSV or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := decisionlog.NewStore(cfg.DecisionLog)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		records, err := store.Query(context.Background(), decisionlog.Query{})
		if err != nil {
			return err
		}
		var w io.Writer = cmd.OutOrStdout()
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			w = f
		}
		switch exportFormat {
		case "csv":
			return export.WriteCSV(w, records)
		case "json":
			return export.WriteJSON(w, records)
		}
		return fmt.Errorf("unsupported format %q", exportFormat)
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "csv or json")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}
