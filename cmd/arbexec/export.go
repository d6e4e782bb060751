package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/graph-arbitrage/internal/export"
	"github.com/rovshanmuradov/graph-arbitrage/internal/storage"
)

var (
	exportFormat string
	exportOwner  string
	exportStatus string
	exportDir    string
	exportSince  time.Duration
	exportLimit  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export persisted executions to CSV or JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.close()
		defer rt.log.TrackPerformance("export")()
		log := rt.log.WithOperation("export")

		if rt.cfg.Storage.DSN == "" {
			return errors.New("export needs storage.dsn to be configured")
		}
		audits, err := openAudit(rt.cfg, auditOptions{store: true}, log)
		if err != nil {
			return err
		}
		defer audits.shutdown(log)

		execs, err := audits.store.ListExecutions(cmd.Context(), storage.ListFilter{
			Owner:  exportOwner,
			Status: exportStatus,
			Limit:  exportLimit,
		})
		if err != nil {
			return err
		}

		opts := export.Options{
			Format:    export.Format(exportFormat),
			Owner:     exportOwner,
			Status:    exportStatus,
			OutputDir: exportDir,
		}
		if exportSince > 0 {
			opts.StartTime = time.Now().Add(-exportSince)
		}
		path, err := export.NewExporter(log).Export(execs, opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "csv or json")
	exportCmd.Flags().StringVar(&exportOwner, "owner", "", "only executions of this owner")
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "succeeded, failed or cancelled")
	exportCmd.Flags().StringVarP(&exportDir, "out", "o", "exports", "output directory")
	exportCmd.Flags().DurationVar(&exportSince, "since", 0, "only executions newer than this")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 10000, "maximum executions read from storage")
	rootCmd.AddCommand(exportCmd)
}
