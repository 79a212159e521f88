package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/1F47E/shoreline-transects/pkg/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored analysis runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs",
	RunE:  runRunsList,
}

var runsExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Write a stored run as CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsExport,
}

var exportRaw bool

func init() {
	runsCmd.PersistentFlags().StringVar(&dbDriver, "db-driver", "", "Database driver (sqlite or postgres)")
	runsCmd.PersistentFlags().StringVar(&dbDSN, "db-dsn", "", "Database DSN or SQLite file")
	runsExportCmd.Flags().BoolVar(&exportRaw, "raw", false, "Export distances before tidal correction")

	runsCmd.AddCommand(runsListCmd, runsExportCmd)
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	driver, dsn := cfg.Output.DBDriver, cfg.Output.DBDSN
	if cmd.Flags().Changed("db-driver") {
		driver = dbDriver
	}
	if cmd.Flags().Changed("db-dsn") {
		dsn = dbDSN
	}
	if driver == "" {
		return nil, fmt.Errorf("no database configured, set --db-driver and --db-dsn")
	}
	return store.Open(driver, dsn)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.ListRuns(cmd.Context())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "id\tcreated\tcells\tlabel")
	for _, run := range runs {
		cells, err := s.Count(cmd.Context(), run.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", run.ID, run.CreatedAt.Format(time.RFC3339), cells, run.Label)
	}
	return tw.Flush()
}

func runRunsExport(cmd *cobra.Command, args []string) error {
	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	_, raw, corrected, err := s.LoadRun(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if exportRaw || corrected == nil {
		return raw.WriteCSV(cmd.OutOrStdout())
	}
	return corrected.WriteCSV(cmd.OutOrStdout())
}
