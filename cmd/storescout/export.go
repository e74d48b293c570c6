package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"storescout/internal/output"
	"storescout/internal/storage"
)

func newExportCmd() *cobra.Command {
	var dbPath, outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a run catalog (.db) to CSV",
		Example: `  storescout export --db out/example.com/20260826_101500/stores.db
  storescout export --db stores.db --output results.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return fmt.Errorf("--db is required")
			}
			if outputPath == "" {
				dir := filepath.Dir(dbPath)
				base := strings.TrimSuffix(filepath.Base(dbPath), ".db")
				outputPath = filepath.Join(dir, base+".csv")
			}

			db, err := storage.New(dbPath)
			if err != nil {
				return fmt.Errorf("opening db: %w", err)
			}
			defer db.Close()

			stores, err := db.LoadAll()
			if err != nil {
				return fmt.Errorf("loading db: %w", err)
			}
			if len(stores) == 0 {
				return fmt.Errorf("no stores found in database")
			}

			if err := output.WriteCSV(outputPath, stores); err != nil {
				return fmt.Errorf("writing csv: %w", err)
			}

			fmt.Fprintf(os.Stderr, "Exported %d stores to %s\n", len(stores), outputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "Path to run catalog .db file (required)")
	cmd.Flags().StringVar(&outputPath, "output", "", "Output CSV path (default: next to the db)")
	return cmd
}
