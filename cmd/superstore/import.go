package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"superstore/internal/cli"
	"superstore/internal/config"
	applog "superstore/internal/log"
	"superstore/internal/storage"
)

func (a *app) importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import the CSV dataset into the SQLite table",
		Long: `Import parses the CSV dataset and replaces the transactions table of the SQLite
database with its rows. The replacement is atomic: a file that fails to parse
leaves the previous import in place.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := a.logger.WithComponent(applog.ComponentStorage)

			cfg := *a.cfg
			cfg.DataBackend = config.BackendCSV
			ds, err := cli.LoadDataset(ctx, &cfg, a.logger)
			if err != nil {
				return fmt.Errorf("load dataset: %w", err)
			}

			repo, err := storage.NewSQLiteRepository(a.cfg.SQLiteDBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer repo.Close()

			src := a.cfg.DatasetPath
			if err := repo.ReplaceTransactions(ctx, src, ds.Records()); err != nil {
				return fmt.Errorf("import into %s: %w", a.cfg.SQLiteDBPath, err)
			}
			logger.Info("Dataset imported",
				applog.FieldOperation, applog.OpImport,
				"source", src,
				"db_path", a.cfg.SQLiteDBPath,
				applog.FieldRows, ds.Len())
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows from %s into %s\n", ds.Len(), src, a.cfg.SQLiteDBPath)
			return nil
		},
	}
	cmd.Flags().String("csv", "", "CSV file to import (overrides DATASET_PATH)")
	cmd.Flags().String("db", "", "SQLite database path (overrides SQLITE_DB_PATH)")
	return cmd
}
