package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gitlab.com/dirk.krummacker/identity-service/internal/config"
	"gitlab.com/dirk.krummacker/identity-service/internal/logging"
	"gitlab.com/dirk.krummacker/identity-service/internal/store/sqlstore"
)

// Usage example on the command line:
// > DBHOST=localhost DBUSER=dirk DBPWD=bullo92 go run main.go
// > DBHOST=localhost DBUSER=dirk DBPWD=bullo92 go run main.go --file=../../scripts/database.sql
func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "migration",
		Short: "Create the contacts table and its indexes",
		Long: `Applies the schema that ships with the service for the configured database driver
(DBDRIVER). With --file, the statements of that SQL file are executed instead, one
statement per ';'.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Database.Driver == "memory" {
				return fmt.Errorf("nothing to migrate for driver %q", cfg.Database.Driver)
			}
			logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
			ctx := cmd.Context()

			db, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DataSourceName())
			if err != nil {
				return err
			}
			defer db.Close()

			if file == "" {
				if err := sqlstore.Migrate(ctx, db); err != nil {
					return err
				}
				logger.Info().Str("driver", cfg.Database.Driver).Msg("embedded schema applied")
				return nil
			}

			script, err := os.Open(file) // nosemgrep
			if err != nil {
				return err
			}
			defer script.Close()
			if err := sqlstore.ExecScript(ctx, db, script); err != nil {
				return err
			}
			logger.Info().Str("file", file).Msg("sql file executed")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "the sql file to execute instead of the embedded schema")
	return cmd
}
