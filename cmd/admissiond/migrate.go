package main

import (
	"fmt"

	"gate-admission/internal/config"
	"gate-admission/internal/infra/db/migrations"
	"gate-admission/internal/infra/db/sqlite"
	"gate-admission/internal/infra/logging"

	"github.com/spf13/cobra"
)

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the credential store schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{migrations.DirectionUp, migrations.DirectionDown},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Log, cfg.Runtime.Dev)

			switch cfg.Database.Driver {
			case config.DriverPostgres:
				err = migrations.Postgres(cfg.Database.URL, args[0])
			case config.DriverSQLite:
				err = sqlite.Migrate(cfg.Database.Path, args[0])
			default:
				return fmt.Errorf("driver %q has no schema", cfg.Database.Driver)
			}
			if err != nil {
				return err
			}
			logger.Info().Str("driver", cfg.Database.Driver).Str("direction", args[0]).Msg("migrations applied")
			return nil
		},
	}
}
