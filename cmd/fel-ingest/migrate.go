package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhoicas/fel-ingestor/internal/infrastructure/postgres"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones pendientes del esquema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			version, err := postgres.Migrate(cfg.DB.ConnectionString())
			if err != nil {
				return err
			}
			log.Info().Uint("version", version).Msg("esquema actualizado")
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}
}
