package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jhoicas/fel-ingestor/internal/app"
)

func runCmd() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ejecuta una corrida de ingesta e imprime el resumen en JSON",
		Long: `Lista los correos no leídos de la carpeta configurada, descarga y parsea cada DTE,
lo guarda bajo la empresa del receptor y marca como leídos solo los persistidos.

Con --check solo valida la credencial del buzón listando sus carpetas.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if check {
				folders, err := app.MailboxClient(cfg, log).ListFolders(ctx)
				if err != nil {
					return fmt.Errorf("verificar buzón: %w", err)
				}
				return writeJSON(cmd, folders)
			}

			container, err := app.Build(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer container.Close()

			summary, runErr := container.Pipeline.Run(ctx)
			if summary != nil {
				if err := writeJSON(cmd, summary); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "solo verificar la credencial del buzón")
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
