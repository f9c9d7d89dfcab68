// Command fel-ingest ejecuta la ingesta de facturas FEL desde la línea de comandos
// (cron, jobs) y agrupa las tareas de operación: migraciones, tokens y API keys.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jhoicas/fel-ingestor/pkg/config"
	"github.com/jhoicas/fel-ingestor/pkg/logger"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fel-ingest",
		Short:         "Ingesta de DTE FEL desde el buzón de notificaciones de la SAT",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(runCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(apikeyCmd())
	return root
}

// loadConfig lee la configuración y construye el logger de la CLI (a stderr).
func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
		Out:   cmd.ErrOrStderr(),
	})
	return cfg, log, nil
}
