package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhoicas/fel-ingestor/pkg/jwt"
)

func tokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		secret  string
		minutes int
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Emite un JWT para disparar la ingesta por HTTP",
		Example: `  fel-ingest token --subject cron-nocturno
  fel-ingest token --subject ops --role admin --minutes 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != jwt.RoleScheduler && role != jwt.RoleAdmin {
				return fmt.Errorf("rol %q no permitido (use %s o %s)", role, jwt.RoleScheduler, jwt.RoleAdmin)
			}
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if secret == "" {
				secret = cfg.JWT.Secret
			}
			if secret == "" {
				return errors.New("falta JWT_SECRET")
			}
			if minutes <= 0 {
				minutes = cfg.JWT.Expiration
			}
			tok, err := jwt.Generate(secret, subject, role, cfg.JWT.Issuer, minutes)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "scheduler", "sujeto del token (quién dispara)")
	cmd.Flags().StringVar(&role, "role", jwt.RoleScheduler, "rol: scheduler o admin")
	cmd.Flags().StringVar(&secret, "secret", "", "secreto de firma (por defecto JWT_SECRET)")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "vigencia en minutos (por defecto JWT_EXPIRATION_MINUTES)")
	return cmd
}
