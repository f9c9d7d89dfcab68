package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhoicas/fel-ingestor/internal/application/invoices"
)

func apikeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apikey",
		Short: "Genera un API key de empresa y el hash a guardar en companies.api_key_hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, hash, err := invoices.GenerateAPIKey()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "api_key: %s\n", key)
			fmt.Fprintf(out, "api_key_hash: %s\n", hash)
			return nil
		},
	}
}
