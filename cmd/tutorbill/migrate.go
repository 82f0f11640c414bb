package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryoda0314/tutoring-app-sub000/bootstrap"
	"github.com/ryoda0314/tutoring-app-sub000/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithFallback(cfgFile)
		if err != nil {
			return err
		}
		if err := bootstrap.Migrate(cmd.Context(), cfg); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", cfg.Database.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
