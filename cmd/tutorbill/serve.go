package main

import (
	"github.com/spf13/cobra"

	"github.com/ryoda0314/tutoring-app-sub000/bootstrap"
)

var hotReload bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the tutorbill HTTP API.

The server will:
  - Load configuration from tutorbill.yaml (or --config)
  - Or load configuration from TUTORBILL_* environment variables
  - Connect to the database and apply pending migrations
  - Serve invoices, payments, lessons and makeup credits under /api

Environment variables (for Docker deployments):
  TUTORBILL_DATABASE_DRIVER   - sqlite or postgres (default: sqlite)
  TUTORBILL_DATABASE_DSN      - Database DSN (default: tutorbill.db)
  TUTORBILL_SERVER_PORT       - Server port (default: 8080)
  TUTORBILL_CONFIRMATION_DAY  - Day the next month's invoice is fixed (default: 20)
  TUTORBILL_LOCK_MODE         - memory or redis (default: memory)
  TUTORBILL_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  tutorbill serve
  tutorbill serve --config /etc/tutorbill/config.yaml
  tutorbill serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "reload billing constants when the config file changes or on SIGHUP")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := bootstrap.New(cmd.Context(), bootstrap.Options{
		ConfigPath: cfgFile,
		HotReload:  hotReload,
	})
	if err != nil {
		return err
	}
	return a.Run()
}
