package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tutorbill",
	Short: "Monthly tuition billing and makeup-credit ledger",
	Long: `tutorbill computes monthly tuition invoices for private tutoring and
keeps the makeup-credit ledger that cancelled lessons feed.

Quick start:
  tutorbill migrate   # Create or upgrade the database schema
  tutorbill serve     # Start the HTTP API

Reports:
  tutorbill invoice --student stu_1 --month 2025-04
  tutorbill credits --student stu_1`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "tutorbill.yaml", "config file path")
}
