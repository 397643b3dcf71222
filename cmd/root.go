package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ledgerkit/paytrack/internal/config"
	"github.com/ledgerkit/paytrack/internal/logger"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "paytrack",
	Short: "Invoice and payment reconciliation service",
	Long: `paytrack tracks invoices and payments for small businesses and
keeps invoice statuses consistent with matched payments. It ingests
payment processor webhooks idempotently and suggests invoice matches
for unmatched payments.`,
}

// Execute runs the CLI with the loaded configuration.
func Execute(c config.Config) {
	cfg = c
	if err := rootCmd.Execute(); err != nil {
		l := logger.WithComponent("cmd")
		l.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
