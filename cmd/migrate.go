package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ledgerkit/paytrack/internal/db"
	"github.com/ledgerkit/paytrack/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run SQL migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.WithComponent("migrate")
		dsn := db.NormalizeDSN(cfg.DatabaseDSN)
		if err := db.RunSQLMigrations(dsn); err != nil {
			return err
		}
		log.Info().Msg("migrations completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
