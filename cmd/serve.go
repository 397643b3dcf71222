package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerkit/paytrack/internal/db"
	"github.com/ledgerkit/paytrack/internal/fx"
	"github.com/ledgerkit/paytrack/internal/logger"
	"github.com/ledgerkit/paytrack/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	dbConn, err := db.ConnectAndMigrate(cfg)
	if err != nil {
		return err
	}

	// Conversion rates come from an external collaborator in production;
	// the static table keeps same-currency workspaces fully functional
	// and cross-currency dashboards degrade to unconverted amounts.
	rates := fx.NewStaticRates(nil)

	handler := server.New(dbConn, cfg, rates)
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: handler}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("server stopped")
	return nil
}
