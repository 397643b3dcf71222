package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/ledgerkit/paytrack/cmd"
	"github.com/ledgerkit/paytrack/internal/config"
	"github.com/ledgerkit/paytrack/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()
	if err := logger.Setup(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	cmd.Execute(cfg)
}
