package db

import (
	"fmt"
	"os"
	"strings"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ledgerkit/paytrack/internal/config"
	"github.com/ledgerkit/paytrack/internal/logger"
	"github.com/ledgerkit/paytrack/internal/models"
)

// Models returns every entity registered for migration, in dependency
// order.
func Models() []any {
	return []any{
		&models.Workspace{},
		&models.Invoice{},
		&models.Payment{},
		&models.Match{},
		&models.WebhookEvent{},
		&models.InvoiceExtraction{},
	}
}

// ConnectAndMigrate opens the configured database and brings the schema
// up to date. TranslateError is enabled so duplicate-key violations
// surface as gorm.ErrDuplicatedKey on both drivers; the repository
// layer relies on that.
func ConnectAndMigrate(cfg config.Config) (*gorm.DB, error) {
	log := logger.WithComponent("db")
	dsn := NormalizeDSN(cfg.DatabaseDSN)
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_DSN is empty, check the environment configuration")
	}

	gormCfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormLogLevel()),
		TranslateError: true,
	}

	var db *gorm.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = open(cfg.DBDriver, dsn, gormCfg)
		if err == nil {
			break
		}
		log.Warn().Err(err).Msg("retrying DB connection")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}

	if pingErr := db.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}
	log.Info().Str("dsn", MaskDSN(dsn)).Str("driver", cfg.DBDriver).Msg("database connected")

	// MIGRATIONS=1 runs sql migrations via golang-migrate (postgres
	// only); otherwise AutoMigrate keeps dev and test schemas current.
	if v := strings.ToLower(os.Getenv("MIGRATIONS")); v == "1" || v == "true" || v == "yes" {
		if err := RunSQLMigrations(dsn); err != nil {
			return nil, fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		for _, m := range Models() {
			if migErr := db.AutoMigrate(m); migErr != nil {
				return nil, fmt.Errorf("automigrate %T: %w", m, migErr)
			}
		}
	}

	if v := strings.ToLower(os.Getenv("DB_SEED")); v == "1" || v == "true" || v == "yes" {
		seed(db)
	}
	return db, nil
}

func open(driver, dsn string, gormCfg *gorm.Config) (*gorm.DB, error) {
	switch driver {
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), gormCfg)
	case "postgres", "":
		return gorm.Open(postgres.Open(dsn), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}

func gormLogLevel() gormlogger.LogLevel {
	if os.Getenv("DB_DEBUG") == "1" {
		return gormlogger.Info
	}
	return gormlogger.Silent
}

// seed creates a development workspace when the table is empty.
func seed(db *gorm.DB) {
	var count int64
	db.Model(&models.Workspace{}).Count(&count)
	if count > 0 {
		return
	}
	db.Create(&models.Workspace{
		Name:         "Dev Workspace",
		BaseCurrency: "USD",
	})
}

// RunSQLMigrations executes migrations in ./migrations using the
// golang-migrate file source.
func RunSQLMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return err
	}
	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
