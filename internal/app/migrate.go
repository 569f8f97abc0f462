package app

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/riskibarqy/match-feature-store/db/migrations"
	"github.com/riskibarqy/match-feature-store/internal/config"
	"github.com/riskibarqy/match-feature-store/internal/platform/logging"
)

// NewMigrator builds a migrator for the configured driver. Migrations come
// from MIGRATIONS_DIR/<driver> when set, otherwise from the embedded files.
// The returned migrator owns its own connection; Close releases it.
func NewMigrator(cfg config.Config) (*migrate.Migrate, string, error) {
	sqlDriver, _, err := driverName(cfg.DBDriver)
	if err != nil {
		return nil, "", err
	}
	dsn, err := dataSourceName(cfg)
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open %s for migrations: %w", cfg.DBDriver, err)
	}

	var target database.Driver
	switch cfg.DBDriver {
	case config.DBDriverSQLite:
		target, err = sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	default:
		target, err = postgres.WithInstance(db, &postgres.Config{})
	}
	if err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("create %s migration driver: %w", cfg.DBDriver, err)
	}

	if dir := strings.TrimSpace(cfg.MigrationsDir); dir != "" {
		abs, err := filepath.Abs(filepath.Join(dir, cfg.DBDriver))
		if err != nil {
			_ = target.Close()
			return nil, "", fmt.Errorf("resolve migrations dir: %w", err)
		}
		sourceURL := "file://" + filepath.ToSlash(abs)
		m, err := migrate.NewWithDatabaseInstance(sourceURL, cfg.DBDriver, target)
		if err != nil {
			_ = target.Close()
			return nil, "", fmt.Errorf("create migrator: %w", err)
		}
		return m, sourceURL, nil
	}

	files, err := migrations.FS(cfg.DBDriver)
	if err != nil {
		_ = target.Close()
		return nil, "", err
	}
	source, err := iofs.New(files, ".")
	if err != nil {
		_ = target.Close()
		return nil, "", fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, cfg.DBDriver, target)
	if err != nil {
		_ = target.Close()
		return nil, "", fmt.Errorf("create migrator: %w", err)
	}
	return m, "embedded:" + cfg.DBDriver, nil
}

// migrateUp applies every pending migration.
func migrateUp(cfg config.Config, logger *logging.Logger) error {
	m, source, err := NewMigrator(cfg)
	if err != nil {
		return err
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			logger.Warn("close migration source", "error", srcErr)
		}
		if dbErr != nil {
			logger.Warn("close migration db", "error", dbErr)
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("database schema up to date", "source", source)
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("migrations applied", "source", source, "version", version)
	return nil
}
