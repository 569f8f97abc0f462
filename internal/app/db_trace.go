package app

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/riskibarqy/match-feature-store/internal/config"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	_ "modernc.org/sqlite"
)

const maxTracedQueryLength = 512

var queryWhitespaceRegex = regexp.MustCompile(`\s+`)

func formatDBQueryForTrace(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}

	normalized := queryWhitespaceRegex.ReplaceAllString(query, " ")
	if len(normalized) <= maxTracedQueryLength {
		return normalized
	}

	return normalized[:maxTracedQueryLength] + "..."
}

// driverName maps DB_DRIVER onto the registered database/sql driver and the
// OpenTelemetry db.system value.
func driverName(driver string) (sqlDriver, system string, err error) {
	switch driver {
	case config.DBDriverSQLite:
		return "sqlite", "sqlite", nil
	case config.DBDriverPostgres:
		return "postgres", "postgresql", nil
	default:
		return "", "", fmt.Errorf("no sql driver for %q", driver)
	}
}

func dataSourceName(cfg config.Config) (string, error) {
	if cfg.DBDriver != config.DBDriverSQLite {
		return cfg.DBURL, nil
	}
	dsn := normalizeSQLiteDSN(cfg.DBURL)
	if err := ensureSQLiteDir(dsn); err != nil {
		return "", fmt.Errorf("create sqlite directory: %w", err)
	}
	return dsn, nil
}

// openDB opens an instrumented connection pool for the configured driver.
func openDB(cfg config.Config) (*sqlx.DB, error) {
	sqlDriver, system, err := driverName(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	dsn, err := dataSourceName(cfg)
	if err != nil {
		return nil, err
	}

	opts := []otelsql.Option{
		otelsql.WithDBSystem(system),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	}
	if name := dbNameFromURL(cfg.DBDriver, cfg.DBURL); name != "" {
		opts = append(opts, otelsql.WithDBName(name))
	}

	db, err := otelsqlx.Open(sqlDriver, dsn, opts...)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}

	switch cfg.DBDriver {
	case config.DBDriverSQLite:
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
	default:
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.DBDriver, err)
	}
	otelsql.ReportDBStatsMetrics(db.DB, otelsql.WithDBSystem(system))

	return db, nil
}
