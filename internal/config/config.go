package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/riskibarqy/match-feature-store/internal/platform/logging"
)

const (
	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
	DBDriverMemory   = "memory"

	SnapshotStoreFile = "file"
	SnapshotStoreDB   = "db"

	TrainerModeLocal  = "local"
	TrainerModeRemote = "remote"
	TrainerModeNone   = "none"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv             string
	ServiceName        string
	ServiceVersion     string
	HTTPAddr           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	LogLevel           logging.Level
	CORSAllowedOrigins []string
	SwaggerEnabled     bool

	DBDriver         string
	DBURL            string
	DBMigrateOnStart bool
	MigrationsDir    string
	ArtifactsDir     string
	SnapshotStore    string
	CacheEnabled     bool
	CacheTTL         time.Duration

	FeatureWindow          int
	LivePollInterval       time.Duration
	MaxLookbackDays        int
	FetchTimeout           time.Duration
	RetrainThreshold       int
	RetrainHeldOutFraction float64
	CSVImportWorkers       int

	FootballDataEnabled             bool
	FootballDataBaseURL             string
	FootballDataToken               string
	FootballDataCompetitions        []string
	FootballDataTimeout             time.Duration
	FootballDataMaxRetries          int
	FootballDataRatePerMinute       int
	FootballDataCircuitEnabled      bool
	FootballDataCircuitFailureCount int
	FootballDataCircuitOpenTimeout  time.Duration
	FootballDataCircuitHalfOpenMax  int

	TrainerMode    string
	TrainerURL     string
	TrainerToken   string
	TrainerTimeout time.Duration

	InternalJobToken   string
	NotifyPollInterval time.Duration

	UptraceEnabled             bool
	UptraceDSN                 string
	UptraceLogsEnabled         bool
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
	PprofEnabled               bool
	PprofAddr                  string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	swaggerDefault := "true"
	if appEnv == EnvProd {
		swaggerDefault = "false"
	}
	swaggerEnabled, err := strconv.ParseBool(getEnv("SWAGGER_ENABLED", swaggerDefault))
	if err != nil {
		return Config{}, fmt.Errorf("parse SWAGGER_ENABLED: %w", err)
	}

	cfg := Config{
		AppEnv:             appEnv,
		ServiceName:        getEnv("APP_SERVICE_NAME", "match-feature-store"),
		ServiceVersion:     getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:           getEnv("APP_HTTP_ADDR", ":8080"),
		LogLevel:           parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		SwaggerEnabled:     swaggerEnabled,
		MigrationsDir:      strings.TrimSpace(getEnv("MIGRATIONS_DIR", "")),
		ArtifactsDir:       getEnv("ARTIFACTS_DIR", "artifacts"),
		InternalJobToken:   strings.TrimSpace(getEnv("INTERNAL_JOB_TOKEN", "")),
	}

	if cfg.ReadTimeout, err = parsePositiveDuration("APP_READ_TIMEOUT", "10s"); err != nil {
		return Config{}, err
	}
	// Streaming endpoints hold the connection open, so the default write
	// timeout is disabled.
	cfg.WriteTimeout, err = time.ParseDuration(getEnv("APP_WRITE_TIMEOUT", "0s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_WRITE_TIMEOUT: %w", err)
	}
	if cfg.WriteTimeout < 0 {
		return Config{}, fmt.Errorf("APP_WRITE_TIMEOUT must be >= 0")
	}

	if err := loadStorage(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadUpdater(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadFootballData(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadTrainer(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadObservability(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadStorage(cfg *Config) error {
	driver, err := parseDBDriver(getEnv("DB_DRIVER", DBDriverSQLite))
	if err != nil {
		return err
	}
	cfg.DBDriver = driver

	dbURLDefault := "file:data/matches.db"
	if driver == DBDriverPostgres {
		dbURLDefault = ""
	}
	cfg.DBURL = strings.TrimSpace(getEnv("DB_URL", dbURLDefault))
	if driver != DBDriverMemory && cfg.DBURL == "" {
		return fmt.Errorf("DB_URL is required when DB_DRIVER=%s", driver)
	}

	if cfg.DBMigrateOnStart, err = parseBool("DB_MIGRATE_ON_START", "true"); err != nil {
		return err
	}

	switch store := strings.ToLower(strings.TrimSpace(getEnv("SNAPSHOT_STORE", SnapshotStoreFile))); store {
	case SnapshotStoreFile, SnapshotStoreDB:
		cfg.SnapshotStore = store
	default:
		return fmt.Errorf("invalid SNAPSHOT_STORE %q: valid values are %s, %s", store, SnapshotStoreFile, SnapshotStoreDB)
	}
	if cfg.SnapshotStore == SnapshotStoreDB && driver == DBDriverMemory {
		return fmt.Errorf("SNAPSHOT_STORE=db requires DB_DRIVER %s or %s", DBDriverSQLite, DBDriverPostgres)
	}
	if strings.TrimSpace(cfg.ArtifactsDir) == "" {
		return fmt.Errorf("ARTIFACTS_DIR cannot be empty")
	}

	if cfg.CacheEnabled, err = parseBool("CACHE_ENABLED", "true"); err != nil {
		return err
	}
	if cfg.CacheTTL, err = parsePositiveDuration("CACHE_TTL", "30s"); err != nil {
		return err
	}
	return nil
}

func loadUpdater(cfg *Config) error {
	var err error
	if cfg.FeatureWindow, err = parseIntAtLeast("FEATURE_WINDOW", 5, 1); err != nil {
		return err
	}

	// LIVE_POLL_MINUTES is the older integer form; LIVE_POLL_INTERVAL wins.
	pollDefault := "10m"
	if minutes := strings.TrimSpace(os.Getenv("LIVE_POLL_MINUTES")); minutes != "" {
		n, err := strconv.Atoi(minutes)
		if err != nil {
			return fmt.Errorf("parse LIVE_POLL_MINUTES: %w", err)
		}
		if n < 1 {
			return fmt.Errorf("LIVE_POLL_MINUTES must be >= 1")
		}
		pollDefault = (time.Duration(n) * time.Minute).String()
	}
	if cfg.LivePollInterval, err = parsePositiveDuration("LIVE_POLL_INTERVAL", pollDefault); err != nil {
		return err
	}

	if cfg.MaxLookbackDays, err = parseIntAtLeast("MAX_LOOKBACK_DAYS", 2, 0); err != nil {
		return err
	}
	if cfg.FetchTimeout, err = parsePositiveDuration("FETCH_TIMEOUT", "30s"); err != nil {
		return err
	}
	if cfg.RetrainThreshold, err = parseIntAtLeast("RETRAIN_THRESHOLD", 20, 1); err != nil {
		return err
	}

	cfg.RetrainHeldOutFraction, err = strconv.ParseFloat(getEnv("RETRAIN_HELD_OUT_FRACTION", "0.2"), 64)
	if err != nil {
		return fmt.Errorf("parse RETRAIN_HELD_OUT_FRACTION: %w", err)
	}
	if cfg.RetrainHeldOutFraction <= 0 || cfg.RetrainHeldOutFraction >= 1 {
		return fmt.Errorf("RETRAIN_HELD_OUT_FRACTION must be between 0 and 1")
	}

	if cfg.CSVImportWorkers, err = parseIntAtLeast("CSV_IMPORT_WORKERS", 0, 0); err != nil {
		return err
	}
	if cfg.NotifyPollInterval, err = parsePositiveDuration("NOTIFY_POLL_INTERVAL", "2s"); err != nil {
		return err
	}
	return nil
}

func loadFootballData(cfg *Config) error {
	var err error
	if cfg.FootballDataEnabled, err = parseBool("FOOTBALL_DATA_ENABLED", "false"); err != nil {
		return err
	}
	cfg.FootballDataBaseURL = getEnv("FOOTBALL_DATA_BASE_URL", "https://api.football-data.org/v4")
	cfg.FootballDataToken = strings.TrimSpace(getEnv("FOOTBALL_DATA_TOKEN", ""))
	cfg.FootballDataCompetitions = splitCSV(getEnv("FOOTBALL_DATA_COMPETITIONS", ""))
	if cfg.FootballDataEnabled && cfg.FootballDataToken == "" {
		return fmt.Errorf("FOOTBALL_DATA_TOKEN is required when FOOTBALL_DATA_ENABLED=true")
	}

	if cfg.FootballDataTimeout, err = parsePositiveDuration("FOOTBALL_DATA_TIMEOUT", "10s"); err != nil {
		return err
	}
	if cfg.FootballDataMaxRetries, err = parseIntAtLeast("FOOTBALL_DATA_MAX_RETRIES", 2, 0); err != nil {
		return err
	}
	if cfg.FootballDataRatePerMinute, err = parseIntAtLeast("FOOTBALL_DATA_RATE_PER_MINUTE", 10, 1); err != nil {
		return err
	}
	if cfg.FootballDataCircuitEnabled, err = parseBool("FOOTBALL_DATA_CIRCUIT_ENABLED", "true"); err != nil {
		return err
	}
	if cfg.FootballDataCircuitFailureCount, err = parseIntAtLeast("FOOTBALL_DATA_CIRCUIT_FAILURE_COUNT", 5, 1); err != nil {
		return err
	}
	if cfg.FootballDataCircuitOpenTimeout, err = parsePositiveDuration("FOOTBALL_DATA_CIRCUIT_OPEN_TIMEOUT", "30s"); err != nil {
		return err
	}
	if cfg.FootballDataCircuitHalfOpenMax, err = parseIntAtLeast("FOOTBALL_DATA_CIRCUIT_HALF_OPEN_MAX_REQ", 1, 1); err != nil {
		return err
	}
	return nil
}

func loadTrainer(cfg *Config) error {
	mode := strings.ToLower(strings.TrimSpace(getEnv("TRAINER_MODE", TrainerModeLocal)))
	switch mode {
	case TrainerModeLocal, TrainerModeRemote, TrainerModeNone:
		cfg.TrainerMode = mode
	default:
		return fmt.Errorf("invalid TRAINER_MODE %q: valid values are %s, %s, %s", mode, TrainerModeLocal, TrainerModeRemote, TrainerModeNone)
	}

	cfg.TrainerURL = strings.TrimSpace(getEnv("TRAINER_URL", ""))
	cfg.TrainerToken = strings.TrimSpace(getEnv("TRAINER_TOKEN", ""))
	if mode == TrainerModeRemote && cfg.TrainerURL == "" {
		return fmt.Errorf("TRAINER_URL is required when TRAINER_MODE=remote")
	}

	var err error
	cfg.TrainerTimeout, err = parsePositiveDuration("TRAINER_TIMEOUT", "5m")
	return err
}

func loadObservability(cfg *Config) error {
	var err error
	if cfg.UptraceEnabled, err = parseBool("UPTRACE_ENABLED", "false"); err != nil {
		return err
	}
	cfg.UptraceDSN = strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if cfg.UptraceDSN == "" {
		cfg.UptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if cfg.UptraceEnabled && cfg.UptraceDSN == "" {
		return fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}
	if cfg.UptraceLogsEnabled, err = parseBool("UPTRACE_LOGS_ENABLED", "true"); err != nil {
		return err
	}

	if cfg.PyroscopeEnabled, err = parseBool("PYROSCOPE_ENABLED", "false"); err != nil {
		return err
	}
	cfg.PyroscopeServerAddress = strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if cfg.PyroscopeEnabled && cfg.PyroscopeServerAddress == "" {
		return fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	cfg.PyroscopeAppName = getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName)
	cfg.PyroscopeAuthToken = getEnv("PYROSCOPE_AUTH_TOKEN", "")
	cfg.PyroscopeBasicAuthUser = getEnv("PYROSCOPE_BASIC_AUTH_USER", "")
	cfg.PyroscopeBasicAuthPassword = getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")
	if cfg.PyroscopeUploadRate, err = parsePositiveDuration("PYROSCOPE_UPLOAD_RATE", "15s"); err != nil {
		return err
	}

	if cfg.PprofEnabled, err = parseBool("PPROF_ENABLED", "false"); err != nil {
		return err
	}
	cfg.PprofAddr = getEnv("PPROF_ADDR", "127.0.0.1:6060")
	return nil
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func parseBool(key, fallback string) (bool, error) {
	out, err := strconv.ParseBool(getEnv(key, fallback))
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return out, nil
}

func parseIntAtLeast(key string, fallback, min int) (int, error) {
	out, err := getEnvAsInt(key, fallback)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if out < min {
		return 0, fmt.Errorf("%s must be >= %d", key, min)
	}
	return out, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	out, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if out <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

func parseDBDriver(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case DBDriverSQLite, DBDriverPostgres, DBDriverMemory:
		return value, nil
	default:
		return "", fmt.Errorf("invalid DB_DRIVER %q: valid values are %s, %s, %s", v, DBDriverSQLite, DBDriverPostgres, DBDriverMemory)
	}
}
