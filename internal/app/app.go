package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/match-feature-store/external/footballdata"
	remotetrainer "github.com/riskibarqy/match-feature-store/external/trainer"
	"github.com/riskibarqy/match-feature-store/internal/config"
	"github.com/riskibarqy/match-feature-store/internal/domain/match"
	"github.com/riskibarqy/match-feature-store/internal/domain/teamstats"
	"github.com/riskibarqy/match-feature-store/internal/infrastructure/artifact"
	"github.com/riskibarqy/match-feature-store/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/match-feature-store/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/match-feature-store/internal/infrastructure/repository/sqlstore"
	"github.com/riskibarqy/match-feature-store/internal/infrastructure/trainer"
	"github.com/riskibarqy/match-feature-store/internal/interfaces/httpapi"
	basecache "github.com/riskibarqy/match-feature-store/internal/platform/cache"
	"github.com/riskibarqy/match-feature-store/internal/platform/logging"
	"github.com/riskibarqy/match-feature-store/internal/platform/resilience"
	"github.com/riskibarqy/match-feature-store/internal/usecase"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	teamStatsArtifact = "team_stats.json"
	modelArtifact     = "model.json"
)

// App holds the wired services shared by the updater and the CLI tools.
type App struct {
	Config       config.Config
	Logger       *logging.Logger
	Matches      match.Repository
	Snapshots    teamstats.SnapshotStore
	ModelFile    *artifact.File
	Merge        *usecase.MergeService
	Features     *usecase.FeatureService
	Orchestrator *usecase.UpdateOrchestratorService
	CSVImport    *usecase.CSVImportService

	db *sqlx.DB
}

// New wires storage, services and collaborators from cfg. Migrations are
// applied first when DB_MIGRATE_ON_START is set.
func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	a := &App{
		Config:    cfg,
		Logger:    logger,
		ModelFile: artifact.NewFile(filepath.Join(cfg.ArtifactsDir, modelArtifact)),
	}

	var meta usecase.CycleMetaStore
	switch cfg.DBDriver {
	case config.DBDriverMemory:
		logger.Warn("using in-memory match store, data is lost on restart")
		a.Matches = memory.NewMatchRepository()
	default:
		if cfg.DBMigrateOnStart {
			if err := migrateUp(cfg, logger); err != nil {
				return nil, err
			}
		}
		db, err := openDB(cfg)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.Matches = sqlstore.NewMatchRepository(db)
		meta = sqlstore.NewMetaRepository(db)
	}

	snapshots, err := a.newSnapshotStore()
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Snapshots = snapshots

	modelTrainer, err := a.newTrainer()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Merge = usecase.NewMergeService(a.Matches, logger)
	a.Features = usecase.NewFeatureService(a.Matches, a.Snapshots, cfg.FeatureWindow, logger)
	a.CSVImport = usecase.NewCSVImportService(a.Merge, cfg.CSVImportWorkers, logger)
	a.Orchestrator = usecase.NewUpdateOrchestratorService(
		a.newFetcher(),
		a.Merge,
		a.Features,
		a.Snapshots,
		modelTrainer,
		meta,
		usecase.UpdateOrchestratorConfig{
			Interval:         cfg.LivePollInterval,
			Lookback:         time.Duration(cfg.MaxLookbackDays) * 24 * time.Hour,
			FetchTimeout:     cfg.FetchTimeout,
			RetrainThreshold: cfg.RetrainThreshold,
			HeldOutFraction:  cfg.RetrainHeldOutFraction,
		},
		logger,
	)

	logger.Info("app wired",
		"db_driver", cfg.DBDriver,
		"snapshot_store", cfg.SnapshotStore,
		"trainer_mode", cfg.TrainerMode,
		"football_data_enabled", cfg.FootballDataEnabled,
	)
	return a, nil
}

func (a *App) newSnapshotStore() (teamstats.SnapshotStore, error) {
	var store teamstats.SnapshotStore
	switch {
	case a.Config.SnapshotStore == config.SnapshotStoreDB:
		if a.db == nil {
			return nil, fmt.Errorf("snapshot store %q needs a database", config.SnapshotStoreDB)
		}
		store = sqlstore.NewSnapshotRepository(a.db)
	default:
		store = artifact.NewSnapshotStore(filepath.Join(a.Config.ArtifactsDir, teamStatsArtifact))
	}

	if !a.Config.CacheEnabled {
		return store, nil
	}
	return cache.NewSnapshotStore(store, basecache.NewStore(a.Config.CacheTTL)), nil
}

func (a *App) newTrainer() (usecase.Trainer, error) {
	cfg := a.Config
	switch cfg.TrainerMode {
	case config.TrainerModeNone:
		return usecase.NewNoopTrainer(), nil
	case config.TrainerModeRemote:
		client, err := remotetrainer.NewClient(remotetrainer.ClientConfig{
			URL:            cfg.TrainerURL,
			Token:          cfg.TrainerToken,
			Timeout:        cfg.TrainerTimeout,
			CircuitBreaker: resilience.DefaultCircuitBreakerConfig(),
		}, a.Logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return trainer.NewCentroidTrainer(a.ModelFile, a.Logger), nil
	}
}

func (a *App) newFetcher() usecase.Fetcher {
	cfg := a.Config
	if !cfg.FootballDataEnabled {
		a.Logger.Info("football-data disabled", "reason", "FOOTBALL_DATA_ENABLED=false")
		return usecase.NewNoopFetcher()
	}

	return footballdata.NewClient(footballdata.ClientConfig{
		HTTPClient: &http.Client{
			Timeout:   cfg.FootballDataTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		BaseURL:       cfg.FootballDataBaseURL,
		Token:         cfg.FootballDataToken,
		Competitions:  cfg.FootballDataCompetitions,
		MaxRetries:    cfg.FootballDataMaxRetries,
		RatePerMinute: cfg.FootballDataRatePerMinute,
		Logger:        a.Logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.FootballDataCircuitEnabled,
			FailureThreshold: cfg.FootballDataCircuitFailureCount,
			OpenTimeout:      cfg.FootballDataCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.FootballDataCircuitHalfOpenMax,
		},
	})
}

// Handler builds the HTTP surface over the wired services.
func (a *App) Handler() http.Handler {
	handler := httpapi.NewHandler(httpapi.HandlerConfig{
		FeatureService: a.Features,
		MergeService:   a.Merge,
		Orchestrator:   a.Orchestrator,
		Artifacts: []httpapi.WatchedArtifact{
			{Name: "team_stats", Source: a.Snapshots},
			{Name: "model", Source: a.ModelFile},
		},
		NotifyInterval: a.Config.NotifyPollInterval,
		Logger:         a.Logger,
	})
	return httpapi.NewRouter(
		handler,
		a.Logger,
		a.Config.SwaggerEnabled,
		a.Config.CORSAllowedOrigins,
		a.Config.InternalJobToken,
	)
}

func (a *App) NewHTTPServer() (*http.Server, error) {
	if a.Config.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return &http.Server{
		Addr:              a.Config.HTTPAddr,
		Handler:           a.Handler(),
		ReadTimeout:       a.Config.ReadTimeout,
		ReadHeaderTimeout: a.Config.ReadTimeout,
		WriteTimeout:      a.Config.WriteTimeout,
	}, nil
}

// RunUpdater blocks running update cycles until ctx is cancelled.
func (a *App) RunUpdater(ctx context.Context) error {
	return a.Orchestrator.Run(ctx)
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	if err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
