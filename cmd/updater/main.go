package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/riskibarqy/match-feature-store/internal/app"
	"github.com/riskibarqy/match-feature-store/internal/config"
	"github.com/riskibarqy/match-feature-store/internal/observability"
	"github.com/riskibarqy/match-feature-store/internal/platform/logging"
)

func main() {
	serveHTTP := flag.Bool("http", true, "serve the read API and update streams")
	runUpdater := flag.Bool("updater", true, "run the periodic update cycle")
	once := flag.Bool("once", false, "run a single update cycle and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.NewJSON(cfg.LogLevel).With("service", cfg.ServiceName)
	logging.SetDefault(logger)
	defer func() {
		_ = logger.Sync()
	}()

	shutdownTracing, err := observability.InitUptrace(cfg, logger)
	if err != nil {
		logger.Error("init uptrace", "error", err)
		os.Exit(1)
	}
	stopProfiler, err := observability.InitPyroscope(cfg, logger)
	if err != nil {
		logger.Error("init pyroscope", "error", err)
		os.Exit(1)
	}
	pprofSrv := observability.StartPprofServer(cfg, logger)

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exitCode := 0
	if *once {
		if _, err := a.Orchestrator.RunCycle(ctx); err != nil {
			exitCode = 1
		}
	} else {
		exitCode = serve(ctx, a, logger, *serveHTTP, *runUpdater)
	}

	if err := a.Close(); err != nil {
		logger.Error("close app", "error", err)
	}
	if err := observability.StopPprofServer(pprofSrv, logger, 5*time.Second); err != nil {
		logger.Error("stop pprof server", "error", err)
	}
	if err := stopProfiler(); err != nil {
		logger.Error("stop pyroscope", "error", err)
	}
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.Error("shutdown uptrace", "error", err)
	}

	if exitCode != 0 {
		_ = logger.Sync()
		os.Exit(exitCode)
	}
}

func serve(ctx context.Context, a *app.App, logger *logging.Logger, serveHTTP, runUpdater bool) int {
	if !serveHTTP && !runUpdater {
		logger.Error("nothing to run", "reason", "both -http and -updater are false")
		return 2
	}

	var (
		wg       sync.WaitGroup
		failed   = make(chan struct{}, 1)
		srv      *http.Server
		exitCode int
	)

	if serveHTTP {
		var err error
		srv, err = a.NewHTTPServer()
		if err != nil {
			logger.Error("build http server", "error", err)
			return 1
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("http server starting", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server failed", "error", err)
				failed <- struct{}{}
			}
		}()
	}

	updaterCtx, cancelUpdater := context.WithCancel(ctx)
	defer cancelUpdater()
	if runUpdater {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.RunUpdater(updaterCtx); err != nil {
				logger.Error("updater stopped", "error", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
	case <-failed:
		exitCode = 1
	}
	cancelUpdater()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
			exitCode = 1
		}
	}

	wg.Wait()
	logger.Info("updater process stopped")
	return exitCode
}
