package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/agenda-comb/app/agenda"
	"github.com/lysyi3m/agenda-comb/app/api"
	"github.com/lysyi3m/agenda-comb/app/cfg"
	"github.com/lysyi3m/agenda-comb/app/database"
	"github.com/lysyi3m/agenda-comb/app/discovery"
	"github.com/lysyi3m/agenda-comb/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Agenda Comb", "version", appCfg.Version, "port", appCfg.Port, "timezone", appCfg.Timezone)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	sourceCache := agenda.NewSourceCache(appCfg.SourcesDir)
	if err := sourceCache.Run(); err != nil {
		slog.Error("Failed to load source definitions", "dir", appCfg.SourcesDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Source definitions loaded", "dir", appCfg.SourcesDir, "count", sourceCache.GetSourceCount())

	sourceRepo := database.NewSourceRepository(db)
	requestRepo := database.NewRequestRepository(db)

	fetcher := agenda.NewHTTPFetcher(&http.Client{Timeout: appCfg.GetRequestTimeout()}, agenda.FetcherOptions{
		UserAgent:         appCfg.UserAgent,
		AcceptLanguage:    appCfg.AcceptLanguage,
		Timeout:           appCfg.GetRequestTimeout(),
		RequestsPerSecond: appCfg.RequestsPerSecond,
	})
	crawler := agenda.NewCrawler(fetcher, agenda.NewLinkFilter(), agenda.NewFeedListing())
	extractor := agenda.NewEventExtractor(fetcher)

	limits := discovery.Limits{MaxTotal: appCfg.MaxTotal, MaxPerConfig: appCfg.MaxPerConfig}
	orchestrator := discovery.NewOrchestrator(sourceRepo, requestRepo, crawler, extractor, limits,
		discovery.NewRunGuard(appCfg.LockFile))

	scheduler := tasks.NewScheduler(sourceCache, sourceRepo, orchestrator,
		appCfg.GetSchedulerInterval(), appCfg.WorkerCount)
	scheduler.Start()
	defer scheduler.Stop()

	generator := api.NewGenerator(appCfg.BaseUrl, appCfg.Port, appCfg.Version)
	handler := api.NewHandler(sourceRepo, requestRepo, sourceCache, orchestrator, scheduler, generator, orchestrator.Limits())
	server := api.NewServer(handler, appCfg.APIAccessKey, appCfg.CronSecret, appCfg.Version)

	// No write timeout: the cron trigger answers only after the whole run
	httpServer := &http.Server{
		Addr:              ":" + appCfg.Port,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Agenda Comb shutdown complete")
}
