package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/catalogaudit/internal/app"
	"github.com/rpattn/catalogaudit/internal/config"
	"github.com/rpattn/catalogaudit/internal/httpapi"
	"github.com/rpattn/catalogaudit/internal/middleware"
	"github.com/rpattn/catalogaudit/internal/relationship"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath, logger)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Migrations run before the pool is opened
	application, err := app.New(ctx, cfg, true, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if cfg.Audit.ConsistencyInterval > 0 {
		go runConsistencyChecks(ctx, application.Checker, cfg.Audit.ConsistencyInterval, logger)
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	api := httpapi.NewHTTPHandler(application.Ledger, application.Registry, logger)
	apiHandler := middleware.LoggingMiddleware(logger)(
		middleware.UserMiddleware(
			middleware.DataLoaderMiddleware(application.Registry)(api),
		),
	)

	mux := http.NewServeMux()
	mux.Handle("/api/", corsHandler.Handler(apiHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting audit server", "addr", cfg.Server.Addr, "storage", cfg.Storage.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server exited")
}

// runConsistencyChecks reports link violations until ctx is cancelled. It never repairs.
func runConsistencyChecks(ctx context.Context, checker *relationship.Checker, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := checker.Check(ctx)
			if err != nil {
				logger.Warn("link consistency check failed", "error", err)
				continue
			}
			logger.Info("link consistency check complete",
				"categories", report.CategoriesScanned,
				"families", report.FamiliesScanned,
				"violations", len(report.Violations))
		}
	}
}
