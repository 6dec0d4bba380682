package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aquarius-catalog/internal/config"
	"aquarius-catalog/internal/datastore"
	"aquarius-catalog/internal/handlers"
	"aquarius-catalog/internal/repository"
	"aquarius-catalog/internal/services"
	"aquarius-catalog/pkg/database"
	"aquarius-catalog/pkg/logging"
	"aquarius-catalog/pkg/metrics"
)

const version = "1.0.0"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("aquarius-catalog-api", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting Aquarius catalog API server", logging.Fields{
		"version":      version,
		"server_host":  cfg.Server.Host,
		"server_port":  cfg.Server.Port,
		"datastore":    cfg.DataStore.Name,
		"service_root": cfg.DataStore.ServiceRootUrl,
		"db_enabled":   cfg.Database.Enabled,
	})

	metricsCollector := metrics.NewCollector("aquarius_catalog")

	registry := datastore.NewDefaultRegistry()
	store, err := registry.Create(ctx, cfg.DataStore, datastore.Dependencies{
		Logger:  logger,
		Metrics: metricsCollector,
	})
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to create datastore", logging.Fields{
			"type": cfg.DataStore.Type,
		}, err)
	}
	defer store.Close(context.Background())

	if status := store.Status(); status.Degraded {
		logger.Warn(ctx, "[STARTUP_DEGRADED] Datastore is running in degraded mode", logging.Fields{
			"datastore": status.Name,
			"message":   status.Message,
		})
	}

	var exports handlers.Exporter
	if cfg.Database.Enabled {
		db, err := database.NewPostgresDB(ctx, &database.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		}, logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
		}
		defer db.Close()

		repo := repository.NewTimeSeriesRepository(db, logger, metricsCollector)
		exports = services.NewExportService(repo, logger, metricsCollector)
	}

	catalogHandler := handlers.NewCatalogHandler(store, exports, logger, metricsCollector)

	router := mux.NewRouter()
	catalogHandler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
