package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"datahub/internal/api"
	"datahub/internal/config"
	"datahub/internal/container"
	"datahub/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, logFile := logging.Setup(appConfig.Logging)
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	appContainer, err := container.New(appConfig, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create container")
	}
	defer appContainer.Close()

	if err := appContainer.InitWithDatabase(ctx, true); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize database")
	}
	if err := appContainer.DB.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Database connection failed")
	}

	// Sync endpoints need SharePoint; the rest of the API still serves without it.
	var syncer api.Syncer
	if err := appContainer.InitSync(nil); err != nil {
		logger.Warn().Err(err).Msg("SharePoint not configured, sync endpoints disabled")
		syncer = unavailableSyncer{err: err}
	} else {
		syncer = appContainer.Syncer
	}

	gin.SetMode(appConfig.Server.GinMode)
	server := api.NewServer(api.Deps{
		Syncer:  syncer,
		Health:  appContainer.Health,
		Catalog: appContainer.Catalog,
		Store:   appContainer.Records,
		Tables:  appContainer.Tables,
		Logs:    appContainer.SyncLogs,
		Options: appContainer.SyncOptions(),
		APIKey:  appConfig.Server.APIKey,
	}, logger)
	if appConfig.Server.APIKey == "" {
		logger.Warn().Msg("POWERBI_API_KEY not set, /api routes are unauthenticated")
	}

	httpServer := &http.Server{
		Addr:              ":" + appConfig.Server.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", appConfig.Server.Port).Msg("DataHub API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
