package main

import (
	"context"
	"flag"
	"log"
	"os"

	"datahub/adapters/db"
	"datahub/internal/config"
	"datahub/internal/logging"

	"github.com/joho/godotenv"
)

func main() {
	status := flag.Bool("status", false, "print migration status and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Only the database URL is needed, so config validation is bypassed
	// when an explicit URL is given.
	databaseURL := flag.Arg(0)
	logCfg := config.LoggingConfig{Level: os.Getenv("LOG_LEVEL")}
	if databaseURL == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		databaseURL = cfg.Database.URL
		logCfg = cfg.Logging
	}

	logger, logFile := logging.Setup(logCfg)
	defer logFile.Close()

	ctx := logger.WithContext(context.Background())
	database, err := db.Open(ctx, databaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	migrator := database.Migrator(logger)
	if *status {
		rows, err := migrator.Status(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to read migration status")
		}
		for _, s := range rows {
			logger.Info().
				Str("version", s.Version).
				Str("name", s.Name).
				Bool("applied", s.Applied).
				Str("applied_at", s.AppliedAt).
				Bool("drifted", s.Drifted).
				Msg("Migration")
		}
		return
	}

	applied, err := migrator.Up(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("Migration failed")
	}
	logger.Info().Strs("applied", applied).Str("dialect", string(database.Dialect)).Msg("Migration complete")
}
