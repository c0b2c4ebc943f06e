package container

import (
	"context"
	"fmt"

	"datahub/adapters/db"
	"datahub/adapters/excel"
	"datahub/adapters/sharepoint"
	"datahub/internal/config"
	"datahub/internal/health"
	"datahub/internal/syncer"
	"datahub/internal/worksheet"
	"datahub/ports"

	"github.com/rs/zerolog"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger zerolog.Logger

	// Infrastructure
	DB *db.DB

	// Repositories (data access layer)
	Records  ports.RecordStore
	Tables   ports.TableReader
	SyncLogs ports.SyncLogRepository

	// Sync components
	Catalog *worksheet.Catalog
	Source  ports.WorkbookSource
	Syncer  *syncer.Orchestrator
	Health  *health.Checker
}

// New creates a new dependency injection container
func New(cfg *config.Config, logger zerolog.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return &Container{
		Config:  cfg,
		Logger:  logger,
		Catalog: worksheet.NewCatalog(),
	}, nil
}

// InitWithDatabase opens the database, optionally applies pending
// migrations, and builds the repositories and health checker.
func (c *Container) InitWithDatabase(ctx context.Context, migrate bool) error {
	database, err := db.Open(ctx, c.Config.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	c.DB = database

	if migrate {
		applied, err := database.Migrate(ctx, c.Logger)
		if err != nil {
			return fmt.Errorf("database migration failed: %w", err)
		}
		if len(applied) > 0 {
			c.Logger.Info().Strs("versions", applied).Msg("Applied migrations")
		}
	}

	store := db.NewRecordStore(database)
	c.Records = store
	c.Tables = store
	c.SyncLogs = db.NewSyncLogRepository(database)
	c.Health = health.NewChecker(c.Records, c.SyncLogs, c.Catalog.DefaultSync())

	c.Logger.Info().Str("dialect", string(database.Dialect)).Msg("Database initialized")
	return nil
}

// InitSync builds the workbook source and orchestrator. Non-empty local
// locators read workbooks from disk instead of SharePoint.
func (c *Container) InitSync(local syncer.Locators) error {
	if c.DB == nil {
		return fmt.Errorf("database must be initialized before sync")
	}

	var locators syncer.Locators
	if len(local) > 0 {
		c.Source = excel.FileSource{}
		locators = local
	} else {
		if err := c.Config.ValidateSharePoint(); err != nil {
			return err
		}
		sp := c.Config.SharePoint
		tokens, err := sharepoint.NewTokenProvider(sharepoint.Credentials{
			TenantID:     sp.TenantID,
			ClientID:     sp.ClientID,
			ClientSecret: sp.ClientSecret,
		})
		if err != nil {
			return err
		}
		c.Source = sharepoint.NewClient(tokens, sharepoint.Config{Retry: c.Config.Sync.Retry()}, c.Logger)
		locators = syncer.Locators{
			worksheet.FileLawley:  sp.LawleyFileURL,
			worksheet.FileMohadin: sp.MohadinFileURL,
		}
	}

	c.Syncer = syncer.New(c.Source, c.Records, c.SyncLogs, locators, c.Logger)
	return nil
}

// SyncOptions are the configured defaults for a sync run.
func (c *Container) SyncOptions() worksheet.Options {
	return worksheet.Options{
		ProjectID:     c.Config.Sync.ProjectID,
		ProgressEvery: c.Config.Sync.ProgressEvery,
		Parallelism:   c.Config.Sync.Parallelism,
	}
}

// Close releases the database connection
func (c *Container) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
