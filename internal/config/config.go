package config

import (
	stderrors "errors"
	"time"

	"datahub/internal/errors"
	"datahub/internal/retry"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	SharePoint SharePointConfig
	Database   DatabaseConfig
	Server     ServerConfig
	Sync       SyncConfig
	Logging    LoggingConfig
}

// SharePointConfig holds the Graph application credentials and workbook links
type SharePointConfig struct {
	ClientID       string
	ClientSecret   string
	TenantID       string
	SiteURL        string
	LawleyFileURL  string
	MohadinFileURL string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
	// APIKey guards /api routes; empty disables the check.
	APIKey string
}

// SyncConfig holds sync tuning
type SyncConfig struct {
	ProjectID      string
	HTTPTimeout    time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	ProgressEvery  int
	Parallelism    int
}

// LoggingConfig holds log level and file settings
type LoggingConfig struct {
	Level string
	File  string
	Env   string
}

// Production reports whether logs should be JSON only.
func (l LoggingConfig) Production() bool {
	return l.Env == "production"
}

// Retry is the retry policy for source fetches.
func (s SyncConfig) Retry() retry.Config {
	return retry.Config{
		MaxRetries: s.MaxRetries,
		BaseDelay:  s.RetryBaseDelay,
		MaxDelay:   s.RetryMaxDelay,
		Timeout:    s.HTTPTimeout,
	}
}

// Load reads configuration from the environment and an optional datahub.yaml
// in . or $HOME/.datahub, then validates it
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("datahub")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.datahub")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	config := &Config{
		SharePoint: loadSharePointConfig(v),
		Database:   loadDatabaseConfig(v),
		Server:     loadServerConfig(v),
		Sync:       loadSyncConfig(v),
		Logging:    loadLoggingConfig(v),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_port", "3000")
	v.SetDefault("gin_mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "logs/datahub.log")
	v.SetDefault("env", "development")
	v.SetDefault("sync_http_timeout", 60*time.Second)
	v.SetDefault("sync_max_retries", 3)
	v.SetDefault("sync_retry_base_delay", time.Second)
	v.SetDefault("sync_retry_max_delay", 30*time.Second)
	v.SetDefault("sync_progress_every", 500)
	v.SetDefault("sync_parallelism", 0)
}

func loadSharePointConfig(v *viper.Viper) SharePointConfig {
	return SharePointConfig{
		ClientID:       v.GetString("sharepoint_client_id"),
		ClientSecret:   v.GetString("sharepoint_client_secret"),
		TenantID:       v.GetString("sharepoint_tenant_id"),
		SiteURL:        v.GetString("sharepoint_site_url"),
		LawleyFileURL:  v.GetString("sharepoint_lawley_file_url"),
		MohadinFileURL: v.GetString("sharepoint_mohadin_file_url"),
	}
}

func loadDatabaseConfig(v *viper.Viper) DatabaseConfig {
	url := v.GetString("database_url")
	if url == "" {
		url = v.GetString("neon_database_url")
	}
	return DatabaseConfig{URL: url}
}

func loadServerConfig(v *viper.Viper) ServerConfig {
	return ServerConfig{
		Port:    v.GetString("api_port"),
		GinMode: v.GetString("gin_mode"),
		APIKey:  v.GetString("powerbi_api_key"),
	}
}

func loadSyncConfig(v *viper.Viper) SyncConfig {
	return SyncConfig{
		ProjectID:      v.GetString("sync_project_id"),
		HTTPTimeout:    v.GetDuration("sync_http_timeout"),
		MaxRetries:     v.GetInt("sync_max_retries"),
		RetryBaseDelay: v.GetDuration("sync_retry_base_delay"),
		RetryMaxDelay:  v.GetDuration("sync_retry_max_delay"),
		ProgressEvery:  v.GetInt("sync_progress_every"),
		Parallelism:    v.GetInt("sync_parallelism"),
	}
}

func loadLoggingConfig(v *viper.Viper) LoggingConfig {
	return LoggingConfig{
		Level: v.GetString("log_level"),
		File:  v.GetString("log_file"),
		Env:   v.GetString("env"),
	}
}

func validateConfig(config *Config) error {
	if config.Database.URL == "" {
		return errors.ConfigInvalid("DATABASE_URL is required")
	}
	if config.Sync.MaxRetries < 0 {
		return errors.ConfigInvalid("SYNC_MAX_RETRIES must not be negative")
	}
	if config.Sync.HTTPTimeout <= 0 {
		return errors.ConfigInvalid("SYNC_HTTP_TIMEOUT must be positive")
	}
	return nil
}

// ValidateSharePoint checks what a sync against SharePoint needs. Local file
// syncs skip it.
func (c *Config) ValidateSharePoint() error {
	sp := c.SharePoint
	switch {
	case sp.ClientID == "" || sp.ClientSecret == "" || sp.TenantID == "":
		return errors.ConfigInvalid("SHAREPOINT_CLIENT_ID, SHAREPOINT_CLIENT_SECRET and SHAREPOINT_TENANT_ID are required")
	case sp.LawleyFileURL == "":
		return errors.ConfigInvalid("SHAREPOINT_LAWLEY_FILE_URL is required")
	}
	return nil
}
