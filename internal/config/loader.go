package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rpattn/catalogaudit/internal/db"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the full process configuration.
type Config struct {
	Database db.Config
	Server   ServerConfig
	Storage  StorageConfig
	Audit    AuditConfig
}

type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

type StorageConfig struct {
	Driver string
}

type AuditConfig struct {
	// ConsistencyInterval of zero disables the periodic link check.
	ConsistencyInterval time.Duration
	DefaultPageSize     int
	MaxPageSize         int
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Database: db.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Storage: StorageConfig{Driver: DriverPostgres},
		Audit: AuditConfig{
			ConsistencyInterval: 15 * time.Minute,
			DefaultPageSize:     50,
			MaxPageSize:         500,
		},
	}
}

// Load reads config.yaml from configPath, then CATALOG_* environment overrides.
// A missing file is not an error.
func Load(configPath string, logger *slog.Logger) (Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix("CATALOG") // CATALOG_DATABASE_HOST, CATALOG_STORAGE_DRIVER, ...
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		logger.Info("no config.yaml found, using defaults and env vars")
	} else {
		logger.Info("loaded config", "file", v.ConfigFileUsed())
	}

	cfg.Database.Host = v.GetString("database.host")
	cfg.Database.Port = v.GetInt("database.port")
	cfg.Database.User = v.GetString("database.user")
	cfg.Database.Password = v.GetString("database.password")
	cfg.Database.DBName = v.GetString("database.dbname")
	cfg.Database.SSLMode = v.GetString("database.sslmode")
	cfg.Database.MaxConns = v.GetInt32("database.max_conns")

	cfg.Server.Addr = v.GetString("server.addr")
	cfg.Server.AllowedOrigins = splitList(v.GetStringSlice("server.allowed_origins"))

	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(v.GetString("storage.driver")))

	cfg.Audit.ConsistencyInterval = v.GetDuration("audit.consistency_interval")
	cfg.Audit.DefaultPageSize = v.GetInt("audit.default_page_size")
	cfg.Audit.MaxPageSize = v.GetInt("audit.max_page_size")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("invalid storage.driver %q: want %q or %q", c.Storage.Driver, DriverPostgres, DriverMemory)
	}
	if c.Audit.DefaultPageSize <= 0 {
		return fmt.Errorf("audit.default_page_size must be positive")
	}
	if c.Audit.MaxPageSize < c.Audit.DefaultPageSize {
		return fmt.Errorf("audit.max_page_size must be at least audit.default_page_size")
	}
	if c.Audit.ConsistencyInterval < 0 {
		return fmt.Errorf("audit.consistency_interval must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("database.host", cfg.Database.Host)
	v.SetDefault("database.port", cfg.Database.Port)
	v.SetDefault("database.user", cfg.Database.User)
	v.SetDefault("database.password", cfg.Database.Password)
	v.SetDefault("database.dbname", cfg.Database.DBName)
	v.SetDefault("database.sslmode", cfg.Database.SSLMode)
	v.SetDefault("database.max_conns", cfg.Database.MaxConns)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.allowed_origins", cfg.Server.AllowedOrigins)
	v.SetDefault("storage.driver", cfg.Storage.Driver)
	v.SetDefault("audit.consistency_interval", cfg.Audit.ConsistencyInterval)
	v.SetDefault("audit.default_page_size", cfg.Audit.DefaultPageSize)
	v.SetDefault("audit.max_page_size", cfg.Audit.MaxPageSize)
}

// splitList accepts both YAML lists and comma-separated env values.
func splitList(values []string) []string {
	out := []string{}
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
