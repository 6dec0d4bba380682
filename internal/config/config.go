package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tkanos/gonfig"

	"aquarius-catalog/internal/models"
)

// DataStoreType is the only datastore type this service knows how to build
const DataStoreType = "AquariusDataStore"

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	DataStore DataStoreConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds configuration for the optional export database
type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// DataStoreConfig describes one Aquarius datastore. Field names double as
// JSON keys and as gonfig environment overrides.
type DataStoreConfig struct {
	Name           string
	Description    string
	Type           string
	ServiceRootUrl string
	UserName       string
	Password       string
	Debug          bool
	Enabled        bool
	RequestTimeout string
}

// Timeout returns the parsed request timeout, or zero when unset or invalid
func (d DataStoreConfig) Timeout() time.Duration {
	t, err := time.ParseDuration(strings.TrimSpace(d.RequestTimeout))
	if err != nil {
		return 0
	}
	return t
}

// Problems lists what keeps the datastore from connecting. An empty result
// means the configuration is usable.
func (d DataStoreConfig) Problems() []string {
	var problems []string
	if d.Type != "" && d.Type != DataStoreType {
		problems = append(problems, fmt.Sprintf("datastore type %q is not %s", d.Type, DataStoreType))
	}
	if strings.TrimSpace(d.ServiceRootUrl) == "" {
		problems = append(problems, "ServiceRootUrl is not configured")
	}
	if d.UserName == "" || d.Password == "" {
		problems = append(problems, "UserName and Password are required")
	}
	return problems
}

// LoadConfig loads configuration from an optional .env file and the environment
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{}
	var err error

	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", "0.0.0.0")
	if cfg.Server.Port, err = getEnvInt("SERVER_PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.Server.ReadTimeout, err = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	// Catalog refreshes can take minutes against large systems
	if cfg.Server.WriteTimeout, err = getEnvDuration("SERVER_WRITE_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}

	cfg.Database.Enabled = getEnvBool("DB_ENABLED", false)
	cfg.Database.Host = getEnvOrDefault("DB_HOST", "localhost")
	if cfg.Database.Port, err = getEnvInt("DB_PORT", 5432); err != nil {
		return nil, err
	}
	cfg.Database.User = getEnvOrDefault("DB_USER", "postgres")
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", "")
	cfg.Database.Database = getEnvOrDefault("DB_NAME", "aquarius_catalog")
	cfg.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")
	if cfg.Database.MaxOpenConns, err = getEnvInt("DB_MAX_OPEN_CONNS", 10); err != nil {
		return nil, err
	}
	if cfg.Database.MaxIdleConns, err = getEnvInt("DB_MAX_IDLE_CONNS", 5); err != nil {
		return nil, err
	}
	if cfg.Database.ConnMaxLifetime, err = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Database.ConnMaxIdleTime, err = getEnvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute); err != nil {
		return nil, err
	}

	cfg.Logging.Level = strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info"))

	ds, err := LoadDataStoreConfig(os.Getenv("AQUARIUS_DATASTORE_CONFIG"))
	if err != nil {
		return nil, err
	}
	cfg.DataStore = ds

	return cfg, nil
}

// LoadDataStoreConfig reads a JSON datastore file when path is set, then
// applies the AQUARIUS_* environment overrides.
func LoadDataStoreConfig(path string) (DataStoreConfig, error) {
	ds := DataStoreConfig{
		Name:        "Aquarius",
		Description: "Aquarius web services",
		Type:        DataStoreType,
		Enabled:     true,
	}

	if path != "" {
		if err := gonfig.GetConf(path, &ds); err != nil {
			return ds, fmt.Errorf("failed to read datastore configuration %s: %w", path, err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("AQUARIUS_SERVICE_ROOT_URL")); v != "" {
		ds.ServiceRootUrl = v
	}
	if v := os.Getenv("AQUARIUS_USERNAME"); v != "" {
		ds.UserName = v
	}
	if v := os.Getenv("AQUARIUS_PASSWORD"); v != "" {
		ds.Password = v
	}
	if v := strings.TrimSpace(os.Getenv("AQUARIUS_DEBUG")); v != "" {
		ds.Debug = v == "1" || strings.EqualFold(v, "true")
	}

	if ds.ServiceRootUrl != "" && !strings.HasSuffix(ds.ServiceRootUrl, "/") {
		ds.ServiceRootUrl += "/"
	}
	return ds, nil
}

// Validate checks the server, database and logging sections. Datastore
// problems are reported through DataStoreConfig.Problems instead, since a
// misconfigured datastore still starts.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &models.ValidationError{Field: "SERVER_PORT", Value: strconv.Itoa(c.Server.Port), Message: "must be between 1 and 65535"}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return &models.ValidationError{Field: "LOG_LEVEL", Value: c.Logging.Level, Message: "unknown log level"}
	}
	if c.Database.Enabled {
		if c.Database.Host == "" {
			return &models.ValidationError{Field: "DB_HOST", Value: c.Database.Host, Message: "required when DB_ENABLED is set"}
		}
		if c.Database.Database == "" {
			return &models.ValidationError{Field: "DB_NAME", Value: c.Database.Database, Message: "required when DB_ENABLED is set"}
		}
		if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
			return &models.ValidationError{Field: "DB_MAX_IDLE_CONNS", Value: strconv.Itoa(c.Database.MaxIdleConns), Message: "must not exceed DB_MAX_OPEN_CONNS"}
		}
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	return v == "1" || strings.EqualFold(v, "true")
}
