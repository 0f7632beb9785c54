// Package config loads application configuration from YAML with
// environment overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/ironlantern/charforge/internal/logger"
)

// AppConfig holds application-wide configuration settings.
type AppConfig struct {
	Database DatabaseConfig `yaml:"database"`
	Rules    RulesConfig    `yaml:"rules"`
	Engine   EngineConfig   `yaml:"engine"`
	Logging  logger.Config  `yaml:"logging"`
}

// DatabaseConfig selects and configures the persistence backend.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`

	// Path is the SQLite database file.
	Path string `yaml:"path"`

	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// RulesConfig locates the rule data.
type RulesConfig struct {
	// Dir is the directory of YAML rule files loaded at startup.
	Dir string `yaml:"dir"`
}

// EngineConfig holds engine tunables.
type EngineConfig struct {
	// DiceSeed seeds the hit-point roller. Zero seeds from the clock.
	DiceSeed int64 `yaml:"dice_seed"`

	// AuditLimit caps how many recent audit facts list views return.
	AuditLimit int `yaml:"audit_limit"`
}

// DefaultConfig returns an AppConfig with defaults for local use.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "data/charforge.db",
			Postgres: PostgresConfig{
				Host:    "localhost",
				Port:    5432,
				SSLMode: "disable",
			},
		},
		Rules: RulesConfig{
			Dir: "rules",
		},
		Engine: EngineConfig{
			AuditLimit: 50,
		},
		Logging: logger.DefaultConfig(),
	}
}

// LoadConfig loads configuration from a YAML file and applies environment
// overrides. A missing file yields defaults; a malformed one is an error.
func LoadConfig(path string) (*AppConfig, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(config)
			return config, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnv(config)
	return config, nil
}

// applyEnv overrides deployment-sensitive values from the environment so
// secrets stay out of the config file.
func applyEnv(config *AppConfig) {
	if driver := os.Getenv("CHARFORGE_DB_DRIVER"); driver != "" {
		config.Database.Driver = driver
	}
	if path := os.Getenv("CHARFORGE_DB_PATH"); path != "" {
		config.Database.Path = path
	}
	if host := os.Getenv("CHARFORGE_PG_HOST"); host != "" {
		config.Database.Postgres.Host = host
	}
	if port := os.Getenv("CHARFORGE_PG_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Database.Postgres.Port = p
		}
	}
	if user := os.Getenv("CHARFORGE_PG_USER"); user != "" {
		config.Database.Postgres.User = user
	}
	if password := os.Getenv("CHARFORGE_PG_PASSWORD"); password != "" {
		config.Database.Postgres.Password = password
	}
	if dbname := os.Getenv("CHARFORGE_PG_DATABASE"); dbname != "" {
		config.Database.Postgres.Database = dbname
	}
	if dir := os.Getenv("CHARFORGE_RULES_DIR"); dir != "" {
		config.Rules.Dir = dir
	}
}
