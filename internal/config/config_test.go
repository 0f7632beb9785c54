package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("default driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Database.Path != "data/charforge.db" {
		t.Errorf("default path = %q", cfg.Database.Path)
	}
	if cfg.Rules.Dir != "rules" {
		t.Errorf("default rules dir = %q", cfg.Rules.Dir)
	}
	if cfg.Engine.AuditLimit != 50 {
		t.Errorf("default audit limit = %d", cfg.Engine.AuditLimit)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("default log level = %q", cfg.Logging.Level)
	}
}

func TestLoadConfig_FileNotExists(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for missing file, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config for missing file, got nil")
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected sqlite default, got %q", cfg.Database.Driver)
	}
}

func TestLoadConfig_ValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "charforge.yaml")

	content := `
database:
  driver: postgres
  postgres:
    host: db.internal
    port: 5433
    user: charforge
    database: charforge
rules:
  dir: /etc/charforge/rules
engine:
  dice_seed: 99
  audit_limit: 200
logging:
  level: DEBUG
  console_enabled: true
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Database.Postgres.Host != "db.internal" || cfg.Database.Postgres.Port != 5433 {
		t.Errorf("postgres = %+v", cfg.Database.Postgres)
	}
	if cfg.Rules.Dir != "/etc/charforge/rules" {
		t.Errorf("rules dir = %q", cfg.Rules.Dir)
	}
	if cfg.Engine.DiceSeed != 99 || cfg.Engine.AuditLimit != 200 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(configPath, []byte("database: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(configPath); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CHARFORGE_DB_DRIVER", "postgres")
	t.Setenv("CHARFORGE_PG_HOST", "override.internal")
	t.Setenv("CHARFORGE_PG_PASSWORD", "hunter2")
	t.Setenv("CHARFORGE_RULES_DIR", "/srv/rules")

	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("driver = %q, want postgres", cfg.Database.Driver)
	}
	if cfg.Database.Postgres.Host != "override.internal" {
		t.Errorf("host = %q", cfg.Database.Postgres.Host)
	}
	if cfg.Database.Postgres.Password != "hunter2" {
		t.Errorf("password not applied from env")
	}
	if cfg.Rules.Dir != "/srv/rules" {
		t.Errorf("rules dir = %q", cfg.Rules.Dir)
	}
}
