package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Engine.MaxConcurrent != 10 {
		t.Fatalf("expected default max_concurrent 10, got %d", cfg.Engine.MaxConcurrent)
	}
	if cfg.Engine.DefaultTaskTimeout != 30 {
		t.Fatalf("expected default task timeout 30, got %d", cfg.Engine.DefaultTaskTimeout)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9191
engine:
  max_concurrent: 4
logging:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Fatalf("expected port 9191, got %d", cfg.Server.Port)
	}
	if cfg.Engine.MaxConcurrent != 4 {
		t.Fatalf("expected max_concurrent 4, got %d", cfg.Engine.MaxConcurrent)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoad_InvalidLevelRejected(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: shouting
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestLoad_AuthRequiresSecret(t *testing.T) {
	path := writeConfig(t, `
auth:
  enabled: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for auth without secret")
	}
}

func TestLoad_MissingFileErrors(t *testing.T) {
	if _, err := Load("/nonexistent/config.yml"); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoad_AuthSkipPathsDefault(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"/health", "/version"}
	if len(cfg.Auth.SkipPaths) != len(want) {
		t.Fatalf("expected default skip paths %v, got %v", want, cfg.Auth.SkipPaths)
	}
	for i, p := range want {
		if cfg.Auth.SkipPaths[i] != p {
			t.Fatalf("expected default skip paths %v, got %v", want, cfg.Auth.SkipPaths)
		}
	}
}
