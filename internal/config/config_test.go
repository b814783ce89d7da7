package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
server:
  port: "9090"
  allowedOrigins: ["http://localhost:5173"]
store:
  driver: sqlite
sqlite:
  path: /tmp/certs.db
redis:
  addr: localhost:6379
  ttl: 30m
quiz:
  cacheTtl: 1h
gemini:
  apiKey: from-file
rateLimit:
  generatePerMinute: 3
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Store.Driver != "sqlite" || cfg.SQLite.Path != "/tmp/certs.db" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Gemini.APIKey != "from-env" {
		t.Fatalf("expected env override, got %q", cfg.Gemini.APIKey)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.Server.AllowedOrigins)
	}
	if cfg.RateLimit.GeneratePerMinute != 3 {
		t.Fatalf("expected 3 per minute, got %d", cfg.RateLimit.GeneratePerMinute)
	}
	if got := TTLDuration(cfg.Quiz.CacheTTL, time.Minute); got != time.Hour {
		t.Fatalf("expected 1h cache ttl, got %s", got)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Store.Driver != "memory" || cfg.Log.Level != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_PostgresURLSelectsDriver(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/certs")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Driver != "postgres" {
		t.Fatalf("expected postgres driver, got %q", cfg.Store.Driver)
	}
}

func TestTTLDuration(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"", time.Minute},
		{"garbage", time.Minute},
		{"45s", 45 * time.Second},
	}
	for _, tt := range tests {
		if got := TTLDuration(tt.raw, time.Minute); got != tt.want {
			t.Fatalf("TTLDuration(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}
