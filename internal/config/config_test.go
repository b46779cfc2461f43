package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Crawler.Concurrency != 5 {
		t.Fatalf("expected default concurrency 5, got %d", cfg.Crawler.Concurrency)
	}
	if cfg.Store.Backend != "memory" {
		t.Fatalf("expected default backend memory, got %q", cfg.Store.Backend)
	}
	if cfg.Mirror.DataDir != "data" {
		t.Fatalf("expected default data dir, got %q", cfg.Mirror.DataDir)
	}
	if got := cfg.Crawler.Timeout(); got != 15*time.Second {
		t.Fatalf("expected timeout 15s, got %v", got)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
crawler:
  concurrency: 8
  user_agent: real-agent
  timeout_seconds: 45
  respect_robots: true
store:
  backend: postgres
  dsn: postgres://localhost/scrapers
  table: records
  max_conns: 10
mirror:
  data_dir: /var/lib/scrapers/data
logging:
  development: false
metrics:
  addr: :9113
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Crawler.Concurrency != 8 || !cfg.Crawler.RespectRobots {
		t.Fatalf("expected crawler overrides to apply: %+v", cfg.Crawler)
	}
	if cfg.Crawler.UserAgent != "real-agent" {
		t.Fatalf("expected user agent override, got %q", cfg.Crawler.UserAgent)
	}
	if cfg.Store.Backend != "postgres" || cfg.Store.MaxConns != 10 {
		t.Fatalf("expected store overrides to apply: %+v", cfg.Store)
	}
	if cfg.Mirror.DataDir != "/var/lib/scrapers/data" {
		t.Fatalf("expected data dir override, got %q", cfg.Mirror.DataDir)
	}
	if cfg.Logging.Development {
		t.Fatalf("expected development logging disabled")
	}
	if cfg.Metrics.Addr != ":9113" {
		t.Fatalf("expected metrics addr override, got %q", cfg.Metrics.Addr)
	}
	if got := cfg.Crawler.Timeout(); got != 45*time.Second {
		t.Fatalf("expected timeout 45s, got %v", got)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Crawler: CrawlerConfig{Concurrency: 1, TimeoutSeconds: 10},
		Store:   StoreConfig{Backend: "memory"},
		Mirror:  MirrorConfig{DataDir: "data"},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid concurrency",
			cfg: func() Config {
				c := base
				c.Crawler.Concurrency = 0
				return c
			}(),
			want: "crawler.concurrency",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.Crawler.TimeoutSeconds = 0
				return c
			}(),
			want: "crawler.timeout_seconds",
		},
		{
			name: "unknown backend",
			cfg: func() Config {
				c := base
				c.Store.Backend = "sqlite"
				return c
			}(),
			want: "store.backend",
		},
		{
			name: "postgres without dsn",
			cfg: func() Config {
				c := base
				c.Store.Backend = "postgres"
				return c
			}(),
			want: "store.dsn",
		},
		{
			name: "missing data dir",
			cfg: func() Config {
				c := base
				c.Mirror.DataDir = ""
				return c
			}(),
			want: "mirror.data_dir",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
