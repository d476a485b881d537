package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFallsBackToDefaultsWhenDefaultPathMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:8080" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
	if cfg.Database.MaxConnections != 10 || !cfg.Database.WAL {
		t.Fatalf("database defaults = %+v", cfg.Database)
	}
	w, ok := cfg.Writers["test_result"]
	if !ok {
		t.Fatalf("implied test_result writer missing")
	}
	if w.BatchSize != 100 || w.FlushIntervalMS != 1000 {
		t.Fatalf("writer defaults = %+v", w)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml"), true); err == nil {
		t.Fatalf("expected error for explicitly requested missing file")
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.toml")
	body := `
[server]
port = 9090

[database]
url = "test.db"

[writers.test_result]
batch_size = 5

[data_retention.test_result]
enabled = true
period_in_day = 0
cron = "0 * * * * *"

[data_retention.execution]
enabled = true

[execution_suggest]
enabled = true
min_query_len = 1
max_query_len = 4
max_candidates = 3
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("server = %+v", cfg.Server)
	}
	w := cfg.Writers["test_result"]
	if w.BatchSize != 5 {
		t.Fatalf("batch_size = %d", w.BatchSize)
	}
	if w.FlushIntervalMS != 1000 {
		t.Fatalf("flush_interval_ms should default to 1000, got %d", w.FlushIntervalMS)
	}
	tr := cfg.Retention["test_result"]
	if tr.Days() != 0 {
		t.Fatalf("explicit period_in_day = 0 must be honored, got %d", tr.Days())
	}
	ex := cfg.Retention["execution"]
	if ex.Days() != 90 {
		t.Fatalf("absent period_in_day must default to 90, got %d", ex.Days())
	}
	if ex.Cron != DefaultRetentionCron {
		t.Fatalf("absent cron must default, got %q", ex.Cron)
	}
	if !cfg.Suggest.Enabled || cfg.Suggest.MaxCandidates != 3 {
		t.Fatalf("suggest = %+v", cfg.Suggest)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = -1 }},
		{"empty db url", func(c *Config) { c.Database.URL = "" }},
		{"zero pool", func(c *Config) { c.Database.MaxConnections = 0 }},
		{"zero batch", func(c *Config) { c.Writers["test_result"] = WriterConfig{BatchSize: 0, FlushIntervalMS: 100} }},
		{"auth without secret", func(c *Config) { c.Auth.Enabled = true; c.Auth.SecretPath = "" }},
		{"auth bad algorithm", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.Algorithm = "none"
			c.Auth.SecretPath = "key.pem"
		}},
		{"bad cron", func(c *Config) {
			c.Retention["test_result"] = RetentionConfig{Enabled: true, Cron: "not a cron"}
		}},
		{"suggest bounds", func(c *Config) {
			c.Suggest.Enabled = true
			c.Suggest.MinQueryLen = 5
			c.Suggest.MaxQueryLen = 2
		}},
		{"rate limit burst", func(c *Config) { c.Server.RateLimit.RPS = 5; c.Server.RateLimit.Burst = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.normalize()
			tc.mut(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RESULTDB_ADDR", "0.0.0.0:7777")
	t.Setenv("RESULTDB_DB_URL", "/tmp/override.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:7777" {
		t.Fatalf("addr = %q", cfg.Addr())
	}
	if cfg.Database.URL != "/tmp/override.db" {
		t.Fatalf("db url = %q", cfg.Database.URL)
	}
}

func TestResolvePathPrecedence(t *testing.T) {
	t.Setenv("APP_CONFIG", "")
	t.Setenv("APP_ENV", "")
	if p, explicit := ResolvePath("custom.toml"); p != "custom.toml" || !explicit {
		t.Fatalf("flag path: %q %v", p, explicit)
	}
	t.Setenv("APP_CONFIG", "/etc/resultdb.toml")
	if p, explicit := ResolvePath(""); p != "/etc/resultdb.toml" || !explicit {
		t.Fatalf("APP_CONFIG path: %q %v", p, explicit)
	}
	t.Setenv("APP_CONFIG", "")
	t.Setenv("APP_ENV", "prod")
	if p, explicit := ResolvePath(""); p != filepath.Join("config", "prod.toml") || explicit {
		t.Fatalf("APP_ENV path: %q %v", p, explicit)
	}
	t.Setenv("APP_ENV", "")
	if p, _ := ResolvePath(""); p != filepath.Join("config", "dev.toml") {
		t.Fatalf("default path: %q", p)
	}
}
