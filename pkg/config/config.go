package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultBatchSize       = 100
	DefaultFlushIntervalMS = 1000
	DefaultRetentionDays   = 90
	DefaultRetentionCron   = "0 0 3 * * Sun"
)

type Config struct {
	Server    ServerConfig               `toml:"server"`
	Logging   LoggingConfig              `toml:"logging"`
	Database  DatabaseConfig             `toml:"database"`
	Writers   map[string]WriterConfig    `toml:"writers"`
	Auth      AuthConfig                 `toml:"auth"`
	Retention map[string]RetentionConfig `toml:"data_retention"`
	Suggest   SuggestConfig              `toml:"execution_suggest"`
}

type ServerConfig struct {
	Host            string          `toml:"host"`
	Port            int             `toml:"port"`
	ShutdownGraceMS int             `toml:"shutdown_grace_ms"`
	RateLimit       RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig throttles per client IP. Disabled while RPS is zero.
type RateLimitConfig struct {
	RPS   float64 `toml:"rps"`
	Burst int     `toml:"burst"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text|json
}

type DatabaseConfig struct {
	URL               string `toml:"url"`
	MaxConnections    int    `toml:"max_connections"`
	WAL               bool   `toml:"wal"`
	WALAutocheckpoint int    `toml:"wal_autocheckpoint"`
}

type WriterConfig struct {
	BatchSize       int `toml:"batch_size"`
	FlushIntervalMS int `toml:"flush_interval_ms"`
}

// FlushInterval returns the flush interval as a duration.
func (w WriterConfig) FlushInterval() time.Duration {
	return time.Duration(w.FlushIntervalMS) * time.Millisecond
}

type AuthConfig struct {
	Enabled    bool   `toml:"enabled"`
	Algorithm  string `toml:"algorithm"` // HS256|RS256|ES256
	SecretPath string `toml:"secret_path"`
}

// RetentionConfig controls one sweep loop. PeriodInDay is a pointer so an
// explicit zero (delete everything on each sweep) stays distinguishable
// from an absent key, which means the 90-day default.
type RetentionConfig struct {
	Enabled     bool   `toml:"enabled"`
	PeriodInDay *int   `toml:"period_in_day"`
	Cron        string `toml:"cron"`
}

// Days returns the retention window in days, defaulting when unset.
func (r RetentionConfig) Days() int {
	if r.PeriodInDay == nil {
		return DefaultRetentionDays
	}
	return *r.PeriodInDay
}

type SuggestConfig struct {
	Enabled       bool `toml:"enabled"`
	MinQueryLen   int  `toml:"min_query_len"`
	MaxQueryLen   int  `toml:"max_query_len"`
	MaxCandidates int  `toml:"max_candidates"`
}

// Default returns a Config populated with documented defaults. Load unmarshals
// the TOML file on top of it so absent keys keep these values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ShutdownGraceMS: 10000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Database: DatabaseConfig{
			URL:               "data/resultdb.db",
			MaxConnections:    10,
			WAL:               true,
			WALAutocheckpoint: 1000,
		},
		Writers: map[string]WriterConfig{},
		Auth: AuthConfig{
			Algorithm: "HS256",
		},
		Retention: map[string]RetentionConfig{},
		Suggest: SuggestConfig{
			MinQueryLen:   2,
			MaxQueryLen:   10,
			MaxCandidates: 10,
		},
	}
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	host := c.Server.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := c.Server.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// ShutdownGrace returns the writer drain deadline applied during shutdown.
func (c *Config) ShutdownGrace() time.Duration {
	ms := c.Server.ShutdownGraceMS
	if ms <= 0 {
		ms = 10000
	}
	return time.Duration(ms) * time.Millisecond
}

// ResolvePath picks the config file. Precedence: -config flag, APP_CONFIG,
// then config/{APP_ENV}.toml with APP_ENV defaulting to dev. The boolean
// reports whether the path was explicitly requested; explicit paths must
// exist while the default path may be absent.
func ResolvePath(flagPath string) (string, bool) {
	if flagPath != "" {
		return flagPath, true
	}
	if v := os.Getenv("APP_CONFIG"); v != "" {
		return v, true
	}
	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "dev"
	}
	return filepath.Join("config", env+".toml"), false
}

// ParseCommandFlags defines and parses command-line flags.
func ParseCommandFlags() (cfgPath string) {
	cfgPtr := flag.String("config", "", "path to TOML config file (overrides APP_CONFIG/APP_ENV)")
	flag.Parse()
	return *cfgPtr
}

// Load reads and decodes the TOML file at path on top of Default, applies
// env overrides, normalizes derived sections and validates the result. A
// missing file is fatal only when explicitly requested.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			cfg.applyEnvOverrides()
			cfg.normalize()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers a small set of env vars over the file values so
// containerized deploys can retarget without editing TOML.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RESULTDB_ADDR"); v != "" {
		if h, p, err := net.SplitHostPort(v); err == nil {
			c.Server.Host = h
			if pi, err := strconv.Atoi(p); err == nil {
				c.Server.Port = pi
			}
		} else {
			c.Server.Host = v
		}
	}
	if v := os.Getenv("RESULTDB_PORT"); v != "" {
		if pi, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.Server.Port = pi
		}
	}
	if v := os.Getenv("RESULTDB_DB_URL"); v != "" {
		c.Database.URL = v
	}
}

// normalize fills derived defaults: the implied test_result writer, zero
// writer fields, and retention cron/period fallbacks.
func (c *Config) normalize() {
	if c.Writers == nil {
		c.Writers = map[string]WriterConfig{}
	}
	if _, ok := c.Writers["test_result"]; !ok {
		c.Writers["test_result"] = WriterConfig{}
	}
	for name, w := range c.Writers {
		if w.BatchSize == 0 {
			w.BatchSize = DefaultBatchSize
		}
		if w.FlushIntervalMS == 0 {
			w.FlushIntervalMS = DefaultFlushIntervalMS
		}
		c.Writers[name] = w
	}
	if c.Retention == nil {
		c.Retention = map[string]RetentionConfig{}
	}
	for name, r := range c.Retention {
		if strings.TrimSpace(r.Cron) == "" {
			r.Cron = DefaultRetentionCron
		}
		c.Retention[name] = r
	}
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if strings.TrimSpace(c.Database.URL) == "" {
		return fmt.Errorf("database.url must not be empty")
	}
	if c.Database.MaxConnections <= 0 {
		return fmt.Errorf("database.max_connections must be positive, got %d", c.Database.MaxConnections)
	}
	for name, w := range c.Writers {
		if w.BatchSize <= 0 {
			return fmt.Errorf("writers.%s.batch_size must be positive, got %d", name, w.BatchSize)
		}
		if w.FlushIntervalMS <= 0 {
			return fmt.Errorf("writers.%s.flush_interval_ms must be positive, got %d", name, w.FlushIntervalMS)
		}
	}
	if c.Auth.Enabled {
		switch c.Auth.Algorithm {
		case "HS256", "RS256", "ES256":
		default:
			return fmt.Errorf("auth.algorithm %q not supported (HS256, RS256, ES256)", c.Auth.Algorithm)
		}
		if strings.TrimSpace(c.Auth.SecretPath) == "" {
			return fmt.Errorf("auth.secret_path required when auth is enabled")
		}
	}
	for name, r := range c.Retention {
		if !r.Enabled {
			continue
		}
		if r.PeriodInDay != nil && *r.PeriodInDay < 0 {
			return fmt.Errorf("data_retention.%s.period_in_day must not be negative", name)
		}
		if !gronx.IsValid(r.Cron) {
			return fmt.Errorf("data_retention.%s.cron %q is not a valid cron expression", name, r.Cron)
		}
	}
	if c.Suggest.Enabled {
		if c.Suggest.MinQueryLen <= 0 {
			return fmt.Errorf("execution_suggest.min_query_len must be positive, got %d", c.Suggest.MinQueryLen)
		}
		if c.Suggest.MaxQueryLen < c.Suggest.MinQueryLen {
			return fmt.Errorf("execution_suggest.max_query_len %d below min_query_len %d", c.Suggest.MaxQueryLen, c.Suggest.MinQueryLen)
		}
		if c.Suggest.MaxCandidates <= 0 {
			return fmt.Errorf("execution_suggest.max_candidates must be positive, got %d", c.Suggest.MaxCandidates)
		}
	}
	if c.Server.RateLimit.RPS < 0 {
		return fmt.Errorf("server.rate_limit.rps must not be negative")
	}
	if c.Server.RateLimit.RPS > 0 && c.Server.RateLimit.Burst <= 0 {
		return fmt.Errorf("server.rate_limit.burst must be positive when rps is set")
	}
	return nil
}
