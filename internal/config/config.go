package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/basket/go-craft/internal/otel"
)

const (
	ProgressBackendFile   = "file"
	ProgressBackendSQLite = "sqlite"

	LedgerRemote = "remote"
	LedgerLocal  = "local"

	defaultBindAddr        = "127.0.0.1:8001"
	defaultRequestMaxBytes = 1 << 20
)

// CORSConfig controls browser access to the API.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// RateLimitConfig bounds requests per client address.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	BurstSize         int  `yaml:"burst_size"`
}

type ProgressConfig struct {
	// Backend is "file" (progress.json in the home dir) or "sqlite".
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type ProgressionConfig struct {
	// Ledger is "remote" (the server owns xp) or "local" (offline use).
	Ledger string `yaml:"ledger"`
}

// RecurringReset resets completed recurring quests of one period on a cron
// schedule.
type RecurringReset struct {
	PeriodType string `yaml:"period_type"`
	Cron       string `yaml:"cron"`
}

type Config struct {
	HomeDir string `yaml:"-"`

	BindAddr      string `yaml:"bind_addr"`
	LogLevel      string `yaml:"log_level"`
	APIBaseURL    string `yaml:"api_base_url"`
	DefaultUserID int64  `yaml:"default_user_id"`
	DBPath        string `yaml:"db_path"`

	Progress    ProgressConfig    `yaml:"progress"`
	Progression ProgressionConfig `yaml:"progression"`

	CORS            CORSConfig      `yaml:"cors"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	RequestMaxBytes int64           `yaml:"request_max_bytes"`

	Telemetry otel.Config `yaml:"telemetry"`

	RecurringResets []RecurringReset `yaml:"recurring_resets"`

	// DrainTimeoutSeconds bounds graceful shutdown. 0 uses 5s.
	DrainTimeoutSeconds int `yaml:"drain_timeout_seconds"`

	NeedsGenesis bool `yaml:"-"`
}

// ConfigPath returns the path to config.yaml within the given home directory.
func ConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}

// loadRawConfig reads config.yaml into a generic map, returning an empty map if the file doesn't exist.
func loadRawConfig(path string) (map[string]interface{}, error) {
	raw := make(map[string]interface{})
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config.yaml: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse config.yaml: %w", err)
		}
	}
	return raw, nil
}

// saveRawConfig marshals and writes a generic map back to config.yaml.
func saveRawConfig(path string, raw map[string]interface{}) error {
	out, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal config.yaml: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

// SetValue updates one top-level key in config.yaml, preserving other settings.
func SetValue(homeDir, key string, value interface{}) error {
	configPath := ConfigPath(homeDir)
	raw, err := loadRawConfig(configPath)
	if err != nil {
		return err
	}
	raw[key] = value
	return saveRawConfig(configPath, raw)
}

// Fingerprint returns a stable hash of the active config.
func (c Config) Fingerprint() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "bind=%s|log=%s|api=%s|user=%d|db=%s|progress=%s:%s|ledger=%s|cors=%v|rate=%v|max=%d|otel=%v|resets=%v",
		c.BindAddr, c.LogLevel, c.APIBaseURL, c.DefaultUserID, c.DBPath,
		c.Progress.Backend, c.Progress.Path, c.Progression.Ledger,
		c.CORS, c.RateLimit, c.RequestMaxBytes, c.Telemetry.Enabled, c.RecurringResets)
	return fmt.Sprintf("cfg-%x", h.Sum64())
}

// DefaultRecurringResets resets daily quests at midnight, weekly quests on
// Monday and monthly quests on the first.
func DefaultRecurringResets() []RecurringReset {
	return []RecurringReset{
		{PeriodType: "daily", Cron: "0 0 * * *"},
		{PeriodType: "weekly", Cron: "0 0 * * 1"},
		{PeriodType: "monthly", Cron: "0 0 1 * *"},
	}
}

func defaultConfig() Config {
	return Config{
		BindAddr:            defaultBindAddr,
		LogLevel:            "info",
		DefaultUserID:       1,
		Progress:            ProgressConfig{Backend: ProgressBackendFile},
		Progression:         ProgressionConfig{Ledger: LedgerRemote},
		RequestMaxBytes:     defaultRequestMaxBytes,
		RecurringResets:     DefaultRecurringResets(),
		DrainTimeoutSeconds: 5,
	}
}

func HomeDir() string {
	if override := os.Getenv("GOCRAFT_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".gocraft")
}

func Load() (Config, error) {
	cfg := defaultConfig()
	cfg.HomeDir = HomeDir()

	if err := os.MkdirAll(cfg.HomeDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create gocraft home: %w", err)
	}

	configPath := ConfigPath(cfg.HomeDir)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.NeedsGenesis = true
		} else {
			return cfg, fmt.Errorf("read config.yaml: %w", err)
		}
	} else if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config.yaml: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func normalize(cfg *Config) {
	if cfg.BindAddr == "" {
		cfg.BindAddr = defaultBindAddr
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://" + cfg.BindAddr + "/api/v1"
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if cfg.DefaultUserID <= 0 {
		cfg.DefaultUserID = 1
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.HomeDir, "gocraft.db")
	}

	cfg.Progress.Backend = strings.ToLower(strings.TrimSpace(cfg.Progress.Backend))
	if cfg.Progress.Backend == "" {
		cfg.Progress.Backend = ProgressBackendFile
	}
	if cfg.Progress.Path == "" {
		switch cfg.Progress.Backend {
		case ProgressBackendSQLite:
			cfg.Progress.Path = filepath.Join(cfg.HomeDir, "progress.db")
		default:
			cfg.Progress.Path = filepath.Join(cfg.HomeDir, "progress.json")
		}
	}
	cfg.Progression.Ledger = strings.ToLower(strings.TrimSpace(cfg.Progression.Ledger))
	if cfg.Progression.Ledger == "" {
		cfg.Progression.Ledger = LedgerRemote
	}

	if cfg.RequestMaxBytes <= 0 {
		cfg.RequestMaxBytes = defaultRequestMaxBytes
	}
	if cfg.DrainTimeoutSeconds <= 0 {
		cfg.DrainTimeoutSeconds = 5
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "gocraft"
	}
}

func validate(cfg Config) error {
	switch cfg.Progress.Backend {
	case ProgressBackendFile, ProgressBackendSQLite:
	default:
		return fmt.Errorf("progress.backend %q must be %q or %q", cfg.Progress.Backend, ProgressBackendFile, ProgressBackendSQLite)
	}
	switch cfg.Progression.Ledger {
	case LedgerRemote, LedgerLocal:
	default:
		return fmt.Errorf("progression.ledger %q must be %q or %q", cfg.Progression.Ledger, LedgerRemote, LedgerLocal)
	}
	for i, r := range cfg.RecurringResets {
		switch r.PeriodType {
		case "daily", "weekly", "monthly":
		default:
			return fmt.Errorf("recurring_resets[%d]: unknown period_type %q", i, r.PeriodType)
		}
		if strings.TrimSpace(r.Cron) == "" {
			return fmt.Errorf("recurring_resets[%d]: cron is required", i)
		}
	}
	return cfg.Telemetry.Validate()
}

func applyEnvOverrides(cfg *Config) {
	if raw := os.Getenv("GOCRAFT_BIND_ADDR"); raw != "" {
		cfg.BindAddr = raw
	}
	if raw := os.Getenv("GOCRAFT_LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := os.Getenv("GOCRAFT_API_BASE_URL"); raw != "" {
		cfg.APIBaseURL = raw
	}
	if raw := os.Getenv("GOCRAFT_DEFAULT_USER_ID"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cfg.DefaultUserID = v
		}
	}
	if raw := os.Getenv("GOCRAFT_DB_PATH"); raw != "" {
		cfg.DBPath = raw
	}
	if raw := os.Getenv("GOCRAFT_PROGRESS_BACKEND"); raw != "" {
		cfg.Progress.Backend = raw
	}
	if raw := os.Getenv("GOCRAFT_LEDGER"); raw != "" {
		cfg.Progression.Ledger = raw
	}
	if raw := os.Getenv("GOCRAFT_REQUEST_MAX_BYTES"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cfg.RequestMaxBytes = v
		}
	}
	if raw := os.Getenv("GOCRAFT_DRAIN_TIMEOUT_SECONDS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.DrainTimeoutSeconds = v
		}
	}
	if raw := os.Getenv("GOCRAFT_OTEL_ENDPOINT"); raw != "" {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Endpoint = raw
		if cfg.Telemetry.Exporter == "" {
			cfg.Telemetry.Exporter = "otlp-http"
		}
	}
}
