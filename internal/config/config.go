package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Server    Server    `yaml:"server"`
	Database  Database  `yaml:"database"`
	Search    Search    `yaml:"search"`
	Sessions  Sessions  `yaml:"sessions"`
	Charts    Charts    `yaml:"charts"`
	Analytics Analytics `yaml:"analytics"`
	Output    Output    `yaml:"output"`
	Logging   Logging   `yaml:"logging"`
}

type Server struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	ChatRateLimit   RateLimit     `yaml:"chat_rate_limit"`
}

// RateLimit configures the per-client limiter on chat routes.
// A zero Rate disables limiting.
type RateLimit struct {
	Rate      float64       `yaml:"rate"`
	Burst     int           `yaml:"burst"`
	ExpiresIn time.Duration `yaml:"expires_in"`
}

type Database struct {
	// Driver is one of sqlite, postgres or mysql.
	Driver        string        `yaml:"driver"`
	Path          string        `yaml:"path"`
	DSNEnv        string        `yaml:"dsn_env"`
	SlowThreshold time.Duration `yaml:"slow_threshold"`
}

type Search struct {
	PageSize       int           `yaml:"page_size"`
	QueryTimeout   time.Duration `yaml:"query_timeout"`
	FuzzyThreshold int           `yaml:"fuzzy_threshold"`
	GroupBy        string        `yaml:"group_by"`
}

type Sessions struct {
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

type Charts struct {
	Departments []int `yaml:"departments"`
}

type Analytics struct {
	Enabled       bool   `yaml:"enabled"`
	RetentionDays int    `yaml:"retention_days"`
	PurgeSchedule string `yaml:"purge_schedule"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// ConfigDir returns the XDG config directory for guidenaturel.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "guidenaturel")
}

// DataDir returns the XDG data directory for guidenaturel.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "guidenaturel")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/guidenaturel/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'guidenaturel init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default config is invalid: %v", err))
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Server: Server{
			Host:            "127.0.0.1",
			Port:            8000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			ChatRateLimit:   RateLimit{Rate: 5, Burst: 20, ExpiresIn: 3 * time.Minute},
		},
		Database: Database{
			Driver:        "sqlite",
			DSNEnv:        "GUIDENATUREL_DSN",
			SlowThreshold: 500 * time.Millisecond,
		},
		Search: Search{
			PageSize:       50,
			QueryTimeout:   5 * time.Second,
			FuzzyThreshold: 20,
			GroupBy:        "vernacular",
		},
		Sessions: Sessions{
			TTL:             2 * time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Charts: Charts{
			Departments: []int{21, 25, 39, 58, 70, 71, 89, 90},
		},
		Analytics: Analytics{
			Enabled:       true,
			RetentionDays: 90,
			PurgeSchedule: "@daily",
		},
		Logging: Logging{Level: "info"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("invalid database.driver %q: expected sqlite, postgres or mysql", c.Database.Driver)
	}
	if c.Search.PageSize <= 0 {
		return fmt.Errorf("search.page_size must be positive, got %d", c.Search.PageSize)
	}
	if c.Search.FuzzyThreshold < 0 || c.Search.FuzzyThreshold > 100 {
		return fmt.Errorf("search.fuzzy_threshold must be between 0 and 100, got %d", c.Search.FuzzyThreshold)
	}
	switch c.Search.GroupBy {
	case "vernacular", "scientific":
	default:
		return fmt.Errorf("invalid search.group_by %q: expected vernacular or scientific", c.Search.GroupBy)
	}
	if c.Sessions.TTL <= 0 {
		return fmt.Errorf("sessions.ttl must be positive")
	}
	if c.Analytics.Enabled && c.Analytics.RetentionDays <= 0 {
		return fmt.Errorf("analytics.retention_days must be positive when analytics is enabled")
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DatabasePath returns the sqlite file path, defaulting to the data directory.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.GetDataDir(), "guidenaturel.db")
}

// DSN returns the connection string for network databases, read from the
// environment variable named by database.dsn_env.
func (c *Config) DSN() (string, error) {
	if c.Database.Driver == "sqlite" {
		return c.DatabasePath(), nil
	}
	dsn := strings.TrimSpace(os.Getenv(c.Database.DSNEnv))
	if dsn == "" {
		return "", fmt.Errorf("database driver %s requires a DSN in $%s", c.Database.Driver, c.Database.DSNEnv)
	}
	return dsn, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
