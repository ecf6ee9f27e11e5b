// Package config layers estateview settings from defaults, the
// config.json file in the data directory, environment variables
// and command-line flags.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/wesm/estateview/internal/analytics"
)

// Environment variables read by Load.
const (
	EnvAPIURL          = "ESTATEVIEW_API_URL"
	EnvAPIToken        = "ESTATEVIEW_API_TOKEN"
	EnvDataDir         = "ESTATEVIEW_DATA_DIR"
	EnvRefreshInterval = "ESTATEVIEW_REFRESH_INTERVAL"
)

const dbFileName = "estateview.db"

// Config holds all application configuration.
type Config struct {
	Host            string                `json:"host"`
	Port            int                   `json:"port"`
	APIURL          string                `json:"api_url"`
	APIToken        string                `json:"api_token,omitempty"`
	DataDir         string                `json:"data_dir"`
	DBPath          string                `json:"-"`
	HeatmapRows     int                   `json:"heatmap_rows"`
	ActivityLimit   int                   `json:"activity_limit"`
	Granularity     analytics.Granularity `json:"granularity"`
	RefreshInterval time.Duration         `json:"-"`
	WriteTimeout    time.Duration         `json:"-"`
	NoPersist       bool                  `json:"no_persist"`
}

// Default returns a Config with default values.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf(
			"determining home directory: %w", err,
		)
	}
	dataDir := filepath.Join(home, ".estateview")
	return Config{
		Host:            "127.0.0.1",
		Port:            8090,
		APIURL:          "http://localhost:3000/api",
		DataDir:         dataDir,
		DBPath:          filepath.Join(dataDir, dbFileName),
		HeatmapRows:     analytics.DefaultHeatmapRows,
		ActivityLimit:   50,
		Granularity:     analytics.DefaultGranularity,
		RefreshInterval: 5 * time.Minute,
		WriteTimeout:    30 * time.Second,
	}, nil
}

// Load builds a Config by layering: defaults < config file < env < flags.
// The provided FlagSet must already be parsed by the caller.
// Only flags that were explicitly set override the lower layers.
func Load(fs *pflag.FlagSet) (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}

	// The data dir locates config.json, so it resolves first.
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if fs != nil && fs.Changed("data-dir") {
		cfg.DataDir, _ = fs.GetString("data-dir")
	}

	if err := cfg.loadFile(); err != nil {
		return cfg, fmt.Errorf("loading config file: %w", err)
	}
	if err := cfg.loadEnv(); err != nil {
		return cfg, err
	}
	if err := applyFlags(&cfg, fs); err != nil {
		return cfg, err
	}
	cfg.DBPath = filepath.Join(cfg.DataDir, dbFileName)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ConfigPath returns the path of config.json in the data dir.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.DataDir, "config.json")
}

func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.ConfigPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var file struct {
		Host            string `json:"host"`
		Port            *int   `json:"port"`
		APIURL          string `json:"api_url"`
		APIToken        string `json:"api_token"`
		HeatmapRows     *int   `json:"heatmap_rows"`
		ActivityLimit   *int   `json:"activity_limit"`
		Granularity     string `json:"granularity"`
		RefreshInterval string `json:"refresh_interval"`
		WriteTimeout    string `json:"write_timeout"`
		NoPersist       *bool  `json:"no_persist"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if file.Host != "" {
		c.Host = file.Host
	}
	if file.Port != nil {
		c.Port = *file.Port
	}
	if file.APIURL != "" {
		c.APIURL = file.APIURL
	}
	if file.APIToken != "" {
		c.APIToken = file.APIToken
	}
	if file.HeatmapRows != nil {
		c.HeatmapRows = *file.HeatmapRows
	}
	if file.ActivityLimit != nil {
		c.ActivityLimit = *file.ActivityLimit
	}
	if file.Granularity != "" {
		c.Granularity = analytics.Granularity(file.Granularity)
	}
	if file.RefreshInterval != "" {
		d, err := time.ParseDuration(file.RefreshInterval)
		if err != nil {
			return fmt.Errorf("parsing refresh_interval: %w", err)
		}
		c.RefreshInterval = d
	}
	if file.WriteTimeout != "" {
		d, err := time.ParseDuration(file.WriteTimeout)
		if err != nil {
			return fmt.Errorf("parsing write_timeout: %w", err)
		}
		c.WriteTimeout = d
	}
	if file.NoPersist != nil {
		c.NoPersist = *file.NoPersist
	}
	return nil
}

func (c *Config) loadEnv() error {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv(EnvAPIToken); v != "" {
		c.APIToken = v
	}
	if v := os.Getenv(EnvRefreshInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvRefreshInterval, err)
		}
		c.RefreshInterval = d
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") ||
		u.Host == "" {
		return fmt.Errorf("invalid api_url %q", c.APIURL)
	}
	if c.HeatmapRows < 1 {
		return fmt.Errorf("heatmap_rows must be at least 1")
	}
	if c.ActivityLimit < 1 {
		return fmt.Errorf("activity_limit must be at least 1")
	}
	g, err := analytics.ParseGranularity(string(c.Granularity))
	if err != nil {
		return err
	}
	c.Granularity = g
	if c.RefreshInterval < 0 {
		return fmt.Errorf("refresh_interval must not be negative")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive")
	}
	return nil
}

// RegisterFlags registers flags shared by every command on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("data-dir", "", "Data directory (default ~/.estateview)")
	fs.String("api-url", "", "Base URL of the property analytics API")
	fs.String("api-token", "", "Bearer token for the analytics API")
	fs.String("granularity", string(analytics.DefaultGranularity),
		"Sales granularity: daily, weekly, monthly or yearly")
	fs.Int("activity-limit", 50, "Number of recent activities to fetch")
}

// RegisterServeFlags registers serve-command flags on fs.
// The caller must call fs.Parse before passing fs to Load.
func RegisterServeFlags(fs *pflag.FlagSet) {
	fs.String("host", "127.0.0.1", "Host to bind to")
	fs.Int("port", 8090, "Port to listen on")
	fs.Int("heatmap-rows", analytics.DefaultHeatmapRows,
		"Number of locations shown in the heatmap")
	fs.Duration("refresh-interval", 5*time.Minute,
		"Periodic refresh interval (0 disables)")
	fs.Duration("write-timeout", 30*time.Second,
		"Timeout for API handlers")
	fs.Bool("no-persist", false, "Don't store snapshots in SQLite")
}

// applyFlags copies explicitly-set flags from fs into cfg.
func applyFlags(cfg *Config, fs *pflag.FlagSet) error {
	if fs == nil {
		return nil
	}
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		v := f.Value.String()
		switch f.Name {
		case "host":
			cfg.Host = v
		case "port":
			// pflag already validated the int; ignore parse error
			cfg.Port, _ = strconv.Atoi(v)
		case "api-url":
			cfg.APIURL = v
		case "api-token":
			cfg.APIToken = v
		case "granularity":
			cfg.Granularity = analytics.Granularity(v)
		case "activity-limit":
			cfg.ActivityLimit, _ = strconv.Atoi(v)
		case "heatmap-rows":
			cfg.HeatmapRows, _ = strconv.Atoi(v)
		case "refresh-interval":
			cfg.RefreshInterval, err = time.ParseDuration(v)
		case "write-timeout":
			cfg.WriteTimeout, err = time.ParseDuration(v)
		case "no-persist":
			cfg.NoPersist = v == "true"
		}
	})
	return err
}

// ResolveDataDir returns the effective data directory by applying
// defaults and environment overrides, without reading any files.
func ResolveDataDir() (string, error) {
	cfg, err := Default()
	if err != nil {
		return "", err
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	return cfg.DataDir, nil
}

// SaveAPIToken persists the API token to the config file,
// keeping any other keys it already holds.
func (c *Config) SaveAPIToken(token string) error {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	existing := make(map[string]any)
	data, err := os.ReadFile(c.ConfigPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf(
				"existing config is invalid, cannot update: %w",
				err,
			)
		}
	}

	existing["api_token"] = token
	out, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(c.ConfigPath(), out, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	c.APIToken = token
	return nil
}
