package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/joeblew999/geofield/internal/field"
)

// Config holds all application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Search    SearchConfig    `mapstructure:"search"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	Store     StoreConfig     `mapstructure:"store"`
	Fields    []field.Config  `mapstructure:"fields"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SearchConfig struct {
	Provider  string          `mapstructure:"provider"`
	Google    GoogleConfig    `mapstructure:"google"`
	Nominatim NominatimConfig `mapstructure:"nominatim"`
}

type GoogleConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Region  string `mapstructure:"region"`
}

type NominatimConfig struct {
	URL       string `mapstructure:"url"`
	UserAgent string `mapstructure:"user_agent"`
	Limit     int    `mapstructure:"limit"`
}

type BootstrapConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

// Search providers.
const (
	ProviderGoogle    = "google"
	ProviderNominatim = "nominatim"
	ProviderNone      = "none"
)

// Store drivers.
const (
	DriverDuckDB = "duckdb"
	DriverFile   = "file"
)

// Load reads configuration from an optional file and environment variables.
// An empty path looks for geofield.yaml in the working directory and ./configs.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("search.provider", ProviderNominatim)
	v.SetDefault("search.google.api_key", "")
	v.SetDefault("search.google.base_url", "")
	v.SetDefault("search.google.region", "")
	v.SetDefault("search.nominatim.url", "https://nominatim.openstreetmap.org")
	v.SetDefault("search.nominatim.user_agent", "geofield/0.1")
	v.SetDefault("search.nominatim.limit", 5)
	v.SetDefault("bootstrap.timeout", "2s")
	v.SetDefault("store.driver", DriverDuckDB)
	v.SetDefault("fields", []map[string]any{
		{"name": "location", "label": "Location"},
	})

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("geofield")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		_ = v.ReadInConfig() // OK if missing
	}

	// Environment variables: GEOFIELD_SEARCH_PROVIDER → search.provider
	v.SetEnvPrefix("GEOFIELD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	for i := range cfg.Fields {
		cfg.Fields[i] = cfg.Fields[i].WithDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level must be debug|info|warn|error, got %q", c.Log.Level))
	}
	switch c.Search.Provider {
	case ProviderGoogle:
		if c.Search.Google.APIKey == "" {
			errs = append(errs, "search.google.api_key is required for the google provider")
		}
	case ProviderNominatim:
		if c.Search.Nominatim.UserAgent == "" {
			errs = append(errs, "search.nominatim.user_agent is required")
		}
	case ProviderNone:
	default:
		errs = append(errs, fmt.Sprintf("search.provider must be google|nominatim|none, got %q", c.Search.Provider))
	}
	if c.Bootstrap.Timeout <= 0 {
		errs = append(errs, "bootstrap.timeout must be positive")
	}
	switch c.Store.Driver {
	case DriverDuckDB, DriverFile:
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be duckdb|file, got %q", c.Store.Driver))
	}

	seen := make(map[string]bool, len(c.Fields))
	for i, f := range c.Fields {
		for _, e := range f.Validate() {
			errs = append(errs, fmt.Sprintf("fields[%d]: %s", i, e))
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Sprintf("fields[%d]: duplicate name %q", i, f.Name))
		}
		seen[f.Name] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Field returns the catalogue entry named name.
func (c *Config) Field(name string) (field.Config, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return field.Config{}, false
}
