package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/dpe-search/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	RefData  RefDataConfig  `yaml:"refdata" mapstructure:"refdata"`
	Search   SearchConfig   `yaml:"search" mapstructure:"search"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	ReadTimeoutSecs  int      `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	WriteTimeoutSecs int      `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
	CORSOrigins      []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// RegistryConfig configures the DPE open-data registry client.
type RegistryConfig struct {
	BaseURL                 string  `yaml:"base_url" mapstructure:"base_url"`
	CurrentDataset          string  `yaml:"current_dataset" mapstructure:"current_dataset"`
	LegacyDataset           string  `yaml:"legacy_dataset" mapstructure:"legacy_dataset"`
	TimeoutSecs             int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit               float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RetryMaxAttempts        int     `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryInitialBackoffMs   int     `yaml:"retry_initial_backoff_ms" mapstructure:"retry_initial_backoff_ms"`
	RetryMaxBackoffMs       int     `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
	CircuitFailureThreshold int     `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetSecs        int     `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// Retry returns the retry policy for registry calls.
func (r RegistryConfig) Retry() resilience.RetryConfig {
	return resilience.FromSettings(r.RetryMaxAttempts, r.RetryInitialBackoffMs, r.RetryMaxBackoffMs)
}

// Breaker returns the per-dataset circuit breaker policy.
func (r RegistryConfig) Breaker() resilience.BreakerConfig {
	cfg := resilience.DefaultBreakerConfig()
	if r.CircuitFailureThreshold > 0 {
		cfg.FailureThreshold = r.CircuitFailureThreshold
	}
	if r.CircuitResetSecs > 0 {
		cfg.ResetTimeout = time.Duration(r.CircuitResetSecs) * time.Second
	}
	return cfg
}

// GeocodeConfig configures the address geocoders.
type GeocodeConfig struct {
	BANURL       string  `yaml:"ban_url" mapstructure:"ban_url"`
	NominatimURL string  `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	UserAgent    string  `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RefDataConfig configures where department reference data comes from.
type RefDataConfig struct {
	// Source is one of "file", "http" or "postgres".
	Source        string `yaml:"source" mapstructure:"source"`
	Dir           string `yaml:"dir" mapstructure:"dir"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	CachePath     string `yaml:"cache_path" mapstructure:"cache_path"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// SearchConfig tunes the search service.
type SearchConfig struct {
	MaxResults        int     `yaml:"max_results" mapstructure:"max_results"`
	LegacyThreshold   int     `yaml:"legacy_threshold" mapstructure:"legacy_threshold"`
	EnrichTop         int     `yaml:"enrich_top" mapstructure:"enrich_top"`
	EnrichConcurrency int     `yaml:"enrich_concurrency" mapstructure:"enrich_concurrency"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	TiersFile         string  `yaml:"tiers_file" mapstructure:"tiers_file"`
	FuzzyRadiusKM     float64 `yaml:"fuzzy_radius_km" mapstructure:"fuzzy_radius_km"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_secs", 10)
	v.SetDefault("server.write_timeout_secs", 60)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("registry.base_url", "https://data.ademe.fr/data-fair/api/v1")
	v.SetDefault("registry.current_dataset", "dpe03existant")
	v.SetDefault("registry.legacy_dataset", "dpe-france")
	v.SetDefault("registry.timeout_secs", 20)
	v.SetDefault("registry.rate_limit", 10)
	v.SetDefault("registry.retry_max_attempts", 2)
	v.SetDefault("registry.retry_initial_backoff_ms", 250)
	v.SetDefault("registry.retry_max_backoff_ms", 2000)
	v.SetDefault("registry.circuit_failure_threshold", 5)
	v.SetDefault("registry.circuit_reset_secs", 30)
	v.SetDefault("geocode.ban_url", "https://api-adresse.data.gouv.fr")
	v.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "dpe-search/1.0")
	v.SetDefault("geocode.rate_limit", 5)
	v.SetDefault("refdata.source", "file")
	v.SetDefault("refdata.dir", "data/departements")
	v.SetDefault("refdata.cache_path", "dpe-cache.db")
	v.SetDefault("refdata.cache_ttl_hours", 168)
	v.SetDefault("search.max_results", 20)
	v.SetDefault("search.legacy_threshold", 90)
	v.SetDefault("search.enrich_top", 3)
	v.SetDefault("search.enrich_concurrency", 3)
	v.SetDefault("search.timeout_secs", 45)
	v.SetDefault("search.fuzzy_radius_km", 25)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is the command name:
// "search", "resolve", "serve" or "refdata".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "search", "resolve", "refdata":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.RefData.Source {
	case "file":
		if c.RefData.Dir == "" {
			errs = append(errs, "refdata.dir is required for source file")
		}
	case "http":
		if c.RefData.BaseURL == "" {
			errs = append(errs, "refdata.base_url is required for source http")
		}
	case "postgres":
		if c.RefData.DatabaseURL == "" {
			errs = append(errs, "refdata.database_url is required for source postgres")
		}
	default:
		errs = append(errs, "refdata.source must be one of file, http, postgres")
	}
	if mode == "refdata" && c.RefData.CachePath == "" {
		errs = append(errs, "refdata.cache_path is required")
	}

	if mode != "refdata" {
		if c.Registry.BaseURL == "" {
			errs = append(errs, "registry.base_url is required")
		}
		if c.Registry.CurrentDataset == "" || c.Registry.LegacyDataset == "" {
			errs = append(errs, "registry.current_dataset and registry.legacy_dataset are required")
		}
		if c.Search.MaxResults < 1 || c.Search.MaxResults > 100 {
			errs = append(errs, "search.max_results must be between 1 and 100")
		}
		if c.Search.LegacyThreshold < 0 || c.Search.LegacyThreshold > 100 {
			errs = append(errs, "search.legacy_threshold must be between 0 and 100")
		}
		if c.Search.EnrichTop < 0 || c.Search.EnrichConcurrency < 0 {
			errs = append(errs, "search.enrich_top and search.enrich_concurrency must be >= 0")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
