package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	TBA       TBAConfig       `yaml:"tba" mapstructure:"tba"`
	Run       RunDefaults     `yaml:"run" mapstructure:"run"`
	Gazetteer GazetteerConfig `yaml:"gazetteer" mapstructure:"gazetteer"`
	Geometry  GeometryConfig  `yaml:"geometry" mapstructure:"geometry"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Region    RegionConfig    `yaml:"region" mapstructure:"region"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Progress  ProgressConfig  `yaml:"progress" mapstructure:"progress"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// TBAConfig holds The Blue Alliance API settings.
type TBAConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	RequestDelayMS int    `yaml:"request_delay_ms" mapstructure:"request_delay_ms"`
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CacheTTLHours  int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent"`
}

// RunDefaults holds the season and region used when no flags are given.
type RunDefaults struct {
	Year  int    `yaml:"year" mapstructure:"year"`
	State string `yaml:"state" mapstructure:"state"`
}

// GazetteerConfig locates the postal-code gazetteer.
type GazetteerConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
	URL  string `yaml:"url" mapstructure:"url"`
}

// GeometryConfig locates the county boundary file.
type GeometryConfig struct {
	Path       string   `yaml:"path" mapstructure:"path"`
	NameFields []string `yaml:"name_fields" mapstructure:"name_fields"`
	URL        string   `yaml:"url" mapstructure:"url"`
}

// OutputConfig configures where exports are written.
type OutputConfig struct {
	Dir  string `yaml:"dir" mapstructure:"dir"`
	XLSX bool   `yaml:"xlsx" mapstructure:"xlsx"`
}

// RegionConfig points at an optional YAML file extending the state table.
type RegionConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// StoreConfig configures the run history and response cache backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// MetricsConfig toggles the prometheus textfile written after each run.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// ProgressConfig configures how front-ends poll pipeline progress.
type ProgressConfig struct {
	PollIntervalMS int `yaml:"poll_interval_ms" mapstructure:"poll_interval_ms"`
}

// ServerConfig configures the form front-end.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
}

// DefaultNameFields lists the attribute names accepted as the county name in
// a boundary file, in priority order.
var DefaultNameFields = []string{"NAME", "NAME10", "COUNTYNAME", "county", "County", "Name"}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FRCMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("tba.key", "FRCMAP_TBA_KEY", "TBA_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind tba key")
	}

	// Defaults
	v.SetDefault("tba.key", "")
	v.SetDefault("tba.base_url", "https://www.thebluealliance.com/api/v3")
	v.SetDefault("tba.request_delay_ms", 200)
	v.SetDefault("tba.timeout_secs", 30)
	v.SetDefault("tba.cache_ttl_hours", 24)
	v.SetDefault("tba.user_agent", "frc-county-map/1.0")
	v.SetDefault("run.year", 2025)
	v.SetDefault("run.state", "MI")
	v.SetDefault("gazetteer.path", "data/US.txt")
	v.SetDefault("gazetteer.url", "https://download.geonames.org/export/zip/US.zip")
	v.SetDefault("geometry.path", "Michigan_County.geojson")
	v.SetDefault("geometry.name_fields", DefaultNameFields)
	v.SetDefault("geometry.url", "https://www2.census.gov/geo/tiger/GENZ2023/shp/cb_2023_us_county_500k.zip")
	v.SetDefault("output.dir", ".")
	v.SetDefault("output.xlsx", true)
	v.SetDefault("region.file", "")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "frc-county-map.db")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("progress.poll_interval_ms", 100)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "frc-county-map.log")

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

// Validate checks that the settings needed by a command are present.
// Mode is one of "run", "collect", "serve", or "offline" (commands that never
// call the provider).
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run", "collect":
		if c.TBA.BaseURL == "" {
			errs = append(errs, "tba.base_url is required")
		}
		if c.TBA.RequestDelayMS < 0 {
			errs = append(errs, "tba.request_delay_ms must be >= 0")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "offline":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres", "none":
	default:
		errs = append(errs, "store.driver must be one of sqlite, postgres, none")
	}
	if c.Store.Driver != "none" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Progress.PollIntervalMS <= 0 {
		errs = append(errs, "progress.poll_interval_ms must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger. Output goes to stderr and,
// when cfg.File is set, to a log file resolved beside the executable.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	zapCfg.OutputPaths = []string{"stderr"}
	if cfg.File != "" {
		path := ResolveLogPath(cfg.File)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return eris.Wrap(err, "config: create log dir")
		}
		zapCfg.OutputPaths = append(zapCfg.OutputPaths, path)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// ResolveLogPath returns path unchanged when absolute, otherwise joined to
// the directory of the running executable.
func ResolveLogPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	exe, err := os.Executable()
	if err != nil {
		return path
	}
	return filepath.Join(filepath.Dir(exe), path)
}
