package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/storesync/internal/errors"
)

const (
	// ConfigFileName is the base name of the configuration file.
	ConfigFileName = "storesync"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "STORESYNC_"

	// DefaultAddr is the default server listen address.
	DefaultAddr = ":7070"

	// DefaultFPS is the default fallback poll rate.
	DefaultFPS = 60

	// DefaultOpTimeout is the default storage operation timeout.
	DefaultOpTimeout = "5s"

	// DefaultTable is the default SQL table name.
	DefaultTable = "storesync_items"
)

// Supported area drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverFile   = "file"
	DriverS3     = "s3"
)

// extensions lists config file extensions in lookup order.
var extensions = []string{".json", ".yaml", ".yml", ".toml"}

// Config represents the complete storesync configuration.
type Config struct {
	// Area configures the persistent storage area.
	Area AreaConfig `json:"area" yaml:"area" toml:"area" envPrefix:"AREA_"`

	// Session configures the session storage area.
	Session AreaConfig `json:"session" yaml:"session" toml:"session" envPrefix:"SESSION_"`

	// Server contains HTTP server configuration.
	Server ServerConfig `json:"server" yaml:"server" toml:"server" envPrefix:"SERVER_"`

	// Log contains logging configuration.
	Log LogConfig `json:"log" yaml:"log" toml:"log" envPrefix:"LOG_"`

	// FPS is the frame rate of the fallback poll.
	FPS int `json:"fps,omitempty" yaml:"fps,omitempty" toml:"fps,omitempty" env:"FPS"`

	// OpTimeout bounds each storage operation (e.g., "5s").
	OpTimeout string `json:"opTimeout,omitempty" yaml:"opTimeout,omitempty" toml:"opTimeout,omitempty" env:"OP_TIMEOUT"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// AreaConfig selects and configures a storage backend.
type AreaConfig struct {
	// Driver is one of memory, sqlite, file or s3.
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty" toml:"driver,omitempty" env:"DRIVER"`

	// DSN is the SQLite data source name.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty" toml:"dsn,omitempty" env:"DSN"`

	// Table is the SQL table name.
	Table string `json:"table,omitempty" yaml:"table,omitempty" toml:"table,omitempty" env:"TABLE"`

	// Dir is the directory of the file driver.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty" toml:"dir,omitempty" env:"DIR"`

	// S3 configures the s3 driver.
	S3 S3Config `json:"s3,omitempty" yaml:"s3,omitempty" toml:"s3,omitempty" envPrefix:"S3_"`
}

// S3Config configures the s3 driver.
type S3Config struct {
	Bucket    string `json:"bucket,omitempty" yaml:"bucket,omitempty" toml:"bucket,omitempty" env:"BUCKET"`
	Region    string `json:"region,omitempty" yaml:"region,omitempty" toml:"region,omitempty" env:"REGION"`
	Prefix    string `json:"prefix,omitempty" yaml:"prefix,omitempty" toml:"prefix,omitempty" env:"PREFIX"`
	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" toml:"endpoint,omitempty" env:"ENDPOINT"`
	PathStyle bool   `json:"pathStyle,omitempty" yaml:"pathStyle,omitempty" toml:"pathStyle,omitempty" env:"PATH_STYLE"`

	// Credentials are read from the environment only.
	AccessKeyID     string `json:"-" yaml:"-" toml:"-" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `json:"-" yaml:"-" toml:"-" env:"SECRET_ACCESS_KEY"`
	SessionToken    string `json:"-" yaml:"-" toml:"-" env:"SESSION_TOKEN"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty" toml:"addr,omitempty" env:"ADDR"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level,omitempty" yaml:"level,omitempty" toml:"level,omitempty" env:"LEVEL"`

	// Format is text or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty" toml:"format,omitempty" env:"FORMAT"`
}

// New creates a new Config with default values.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the specified directory.
// It looks for storesync.json, .yaml, .yml and .toml in that order.
func Load(dir string) (*Config, error) {
	for _, ext := range extensions {
		path := filepath.Join(dir, ConfigFileName+ext)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("S200").
		WithDetail("No storesync.json, storesync.yaml or storesync.toml found in " + dir)
}

// LoadOrDefault is Load that falls back to defaults, with environment
// overrides, when the directory has no config file.
func LoadOrDefault(dir string) (*Config, error) {
	cfg, err := Load(dir)
	if err == nil {
		return cfg, nil
	}
	if errors.CodeOf(err) != "S200" {
		return nil, err
	}

	cfg = New()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads configuration from the specified file path. The format is
// chosen by extension. Environment overrides are applied and the result is
// validated.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("S200").
				WithDetail("No config file at " + path)
		}
		return nil, errors.New("S201").Wrap(err)
	}

	cfg := &Config{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, errors.New("S201").
			WithDetail("Unsupported config file extension " + ext).
			WithSuggestion("Use .json, .yaml or .toml")
	}
	if err != nil {
		return nil, errors.New("S201").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			Wrap(err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields with STORESYNC_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return errors.New("S202").
			WithDetail("Failed to parse environment: " + err.Error()).
			Wrap(err)
	}
	c.applyDefaults()
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	c.Area.applyDefaults()
	c.Session.applyDefaults()

	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.FPS == 0 {
		c.FPS = DefaultFPS
	}
	if c.OpTimeout == "" {
		c.OpTimeout = DefaultOpTimeout
	}
}

func (a *AreaConfig) applyDefaults() {
	if a.Driver == "" {
		a.Driver = DriverMemory
	}
	if a.Table == "" {
		a.Table = DefaultTable
	}
	if a.S3.Prefix == "" {
		a.S3.Prefix = "storesync/"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Area.validate("area"); err != nil {
		return err
	}
	if err := c.Session.validate("session"); err != nil {
		return err
	}

	if c.FPS < 1 || c.FPS > 1000 {
		return errors.New("S202").
			WithDetail("fps must be between 1 and 1000, got " + strconv.Itoa(c.FPS))
	}
	if d, err := time.ParseDuration(c.OpTimeout); err != nil || d <= 0 {
		return errors.New("S202").
			WithDetail("opTimeout must be a positive duration such as \"5s\", got " + c.OpTimeout)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("S202").
			WithDetail("log.format must be text or json, got " + c.Log.Format)
	}
	return nil
}

func (a AreaConfig) validate(field string) error {
	switch a.Driver {
	case DriverMemory:
	case DriverSQLite:
		if a.DSN == "" {
			return errors.New("S202").WithDetail(field + ".dsn is required for the sqlite driver")
		}
	case DriverFile:
		if a.Dir == "" {
			return errors.New("S202").WithDetail(field + ".dir is required for the file driver")
		}
	case DriverS3:
		if a.S3.Bucket == "" || a.S3.Region == "" {
			return errors.New("S202").WithDetail(field + ".s3.bucket and " + field + ".s3.region are required for the s3 driver")
		}
	default:
		return errors.New("S203").WithDetail(field + ".driver is " + a.Driver)
	}
	return nil
}

// Timeout returns OpTimeout as a duration.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.OpTimeout)
	if err != nil {
		return 0
	}
	return d
}

// LogLevel returns Log.Level as an slog level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, errors.New("S202").
			WithDetail("log.level must be debug, info, warn or error, got " + c.Log.Level)
	}
	return level, nil
}
