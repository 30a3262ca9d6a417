// config loads relq settings. Values are layered, later sources winning:
// defaults, an optional YAML file, RELQ_ environment variables and finally
// command line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chirst/relq/db"
	"github.com/chirst/relq/logging"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable. The key db.lock_timeout is
// read from RELQ_DB_LOCK_TIMEOUT.
const EnvPrefix = "RELQ"

type Config struct {
	DB      DBConfig      `mapstructure:"db"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Bench   BenchConfig   `mapstructure:"bench"`
}

type DBConfig struct {
	// File is the database file name without the .db extension.
	File          string        `mapstructure:"file"`
	Memory        bool          `mapstructure:"memory"`
	PageCacheSize int           `mapstructure:"page_cache_size"`
	LockTimeout   time.Duration `mapstructure:"lock_timeout"`
}

type LogConfig struct {
	// Level is empty to disable logging or one of debug, info, warn, error.
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	// Addr is the listen address of the Prometheus endpoint. Empty disables
	// it.
	Addr string `mapstructure:"addr"`
}

type BenchConfig struct {
	Workers int `mapstructure:"workers"`
	Queries int `mapstructure:"queries"`
}

// FlagKeys maps command line flag names to configuration keys. Flags that are
// not defined on the flag set are ignored.
var FlagKeys = map[string]string{
	"db":           "db.file",
	"memory":       "db.memory",
	"cache-size":   "db.page_cache_size",
	"lock-timeout": "db.lock_timeout",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"metrics-addr": "metrics.addr",
	"workers":      "bench.workers",
	"queries":      "bench.queries",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.file", "relq")
	v.SetDefault("db.memory", false)
	v.SetDefault("db.page_cache_size", 1000)
	v.SetDefault("db.lock_timeout", 5*time.Second)
	v.SetDefault("log.level", "")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("bench.workers", 4)
	v.SetDefault("bench.queries", 1000)
}

// Load reads the configuration. path is an optional YAML file and flags may be
// nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if flags != nil {
		for name, key := range FlagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var (
	ErrNoDatabase = errors.New("db.file is required unless db.memory is set")
	ErrInvalid    = errors.New("invalid configuration")
)

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if !c.DB.Memory && c.DB.File == "" {
		return ErrNoDatabase
	}
	if c.DB.PageCacheSize < 0 {
		return fmt.Errorf("%w: db.page_cache_size %d is negative", ErrInvalid, c.DB.PageCacheSize)
	}
	if c.DB.LockTimeout < 0 {
		return fmt.Errorf("%w: db.lock_timeout %s is negative", ErrInvalid, c.DB.LockTimeout)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q is not text or json", ErrInvalid, c.Log.Format)
	}
	if c.Bench.Workers < 1 {
		return fmt.Errorf("%w: bench.workers must be at least 1", ErrInvalid)
	}
	if c.Bench.Queries < 0 {
		return fmt.Errorf("%w: bench.queries is negative", ErrInvalid)
	}
	return nil
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:  c.Log.Level,
		Format: c.Log.Format,
	}
}

// Database returns the settings to open the database with.
func (c *Config) Database(logger *slog.Logger) db.Config {
	return db.Config{
		UseMemory:   c.DB.Memory,
		Filename:    c.DB.File,
		CacheSize:   c.DB.PageCacheSize,
		LockTimeout: c.DB.LockTimeout,
		Logger:      logger,
	}
}
