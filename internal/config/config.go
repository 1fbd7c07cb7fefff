// Package config loads sqlcache settings from flags, environment, a config
// file and, for file roles, the project's sqlc.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/jward/sqlcache/internal/logging"
	"github.com/jward/sqlcache/internal/source"
	"github.com/spf13/viper"
)

// Setting keys.
const (
	KeyRoot            = "root"
	KeyOutput          = "output"
	KeySchema          = "schema"
	KeyQuery           = "query"
	KeyModels          = "models"
	KeyQueryImpl       = "query_impl"
	KeyWorkers         = "workers"
	KeyRulesScript     = "rules_script"
	KeyKeepGenerations = "keep_generations"
	KeyLogLevel        = "log_level"
	KeyLogFormat       = "log_format"
)

// EnvPrefix prefixes environment overrides, e.g. SQLCACHE_OUTPUT.
const EnvPrefix = "SQLCACHE"

// DefaultOutput is the output directory relative to the root.
const DefaultOutput = ".sqlcache"

var allKeys = []string{
	KeyRoot, KeyOutput, KeySchema, KeyQuery, KeyModels, KeyQueryImpl,
	KeyWorkers, KeyRulesScript, KeyKeepGenerations, KeyLogLevel, KeyLogFormat,
}

// DefaultPaths are the role paths used when neither settings nor sqlc.yaml
// name them.
var DefaultPaths = map[source.Role]string{
	source.RoleSchema:    "schema.sql",
	source.RoleQuery:     "query.sql",
	source.RoleModels:    filepath.Join("db", "models.go"),
	source.RoleQueryImpl: filepath.Join("db", "query.sql.go"),
}

// Config is the resolved configuration for one invocation.
type Config struct {
	Root            string `mapstructure:"root"`
	Output          string `mapstructure:"output"`
	Schema          string `mapstructure:"schema"`
	Query           string `mapstructure:"query"`
	Models          string `mapstructure:"models"`
	QueryImpl       string `mapstructure:"query_impl"`
	Workers         int    `mapstructure:"workers"`
	RulesScript     string `mapstructure:"rules_script"`
	KeepGenerations int    `mapstructure:"keep_generations"`
	LogLevel        string `mapstructure:"log_level"`
	LogFormat       string `mapstructure:"log_format"`

	// ConfigPath is the settings file that was read, if any.
	ConfigPath string `mapstructure:"-"`
	// SqlcPath is the sqlc config that supplied role paths, if any.
	SqlcPath string `mapstructure:"-"`
}

// New returns a viper instance with sqlcache defaults and environment
// bindings. Callers bind flags onto it before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyRoot, ".")
	v.SetDefault(KeyWorkers, 0)
	v.SetDefault(KeyKeepGenerations, 2)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, logging.FormatText)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	for _, k := range allKeys {
		_ = v.BindEnv(k)
	}
	return v
}

// Load reads the settings file (cfgFile, or sqlcache.* in the root when
// empty), fills missing role paths from sqlc.yaml and defaults, and
// validates the result. Relative paths are resolved against the root.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	root := v.GetString(KeyRoot)
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("sqlcache")
		v.AddConfigPath(root)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	abs, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	cfg.Root = abs

	if cfg.Schema == "" || cfg.Query == "" || cfg.Models == "" || cfg.QueryImpl == "" {
		found, path, err := DiscoverSqlc(cfg.Root)
		if err != nil {
			return nil, err
		}
		cfg.SqlcPath = path
		cfg.fill(found)
	}
	cfg.fill(DefaultPaths)

	if cfg.Output == "" {
		cfg.Output = DefaultOutput
	}
	cfg.Output = cfg.abs(cfg.Output)
	if cfg.RulesScript != "" {
		cfg.RulesScript = cfg.abs(cfg.RulesScript)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) fill(paths map[source.Role]string) {
	set := func(dst *string, role source.Role) {
		if *dst == "" {
			*dst = paths[role]
		}
	}
	set(&c.Schema, source.RoleSchema)
	set(&c.Query, source.RoleQuery)
	set(&c.Models, source.RoleModels)
	set(&c.QueryImpl, source.RoleQueryImpl)
}

func (c *Config) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.Root, p)
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.KeepGenerations < 1 {
		return fmt.Errorf("keep_generations must be >= 1, got %d", c.KeepGenerations)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	if info, err := os.Stat(c.Root); err != nil || !info.IsDir() {
		return fmt.Errorf("root %s is not a directory", c.Root)
	}
	return nil
}

// Paths returns the absolute path of every tracked role.
func (c *Config) Paths() map[source.Role]string {
	return map[source.Role]string{
		source.RoleSchema:    c.abs(c.Schema),
		source.RoleQuery:     c.abs(c.Query),
		source.RoleModels:    c.abs(c.Models),
		source.RoleQueryImpl: c.abs(c.QueryImpl),
	}
}

// WorkerCount returns the configured pool size, defaulting to the CPU count.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}
