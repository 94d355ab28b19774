package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	errspkg "github.com/drblury/magicbus/internal/runtime/errors"
)

const (
	DefaultMetricsNamespace = "magicbus"
	DefaultMetricsSubsystem = "bus"
	DefaultTracerName       = "magicbus"
	DefaultResolveCacheSize = 256

	envPrefix = "MAGICBUS"
)

// Config groups the optional observability and tuning knobs of a Bus. The
// zero value is a valid configuration: no metrics, no tracing, no resolution
// cache.
type Config struct {
	// Name labels the bus in logs and metrics. Useful when a process owns
	// more than one bus.
	Name string `mapstructure:"name"`

	// Metrics configuration.
	MetricsEnabled   bool   `mapstructure:"metrics_enabled"`
	MetricsNamespace string `mapstructure:"metrics_namespace"`
	MetricsSubsystem string `mapstructure:"metrics_subsystem"`

	// Tracing configuration. Spans are created through the global OTel
	// tracer provider.
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	TracerName     string `mapstructure:"tracer_name"`

	// ResolveCacheSize bounds the number of concrete message types whose
	// matching buckets are remembered. Zero disables the cache.
	ResolveCacheSize int `mapstructure:"resolve_cache_size"`

	// LogDeliveries logs every handler invocation at trace level.
	LogDeliveries bool `mapstructure:"log_deliveries"`
}

// Default returns the configuration Load starts from.
func Default() Config {
	return Config{
		MetricsNamespace: DefaultMetricsNamespace,
		MetricsSubsystem: DefaultMetricsSubsystem,
		TracerName:       DefaultTracerName,
		ResolveCacheSize: DefaultResolveCacheSize,
	}
}

func (c Config) String() string {
	type configAlias Config
	return fmt.Sprintf("%+v", configAlias(c))
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, c.validateMetrics()...)
	errs = append(errs, c.validateTracing()...)
	if c.ResolveCacheSize < 0 {
		errs = append(errs, fmt.Errorf("cache: invalid resolve cache size %d", c.ResolveCacheSize))
	}

	return errspkg.NewConfigValidationError(errors.Join(errs...))
}

func (c *Config) validateMetrics() []error {
	if !c.MetricsEnabled {
		return nil
	}
	var errs []error
	if c.MetricsNamespace == "" {
		errs = append(errs, errors.New("metrics: namespace is required when metrics are enabled"))
	}
	if strings.ContainsAny(c.MetricsNamespace+c.MetricsSubsystem, " -.") {
		errs = append(errs, errors.New("metrics: namespace and subsystem may only contain letters, digits and underscores"))
	}
	return errs
}

func (c *Config) validateTracing() []error {
	if c.TracingEnabled && c.TracerName == "" {
		return []error{errors.New("tracing: tracer name is required when tracing is enabled")}
	}
	return nil
}

// ValidateConfig is a convenience function to validate a config pointer.
func ValidateConfig(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}

// Load reads a configuration file (any format viper understands) and applies
// MAGICBUS_* environment overrides on top of Default. An empty path reads the
// environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("name", defaults.Name)
	v.SetDefault("metrics_enabled", defaults.MetricsEnabled)
	v.SetDefault("metrics_namespace", defaults.MetricsNamespace)
	v.SetDefault("metrics_subsystem", defaults.MetricsSubsystem)
	v.SetDefault("tracing_enabled", defaults.TracingEnabled)
	v.SetDefault("tracer_name", defaults.TracerName)
	v.SetDefault("resolve_cache_size", defaults.ResolveCacheSize)
	v.SetDefault("log_deliveries", defaults.LogDeliveries)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
