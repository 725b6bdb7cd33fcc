// Package config loads tool configuration from defaults, an optional YAML
// file and GEOREF_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"vector-georef/internal/transform"
)

// AutoDegree in transform.degree selects the degree from the control point count.
const AutoDegree = -1

// Config holds all application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Transform TransformConfig `mapstructure:"transform"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TransformConfig struct {
	Model   string `mapstructure:"model"`
	Degree  int    `mapstructure:"degree"`
	Workers int    `mapstructure:"workers"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads configuration. An explicit path must exist; without one,
// georef.yaml is looked up in . and ./configs and may be missing.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("transform.model", string(transform.KindHelmert))
	v.SetDefault("transform.degree", 1)
	v.SetDefault("transform.workers", 1)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9464")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("georef")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	// GEOREF_TRANSFORM_MODEL → transform.model
	v.SetEnvPrefix("GEOREF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that configuration values are sane.
func (c *Config) Validate() error {
	var errs []string

	if _, err := transform.ParseKind(c.Transform.Model); err != nil {
		errs = append(errs, fmt.Sprintf("transform.model: %v", err))
	}
	if c.Transform.Degree < AutoDegree || c.Transform.Degree > transform.MaxDegree {
		errs = append(errs, fmt.Sprintf("transform.degree must be -1 (auto) or 0-%d, got %d",
			transform.MaxDegree, c.Transform.Degree))
	}
	if c.Transform.Workers < 1 {
		errs = append(errs, fmt.Sprintf("transform.workers must be at least 1, got %d", c.Transform.Workers))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, "metrics.addr is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Method resolves the configured model for a control point set of size n.
func (t TransformConfig) Method(n int) (transform.Method, error) {
	kind, err := transform.ParseKind(t.Model)
	if err != nil {
		return transform.Method{}, err
	}
	if kind == transform.KindHelmert {
		return transform.Helmert(), nil
	}
	degree := t.Degree
	if degree == AutoDegree {
		degree = transform.AutoDegree(n)
	}
	return transform.Polynomial(degree), nil
}
