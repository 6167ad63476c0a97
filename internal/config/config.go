// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"firestige.xyz/wire/internal/core"
	"firestige.xyz/wire/internal/core/decoder"
	"firestige.xyz/wire/internal/log"
	"firestige.xyz/wire/plugins/reporter/hep"
)

// EnvPrefix prefixes environment overrides, e.g. WIRE_LOG_LEVEL or
// WIRE_DECODER_DECODE_TUNNELS.
const EnvPrefix = "WIRE"

// Config is the wirectl configuration.
type Config struct {
	Log     log.LoggerConfig `mapstructure:"log" yaml:"log"`
	Decoder decoder.Config   `mapstructure:"decoder" yaml:"decoder"`
	HEP     hep.Config       `mapstructure:"hep" yaml:"hep"`
	Metrics MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Loading ───

// Load reads the configuration at path, applies WIRE_* environment overrides
// and defaults, and validates the result. An empty path loads defaults and
// environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	logDefaults := log.DefaultConfig()
	v.SetDefault("log.level", logDefaults.Level)
	v.SetDefault("log.pattern", logDefaults.Pattern)
	v.SetDefault("log.time", logDefaults.Time)
	v.SetDefault("log.caller", false)
	v.SetDefault("log.appenders", []map[string]any{{"type": log.AppenderStderr}})

	v.SetDefault("decoder.decode_tunnels", false)
	v.SetDefault("decoder.max_vlan_depth", 2)

	v.SetDefault("hep.servers", []string{})
	v.SetDefault("hep.capture_id", 0)
	v.SetDefault("hep.auth_key", "")
	v.SetDefault("hep.node_name", "")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9091")
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks the configuration. HEP servers are optional here and only
// checked when present; commands that send HEP validate them again.
func (cfg *Config) Validate() error {
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", core.ErrConfigInvalid, err)
	}
	if len(cfg.Log.Appenders) == 0 {
		return fmt.Errorf("%w: log.appenders: at least one appender is required", core.ErrConfigInvalid)
	}

	if cfg.Decoder.MaxVLANDepth < 0 {
		return fmt.Errorf("%w: decoder.max_vlan_depth must not be negative, got %d", core.ErrConfigInvalid, cfg.Decoder.MaxVLANDepth)
	}

	if len(cfg.HEP.Servers) > 0 {
		if err := cfg.HEP.Validate(); err != nil {
			return err
		}
	}

	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil {
			return fmt.Errorf("%w: metrics.listen %q: %w", core.ErrConfigInvalid, cfg.Metrics.Listen, err)
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return fmt.Errorf("%w: metrics.path %q must start with /", core.ErrConfigInvalid, cfg.Metrics.Path)
		}
	}
	return nil
}

// YAML renders the effective configuration.
func (cfg *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return out, nil
}
