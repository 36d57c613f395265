// Package config loads rulegated's configuration: env vars override a
// config file which overrides defaults, the same viper-backed precedence
// the teacher's service config used.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	HTTP          HTTPConfig          `mapstructure:"http"`
	Limits        LimitsConfig        `mapstructure:"limits"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// HTTPConfig contains HTTP server settings. Respects Go stdlib net/http
// defaults where it has them, and adds the ones it doesn't (body size has
// no stdlib default at all).
type HTTPConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // seconds, default 30
	WriteTimeout    int `mapstructure:"write_timeout"`    // seconds, default 30
	IdleTimeout     int `mapstructure:"idle_timeout"`     // seconds, default 120
	MaxHeaderBytes  int `mapstructure:"max_header_bytes"` // bytes, stdlib default is 1MB; we tighten it
	MaxBodyBytes    int `mapstructure:"max_body_bytes"`   // bytes, stdlib has NO limit
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // seconds, default 10
}

// LimitsConfig holds per-evaluation limits named after internal/session's
// Context limits. Load fills them in, but nothing in this module passes
// them to a session: every session.Context starts from internal/session's
// compiled-in defaults.
type LimitsConfig struct {
	MaxEvaluations int64 `mapstructure:"max_evaluations"`
	MaxDurationMs  int64 `mapstructure:"max_duration_ms"`
	MaxViolations  int64 `mapstructure:"max_violations"`
}

// StorageConfig points at the on-disk rule-definition store.
type StorageConfig struct {
	RulesDir string `mapstructure:"rules_dir"`
}

// ObservabilityConfig controls logging verbosity and whether OTel
// tracing/metrics are initialized.
type ObservabilityConfig struct {
	ServiceName string `mapstructure:"service_name"`
	Debug       bool   `mapstructure:"debug"`
	TracingOn   bool   `mapstructure:"tracing_enabled"`
	MetricsOn   bool   `mapstructure:"metrics_enabled"`
}

// Load reads configuration from configPath (if non-empty), then lets
// RULEGATE_-prefixed environment variables override it.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", configPath, err)
		}
	}

	v.SetEnvPrefix("RULEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8088)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)
	v.SetDefault("http.idle_timeout", 120)
	v.SetDefault("http.max_header_bytes", 32768)
	v.SetDefault("http.max_body_bytes", 4194304) // 4MB
	v.SetDefault("http.shutdown_timeout", 10)

	v.SetDefault("limits.max_evaluations", 500_000)
	v.SetDefault("limits.max_duration_ms", 10_000)
	v.SetDefault("limits.max_violations", 0)

	v.SetDefault("storage.rules_dir", "./data/rules")

	v.SetDefault("observability.service_name", "rulegated")
	v.SetDefault("observability.debug", false)
	v.SetDefault("observability.tracing_enabled", true)
	v.SetDefault("observability.metrics_enabled", true)
}
