// Package config loads the configuration of a runtime from YAML.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/on-the-ground/fiber_ive_go/effects"
	"github.com/on-the-ground/fiber_ive_go/effects/metrics"
	"github.com/on-the-ground/fiber_ive_go/effects/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Runtime RuntimeConfig `yaml:"runtime"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// RuntimeConfig sizes the worker pool. Zero values select the defaults of
// effects.NewRuntimeConfig.
type RuntimeConfig struct {
	NumWorkers        int `yaml:"num_workers" validate:"gte=0,lte=4096"`
	MaxOpsBeforeYield int `yaml:"max_ops_before_yield" validate:"gte=0"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

type MetricsConfig struct {
	Enabled   bool      `yaml:"enabled"`
	Namespace string    `yaml:"namespace" validate:"omitempty,excludesall=-"`
	Buckets   []float64 `yaml:"buckets" validate:"dive,gt=0"`
}

type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Namespace: "fibers"},
	}
}

// Parse reads YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Build assembles the configuration of a runtime. Metrics are registered
// with reg and spans are created with tp when they are enabled; a nil reg
// or tp disables them.
func Build(cfg Config, reg prometheus.Registerer, tp trace.TracerProvider) (effects.RuntimeConfig, error) {
	if err := cfg.Validate(); err != nil {
		return effects.RuntimeConfig{}, err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return effects.RuntimeConfig{}, err
	}

	var svs []effects.Supervisor
	if cfg.Metrics.Enabled && reg != nil {
		sv, err := metrics.NewSupervisor(reg, metrics.Config{
			Namespace: cfg.Metrics.Namespace,
			Buckets:   cfg.Metrics.Buckets,
		})
		if err != nil {
			return effects.RuntimeConfig{}, err
		}
		svs = append(svs, sv)
	}
	if cfg.Tracing.Enabled && tp != nil {
		svs = append(svs, tracing.NewSupervisor(tp))
	}

	rc := effects.NewRuntimeConfig(cfg.Runtime.NumWorkers, cfg.Runtime.MaxOpsBeforeYield)
	rc.Logger = logger
	rc.Supervisor = effects.Supervisors(svs...)
	return rc, nil
}

func newLogger(cfg LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
