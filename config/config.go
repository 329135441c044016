// Package config loads the engine settings from TOML and builds the logger.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/plus3/flare/particle"
	"github.com/plus3/flare/spatial"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Particles ParticlesConfig `toml:"particles"`
	Spatial   SpatialConfig   `toml:"spatial"`
	Render    RenderConfig    `toml:"render"`
	Logging   LoggingConfig   `toml:"logging"`
}

type ParticlesConfig struct {
	PoolSize         int           `toml:"pool_size"`
	Buckets          int           `toml:"buckets"`
	MaxParallelism   int           `toml:"max_parallelism"` // 0 = GOMAXPROCS
	UpdateRate       time.Duration `toml:"update_rate"`
	MaxStepsPerFrame int           `toml:"max_steps_per_frame"`
	TimeScale        float64       `toml:"time_scale"`
}

type SpatialConfig struct {
	TileSize      float64       `toml:"tile_size"`
	PruneInterval time.Duration `toml:"prune_interval"`
}

type RenderConfig struct {
	MaxDrawCalls int `toml:"max_draw_calls"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Load reads the TOML file at path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes TOML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Particles: ParticlesConfig{
			PoolSize:         10000,
			Buckets:          8,
			UpdateRate:       time.Second / 144,
			MaxStepsPerFrame: 4,
			TimeScale:        1,
		},
		Spatial: SpatialConfig{
			TileSize:      spatial.DefaultTileSize,
			PruneInterval: spatial.DefaultPruneInterval,
		},
		Render: RenderConfig{
			MaxDrawCalls: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate reports every invalid section.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Engine().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("particles: %w", err))
	}
	if c.Spatial.TileSize <= 0 {
		errs = append(errs, fmt.Errorf("spatial: tile size %v: %w", c.Spatial.TileSize, spatial.ErrInvalidTileSize))
	}
	if c.Spatial.PruneInterval < 0 {
		errs = append(errs, fmt.Errorf("spatial: prune interval %s", c.Spatial.PruneInterval))
	}
	if c.Render.MaxDrawCalls < 0 {
		errs = append(errs, fmt.Errorf("render: max draw calls %d", c.Render.MaxDrawCalls))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging: unknown format %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// Engine returns the particle engine configuration.
func (c *Config) Engine() particle.Config {
	p := c.Particles
	parallelism := p.MaxParallelism
	if parallelism == 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	return particle.Config{
		PoolSize:         p.PoolSize,
		Buckets:          p.Buckets,
		MaxParallelism:   parallelism,
		UpdateRate:       p.UpdateRate,
		MaxStepsPerFrame: p.MaxStepsPerFrame,
		TimeScale:        p.TimeScale,
	}
}

// Partition returns the spatial partition configuration.
func (c *Config) Partition() spatial.Config {
	return spatial.Config{
		TileSize:      c.Spatial.TileSize,
		PruneInterval: c.Spatial.PruneInterval,
	}
}

// NewLogger builds a zap logger. Unknown levels fall back to info.
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
