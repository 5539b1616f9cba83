package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
)

// ErrInvalid is returned by Validate for settings that cannot be used.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Engine   EngineConfig   `toml:"engine"`
	Logging  LoggingConfig  `toml:"logging"`
	Scene    SceneConfig    `toml:"scene"`
}

type WindowConfig struct {
	Enabled bool   `toml:"enabled"`
	Title   string `toml:"title"`
	Width   int    `toml:"width"`
	Height  int    `toml:"height"`
}

type RendererConfig struct {
	Backend              string `toml:"backend"`      // "wgpu" or "headless"
	PresentMode          string `toml:"present_mode"` // "vsync" or "uncapped"
	ForceFallbackAdapter bool   `toml:"force_fallback_adapter"`
	Workers              int    `toml:"workers"` // 0 = one per CPU minus one
	SwapchainImages      int    `toml:"swapchain_images"`
	Width                uint32 `toml:"width"`  // headless extent
	Height               uint32 `toml:"height"` // headless extent
}

type EngineConfig struct {
	TickRate        float64       `toml:"tick_rate"`
	FrameLimit      float64       `toml:"frame_limit"` // 0 = uncapped
	Frames          int           `toml:"frames"`      // 0 = until the window closes
	Profiling       bool          `toml:"profiling"`
	ProfileInterval time.Duration `toml:"profile_interval"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type SceneConfig struct {
	Path string `toml:"path"`
}

// Load reads the TOML file at path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late during device creation.
func (c *Config) Validate() error {
	backend, err := c.Backend()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := c.PresentMode(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if backend == gpu.BackendTypeWGPU && !c.Window.Enabled {
		return fmt.Errorf("%w: the wgpu backend needs [window] enabled", ErrInvalid)
	}
	if c.Engine.TickRate < 0 || c.Engine.FrameLimit < 0 || c.Engine.Frames < 0 {
		return fmt.Errorf("%w: [engine] rates and frames must not be negative", ErrInvalid)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Logging.Format)
	}
	return nil
}

// Backend returns the configured device backend.
func (c *Config) Backend() (gpu.BackendType, error) {
	return gpu.ParseBackendType(c.Renderer.Backend)
}

// PresentMode returns the configured swapchain present mode.
func (c *Config) PresentMode() (gpu.PresentMode, error) {
	return gpu.ParsePresentMode(c.Renderer.PresentMode)
}

func defaults() *Config {
	return &Config{
		Window: WindowConfig{
			Enabled: false,
			Title:   "oxy-ecs",
			Width:   1280,
			Height:  720,
		},
		Renderer: RendererConfig{
			Backend:         "headless",
			PresentMode:     "vsync",
			SwapchainImages: 3,
			Width:           640,
			Height:          360,
		},
		Engine: EngineConfig{
			TickRate:        60,
			Frames:          120,
			ProfileInterval: time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
