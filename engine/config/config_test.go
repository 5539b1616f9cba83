package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oxy.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// go test -run ^TestLoadLayersOverDefaults$ ./engine/config -count 1
func TestLoadLayersOverDefaults(t *testing.T) {
	path := writeConfig(t, `
[window]
enabled = true
width = 800

[renderer]
backend = "wgpu"
present_mode = "uncapped"
workers = 3

[engine]
frames = 0
profiling = true
profile_interval = "5s"

[scene]
path = "scenes/demo.yaml"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Window.Width != 800 || cfg.Window.Height != 720 {
		t.Errorf("Expected 800x720, got %dx%d", cfg.Window.Width, cfg.Window.Height)
	}
	if b, _ := cfg.Backend(); b != gpu.BackendTypeWGPU {
		t.Errorf("Expected the wgpu backend, got %v", b)
	}
	if m, _ := cfg.PresentMode(); m != gpu.PresentModeUncapped {
		t.Errorf("Expected the uncapped present mode, got %v", m)
	}
	if cfg.Renderer.Workers != 3 {
		t.Errorf("Expected 3 workers, got %d", cfg.Renderer.Workers)
	}
	if cfg.Engine.TickRate != 60 {
		t.Errorf("Expected the default tick rate 60, got %v", cfg.Engine.TickRate)
	}
	if cfg.Engine.ProfileInterval != 5*time.Second {
		t.Errorf("Expected a 5s profile interval, got %v", cfg.Engine.ProfileInterval)
	}
	if cfg.Scene.Path != "scenes/demo.yaml" {
		t.Errorf("Expected the scene path to be set, got %q", cfg.Scene.Path)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Expected the console log format, got %q", cfg.Logging.Format)
	}
}

// go test -run ^TestLoadEmptyPathReturnsDefaults$ ./engine/config -count 1
func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid defaults, got %v", err)
	}
	if b, _ := cfg.Backend(); b != gpu.BackendTypeHeadless {
		t.Errorf("Expected the headless backend by default, got %v", b)
	}
}

// go test -run ^TestLoadRejectsInvalidSettings$ ./engine/config -count 1
func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown backend", body: "[renderer]\nbackend = \"vulkan\"\n"},
		{name: "unknown present mode", body: "[renderer]\npresent_mode = \"sometimes\"\n"},
		{name: "wgpu without window", body: "[renderer]\nbackend = \"wgpu\"\n"},
		{name: "negative frames", body: "[engine]\nframes = -1\n"},
		{name: "unknown log format", body: "[logging]\nformat = \"xml\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Expected ErrInvalid, got %v", err)
			}
		})
	}
}

// go test -run ^TestLoadReportsMissingFile$ ./engine/config -count 1
func TestLoadReportsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected os.ErrNotExist, got %v", err)
	}
}
