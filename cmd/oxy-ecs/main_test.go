package main

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-ecs/engine/config"
	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
	"github.com/Carmen-Shannon/oxy-ecs/engine/mesh"
	"github.com/Carmen-Shannon/oxy-ecs/engine/registry"
	"github.com/Carmen-Shannon/oxy-ecs/engine/transform"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap/zapcore"
)

func spawnDefaultScene(t *testing.T) registry.Registry {
	t.Helper()
	r := registry.NewRegistry(registry.WithDevice(gpu.NewHeadlessDevice()))
	t.Cleanup(r.Destroy)
	s, err := loadScene(config.SceneConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Spawn(r); err != nil {
		t.Fatal(err)
	}
	return r
}

// go test -run ^TestDefaultSceneSpawns$ ./cmd/oxy-ecs -count 1
func TestDefaultSceneSpawns(t *testing.T) {
	r := spawnDefaultScene(t)
	if got := len(r.Entities()); got != 6 {
		t.Errorf("Expected 6 entities, got %d", got)
	}
	if got := len(registry.All[*mesh.Mesh](r)); got != 3 {
		t.Errorf("Expected 3 meshes, got %d", got)
	}
}

// go test -run ^TestSpinSkipsStaticTransforms$ ./cmd/oxy-ecs -count 1
func TestSpinSkipsStaticTransforms(t *testing.T) {
	r := spawnDefaultScene(t)
	before := map[registry.EntityID]mgl32.Quat{}
	for _, m := range registry.All[*mesh.Mesh](r) {
		before[m.Owner()] = transform.Of(r, m.Owner()).Rotation()
	}

	c := newControls(r, nil)
	c.tick(0.5)

	for _, m := range registry.All[*mesh.Mesh](r) {
		tr := transform.Of(r, m.Owner())
		moved := !tr.Rotation().ApproxEqual(before[m.Owner()])
		if tr.Static() && moved {
			t.Errorf("Expected static %s to keep its rotation", m.Label())
		}
		if !tr.Static() && !moved {
			t.Errorf("Expected dynamic %s to rotate", m.Label())
		}
	}

	c.paused.Store(true)
	for _, m := range registry.All[*mesh.Mesh](r) {
		before[m.Owner()] = transform.Of(r, m.Owner()).Rotation()
	}
	c.tick(0.5)
	for _, m := range registry.All[*mesh.Mesh](r) {
		if !transform.Of(r, m.Owner()).Rotation().ApproxEqual(before[m.Owner()]) {
			t.Errorf("Expected paused controls to leave %s alone", m.Label())
		}
	}
}

// go test -run ^TestNewLoggerLevels$ ./cmd/oxy-ecs -count 1
func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		cfg  config.LoggingConfig
		want zapcore.Level
	}{
		{cfg: config.LoggingConfig{Level: "debug", Format: "console"}, want: zapcore.DebugLevel},
		{cfg: config.LoggingConfig{Level: "warn", Format: "json"}, want: zapcore.WarnLevel},
		{cfg: config.LoggingConfig{Level: "loud", Format: "console"}, want: zapcore.InfoLevel},
	}
	for _, tt := range tests {
		log, err := newLogger(tt.cfg)
		if err != nil {
			t.Fatal(err)
		}
		if got := log.Level(); got != tt.want {
			t.Errorf("Expected level %v for %q, got %v", tt.want, tt.cfg.Level, got)
		}
	}
}

// go test -run ^TestStartProfileRejectsUnknownMode$ ./cmd/oxy-ecs -count 1
func TestStartProfileRejectsUnknownMode(t *testing.T) {
	if _, err := startProfile("heap-ish"); err == nil {
		t.Errorf("Expected an error for an unknown profile mode")
	}
}
