package main

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-ecs/common"
	"github.com/Carmen-Shannon/oxy-ecs/engine/camera"
	"github.com/Carmen-Shannon/oxy-ecs/engine/mesh"
	"github.com/Carmen-Shannon/oxy-ecs/engine/registry"
	"github.com/Carmen-Shannon/oxy-ecs/engine/transform"
	"github.com/Carmen-Shannon/oxy-ecs/engine/window"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	spinSpeed   = 0.8 // radians per second
	moveSpeed   = 3.0 // units per second
	sprintScale = 3.0
)

// controls spins dynamic meshes and flies the main camera with WASD/QE. Space pauses the spin.
type controls struct {
	reg    registry.Registry
	win    window.Window
	paused atomic.Bool
}

func newControls(reg registry.Registry, win window.Window) *controls {
	c := &controls{reg: reg, win: win}
	if win != nil {
		win.SetKeyDownCallback(func(keyCode uint32) {
			if keyCode == common.KeySpace {
				c.paused.Store(!c.paused.Load())
			}
		})
	}
	return c
}

func (c *controls) tick(dt float32) {
	if !c.paused.Load() {
		c.spin(dt)
	}
	if c.win != nil {
		c.fly(dt)
	}
}

func (c *controls) spin(dt float32) {
	step := mgl32.QuatRotate(spinSpeed*dt, mgl32.Vec3{0, 1, 0})
	for _, m := range registry.All[*mesh.Mesh](c.reg) {
		if m.Static() {
			continue
		}
		tr := transform.Of(c.reg, m.Owner())
		if tr == nil || tr.Static() {
			continue
		}
		tr.SetRotation(step.Mul(tr.Rotation()).Normalize())
	}
}

func (c *controls) fly(dt float32) {
	cam := camera.Main(c.reg)
	if cam == nil {
		return
	}
	tr := transform.Of(c.reg, cam.Owner())
	if tr == nil {
		return
	}

	forward, up := tr.Forward(), tr.Up()
	right := forward.Cross(up)
	var dir mgl32.Vec3
	for key, v := range map[uint32]mgl32.Vec3{
		common.KeyW: forward,
		common.KeyS: forward.Mul(-1),
		common.KeyD: right,
		common.KeyA: right.Mul(-1),
		common.KeyE: up,
		common.KeyQ: up.Mul(-1),
	} {
		if c.win.Pressed(key) {
			dir = dir.Add(v)
		}
	}
	if dir.Len() == 0 {
		return
	}
	speed := float32(moveSpeed)
	if c.win.Pressed(common.KeyLeftShift) {
		speed *= sprintScale
	}
	tr.Translate(dir.Normalize().Mul(speed * dt))
}
