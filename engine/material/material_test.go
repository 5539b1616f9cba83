package material

import (
	"bytes"
	"testing"

	"github.com/Carmen-Shannon/oxy-ecs/common"
	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
	"github.com/Carmen-Shannon/oxy-ecs/engine/registry"
	"github.com/go-gl/mathgl/mgl32"
)

func attach(t *testing.T, m *Material) (registry.Registry, gpu.HeadlessDevice) {
	t.Helper()
	d := gpu.NewHeadlessDevice(gpu.WithExtent(16, 16))
	r := registry.NewRegistry(registry.WithDevice(d))
	t.Cleanup(r.Destroy)
	if err := r.AddComponent(r.CreateEntity(), m); err != nil {
		t.Fatal(err)
	}
	return r, d
}

func submit(d gpu.HeadlessDevice, cb gpu.CommandBuffer) {
	d.Queue(gpu.QueueTransfer).Submit(gpu.SubmitInfo{Commands: []gpu.CommandBuffer{cb}})
}

// go test -run ^TestPlaceholderAlbedo$ ./engine/material -count 1
func TestPlaceholderAlbedo(t *testing.T) {
	m := NewMaterial(WithColor(mgl32.Vec4{0.5, 0.5, 0.5, 1}))
	_, d := attach(t, m)

	cb := m.Prepare()
	if cb == nil {
		t.Fatal("Expected a transfer command")
	}
	submit(d, cb)

	img := m.AlbedoPair().Image()
	if img.Extent() != (gpu.Extent{Width: 1, Height: 1}) {
		t.Fatalf("Expected a 1x1 placeholder, got %+v", img.Extent())
	}
	if got := d.ReadImage(img); !bytes.Equal(got, []byte{255, 255, 255, 255}) {
		t.Errorf("Expected a white texel, got %v", got)
	}
	if got := d.ImageLayout(img); got != gpu.LayoutShaderRead {
		t.Errorf("Expected the albedo in the shader-read layout, got %v", got)
	}
	if m.DescriptorSet() == nil || m.DescriptorSet().Generation() != 1 {
		t.Error("Expected the descriptor set to be bound once")
	}
}

// go test -run ^TestAlbedoRecreatedOnExtentChange$ ./engine/material -count 1
func TestAlbedoRecreatedOnExtentChange(t *testing.T) {
	m := NewMaterial()
	_, d := attach(t, m)
	submit(d, m.Prepare())
	first := m.AlbedoPair().Image()

	if err := m.SetAlbedo(common.SolidTexture(1, 2, 3, 4)); err != nil {
		t.Fatal(err)
	}
	submit(d, m.Prepare())
	if m.AlbedoPair().Image() != first {
		t.Error("Expected the image to be reused for an unchanged extent")
	}
	if got := d.ReadImage(first); !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("Expected the new texel, got %v", got)
	}

	tex := &common.Texture{Width: 2, Height: 2, Pixels: bytes.Repeat([]byte{9}, 16)}
	if err := m.SetAlbedo(tex); err != nil {
		t.Fatal(err)
	}
	submit(d, m.Prepare())
	if m.AlbedoPair().Image() == first {
		t.Error("Expected a new image after the extent changed")
	}
	if got := m.AlbedoPair().Recreations(); got != 1 {
		t.Errorf("Expected 1 recreation, got %d", got)
	}
	if got := m.DescriptorSet().Generation(); got != 2 {
		t.Errorf("Expected the set to be rebound after recreation, got generation %d", got)
	}
}

// go test -run ^TestInvalidAlbedoRejected$ ./engine/material -count 1
func TestInvalidAlbedoRejected(t *testing.T) {
	m := NewMaterial()
	attach(t, m)
	m.Prepare()
	if m.NeedsUpload() {
		t.Fatal("Expected a clean material after Prepare")
	}
	if err := m.SetAlbedo(&common.Texture{Width: 4, Height: 4}); err == nil {
		t.Error("Expected an error for a texture without pixels")
	}
	if m.NeedsUpload() {
		t.Error("Expected a rejected albedo to leave the material clean")
	}
	m.SetMetallic(2)
	if m.Metallic() != 1 || !m.NeedsUpload() {
		t.Errorf("Expected metallic clamped to 1 and a dirty material, got %v", m.Metallic())
	}
}
