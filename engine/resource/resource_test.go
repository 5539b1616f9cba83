package resource

import (
	"bytes"
	"testing"

	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
)

func newDevice(t *testing.T) gpu.HeadlessDevice {
	t.Helper()
	d := gpu.NewHeadlessDevice(gpu.WithExtent(4, 4))
	t.Cleanup(d.Destroy)
	return d
}

// go test -run ^TestPlan$ ./engine/resource -count 1
func TestPlan(t *testing.T) {
	tests := []struct {
		name string
		prev State[uint64]
		next uint64
		want Action
	}{
		{"uninitialized", Uninitialized[uint64](), 3, ActionCreate},
		{"uninitialized zero", Uninitialized[uint64](), 0, ActionCreate},
		{"same size", Sized[uint64](3), 3, ActionUpdate},
		{"grown", Sized[uint64](3), 6, ActionRecreate},
		{"shrunk", Sized[uint64](6), 3, ActionRecreate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Plan(tt.prev, tt.next); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	ext := Sized(gpu.Extent{Width: 2, Height: 2})
	if Plan(ext, gpu.Extent{Width: 2, Height: 2}) != ActionUpdate {
		t.Error("Expected equal extents to update in place")
	}
	if Plan(ext, gpu.Extent{Width: 2, Height: 3}) != ActionRecreate {
		t.Error("Expected a changed extent to recreate")
	}
}

// go test -run ^TestBufferPairReusesHandlesUntilSizeChanges$ ./engine/resource -count 1
func TestBufferPairReusesHandlesUntilSizeChanges(t *testing.T) {
	d := newDevice(t)
	p := NewBufferPair(d, "vertices", 64)

	if a := p.Ensure(3); a != ActionCreate {
		t.Fatalf("Expected create, got %v", a)
	}
	staging, local := p.Staging(), p.Device()
	if local.Size() != 3*64 || staging.Size() != 3*64 {
		t.Errorf("Expected 192 byte buffers, got %d and %d", staging.Size(), local.Size())
	}

	for range 3 {
		if a := p.Ensure(3); a != ActionUpdate {
			t.Errorf("Expected update, got %v", a)
		}
	}
	if p.Staging() != staging || p.Device() != local {
		t.Error("Expected handles to be reused while the size is unchanged")
	}

	if a := p.Ensure(6); a != ActionRecreate {
		t.Fatalf("Expected recreate, got %v", a)
	}
	if p.Device() == local || p.Device().Size() != 6*64 {
		t.Error("Expected a new device buffer of 384 bytes")
	}
	if p.Recreations() != 1 {
		t.Errorf("Expected 1 recreation, got %d", p.Recreations())
	}
	if s := d.Stats(); s.BuffersCreated != 4 || s.BuffersDestroyed != 2 {
		t.Errorf("Expected 4 created and 2 destroyed buffers, got %+v", s)
	}

	p.Destroy()
	p.Destroy()
	if s := d.Stats(); s.BuffersDestroyed != 4 {
		t.Errorf("Expected every buffer destroyed once, got %d", s.BuffersDestroyed)
	}
}

// go test -run ^TestBufferPairUploadAndRecord$ ./engine/resource -count 1
func TestBufferPairUploadAndRecord(t *testing.T) {
	d := newDevice(t)
	p := NewBufferPair(d, "light", 4)
	p.Ensure(2)
	p.Upload([]byte{1, 2, 3, 4, 5, 6, 7, 8})

	cb := d.CreateCommandBuffer("light", gpu.QueueTransfer)
	cb.Begin()
	p.Record(cb)
	cb.End()
	d.Queue(gpu.QueueTransfer).Submit(gpu.SubmitInfo{Commands: []gpu.CommandBuffer{cb}})

	if got := d.ReadBuffer(p.Device()); !bytes.Equal(got, []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("Expected device contents to match the upload, got %v", got)
	}
}

// go test -run ^TestImagePairPadsRows$ ./engine/resource -count 1
func TestImagePairPadsRows(t *testing.T) {
	d := newDevice(t)
	p := NewImagePair(d, "albedo", gpu.FormatRGBA8Unorm, nil)
	p.Ensure(gpu.Extent{Width: 2, Height: 2})
	if p.RowPitch() != gpu.CopyPitchAlignment {
		t.Errorf("Expected row pitch %d, got %d", gpu.CopyPitchAlignment, p.RowPitch())
	}
	texels := []byte{1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4}
	p.Upload(texels)

	cb := d.CreateCommandBuffer("albedo", gpu.QueueTransfer)
	cb.Begin()
	p.Record(cb)
	cb.End()
	d.Queue(gpu.QueueTransfer).Submit(gpu.SubmitInfo{Commands: []gpu.CommandBuffer{cb}})

	if got := d.ReadImage(p.Image()); !bytes.Equal(got, texels) {
		t.Errorf("Expected image texels %v, got %v", texels, got)
	}
	if d.ImageLayout(p.Image()) != gpu.LayoutShaderRead {
		t.Errorf("Expected image in shader-read layout, got %v", d.ImageLayout(p.Image()))
	}

	img := p.Image()
	p.Ensure(gpu.Extent{Width: 2, Height: 2})
	if p.Image() != img {
		t.Error("Expected the image to be reused for the same extent")
	}
	p.Ensure(gpu.Extent{Width: 1, Height: 1})
	if p.Image() == img || p.Recreations() != 1 {
		t.Error("Expected a new image after the extent changed")
	}
	if s := d.Stats(); s.ImagesDestroyed != 1 {
		t.Errorf("Expected 1 destroyed image, got %d", s.ImagesDestroyed)
	}
}

// go test -run ^TestCombinedBufferOffsets$ ./engine/resource -count 1
func TestCombinedBufferOffsets(t *testing.T) {
	d := newDevice(t)
	host := func(label string, fill byte, size uint64) gpu.Buffer {
		b := d.CreateBuffer(gpu.BufferDescriptor{Label: label, Size: size, Memory: gpu.MemoryHostVisible})
		b.SetData(0, bytes.Repeat([]byte{fill}, int(size)))
		return b
	}
	members := []Member{
		{Buffer: host("a", 1, 8), Size: 8},
		{Buffer: host("b", 2, 4), Size: 4},
		{Buffer: host("c", 3, 12), Size: 12},
	}

	c := NewCombinedBuffer(d, "lights", gpu.BufferUsageStorage, 16, nil)
	if a := c.Ensure(members); a != ActionCreate {
		t.Fatalf("Expected create, got %v", a)
	}
	if c.Size() != 24 {
		t.Errorf("Expected logical size 24, got %d", c.Size())
	}

	cb := d.CreateCommandBuffer("combine", gpu.QueueCompute)
	cb.Begin()
	segments := c.Record(cb, members)
	cb.End()
	d.Queue(gpu.QueueCompute).Submit(gpu.SubmitInfo{Commands: []gpu.CommandBuffer{cb}})

	want := []Segment{{0, 8}, {8, 4}, {12, 12}}
	for i, s := range segments {
		if s != want[i] {
			t.Errorf("Segment %d: expected %+v, got %+v", i, want[i], s)
		}
	}
	got := d.ReadBuffer(c.Buffer())
	if got[0] != 1 || got[8] != 2 || got[12] != 3 || got[23] != 3 {
		t.Errorf("Unexpected combined contents %v", got)
	}

	buf := c.Buffer()
	if a := c.Ensure(members); a != ActionUpdate || c.Buffer() != buf {
		t.Error("Expected an unchanged aggregate to keep the buffer")
	}

	shrunk := []Member{members[0], members[2]}
	if a := c.Ensure(shrunk); a != ActionRecreate {
		t.Fatalf("Expected recreate after removing a member, got %v", a)
	}
	if c.Size() != 20 {
		t.Errorf("Expected logical size 20, got %d", c.Size())
	}
	if off := Offsets(shrunk)[1].Offset; off != 8 {
		t.Errorf("Expected the last member to shift to offset 8, got %d", off)
	}
}

// go test -run ^TestCombinedBufferEmpty$ ./engine/resource -count 1
func TestCombinedBufferEmpty(t *testing.T) {
	d := newDevice(t)
	c := NewCombinedBuffer(d, "meshes", gpu.BufferUsageStorage, 64, nil)
	c.Ensure(nil)
	if c.Size() != 0 {
		t.Errorf("Expected logical size 0, got %d", c.Size())
	}
	if c.Buffer() == nil || c.Buffer().Size() != 64 {
		t.Error("Expected an empty combined buffer to keep a minimum allocation")
	}
}
