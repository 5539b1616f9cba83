package rendering

import (
	"encoding/binary"
	"math"
	"slices"
	"testing"

	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
	"github.com/Carmen-Shannon/oxy-ecs/engine/light"
	"github.com/Carmen-Shannon/oxy-ecs/engine/material"
	"github.com/Carmen-Shannon/oxy-ecs/engine/mesh"
	"github.com/Carmen-Shannon/oxy-ecs/engine/registry"
	"github.com/Carmen-Shannon/oxy-ecs/engine/transform"
	"github.com/go-gl/mathgl/mgl32"
)

func newTestScene(t *testing.T, options ...gpu.DeviceBuilderOption) (registry.Registry, gpu.HeadlessDevice, *system) {
	t.Helper()
	d := gpu.NewHeadlessDevice(append([]gpu.DeviceBuilderOption{gpu.WithExtent(64, 48)}, options...)...)
	r := registry.NewRegistry(registry.WithDevice(d))
	s := NewSystem(d, WithWorkers(2)).(*system)
	if err := r.AddSystem(s); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Destroy)
	return r, d, s
}

func spawn(t *testing.T, r registry.Registry, position mgl32.Vec3, components ...registry.Component) registry.EntityID {
	t.Helper()
	e := r.CreateEntity()
	if err := r.AddComponent(e, transform.NewTransform(transform.WithPosition(position))); err != nil {
		t.Fatal(err)
	}
	for _, c := range components {
		if err := r.AddComponent(e, c); err != nil {
			t.Fatal(err)
		}
	}
	return e
}

func strip(n int) ([]mesh.Vertex, []uint32) {
	vertices := make([]mesh.Vertex, n)
	indices := make([]uint32, n)
	for i := range n {
		vertices[i] = mesh.Vertex{Position: mgl32.Vec3{float32(i), 0, 0}, Normal: mgl32.Vec3{0, 0, 1}}
		indices[i] = uint32(i)
	}
	return vertices, indices
}

func word(buf []byte, offset int) uint32 {
	return binary.LittleEndian.Uint32(buf[offset:])
}

func float(buf []byte, offset int) float32 {
	return math.Float32frombits(word(buf, offset))
}

func renderDispatch(d gpu.HeadlessDevice) (gpu.DispatchRecord, bool) {
	for _, rec := range slices.Backward(d.Dispatches()) {
		if rec.Command == "Render" {
			return rec, true
		}
	}
	return gpu.DispatchRecord{}, false
}

// go test -run ^TestCombinedMeshTracksVertexCount$ ./engine/rendering -count 1
func TestCombinedMeshTracksVertexCount(t *testing.T) {
	r, d, s := newTestScene(t)
	m := mesh.NewMesh(mesh.WithGeometry(strip(3)))
	spawn(t, r, mgl32.Vec3{}, m)

	r.IterateSystems()
	if s.State() != StatePresent {
		t.Fatalf("Expected the tick to reach Present, got %v", s.State())
	}
	if got := s.MeshBuffer().Size(); got != 3*mesh.GPUVertexSize+3*mesh.GPUIndexSize {
		t.Errorf("Expected a combined size of 204, got %d", got)
	}

	m.SetGeometry(strip(6))
	r.IterateSystems()
	if got := s.MeshBuffer().Size(); got != 6*mesh.GPUVertexSize+6*mesh.GPUIndexSize {
		t.Errorf("Expected a combined size of 408, got %d", got)
	}
	if got := s.MeshBuffer().Recreations(); got != 1 {
		t.Errorf("Expected 1 combined buffer recreation, got %d", got)
	}
	if got := m.VertexPair().Recreations(); got != 1 {
		t.Errorf("Expected 1 vertex pair recreation, got %d", got)
	}

	data := d.ReadBuffer(s.MeshBuffer().Buffer())
	if got := float(data, 5*mesh.GPUVertexSize); got != 5 {
		t.Errorf("Expected the sixth vertex at x=5, got %v", got)
	}
	for i := range 6 {
		if got := word(data, 6*mesh.GPUVertexSize+i*4); got != uint32(i) {
			t.Errorf("Expected index %d after the vertices, got %d", i, got)
		}
	}

	r.IterateSystems()
	if got := s.MeshBuffer().Recreations(); got != 1 {
		t.Errorf("Expected no recreation for an unchanged size, got %d", got)
	}
}

// go test -run ^TestLightDetachShrinksCombinedBuffer$ ./engine/rendering -count 1
func TestLightDetachShrinksCombinedBuffer(t *testing.T) {
	r, d, s := newTestScene(t)
	var ids []registry.EntityID
	for i := range 3 {
		l := light.NewLight(light.WithColor(mgl32.Vec4{float32(i), 0, 0, 1}))
		ids = append(ids, spawn(t, r, mgl32.Vec3{float32(i), 0, 0}, l))
	}

	r.IterateSystems()
	if got := s.LightBuffer().Size(); got != 3*light.GPULightSize {
		t.Fatalf("Expected 192 bytes of lights, got %d", got)
	}
	want := []uint64{0, 64, 128}
	for i, seg := range s.lightSegments {
		if seg.Offset != want[i] {
			t.Errorf("Expected light %d at offset %d, got %d", i, want[i], seg.Offset)
		}
	}

	if err := r.RemoveComponent(ids[1], registry.ComponentLight); err != nil {
		t.Fatal(err)
	}
	r.IterateSystems()
	if got := s.LightBuffer().Size(); got != 2*light.GPULightSize {
		t.Errorf("Expected 128 bytes of lights, got %d", got)
	}
	if len(s.lightSegments) != 2 || s.lightSegments[1].Offset != 64 {
		t.Fatalf("Expected the third light to shift to offset 64, got %+v", s.lightSegments)
	}
	data := d.ReadBuffer(s.LightBuffer().Buffer())
	if got := float(data, 64+32); got != 2 {
		t.Errorf("Expected the third light's colour at offset 96, got %v", got)
	}
	if got := s.Stats().Lights; got != 2 {
		t.Errorf("Expected 2 combined lights, got %d", got)
	}
}

// go test -run ^TestResizeRecreatesOutputOnce$ ./engine/rendering -count 1
func TestResizeRecreatesOutputOnce(t *testing.T) {
	r, d, s := newTestScene(t)
	spawn(t, r, mgl32.Vec3{}, mesh.NewMesh(mesh.WithPrimitive(mesh.PrimitiveTriangle)))

	r.IterateSystems()
	rec, ok := renderDispatch(d)
	if !ok {
		t.Fatal("Expected a render dispatch")
	}
	if rec.X != 8 || rec.Y != 6 || rec.Z != 1 {
		t.Errorf("Expected 8x6x1 workgroups for 64x48, got %dx%dx%d", rec.X, rec.Y, rec.Z)
	}
	if got := s.Stats().OutputRecreations; got != 0 {
		t.Errorf("Expected no recreation on first allocation, got %d", got)
	}

	d.Swapchain().Resize(100, 50)
	d.ClearRecords()
	r.IterateSystems()
	rec, _ = renderDispatch(d)
	if rec.X != 13 || rec.Y != 7 {
		t.Errorf("Expected 13x7 workgroups for 100x50, got %dx%d", rec.X, rec.Y)
	}
	if got := s.Stats().OutputRecreations; got != 1 {
		t.Errorf("Expected 1 output recreation, got %d", got)
	}
	if got := s.OutputImage().Extent(); got != (gpu.Extent{Width: 100, Height: 50}) {
		t.Errorf("Expected a 100x50 output image, got %+v", got)
	}

	r.IterateSystems()
	if got := s.Stats().OutputRecreations; got != 1 {
		t.Errorf("Expected the output to be kept at an unchanged extent, got %d recreations", got)
	}
	if got := d.Stats().LayoutMismatches; got != 0 {
		t.Errorf("Expected no layout mismatches, got %d", got)
	}
}

// go test -run ^TestFenceLimitsFramesInFlight$ ./engine/rendering -count 1
func TestFenceLimitsFramesInFlight(t *testing.T) {
	r, d, s := newTestScene(t, gpu.WithManualFences())
	spawn(t, r, mgl32.Vec3{}, mesh.NewMesh(mesh.WithPrimitive(mesh.PrimitiveQuad)))

	r.IterateSystems()
	submitted := d.Stats().Submissions
	r.IterateSystems()
	if s.State() != StateWaitFence {
		t.Errorf("Expected the second tick to stop at WaitFence, got %v", s.State())
	}
	if got := d.Stats().Submissions; got != submitted {
		t.Errorf("Expected no submissions while a frame is in flight, got %d new", got-submitted)
	}

	d.CompleteFences()
	r.IterateSystems()
	stats := s.Stats()
	if stats.Ticks != 3 || stats.Skipped != 1 || stats.Presented != 2 {
		t.Errorf("Expected 3 ticks, 1 skipped and 2 presented, got %+v", stats)
	}

	fs, ok := gpu.InspectFence(s.Fence())
	if !ok {
		t.Fatal("Expected a fence created by the gpu package")
	}
	if fs.DoubleObservations != 0 {
		t.Errorf("Expected the fence never to be observed twice, got %d", fs.DoubleObservations)
	}
	if fs.Submissions != 2 || fs.Resets != 2 {
		t.Errorf("Expected 2 submissions and 2 resets, got %+v", fs)
	}
}

// go test -run ^TestSubmissionsWaitOnlyOnProducedSemaphores$ ./engine/rendering -count 1
func TestSubmissionsWaitOnlyOnProducedSemaphores(t *testing.T) {
	r, d, _ := newTestScene(t)
	spawn(t, r, mgl32.Vec3{}, mesh.NewMesh(mesh.WithPrimitive(mesh.PrimitiveCube), mesh.WithStatic()))
	spawn(t, r, mgl32.Vec3{0, 2, 0}, light.NewLight(light.WithStatic()))

	r.IterateSystems()
	subs := d.Submissions()
	families := make([]gpu.QueueFamily, len(subs))
	for i, s := range subs {
		families[i] = s.Family
	}
	wantFamilies := []gpu.QueueFamily{
		gpu.QueueCompute, gpu.QueueTransfer, gpu.QueueTransfer, gpu.QueueTransfer, gpu.QueueCompute, gpu.QueueGraphics,
	}
	if !slices.Equal(families, wantFamilies) {
		t.Fatalf("Expected submissions on %v, got %v", wantFamilies, families)
	}
	if !slices.Equal(subs[2].Wait, []string{"Lights Ready"}) || !slices.Equal(subs[3].Wait, []string{"Geometry Ready"}) {
		t.Errorf("Expected the combines to wait on this tick's uploads, got %v and %v", subs[2].Wait, subs[3].Wait)
	}
	if !subs[5].Fence || slices.ContainsFunc(subs[:5], func(s gpu.SubmissionRecord) bool { return s.Fence }) {
		t.Error("Expected only the present submission to carry the fence")
	}

	d.ClearRecords()
	r.IterateSystems()
	subs = d.Submissions()
	if len(subs) != 4 {
		t.Fatalf("Expected 4 submissions once static views are processed, got %d", len(subs))
	}
	if len(subs[0].Wait) != 0 || len(subs[1].Wait) != 0 {
		t.Errorf("Expected the combines not to wait without uploads, got %v and %v", subs[0].Wait, subs[1].Wait)
	}
	if got := d.Stats().Presents; got != 2 {
		t.Errorf("Expected 2 presents, got %d", got)
	}
}

// go test -run ^TestMeshInfoRecords$ ./engine/rendering -count 1
func TestMeshInfoRecords(t *testing.T) {
	r, d, s := newTestScene(t)
	spawn(t, r, mgl32.Vec3{}, mesh.NewMesh(mesh.WithPrimitive(mesh.PrimitiveTriangle)))
	spawn(t, r, mgl32.Vec3{20, 0, 0},
		mesh.NewMesh(mesh.WithPrimitive(mesh.PrimitiveQuad)),
		material.NewMaterial(material.WithColor(mgl32.Vec4{1, 0, 0, 1}),
			material.WithMetallic(0.25), material.WithRoughness(0.5)))

	spawn(t, r, mgl32.Vec3{5, 0, 0}, light.NewLight())
	spawn(t, r, mgl32.Vec3{}, light.NewLight(light.WithType(light.LightTypeDirectional)))
	spawn(t, r, mgl32.Vec3{1, 0, 0}, light.NewLight())
	spawn(t, r, mgl32.Vec3{50, 0, 0}, light.NewLight())

	r.IterateSystems()
	data := d.ReadBuffer(s.meshInfo.Device())

	tri := []uint32{0, 3, 48, 3}
	quad := []uint32{51, 4, 115, 6}
	for i, want := range tri {
		if got := word(data, i*4); got != want {
			t.Errorf("Expected triangle field %d to be %d, got %d", i, want, got)
		}
	}
	for i, want := range quad {
		if got := word(data, GPUMeshInfoSize+i*4); got != want {
			t.Errorf("Expected quad field %d to be %d, got %d", i, want, got)
		}
	}

	if got := float(data, 16); got != 1 {
		t.Errorf("Expected a white default colour, got red=%v", got)
	}
	if g, b := float(data, GPUMeshInfoSize+20), float(data, GPUMeshInfoSize+24); g != 0 || b != 0 {
		t.Errorf("Expected the material colour on the quad, got g=%v b=%v", g, b)
	}
	if m, rough := float(data, 36), float(data, 40); m != 0 || rough != 1 {
		t.Errorf("Expected a non-metallic, fully rough default, got metallic=%v roughness=%v", m, rough)
	}
	if m, rough := float(data, GPUMeshInfoSize+36), float(data, GPUMeshInfoSize+40); m != 0.25 || rough != 0.5 {
		t.Errorf("Expected metallic 0.25 and roughness 0.5 on the quad, got %v and %v", m, rough)
	}

	if got := word(data, 32); got != 3 {
		t.Fatalf("Expected 3 lights for the triangle, got %d", got)
	}
	for i, want := range []uint32{1, 2, 0} {
		if got := word(data, 48+i*4); got != want {
			t.Errorf("Expected light %d of the triangle to be %d, got %d", i, want, got)
		}
	}
}

// go test -run ^TestZeroExtentSkipsFrame$ ./engine/rendering -count 1
func TestZeroExtentSkipsFrame(t *testing.T) {
	r, d, s := newTestScene(t)
	d.Swapchain().Resize(0, 0)
	r.IterateSystems()
	if got := d.Stats().Submissions; got != 0 {
		t.Errorf("Expected no submissions for a minimised surface, got %d", got)
	}
	d.Swapchain().Resize(32, 32)
	r.IterateSystems()
	if stats := s.Stats(); stats.Skipped != 1 || stats.Presented != 1 {
		t.Errorf("Expected 1 skipped and 1 presented frame, got %+v", stats)
	}
}

// go test -run ^TestDestroyReleasesEverything$ ./engine/rendering -count 1
func TestDestroyReleasesEverything(t *testing.T) {
	r, d, _ := newTestScene(t)
	spawn(t, r, mgl32.Vec3{}, mesh.NewMesh(mesh.WithPrimitive(mesh.PrimitiveCube)), material.NewMaterial())
	spawn(t, r, mgl32.Vec3{0, 3, 0}, light.NewLight())
	r.IterateSystems()
	d.Swapchain().Resize(80, 40)
	r.IterateSystems()

	r.Destroy()
	stats := d.Stats()
	if stats.BuffersCreated != stats.BuffersDestroyed {
		t.Errorf("Expected every buffer released, created %d destroyed %d", stats.BuffersCreated, stats.BuffersDestroyed)
	}
	if stats.ImagesCreated != stats.ImagesDestroyed {
		t.Errorf("Expected every image released, created %d destroyed %d", stats.ImagesCreated, stats.ImagesDestroyed)
	}
	if !stats.DeviceDestroyed {
		t.Error("Expected the device destroyed last")
	}
	if Of(r) != nil {
		t.Error("Expected no rendering system after destroy")
	}
}
