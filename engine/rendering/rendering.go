// Package rendering implements the frame orchestrator: a singleton system that, once per tick,
// uploads dirty component views on a worker pool, combines mesh and light buffers, dispatches
// the raycast render pass and presents the result. A single frame fence keeps at most one frame
// in flight.
package rendering

import (
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-ecs/common"
	"github.com/Carmen-Shannon/oxy-ecs/engine/camera"
	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
	"github.com/Carmen-Shannon/oxy-ecs/engine/light"
	"github.com/Carmen-Shannon/oxy-ecs/engine/material"
	"github.com/Carmen-Shannon/oxy-ecs/engine/mesh"
	"github.com/Carmen-Shannon/oxy-ecs/engine/registry"
	"github.com/Carmen-Shannon/oxy-ecs/engine/resource"
	"github.com/Carmen-Shannon/oxy-ecs/engine/transform"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

const (
	meshLayoutKey   = "render_meshes"
	lightLayoutKey  = "render_lights"
	outputLayoutKey = "render_output"
)

// State is the phase a tick reached.
type State int

const (
	StateWaitFence State = iota
	StateCollectUpload
	StateSubmitGeometryLight
	StateCombine
	StateRenderDispatch
	StatePresent
)

func (s State) String() string {
	switch s {
	case StateWaitFence:
		return "WaitFence"
	case StateCollectUpload:
		return "CollectUpload"
	case StateSubmitGeometryLight:
		return "SubmitGeometryLight"
	case StateCombine:
		return "Combine"
	case StateRenderDispatch:
		return "RenderDispatch"
	case StatePresent:
		return "Present"
	}
	return "Unknown"
}

// Stats counts what the system has done since construction. Meshes, Lights and Uploads describe
// the last presented frame.
type Stats struct {
	Ticks             int
	Skipped           int
	Presented         int
	OutputRecreations int
	Meshes            int
	Lights            int
	Uploads           int
}

// System is the rendering system registered under registry.SystemRendering.
type System interface {
	registry.System
	registry.Destroyer

	// State returns the phase the last tick stopped in.
	//
	// Returns:
	//   - State: StatePresent after a full frame, StateWaitFence after a skipped tick
	State() State

	// Stats returns a snapshot of the frame counters.
	//
	// Returns:
	//   - Stats: the counters
	Stats() Stats

	// MeshBuffer returns the combined vertex and index buffer of every enabled mesh.
	//
	// Returns:
	//   - resource.CombinedBuffer: the combined mesh buffer
	MeshBuffer() resource.CombinedBuffer

	// LightBuffer returns the combined record buffer of every enabled light.
	//
	// Returns:
	//   - resource.CombinedBuffer: the combined light buffer
	LightBuffer() resource.CombinedBuffer

	// OutputImage returns the image the render pass writes, nil before the first frame.
	//
	// Returns:
	//   - gpu.Image: the output image
	OutputImage() gpu.Image

	// Fence returns the frame fence.
	//
	// Returns:
	//   - gpu.Fence: the fence signaled when a presented frame completes
	Fence() gpu.Fence
}

type system struct {
	mu        *sync.Mutex
	logger    *zap.Logger
	device    gpu.Device
	workers   int
	pool      worker.DynamicWorkerPool
	state     State
	stats     Stats
	destroyed bool

	fence         gpu.Fence
	geometry      gpu.Semaphore
	lightsReady   gpu.Semaphore
	meshCombined  gpu.Semaphore
	lightCombined gpu.Semaphore
	rendered      gpu.Semaphore
	acquired      gpu.Semaphore
	presentable   gpu.Semaphore

	transformPipeline gpu.Pipeline
	renderPipeline    gpu.Pipeline

	meshBuffer  resource.CombinedBuffer
	lightBuffer resource.CombinedBuffer
	meshInfo    resource.BufferPair
	renderInfo  resource.BufferPair
	meshSet     gpu.DescriptorSet
	lightSet    gpu.DescriptorSet
	outputSet   gpu.DescriptorSet

	outputState  resource.State[gpu.Extent]
	outputBuffer gpu.Buffer
	outputImage  gpu.Image
	rowPitch     uint32

	meshCombine  gpu.CommandBuffer
	lightCombine gpu.CommandBuffer
	render       gpu.CommandBuffer
	present      gpu.CommandBuffer

	fallbackCamera *camera.Camera
	lightSegments  []resource.Segment
	meshSegments   []resource.Segment
}

var _ System = &system{}

func (*system) Type() registry.SystemType {
	return registry.SystemRendering
}

func (s *system) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *system) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *system) MeshBuffer() resource.CombinedBuffer {
	return s.meshBuffer
}

func (s *system) LightBuffer() resource.CombinedBuffer {
	return s.lightBuffer
}

func (s *system) OutputImage() gpu.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputImage
}

func (s *system) Fence() gpu.Fence {
	return s.fence
}

func (s *system) Update(r registry.Registry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.stats.Ticks++

	s.state = StateWaitFence
	extent := s.device.Swapchain().Extent()
	if extent.Empty() || !s.fence.Signaled() {
		s.stats.Skipped++
		return
	}
	s.fence.Reset()

	s.state = StateCollectUpload
	compute, transfer := s.collect(r)

	s.state = StateSubmitGeometryLight
	var geometryWait, lightWait []gpu.Semaphore
	if len(compute) > 0 {
		s.device.Queue(gpu.QueueCompute).Submit(gpu.SubmitInfo{
			Commands: compute,
			Signal:   []gpu.Semaphore{s.geometry},
		})
		geometryWait = []gpu.Semaphore{s.geometry}
	}
	if len(transfer) > 0 {
		s.device.Queue(gpu.QueueTransfer).Submit(gpu.SubmitInfo{
			Commands: transfer,
			Signal:   []gpu.Semaphore{s.lightsReady},
		})
		lightWait = []gpu.Semaphore{s.lightsReady}
	}

	s.state = StateCombine
	candidates := s.combineLights(r, lightWait)
	meshCount := s.combineMeshes(r, candidates, geometryWait)

	s.state = StateRenderDispatch
	s.dispatch(r, extent, meshCount, len(candidates))

	s.state = StatePresent
	s.presentFrame()

	s.stats.Presented++
	s.stats.Meshes = meshCount
	s.stats.Lights = len(candidates)
	s.stats.Uploads = len(compute) + len(transfer)
	s.logger.Debug("frame submitted",
		zap.Int("tick", s.stats.Ticks),
		zap.Int("meshes", meshCount),
		zap.Int("lights", len(candidates)),
		zap.Int("uploads", s.stats.Uploads))
}

type upload struct {
	family  gpu.QueueFamily
	prepare func() gpu.CommandBuffer
}

// collect prepares every view that needs an upload on the worker pool and returns the resulting
// commands per queue in registry order.
func (s *system) collect(r registry.Registry) ([]gpu.CommandBuffer, []gpu.CommandBuffer) {
	var uploads []upload
	for _, m := range registry.All[*mesh.Mesh](r) {
		if m.NeedsUpload(r) {
			uploads = append(uploads, upload{gpu.QueueCompute, func() gpu.CommandBuffer {
				return m.Prepare(r, s.transformPipeline)
			}})
		}
	}
	for _, l := range registry.All[*light.Light](r) {
		if l.NeedsUpload(r) {
			uploads = append(uploads, upload{gpu.QueueTransfer, func() gpu.CommandBuffer {
				return l.Prepare(r)
			}})
		}
	}
	for _, m := range registry.All[*material.Material](r) {
		if m.NeedsUpload() {
			uploads = append(uploads, upload{gpu.QueueTransfer, m.Prepare})
		}
	}

	results := make([]gpu.CommandBuffer, len(uploads))
	var wg sync.WaitGroup
	for i, u := range uploads {
		wg.Add(1)
		s.pool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				results[i] = u.prepare()
				return nil, nil
			},
		})
	}
	wg.Wait()

	var compute, transfer []gpu.CommandBuffer
	for i, cb := range results {
		if cb == nil {
			continue
		}
		if uploads[i].family == gpu.QueueCompute {
			compute = append(compute, cb)
		} else {
			transfer = append(transfer, cb)
		}
	}
	return compute, transfer
}

// combineLights copies every enabled light record into the combined light buffer and returns the
// lights in buffer order.
func (s *system) combineLights(r registry.Registry, wait []gpu.Semaphore) []lightCandidate {
	var members []resource.Member
	var candidates []lightCandidate
	for _, l := range registry.All[*light.Light](r) {
		if !l.Enabled() {
			continue
		}
		buf := l.Buffer()
		if buf == nil {
			continue
		}
		candidates = append(candidates, lightCandidate{
			index:      uint32(len(members)),
			lightType:  l.LightType(),
			position:   l.Position(),
			lightRange: l.Range(),
		})
		members = append(members, resource.Member{Buffer: buf, Size: light.GPULightSize})
	}

	if s.lightBuffer.Ensure(members) != resource.ActionUpdate || s.lightSet.Generation() == 0 {
		if err := s.lightSet.Update(gpu.DescriptorWrite{Binding: 0, Buffer: s.lightBuffer.Buffer()}); err != nil {
			s.logger.Error("light set update", zap.Error(err))
		}
	}

	s.lightCombine.Begin()
	s.lightSegments = s.lightBuffer.Record(s.lightCombine, members)
	s.lightCombine.End()
	s.device.Queue(gpu.QueueTransfer).Submit(gpu.SubmitInfo{
		Commands: []gpu.CommandBuffer{s.lightCombine},
		Wait:     wait,
		Signal:   []gpu.Semaphore{s.lightCombined},
	})
	return candidates
}

// combineMeshes copies the vertices and indices of every enabled mesh into the combined mesh
// buffer and writes one info record per mesh. It returns the number of meshes combined.
func (s *system) combineMeshes(r registry.Registry, candidates []lightCandidate, wait []gpu.Semaphore) int {
	var members []resource.Member
	var drawn []*mesh.Mesh
	for _, m := range registry.All[*mesh.Mesh](r) {
		if !m.Enabled() {
			continue
		}
		vertices, indices := m.VertexPair(), m.IndexPair()
		if vertices == nil || vertices.Bytes() == 0 {
			continue
		}
		drawn = append(drawn, m)
		members = append(members,
			resource.Member{Buffer: vertices.Device(), Size: vertices.Bytes()},
			resource.Member{Buffer: indices.Device(), Size: indices.Bytes()},
		)
	}

	bufferAction := s.meshBuffer.Ensure(members)
	infoAction := s.meshInfo.Ensure(uint64(max(len(drawn), 1)))
	segments := resource.Offsets(members)

	infos := make([]byte, max(len(drawn), 1)*GPUMeshInfoSize)
	for i, m := range drawn {
		v, idx := segments[2*i], segments[2*i+1]
		info := GPUMeshInfo{
			VertexOffset: uint32(v.Offset / 4),
			VertexCount:  uint32(v.Size / mesh.GPUVertexSize),
			IndexOffset:  uint32(idx.Offset / 4),
			IndexCount:   uint32(idx.Size / mesh.GPUIndexSize),
			Color:        [4]float32{1, 1, 1, 1},
			Roughness:    1,
		}
		if mat := material.Of(r, m.Owner()); mat != nil {
			info.Color = mat.Color()
			info.Metallic = mat.Metallic()
			info.Roughness = mat.Roughness()
		}
		origin := mgl32.Vec3{}
		if tr := transform.Of(r, m.Owner()); tr != nil {
			origin = tr.Position()
		}
		selected := selectLights(origin, candidates, light.MaxLightsPerMesh)
		info.LightCount = uint32(copy(info.Lights[:], selected))
		info.MarshalTo(infos[i*GPUMeshInfoSize:])
	}
	s.meshInfo.Upload(infos)

	if bufferAction != resource.ActionUpdate || infoAction != resource.ActionUpdate || s.meshSet.Generation() == 0 {
		if err := s.meshSet.Update(
			gpu.DescriptorWrite{Binding: 0, Buffer: s.meshBuffer.Buffer()},
			gpu.DescriptorWrite{Binding: 1, Buffer: s.meshInfo.Device()},
		); err != nil {
			s.logger.Error("mesh set update", zap.Error(err))
		}
	}

	s.meshCombine.Begin()
	s.meshSegments = s.meshBuffer.Record(s.meshCombine, members)
	s.meshInfo.Record(s.meshCombine)
	s.meshCombine.End()
	s.device.Queue(gpu.QueueTransfer).Submit(gpu.SubmitInfo{
		Commands: []gpu.CommandBuffer{s.meshCombine},
		Wait:     wait,
		Signal:   []gpu.Semaphore{s.meshCombined},
	})
	return len(drawn)
}

// dispatch refreshes the render info, recreates the output targets when the swapchain extent
// changed and submits the render pass.
func (s *system) dispatch(r registry.Registry, extent gpu.Extent, meshCount, lightCount int) {
	format := s.device.Swapchain().Format()
	rebind := s.ensureOutput(extent, format)
	if s.renderInfo.Ensure(1) != resource.ActionUpdate {
		rebind = true
	}

	cam := camera.Main(r)
	if cam == nil {
		cam = s.fallbackCamera
	}
	cam.SetResolution(extent.Width, extent.Height)
	info := GPURenderInfo{
		Width:      extent.Width,
		Height:     extent.Height,
		RowPitch:   s.rowPitch / gpu.BytesPerTexel(format),
		MeshCount:  uint32(meshCount),
		LightCount: uint32(lightCount),
		Camera:     cam.Uniform(r),
	}
	if format == gpu.FormatBGRA8Unorm {
		info.BGRA = 1
	}
	s.renderInfo.Upload(info.Marshal())

	if rebind || s.outputSet.Generation() == 0 {
		if err := s.outputSet.Update(
			gpu.DescriptorWrite{Binding: 0, Buffer: s.renderInfo.Device()},
			gpu.DescriptorWrite{Binding: 1, Buffer: s.outputBuffer},
		); err != nil {
			s.logger.Error("output set update", zap.Error(err))
		}
	}

	cb := s.render
	cb.Begin()
	s.renderInfo.Record(cb)
	cb.BindPipeline(s.renderPipeline)
	cb.BindDescriptorSets(s.meshSet, s.lightSet, s.outputSet)
	cb.Dispatch(
		common.CeilDiv(extent.Width, RenderWorkgroupSize),
		common.CeilDiv(extent.Height, RenderWorkgroupSize),
		1,
	)
	cb.TransitionImage(s.outputImage, gpu.LayoutUndefined, gpu.LayoutTransferDst)
	cb.CopyBufferToImage(s.outputBuffer, s.outputImage, s.rowPitch)
	cb.End()
	s.device.Queue(gpu.QueueCompute).Submit(gpu.SubmitInfo{
		Commands: []gpu.CommandBuffer{cb},
		Wait:     []gpu.Semaphore{s.meshCombined, s.lightCombined},
		Signal:   []gpu.Semaphore{s.rendered},
	})
}

// ensureOutput applies Plan to the output buffer and image. It reports whether they were
// (re)allocated.
func (s *system) ensureOutput(extent gpu.Extent, format gpu.Format) bool {
	action := resource.Plan(s.outputState, extent)
	if action == resource.ActionUpdate {
		return false
	}
	if action == resource.ActionRecreate {
		s.stats.OutputRecreations++
		prev, _ := s.outputState.Size()
		s.logger.Debug("recreating render output",
			zap.Uint32("from_width", prev.Width),
			zap.Uint32("from_height", prev.Height),
			zap.Uint32("width", extent.Width),
			zap.Uint32("height", extent.Height))
		s.releaseOutput()
	}
	s.rowPitch = resource.PaddedRowPitch(extent.Width, format)
	s.outputBuffer = s.device.CreateBuffer(gpu.BufferDescriptor{
		Label:  "Render Output",
		Size:   uint64(s.rowPitch) * uint64(extent.Height),
		Usage:  gpu.BufferUsageStorage | gpu.BufferUsageTransferSrc,
		Memory: gpu.MemoryDeviceLocal,
	})
	s.outputImage = s.device.CreateImage(gpu.ImageDescriptor{
		Label:  "Render Output Image",
		Extent: extent,
		Format: format,
		Usage:  gpu.ImageUsageTransferDst | gpu.ImageUsageTransferSrc,
	})
	s.outputState = resource.Sized(extent)
	return true
}

func (s *system) presentFrame() {
	sc := s.device.Swapchain()
	index := sc.AcquireNextImage(s.acquired)
	target := sc.Image(index)

	cb := s.present
	cb.Begin()
	cb.TransitionImage(s.outputImage, gpu.LayoutTransferDst, gpu.LayoutTransferSrc)
	cb.TransitionImage(target, gpu.LayoutUndefined, gpu.LayoutTransferDst)
	cb.BlitImage(s.outputImage, target)
	cb.TransitionImage(target, gpu.LayoutTransferDst, gpu.LayoutPresent)
	cb.End()
	s.device.Queue(gpu.QueueGraphics).Submit(gpu.SubmitInfo{
		Commands: []gpu.CommandBuffer{cb},
		Wait:     []gpu.Semaphore{s.rendered, s.acquired},
		Signal:   []gpu.Semaphore{s.presentable},
		Fence:    s.fence,
	})
	sc.Present(index, s.device.Queue(gpu.QueuePresent), []gpu.Semaphore{s.presentable})
}

func (s *system) releaseOutput() {
	if s.outputBuffer != nil {
		s.outputBuffer.Destroy()
		s.outputBuffer = nil
	}
	if s.outputImage != nil {
		s.outputImage.Destroy()
		s.outputImage = nil
	}
	s.outputState = resource.Uninitialized[gpu.Extent]()
}

func (s *system) Destroy(registry.Registry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.destroyed = true

	for f := gpu.QueueGraphics; f <= gpu.QueuePresent; f++ {
		s.device.Queue(f).WaitIdle()
	}
	s.device.WaitIdle()

	for _, cb := range []gpu.CommandBuffer{s.meshCombine, s.lightCombine, s.render, s.present} {
		cb.Destroy()
	}
	for _, set := range []gpu.DescriptorSet{s.meshSet, s.lightSet, s.outputSet} {
		set.Destroy()
	}
	s.meshBuffer.Destroy()
	s.lightBuffer.Destroy()
	s.meshInfo.Destroy()
	s.renderInfo.Destroy()
	s.releaseOutput()
	s.transformPipeline.Destroy()
	s.renderPipeline.Destroy()
	for _, sem := range []gpu.Semaphore{
		s.geometry, s.lightsReady, s.meshCombined, s.lightCombined, s.rendered, s.acquired, s.presentable,
	} {
		sem.Destroy()
	}
	s.fence.Destroy()
	s.pool.Stop()
	s.logger.Debug("rendering system destroyed", zap.Int("frames", s.stats.Presented))
}

// Of returns the rendering system registered on r, or nil.
func Of(r registry.Registry) System {
	s, _ := r.GetSystem(registry.SystemRendering).(System)
	return s
}
