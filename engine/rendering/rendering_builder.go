package rendering

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-ecs/engine/camera"
	"github.com/Carmen-Shannon/oxy-ecs/engine/gpu"
	"github.com/Carmen-Shannon/oxy-ecs/engine/light"
	"github.com/Carmen-Shannon/oxy-ecs/engine/mesh"
	"github.com/Carmen-Shannon/oxy-ecs/engine/resource"
	"go.uber.org/zap"
)

// SystemBuilderOption is a function that configures the rendering system during construction.
type SystemBuilderOption func(*system)

// WithLogger sets the logger of the rendering system.
//
// Parameters:
//   - logger: the zap logger (nil keeps the no-op default)
//
// Returns:
//   - SystemBuilderOption: a function that applies the logger option
func WithLogger(logger *zap.Logger) SystemBuilderOption {
	return func(s *system) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithWorkers sets the number of upload workers. Values below 1 keep the default of one worker
// per CPU minus one, with a minimum of one.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - SystemBuilderOption: a function that applies the worker option
func WithWorkers(n int) SystemBuilderOption {
	return func(s *system) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewSystem creates the rendering system and every device object it reuses across frames: the
// frame fence (created signaled), the per-stage semaphores, both compute pipelines, the combined
// buffers and their descriptor sets.
//
// Parameters:
//   - device: the device to render with; the system does not own it
//   - options: functional options
//
// Returns:
//   - System: the new system, ready for registry.AddSystem
func NewSystem(device gpu.Device, options ...SystemBuilderOption) System {
	s := &system{
		mu:             &sync.Mutex{},
		logger:         zap.NewNop(),
		device:         device,
		workers:        max(runtime.NumCPU()-1, 1),
		fallbackCamera: camera.NewCamera(),
		outputState:    resource.Uninitialized[gpu.Extent](),
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.Named("rendering")
	if device == nil {
		s.logger.Panic("rendering system requires a device")
	}

	s.pool = worker.NewDynamicWorkerPool(s.workers, 256, 1*time.Second)

	s.fence = device.CreateFence("Frame Fence", true)
	s.geometry = device.CreateSemaphore("Geometry Ready")
	s.lightsReady = device.CreateSemaphore("Lights Ready")
	s.meshCombined = device.CreateSemaphore("Mesh Combined")
	s.lightCombined = device.CreateSemaphore("Light Combined")
	s.rendered = device.CreateSemaphore("Render Complete")
	s.acquired = device.CreateSemaphore("Image Acquired")
	s.presentable = device.CreateSemaphore("Present Ready")

	meshLayout := device.DescriptorLayout(meshLayoutKey, RenderProgram.Bindings(0)...)
	lightLayout := device.DescriptorLayout(lightLayoutKey, RenderProgram.Bindings(1)...)
	outputLayout := device.DescriptorLayout(outputLayoutKey, RenderProgram.Bindings(2)...)

	s.transformPipeline = mesh.NewTransformPipeline(device)
	s.renderPipeline = device.CreateComputePipeline(gpu.PipelineDescriptor{
		Label:      "Render Pipeline",
		Source:     RenderShaderSource,
		EntryPoint: "main",
		Layouts:    []gpu.DescriptorLayout{meshLayout, lightLayout, outputLayout},
	})

	s.meshBuffer = resource.NewCombinedBuffer(device, "Combined Meshes", gpu.BufferUsageStorage,
		mesh.GPUVertexSize, s.logger)
	s.lightBuffer = resource.NewCombinedBuffer(device, "Combined Lights", gpu.BufferUsageStorage,
		light.GPULightSize, s.logger)
	s.meshInfo = resource.NewBufferPair(device, "Mesh Info", GPUMeshInfoSize,
		resource.WithBufferUsage(gpu.BufferUsageStorage), resource.WithPairLogger(s.logger))
	s.renderInfo = resource.NewBufferPair(device, "Render Info", GPURenderInfoSize,
		resource.WithBufferUsage(gpu.BufferUsageUniform), resource.WithPairLogger(s.logger))

	s.meshSet = device.CreateDescriptorSet("Render Meshes", meshLayout)
	s.lightSet = device.CreateDescriptorSet("Render Lights", lightLayout)
	s.outputSet = device.CreateDescriptorSet("Render Output", outputLayout)

	s.meshCombine = device.CreateCommandBuffer("Mesh Combine", gpu.QueueTransfer)
	s.lightCombine = device.CreateCommandBuffer("Light Combine", gpu.QueueTransfer)
	s.render = device.CreateCommandBuffer("Render", gpu.QueueCompute)
	s.present = device.CreateCommandBuffer("Present", gpu.QueueGraphics)

	s.logger.Debug("rendering system created", zap.Int("workers", s.workers))
	return s
}
