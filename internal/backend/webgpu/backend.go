//go:build windows

package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/quadrant-sim/quadrant/internal/pi"
)

const (
	// stateSlotBytes is one xorshift128 state: vec4<u32>.
	stateSlotBytes = 16
	// partialSlotBytes is one f32 partial-sum slot.
	partialSlotBytes = 4
	// paramsBytes is the uniform Params struct, 16-byte aligned.
	paramsBytes = 16
)

// Backend runs the estimation pipeline as WGSL compute shaders.
type Backend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	// Shader and pipeline cache, keyed by entry point.
	shader    *wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	mu        sync.Mutex

	adapterInfo *wgpu.AdapterInfo

	cfg       pi.Config
	allocated bool
	released  bool

	stateBuf   *wgpu.Buffer
	partialBuf *wgpu.Buffer
	paramsBuf  *wgpu.Buffer
}

// New creates a WebGPU backend. Returns an error if WebGPU is unavailable or
// device initialization fails.
func New() (backend *Backend, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			backend = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", adapterErr)
	}

	adapterInfo := adapter.GetInfo()

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", deviceErr)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	return &Backend{
		instance:    instance,
		adapter:     adapter,
		device:      device,
		queue:       queue,
		pipelines:   make(map[string]*wgpu.ComputePipeline),
		adapterInfo: &adapterInfo,
	}, nil
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

// Name returns the backend name.
func (b *Backend) Name() string {
	if b.adapterInfo != nil {
		return fmt.Sprintf("WebGPU (%s %s)", b.adapterInfo.Name, b.adapterInfo.VendorName)
	}
	return "WebGPU"
}

// Allocate reserves the device buffers for the generator state table and the
// partial-sum vector.
func (b *Backend) Allocate(cfg pi.Config) (err error) {
	if b.released {
		return fmt.Errorf("webgpu: backend released")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	stateBytes := int64(cfg.Workers()) * stateSlotBytes
	partialBytes := int64(cfg.Blocks()) * partialSlotBytes

	// Buffer creation panics inside the native bindings when the device
	// cannot satisfy the reservation; surface that as an allocation error.
	defer func() {
		if r := recover(); r != nil {
			b.freeBuffers()
			err = &pi.AllocationError{
				Resource: "device buffers",
				Bytes:    stateBytes + partialBytes,
				Err:      fmt.Errorf("%v", r),
			}
		}
	}()

	b.stateBuf = b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
		Size:  uint64(stateBytes),
	})
	if b.stateBuf == nil {
		return &pi.AllocationError{Resource: "generator state table", Bytes: stateBytes}
	}

	b.partialBuf = b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  uint64(partialBytes),
	})
	if b.partialBuf == nil {
		b.freeBuffers()
		return &pi.AllocationError{Resource: "partial-sum vector", Bytes: partialBytes}
	}

	b.cfg = cfg
	b.allocated = true
	return nil
}

// SeedAll uploads the run seed and dispatches the seeding entry point over
// the whole grid. The queue submission is synchronized by the read-back in
// ReadTotal; stage ordering within the queue is already guaranteed.
func (b *Backend) SeedAll(seed uint64) error {
	if err := b.usable(); err != nil {
		return err
	}
	b.writeParams(seed)
	return b.dispatch("seed_all", b.cfg.BlocksX, b.cfg.BlocksY)
}

// SampleReduce dispatches the sampler entry point: one workgroup per block,
// one invocation per worker.
func (b *Backend) SampleReduce() error {
	if err := b.usable(); err != nil {
		return err
	}
	return b.dispatch("sample_reduce", b.cfg.BlocksX, b.cfg.BlocksY)
}

// Collapse dispatches a single invocation that accumulates the partial-sum
// vector into slot 0.
func (b *Backend) Collapse() error {
	if err := b.usable(); err != nil {
		return err
	}
	return b.dispatch("collapse", 1, 1)
}

// ReadTotal copies slot 0 of the partial-sum vector back to the host. The
// map wait is the full pipeline completion barrier.
func (b *Backend) ReadTotal() (float64, error) {
	if err := b.usable(); err != nil {
		return 0, err
	}

	staging := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  partialSlotBytes,
	})
	defer staging.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(b.partialBuf, 0, staging, 0, partialSlotBytes)
	cmd := encoder.Finish(nil)
	b.queue.Submit(cmd)

	if err := staging.MapAsync(b.device, wgpu.MapModeRead, 0, partialSlotBytes); err != nil {
		return 0, fmt.Errorf("webgpu: mapping staging buffer: %w", err)
	}
	mappedPtr := staging.GetMappedRange(0, partialSlotBytes)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mapped := unsafe.Slice((*byte)(mappedPtr), partialSlotBytes)
	bits := binary.LittleEndian.Uint32(mapped)
	staging.Unmap()

	return float64(math.Float32frombits(bits)), nil
}

// Release frees all device resources.
func (b *Backend) Release() error {
	if b.released {
		return fmt.Errorf("webgpu: backend released")
	}
	b.released = true
	b.allocated = false

	b.mu.Lock()
	defer b.mu.Unlock()

	b.freeBuffers()
	for _, p := range b.pipelines {
		p.Release()
	}
	b.pipelines = nil
	if b.shader != nil {
		b.shader.Release()
		b.shader = nil
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
	return nil
}

func (b *Backend) usable() error {
	if b.released {
		return fmt.Errorf("webgpu: backend released")
	}
	if !b.allocated {
		return fmt.Errorf("webgpu: backend not allocated")
	}
	return nil
}

func (b *Backend) freeBuffers() {
	if b.stateBuf != nil {
		b.stateBuf.Release()
		b.stateBuf = nil
	}
	if b.partialBuf != nil {
		b.partialBuf.Release()
		b.partialBuf = nil
	}
	if b.paramsBuf != nil {
		b.paramsBuf.Release()
		b.paramsBuf = nil
	}
}

// writeParams rebuilds the uniform Params buffer for the current cycle.
// Uniform buffers require 16-byte alignment for struct fields.
func (b *Backend) writeParams(seed uint64) {
	params := make([]byte, paramsBytes)
	binary.LittleEndian.PutUint32(params[0:4], uint32(seed))
	binary.LittleEndian.PutUint32(params[4:8], uint32(seed>>32))
	binary.LittleEndian.PutUint32(params[8:12], uint32(b.cfg.SamplesPerWorker))
	binary.LittleEndian.PutUint32(params[12:16], uint32(b.cfg.Blocks()))

	if b.paramsBuf != nil {
		b.paramsBuf.Release()
	}
	b.paramsBuf = b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             paramsBytes,
		MappedAtCreation: wgpu.True,
	})
	mappedPtr := b.paramsBuf.GetMappedRange(0, paramsBytes)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mapped := unsafe.Slice((*byte)(mappedPtr), paramsBytes)
	copy(mapped, params)
	b.paramsBuf.Unmap()
}

// dispatch runs one pipeline stage over an x*y workgroup grid.
func (b *Backend) dispatch(entry string, x, y int) error {
	if b.paramsBuf == nil {
		return fmt.Errorf("webgpu: %s dispatched before seeding", entry)
	}
	pipeline := b.getOrCreatePipeline(entry)

	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := b.device.CreateBindGroupSimple(bindGroupLayout, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, b.stateBuf, 0, uint64(b.cfg.Workers()*stateSlotBytes)),
		wgpu.BufferBindingEntry(1, b.partialBuf, 0, uint64(b.cfg.Blocks()*partialSlotBytes)),
		wgpu.BufferBindingEntry(2, b.paramsBuf, 0, paramsBytes),
	})
	defer bindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(uint32(x), uint32(y), 1)
	pass.End()

	cmd := encoder.Finish(nil)
	b.queue.Submit(cmd)
	return nil
}

// getOrCreatePipeline returns a cached compute pipeline for one entry point,
// compiling the configuration-specific shader module on first use.
func (b *Backend) getOrCreatePipeline(entry string) *wgpu.ComputePipeline {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pipeline, ok := b.pipelines[entry]; ok {
		return pipeline
	}
	if b.shader == nil {
		b.shader = b.device.CreateShaderModuleWGSL(pipelineShader(b.cfg.WorkersPerBlock))
	}
	pipeline := b.device.CreateComputePipelineSimple(nil, b.shader, entry)
	b.pipelines[entry] = pipeline
	return pipeline
}
