//go:build !nogpu

package gpu

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/grayscale.wgsl
var grayscaleShaderSource string

//go:embed shaders/edge_detect.wgsl
var edgeShaderSource string

//go:embed shaders/sdf_generate.wgsl
var sdfShaderSource string

// Uniform block sizes, padded to 16 bytes.
const (
	grayscaleParamsSize = 16
	edgeParamsSize      = 16
	sdfParamsSize       = 32
)

// Workgroup sizes declared by the kernels.
const (
	linearGroupSize = 256
	tileGroupSize   = 8
	maxGroupsPerDim = 65535
)

// kernel is one compute pipeline with a uniform, read-only and read-write
// storage binding.
type kernel struct {
	label      string
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

// kernels holds the three pipeline stages.
type kernels struct {
	grayscale *kernel
	edge      *kernel
	sdf       *kernel
}

// compileSPIRV compiles WGSL source to little-endian SPIR-V words.
func compileSPIRV(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, err
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return words, nil
}

// spirvModules holds one compile result per kernel label, shared by every
// device in the process.
var spirvModules sync.Map // label -> func() ([]uint32, error)

func cachedSPIRV(label, source string) ([]uint32, error) {
	fn, _ := spirvModules.LoadOrStore(label, sync.OnceValues(func() ([]uint32, error) {
		return compileSPIRV(source)
	}))
	return fn.(func() ([]uint32, error))()
}

func createKernels(device hal.Device) (*kernels, error) {
	k := &kernels{}
	var err error
	if k.grayscale, err = createKernel(device, "sdf_grayscale", grayscaleShaderSource); err != nil {
		return nil, err
	}
	if k.edge, err = createKernel(device, "sdf_edge_detect", edgeShaderSource); err != nil {
		k.destroy(device)
		return nil, err
	}
	if k.sdf, err = createKernel(device, "sdf_generate", sdfShaderSource); err != nil {
		k.destroy(device)
		return nil, err
	}
	return k, nil
}

func createKernel(device hal.Device, label, source string) (*kernel, error) {
	spirv, err := cachedSPIRV(label, source)
	if err != nil {
		return nil, fmt.Errorf("compile %s shader: %w", label, err)
	}

	k := &kernel{label: label}
	k.shader, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s shader module: %w", label, err)
	}

	k.bindLayout, err = device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: label + "_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		k.destroy(device)
		return nil, fmt.Errorf("create %s bind group layout: %w", label, err)
	}

	k.pipeLayout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: label + "_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{k.bindLayout},
	})
	if err != nil {
		k.destroy(device)
		return nil, fmt.Errorf("create %s pipeline layout: %w", label, err)
	}

	k.pipeline, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: label + "_pipeline", Layout: k.pipeLayout,
		Compute: hal.ComputeState{Module: k.shader, EntryPoint: "main"},
	})
	if err != nil {
		k.destroy(device)
		return nil, fmt.Errorf("create %s compute pipeline: %w", label, err)
	}
	return k, nil
}

func (k *kernels) destroy(device hal.Device) {
	for _, kk := range []*kernel{k.grayscale, k.edge, k.sdf} {
		if kk != nil {
			kk.destroy(device)
		}
	}
}

func (k *kernel) destroy(device hal.Device) {
	if k.pipeline != nil {
		device.DestroyComputePipeline(k.pipeline)
	}
	if k.pipeLayout != nil {
		device.DestroyPipelineLayout(k.pipeLayout)
	}
	if k.bindLayout != nil {
		device.DestroyBindGroupLayout(k.bindLayout)
	}
	if k.shader != nil {
		device.DestroyShaderModule(k.shader)
	}
}

// packParams encodes uniform fields as little-endian u32 words, zero padded
// to size bytes.
func packParams(size int, fields ...uint32) []byte {
	out := make([]byte, size)
	for i, f := range fields {
		binary.LittleEndian.PutUint32(out[i*4:], f)
	}
	return out
}

// linearGroups splits n invocations of a 1-D kernel into a grid that stays
// within the per-dimension dispatch limit. row is the invocation count of
// one grid row.
func linearGroups(n int) (x, y, row uint32) {
	groups := (n + linearGroupSize - 1) / linearGroupSize
	if groups == 0 {
		groups = 1
	}
	gx := min(groups, maxGroupsPerDim)
	gy := (groups + gx - 1) / gx
	return uint32(gx), uint32(gy), uint32(gx * linearGroupSize) //nolint:gosec // bounded by dispatch limits
}

// tileGroups returns the 8×8 workgroup grid covering a width × height image.
func tileGroups(width, height int) (x, y uint32) {
	return uint32((width + tileGroupSize - 1) / tileGroupSize), //nolint:gosec // image dimensions fit uint32
		uint32((height + tileGroupSize - 1) / tileGroupSize) //nolint:gosec // image dimensions fit uint32
}

// packPixels widens each byte to one u32 word.
func packPixels(out []byte, pix []uint8) []byte {
	out = out[:0]
	for _, p := range pix {
		out = binary.LittleEndian.AppendUint32(out, uint32(p))
	}
	return out
}

// unpackPixels narrows u32 words back to bytes.
func unpackPixels(dst []uint8, packed []byte) {
	for i := range dst {
		dst[i] = uint8(binary.LittleEndian.Uint32(packed[i*4:]) & 0xFF) //nolint:gosec // masked to 8 bits
	}
}
