//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Sentinel errors for adapter selection.
var (
	// ErrNoBackend is returned when no HAL backend is registered.
	ErrNoBackend = errors.New("gpu: vulkan backend not available")

	// ErrNoDevice is returned when no usable device is available.
	ErrNoDevice = errors.New("gpu: no GPU device")

	// ErrNoHAL is returned when a device provider does not expose HAL types.
	ErrNoHAL = errors.New("gpu: provider does not expose HAL types")
)

// AdapterInfo describes one enumerated GPU.
type AdapterInfo struct {
	Index int
	Name  string
	Type  string
}

// Available reports whether GPU support was compiled in.
func Available() bool { return true }

// Adapters lists the GPUs exposed by the Vulkan backend.
func Adapters() ([]AdapterInfo, error) {
	instance, err := createInstance()
	if err != nil {
		return nil, err
	}
	defer instance.Destroy()

	adapters := instance.EnumerateAdapters(nil)
	infos := make([]AdapterInfo, 0, len(adapters))
	for i := range adapters {
		infos = append(infos, AdapterInfo{
			Index: i,
			Name:  adapters[i].Info.Name,
			Type:  deviceTypeName(adapters[i].Info.DeviceType),
		})
	}
	return infos, nil
}

// Open opens the adapter at index, as listed by Adapters, and builds the
// compute pipelines on it.
func Open(index int) (*Device, error) {
	instance, err := createInstance()
	if err != nil {
		return nil, err
	}
	adapters := instance.EnumerateAdapters(nil)
	if index < 0 || index >= len(adapters) {
		instance.Destroy()
		return nil, fmt.Errorf("%w: adapter %d of %d", ErrNoDevice, index, len(adapters))
	}
	selected := &adapters[index]

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open adapter %d: %w", index, err)
	}
	d, err := newDevice(selected.Info.Name, instance, openDev.Device, openDev.Queue)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	slogger().Info("gpu: adapter opened", "index", index, "name", selected.Info.Name,
		"type", deviceTypeName(selected.Info.DeviceType))
	return d, nil
}

// FromProvider builds a device on the GPU shared by a host application.
// The provider must also implement HalDevice() any and HalQueue() any
// returning hal.Device and hal.Queue.
func FromProvider(name string, provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}
	return NewFromHAL(name, device, queue)
}

func createInstance() (hal.Instance, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, ErrNoBackend
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}
	return instance, nil
}

func deviceTypeName(t gputypes.DeviceType) string {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return "discrete"
	case gputypes.DeviceTypeIntegratedGPU:
		return "integrated"
	default:
		return "other"
	}
}
