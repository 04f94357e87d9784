package sdfatlas

import (
	"errors"
	"fmt"

	"github.com/gogpu/sdfatlas/compute"
	"github.com/gogpu/sdfatlas/internal/gpu"
)

// DeviceInfo describes a GPU adapter that can run a worker.
type DeviceInfo struct {
	Index int
	Name  string
	Type  string
}

// GPUAvailable reports whether GPU support was compiled in.
func GPUAvailable() bool { return gpu.Available() }

// Devices lists GPU adapters. Indices are valid for Config.GPUAdapters.
func Devices() ([]DeviceInfo, error) {
	adapters, err := gpu.Adapters()
	if err != nil {
		return nil, err
	}
	out := make([]DeviceInfo, len(adapters))
	for i, a := range adapters {
		out[i] = DeviceInfo{Index: a.Index, Name: a.Name, Type: a.Type}
	}
	return out, nil
}

// openDevices creates the configured GPU and CPU devices, GPUs first. On
// error every device opened so far is closed.
func openDevices(cfg *Config) ([]compute.Device, error) {
	var devs []compute.Device
	for _, idx := range cfg.GPUAdapters {
		d, err := gpu.Open(idx)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("sdfatlas: open GPU adapter %d: %w", idx, err), closeDevices(devs))
		}
		devs = append(devs, d)
	}
	for i := range cfg.CPUWorkers {
		devs = append(devs, compute.NewCPUDevice(fmt.Sprintf("cpu-%d", i)))
	}
	if len(devs) == 0 {
		return nil, ErrNoDevices
	}
	return devs, nil
}

func closeDevices(devs []compute.Device) error {
	var errs []error
	for _, d := range devs {
		if err := d.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", d.Name(), err))
		}
	}
	return errors.Join(errs...)
}
