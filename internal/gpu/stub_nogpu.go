//go:build nogpu

package gpu

import (
	"errors"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/sdfatlas/compute"
)

// ErrNoDevice is returned by every constructor when GPU support is disabled.
var ErrNoDevice = errors.New("gpu: built without GPU support")

// AdapterInfo describes one enumerated GPU.
type AdapterInfo struct {
	Index int
	Name  string
	Type  string
}

// Device is unavailable in nogpu builds.
type Device struct {
	compute.Device
}

// Available reports whether GPU support was compiled in.
func Available() bool { return false }

// Adapters returns no adapters.
func Adapters() ([]AdapterInfo, error) { return nil, nil }

// Open always fails.
func Open(int) (*Device, error) { return nil, ErrNoDevice }

// FromProvider always fails.
func FromProvider(string, gpucontext.DeviceProvider) (*Device, error) { return nil, ErrNoDevice }
