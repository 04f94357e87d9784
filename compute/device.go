package compute

import (
	"fmt"
	"sync/atomic"
)

// Buffer is device memory holding one pixel per element.
type Buffer interface {
	// Len returns the capacity in pixels.
	Len() int
}

// Device is one compute queue. All three pipeline stages operate on
// single-channel pixel buffers owned by the device.
//
// Every enqueue accepts a wait list and returns an Event for its own
// completion. Implementations must run the operation only after every event
// in the wait list has completed; an error from the wait list is propagated
// to the returned event.
//
// A Device is driven by one worker at a time.
type Device interface {
	// Name identifies the device in logs.
	Name() string

	// Async reports whether enqueued work may still be running after the
	// enqueue call returns.
	Async() bool

	// Alloc creates a buffer of the given number of pixels.
	Alloc(pixels int) (Buffer, error)

	// Free releases a buffer. Pending operations using it must have completed.
	Free(buf Buffer)

	// Upload copies src into dst. src may be reused once Upload returns.
	Upload(dst Buffer, src []uint8, wait ...Event) (Event, error)

	// Download copies the first len(dst) pixels of src into dst. dst must not
	// be touched until the returned event completes.
	Download(dst []uint8, src Buffer, wait ...Event) (Event, error)

	// Grayscale samples every stride-th element of src into the first
	// pixels elements of dst.
	Grayscale(dst, src Buffer, pixels, stride int, wait ...Event) (Event, error)

	// EdgeDetect classifies the width × height image in src into dst.
	EdgeDetect(dst, src Buffer, width, height int, wait ...Event) (Event, error)

	// SDFGenerate writes the distance field of the width × height edge image
	// in src into dst.
	SDFGenerate(dst, src Buffer, width, height int, p SDFParams, wait ...Event) (Event, error)

	// Close releases the device.
	Close() error
}

// hostBuffer is CPU memory.
type hostBuffer struct {
	owner *CPUDevice
	pix   []uint8
}

func (b *hostBuffer) Len() int { return len(b.pix) }

// CPUDevice runs the pipeline stages synchronously on the calling goroutine.
// Every returned event has already completed.
type CPUDevice struct {
	name   string
	closed atomic.Bool
}

var _ Device = (*CPUDevice)(nil)

// NewCPUDevice creates a CPU device. The name is used in logs only.
func NewCPUDevice(name string) *CPUDevice {
	if name == "" {
		name = "cpu"
	}
	return &CPUDevice{name: name}
}

// Name returns the device name.
func (d *CPUDevice) Name() string { return d.name }

// Async returns false: work is complete when an enqueue returns.
func (d *CPUDevice) Async() bool { return false }

// Alloc allocates host memory.
func (d *CPUDevice) Alloc(pixels int) (Buffer, error) {
	if d.closed.Load() {
		return nil, ErrDeviceClosed
	}
	if pixels < 0 {
		return nil, &ParamError{Field: "pixels", Reason: "must be non-negative"}
	}
	return &hostBuffer{owner: d, pix: make([]uint8, pixels)}, nil
}

// Free drops the buffer.
func (d *CPUDevice) Free(buf Buffer) {
	if hb, ok := buf.(*hostBuffer); ok && hb.owner == d {
		hb.pix = nil
	}
}

// Upload copies src into dst.
func (d *CPUDevice) Upload(dst Buffer, src []uint8, wait ...Event) (Event, error) {
	b, err := d.host(dst, len(src))
	if err != nil {
		return nil, err
	}
	if err := WaitAll(wait...); err != nil {
		return Failed(err), nil
	}
	copy(b.pix, src)
	return Done(), nil
}

// Download copies src into dst.
func (d *CPUDevice) Download(dst []uint8, src Buffer, wait ...Event) (Event, error) {
	b, err := d.host(src, len(dst))
	if err != nil {
		return nil, err
	}
	if err := WaitAll(wait...); err != nil {
		return Failed(err), nil
	}
	copy(dst, b.pix)
	return Done(), nil
}

// Grayscale runs the grayscale stage.
func (d *CPUDevice) Grayscale(dst, src Buffer, pixels, stride int, wait ...Event) (Event, error) {
	if stride < 1 {
		return nil, &ParamError{Field: "stride", Reason: "must be at least 1"}
	}
	out, err := d.host(dst, pixels)
	if err != nil {
		return nil, err
	}
	in, err := d.host(src, pixels*stride)
	if err != nil {
		return nil, err
	}
	if err := WaitAll(wait...); err != nil {
		return Failed(err), nil
	}
	Grayscale(out.pix[:pixels], in.pix, stride)
	return Done(), nil
}

// EdgeDetect runs the edge classification stage.
func (d *CPUDevice) EdgeDetect(dst, src Buffer, width, height int, wait ...Event) (Event, error) {
	n := width * height
	out, err := d.host(dst, n)
	if err != nil {
		return nil, err
	}
	in, err := d.host(src, n)
	if err != nil {
		return nil, err
	}
	if err := WaitAll(wait...); err != nil {
		return Failed(err), nil
	}
	EdgeDetect(out.pix, in.pix, width, height)
	return Done(), nil
}

// SDFGenerate runs the distance field stage.
func (d *CPUDevice) SDFGenerate(dst, src Buffer, width, height int, p SDFParams, wait ...Event) (Event, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	sw, sh := SDFSize(width, height, p.Stride)
	out, err := d.host(dst, sw*sh)
	if err != nil {
		return nil, err
	}
	in, err := d.host(src, width*height)
	if err != nil {
		return nil, err
	}
	if err := WaitAll(wait...); err != nil {
		return Failed(err), nil
	}
	SDFGenerate(out.pix, in.pix, width, height, p)
	return Done(), nil
}

// Close marks the device closed.
func (d *CPUDevice) Close() error {
	d.closed.Store(true)
	return nil
}

// host checks ownership and capacity of buf.
func (d *CPUDevice) host(buf Buffer, need int) (*hostBuffer, error) {
	if d.closed.Load() {
		return nil, ErrDeviceClosed
	}
	b, ok := buf.(*hostBuffer)
	if !ok || b.owner != d {
		return nil, ErrForeignBuffer
	}
	if need > len(b.pix) {
		return nil, fmt.Errorf("%w: need %d pixels, have %d", ErrBufferTooSmall, need, len(b.pix))
	}
	return b, nil
}
