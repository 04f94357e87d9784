//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/sdfatlas/compute"
	"github.com/gogpu/wgpu/hal"
)

// ErrSubmissionLost is returned when the queue does not report a submission
// complete after the device went idle.
var ErrSubmissionLost = errors.New("gpu: submission did not complete")

// buffer is a storage buffer holding one u32 word per pixel. The staging
// buffer used for readback is created on first download.
type buffer struct {
	owner   *Device
	buf     hal.Buffer
	staging hal.Buffer
	pixels  int
}

func (b *buffer) Len() int { return b.pixels }

// readback is a pending copy from a staging buffer into host memory.
type readback struct {
	staging hal.Buffer
	dst     []uint8
}

// batch is a group of commands recorded into one encoder and submitted
// together as one queue submission.
type batch struct {
	encoder  hal.CommandEncoder
	cmd      hal.CommandBuffer
	index    uint64
	uniforms []hal.Buffer
	groups   []hal.BindGroup
	reads    []readback

	submitted bool
	done      bool
	err       error
}

// event completes when its batch has been submitted, finished on the GPU,
// and read back.
type event struct {
	d *Device
	b *batch
}

func (e event) Wait() error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.d.finishLocked(e.b)
}

// Device runs the pipeline stages as compute shaders on one GPU queue.
//
// Kernel enqueues are recorded into an open batch. A download closes the
// batch and submits it, so the event returned by Session.Generate covers
// the whole glyph with one submission.
type Device struct {
	mu sync.Mutex

	name     string
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	kernels  *kernels

	open     *batch
	inflight []*batch
	scratch  []byte

	external bool
	closed   bool
}

var _ compute.Device = (*Device)(nil)

// NewFromHAL creates a device on an already opened HAL device and queue.
// The device and queue are not destroyed by Close.
func NewFromHAL(name string, device hal.Device, queue hal.Queue) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNoDevice
	}
	d, err := newDevice(name, nil, device, queue)
	if err != nil {
		return nil, err
	}
	d.external = true
	return d, nil
}

func newDevice(name string, instance hal.Instance, device hal.Device, queue hal.Queue) (*Device, error) {
	k, err := createKernels(device)
	if err != nil {
		return nil, fmt.Errorf("gpu: create pipelines: %w", err)
	}
	slogger().Debug("gpu: device ready", "name", name)
	return &Device{
		name:     name,
		instance: instance,
		device:   device,
		queue:    queue,
		kernels:  k,
	}, nil
}

// Name returns the adapter name.
func (d *Device) Name() string { return d.name }

// Async returns true: enqueued work runs on the GPU after the call returns.
func (d *Device) Async() bool { return true }

// Alloc creates a storage buffer of the given number of pixels.
func (d *Device) Alloc(pixels int) (compute.Buffer, error) {
	if pixels < 0 {
		return nil, &compute.ParamError{Field: "pixels", Reason: "must be non-negative"}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, compute.ErrDeviceClosed
	}
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "sdf_pixels",
		Size:  wordBytes(max(pixels, 1)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create buffer of %d pixels: %w", pixels, err)
	}
	return &buffer{owner: d, buf: buf, pixels: pixels}, nil
}

// Free destroys the buffer and its staging buffer. Recorded and submitted
// work is finished first, since it may still reference the buffer.
func (d *Device) Free(buf compute.Buffer) {
	b, ok := buf.(*buffer)
	if !ok || b.owner != d {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		b.buf, b.staging, b.pixels = nil, nil, 0
		return
	}
	if err := d.drainLocked(); err != nil {
		slogger().Warn("gpu: pending work failed before free", "device", d.name, "err", err)
	}
	if b.staging != nil {
		d.device.DestroyBuffer(b.staging)
		b.staging = nil
	}
	if b.buf != nil {
		d.device.DestroyBuffer(b.buf)
		b.buf = nil
	}
	b.pixels = 0
}

// Upload writes src into dst. Work recorded or submitted earlier is finished
// first, since queue writes are not ordered against an unsubmitted encoder.
func (d *Device) Upload(dst compute.Buffer, src []uint8, wait ...compute.Event) (compute.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := d.bufferLocked(dst, len(src))
	if err != nil {
		return nil, err
	}
	if err := d.awaitLocked(wait); err != nil {
		return compute.Failed(err), nil
	}
	if err := d.drainLocked(); err != nil {
		return compute.Failed(err), nil
	}
	if len(src) == 0 {
		return compute.Done(), nil
	}
	d.scratch = packPixels(d.scratch, src)
	if err := d.queue.WriteBuffer(b.buf, 0, d.scratch); err != nil {
		return nil, fmt.Errorf("gpu: write buffer: %w", err)
	}
	return compute.Done(), nil
}

// Download copies src into dst through the buffer's staging buffer and
// submits the open batch.
func (d *Device) Download(dst []uint8, src compute.Buffer, wait ...compute.Event) (compute.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, err := d.bufferLocked(src, len(dst))
	if err != nil {
		return nil, err
	}
	if err := d.awaitLocked(wait); err != nil {
		return compute.Failed(err), nil
	}
	if len(dst) == 0 {
		return compute.Done(), nil
	}
	if b.staging == nil {
		b.staging, err = d.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "sdf_staging",
			Size:  wordBytes(max(b.pixels, 1)),
			Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, fmt.Errorf("gpu: create staging buffer: %w", err)
		}
	}

	bt, err := d.batchLocked()
	if err != nil {
		return nil, err
	}
	bt.encoder.CopyBufferToBuffer(b.buf, b.staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: wordBytes(len(dst))},
	})
	bt.reads = append(bt.reads, readback{staging: b.staging, dst: dst})
	if err := d.submitLocked(bt); err != nil {
		return compute.Failed(err), nil
	}
	return event{d: d, b: bt}, nil
}

// Grayscale records the grayscale kernel.
func (d *Device) Grayscale(dst, src compute.Buffer, pixels, stride int, wait ...compute.Event) (compute.Event, error) {
	if stride < 1 {
		return nil, &compute.ParamError{Field: "stride", Reason: "must be at least 1"}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out, err := d.bufferLocked(dst, pixels)
	if err != nil {
		return nil, err
	}
	in, err := d.bufferLocked(src, pixels*stride)
	if err != nil {
		return nil, err
	}
	if err := d.awaitLocked(wait); err != nil {
		return compute.Failed(err), nil
	}
	gx, gy, row := linearGroups(pixels)
	params := packParams(grayscaleParamsSize, uint32(pixels), uint32(stride), row) //nolint:gosec // sizes fit uint32
	return d.dispatchLocked(d.kernels.grayscale, params, in, out, gx, gy)
}

// EdgeDetect records the edge classification kernel.
func (d *Device) EdgeDetect(dst, src compute.Buffer, width, height int, wait ...compute.Event) (compute.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := width * height
	out, err := d.bufferLocked(dst, n)
	if err != nil {
		return nil, err
	}
	in, err := d.bufferLocked(src, n)
	if err != nil {
		return nil, err
	}
	if err := d.awaitLocked(wait); err != nil {
		return compute.Failed(err), nil
	}
	gx, gy := tileGroups(width, height)
	params := packParams(edgeParamsSize, uint32(width), uint32(height)) //nolint:gosec // image dimensions fit uint32
	return d.dispatchLocked(d.kernels.edge, params, in, out, gx, gy)
}

// SDFGenerate records the distance field kernel.
func (d *Device) SDFGenerate(dst, src compute.Buffer, width, height int, p compute.SDFParams, wait ...compute.Event) (compute.Event, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	sw, sh := compute.SDFSize(width, height, p.Stride)
	d.mu.Lock()
	defer d.mu.Unlock()
	out, err := d.bufferLocked(dst, sw*sh)
	if err != nil {
		return nil, err
	}
	in, err := d.bufferLocked(src, width*height)
	if err != nil {
		return nil, err
	}
	if err := d.awaitLocked(wait); err != nil {
		return compute.Failed(err), nil
	}
	gx, gy := tileGroups(sw, sh)
	params := packParams(sdfParamsSize, //nolint:gosec // sizes fit uint32
		uint32(width), uint32(height), uint32(sw), uint32(sh),
		uint32(p.Stride), uint32(p.SearchRadius))
	return d.dispatchLocked(d.kernels.sdf, params, in, out, gx, gy)
}

// Close finishes outstanding work and releases pipelines. The HAL device is
// destroyed only when this Device opened it.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	err := d.drainLocked()
	d.closed = true
	d.kernels.destroy(d.device)
	if !d.external {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.queue = nil
	d.instance = nil
	slogger().Debug("gpu: device closed", "name", d.name)
	return err
}

// dispatchLocked records one compute pass of k into the open batch.
func (d *Device) dispatchLocked(k *kernel, params []byte, in, out *buffer, gx, gy uint32) (compute.Event, error) {
	bt, err := d.batchLocked()
	if err != nil {
		return nil, err
	}

	ub, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: k.label + "_params", Size: uint64(len(params)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s uniform buffer: %w", k.label, err)
	}
	bt.uniforms = append(bt.uniforms, ub)
	if err := d.queue.WriteBuffer(ub, 0, params); err != nil {
		return nil, fmt.Errorf("gpu: write %s uniforms: %w", k.label, err)
	}

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: k.label + "_bind", Layout: k.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: ub.NativeHandle(), Offset: 0, Size: uint64(len(params))}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: in.buf.NativeHandle(), Offset: 0, Size: wordBytes(max(in.pixels, 1))}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: out.buf.NativeHandle(), Offset: 0, Size: wordBytes(max(out.pixels, 1))}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s bind group: %w", k.label, err)
	}
	bt.groups = append(bt.groups, bg)

	pass := bt.encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: k.label})
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(gx, gy, 1)
	pass.End()
	return event{d: d, b: bt}, nil
}

// batchLocked returns the open batch, starting a new encoder if needed.
func (d *Device) batchLocked() (*batch, error) {
	if d.open != nil {
		return d.open, nil
	}
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "sdf_encoder"})
	if err != nil {
		return nil, fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("sdf_batch"); err != nil {
		encoder.Destroy()
		return nil, fmt.Errorf("gpu: begin encoding: %w", err)
	}
	d.open = &batch{encoder: encoder}
	return d.open, nil
}

// submitLocked ends encoding of bt and submits it.
func (d *Device) submitLocked(bt *batch) error {
	if bt == d.open {
		d.open = nil
	}
	bt.submitted = true

	cmd, err := bt.encoder.EndEncoding()
	if err != nil {
		bt.encoder.DiscardEncoding()
		return d.failLocked(bt, fmt.Errorf("gpu: end encoding: %w", err))
	}
	bt.cmd = cmd

	bt.index, err = d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		return d.failLocked(bt, fmt.Errorf("gpu: submit: %w", err))
	}
	d.inflight = append(d.inflight, bt)
	return nil
}

// finishLocked waits for bt on the host and completes its readbacks.
func (d *Device) finishLocked(bt *batch) error {
	if bt.done {
		return bt.err
	}
	if !bt.submitted {
		if err := d.submitLocked(bt); err != nil {
			return err
		}
	}

	if err := d.waitSubmissionLocked(bt.index); err != nil {
		return d.failLocked(bt, err)
	}
	for _, r := range bt.reads {
		if err := d.readLocked(r); err != nil {
			return d.failLocked(bt, err)
		}
	}
	d.releaseLocked(bt, nil)
	return nil
}

// waitSubmissionLocked blocks until the queue has completed index.
func (d *Device) waitSubmissionLocked(index uint64) error {
	if d.queue.PollCompleted() >= index {
		return nil
	}
	if err := d.device.WaitIdle(); err != nil {
		return fmt.Errorf("gpu: wait idle: %w", err)
	}
	if d.queue.PollCompleted() < index {
		return ErrSubmissionLost
	}
	return nil
}

// readLocked copies a finished staging buffer into host memory.
func (d *Device) readLocked(r readback) error {
	size := wordBytes(len(r.dst))
	m, err := d.device.MapBuffer(r.staging, 0, size)
	if err != nil {
		return fmt.Errorf("gpu: map staging buffer: %w", err)
	}
	unpackPixels(r.dst, unsafe.Slice((*byte)(m.Ptr), size)) //nolint:gosec // mapping covers size bytes
	if err := d.device.UnmapBuffer(r.staging); err != nil {
		return fmt.Errorf("gpu: unmap staging buffer: %w", err)
	}
	return nil
}

// drainLocked finishes the open batch and everything in flight.
func (d *Device) drainLocked() error {
	var errs []error
	if d.open != nil {
		if err := d.finishLocked(d.open); err != nil {
			errs = append(errs, err)
		}
	}
	for len(d.inflight) > 0 {
		if err := d.finishLocked(d.inflight[0]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// awaitLocked resolves a wait list. Events recorded into the open batch are
// ordered by the encoder and need no host wait.
func (d *Device) awaitLocked(wait []compute.Event) error {
	var errs []error
	for _, w := range wait {
		switch e := w.(type) {
		case nil:
		case event:
			if e.d != d {
				d.mu.Unlock()
				err := e.Wait()
				d.mu.Lock()
				if err != nil {
					errs = append(errs, err)
				}
				continue
			}
			if e.b == d.open {
				continue
			}
			if err := d.finishLocked(e.b); err != nil {
				errs = append(errs, err)
			}
		default:
			if err := w.Wait(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (d *Device) failLocked(bt *batch, err error) error {
	slogger().Warn("gpu: batch failed", "device", d.name, "err", err)
	d.releaseLocked(bt, err)
	return err
}

// releaseLocked destroys per-batch resources and marks bt done.
func (d *Device) releaseLocked(bt *batch, err error) {
	if d.open == bt {
		bt.encoder.DiscardEncoding()
		d.open = nil
	}
	for _, bg := range bt.groups {
		d.device.DestroyBindGroup(bg)
	}
	for _, ub := range bt.uniforms {
		d.device.DestroyBuffer(ub)
	}
	if bt.cmd != nil {
		d.device.FreeCommandBuffer(bt.cmd)
	}
	if bt.encoder != nil {
		bt.encoder.Destroy()
	}
	bt.groups, bt.uniforms, bt.reads = nil, nil, nil
	bt.cmd, bt.encoder = nil, nil
	bt.done = true
	bt.err = err
	d.inflight = slices.DeleteFunc(d.inflight, func(b *batch) bool { return b == bt })
}

// bufferLocked checks ownership and capacity of buf.
func (d *Device) bufferLocked(buf compute.Buffer, need int) (*buffer, error) {
	if d.closed {
		return nil, compute.ErrDeviceClosed
	}
	b, ok := buf.(*buffer)
	if !ok || b.owner != d {
		return nil, compute.ErrForeignBuffer
	}
	if need > b.pixels {
		return nil, fmt.Errorf("%w: need %d pixels, have %d", compute.ErrBufferTooSmall, need, b.pixels)
	}
	return b, nil
}

func wordBytes(pixels int) uint64 {
	return uint64(pixels) * 4 //nolint:gosec // pixel counts are non-negative
}
