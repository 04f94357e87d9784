package parallel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/sdfatlas/atlas"
	"github.com/gogpu/sdfatlas/compute"
	"github.com/gogpu/sdfatlas/mono"
)

// blockRenderer draws a size × size bitmap with a centered square of ink.
// Characters in skip have no ink.
type blockRenderer struct {
	size int
	skip map[rune]bool
}

func (r *blockRenderer) Render(ch rune, dst *mono.Image) bool {
	if r.skip[ch] {
		return false
	}
	dst.Resize(r.size, r.size)
	for y := r.size / 4; y < r.size-r.size/4; y++ {
		for x := r.size / 4; x < r.size-r.size/4; x++ {
			dst.SetGray(x, y, 255)
		}
	}
	return true
}

// deferredDevice completes downloads only when their event is waited on,
// like a device whose work runs after the enqueue returns.
type deferredDevice struct {
	*compute.CPUDevice
}

type deferredEvent struct {
	once sync.Once
	fn   func() error
	err  error
}

func (e *deferredEvent) Wait() error {
	e.once.Do(func() { e.err = e.fn() })
	return e.err
}

func (d deferredDevice) Async() bool { return true }

func (d deferredDevice) Download(dst []uint8, src compute.Buffer, wait ...compute.Event) (compute.Event, error) {
	return &deferredEvent{fn: func() error {
		ev, err := d.CPUDevice.Download(dst, src, wait...)
		if err != nil {
			return err
		}
		return ev.Wait()
	}}, nil
}

// recordingSink collects pushed characters.
type recordingSink struct {
	mu    sync.Mutex
	chars []rune
	err   error
}

func (s *recordingSink) Push(ch rune, field *mono.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.chars = append(s.chars, ch)
	return nil
}

func cpuBackends(n int, r func() Renderer) []Backend {
	out := make([]Backend, n)
	for i := range out {
		out[i] = Backend{Device: compute.NewCPUDevice(fmt.Sprintf("cpu-%d", i)), Renderer: r()}
	}
	return out
}

func runes(n int) []rune {
	out := make([]rune, n)
	for i := range out {
		out[i] = rune(0x4e00 + i)
	}
	return out
}

var testParams = compute.SDFParams{Stride: 2, SearchRadius: 4}

// =============================================================================
// Pool Creation Tests
// =============================================================================

func TestPool_NoWorkers(t *testing.T) {
	if _, err := NewPool(&recordingSink{}, testParams); !errors.Is(err, ErrNoWorkers) {
		t.Errorf("NewPool() = %v, want ErrNoWorkers", err)
	}
}

func TestPool_BadParams(t *testing.T) {
	b := cpuBackends(1, func() Renderer { return &blockRenderer{size: 8} })
	if _, err := NewPool(&recordingSink{}, compute.SDFParams{Stride: 0, SearchRadius: 1}, b...); err == nil {
		t.Error("NewPool accepted stride 0")
	}
}

// =============================================================================
// Run Tests
// =============================================================================

func TestPool_EmptyCharsetTerminates(t *testing.T) {
	p, err := NewPool(&recordingSink{}, testParams, cpuBackends(4, func() Renderer { return &blockRenderer{size: 8} })...)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background(), nil)
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not terminate on an empty charset")
	}
	for _, w := range p.Workers() {
		if w.State() != StateIdle {
			t.Errorf("worker %s state = %v after Run", w.Name(), w.State())
		}
	}
}

func TestPool_NoDrops(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		async   bool
	}{
		{"single cpu", 1, false},
		{"many cpu", 4, false},
		{"async", 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backends := cpuBackends(tt.workers, func() Renderer { return &blockRenderer{size: 12} })
			if tt.async {
				for i := range backends {
					backends[i].Device = deferredDevice{compute.NewCPUDevice(fmt.Sprintf("async-%d", i))}
				}
			}
			sink := &recordingSink{}
			p, err := NewPool(sink, testParams, backends...)
			if err != nil {
				t.Fatal(err)
			}

			chars := runes(300)
			st, err := p.Run(context.Background(), chars)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if st.Glyphs != len(chars) || st.Skipped != 0 {
				t.Errorf("stats = %+v, want %d glyphs", st, len(chars))
			}

			got := slices.Clone(sink.chars)
			slices.Sort(got)
			if !slices.Equal(got, chars) {
				t.Errorf("pushed %d chars, want each of %d exactly once", len(got), len(chars))
			}

			total := 0
			for _, ws := range st.PerWorker {
				total += ws.Glyphs
			}
			if total != len(chars) {
				t.Errorf("per-worker total = %d, want %d", total, len(chars))
			}
		})
	}
}

func TestPool_SkipsGlyphsWithoutInk(t *testing.T) {
	skip := map[rune]bool{'b': true, 'd': true}
	sink := &recordingSink{}
	p, err := NewPool(sink, testParams, cpuBackends(2, func() Renderer { return &blockRenderer{size: 8, skip: skip} })...)
	if err != nil {
		t.Fatal(err)
	}
	st, err := p.Run(context.Background(), []rune("abcde"))
	if err != nil {
		t.Fatal(err)
	}
	if st.Glyphs != 3 || st.Skipped != 2 {
		t.Errorf("stats = %+v, want 3 glyphs 2 skipped", st)
	}
	got := slices.Clone(sink.chars)
	slices.Sort(got)
	if string(got) != "ace" {
		t.Errorf("pushed %q, want ace", string(got))
	}
}

func TestPool_AtlasPlacement(t *testing.T) {
	for _, workers := range []int{1, 2} {
		t.Run(fmt.Sprintf("%d workers", workers), func(t *testing.T) {
			asm, err := atlas.New(atlas.Config{PageWidth: 64, PageHeight: 64}, atlas.NewMemoryWriter())
			if err != nil {
				t.Fatal(err)
			}
			params := compute.SDFParams{Stride: 1, SearchRadius: 4}
			p, err := NewPool(asm, params, cpuBackends(workers, func() Renderer { return &blockRenderer{size: 10} })...)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := p.Run(context.Background(), []rune("AB")); err != nil {
				t.Fatal(err)
			}

			records := asm.Records()
			if workers == 1 {
				want := []atlas.Record{
					{Char: 'A', Page: 0, X: 0, Y: 0, Width: 10, Height: 10},
					{Char: 'B', Page: 0, X: 10, Y: 0, Width: 10, Height: 10},
				}
				if !slices.Equal(records, want) {
					t.Errorf("records = %v, want %v", records, want)
				}
				return
			}

			if len(records) != 2 {
				t.Fatalf("records = %v, want 2", records)
			}
			chars := []rune{records[0].Char, records[1].Char}
			xs := []int{records[0].X, records[1].X}
			slices.Sort(chars)
			slices.Sort(xs)
			if string(chars) != "AB" || !slices.Equal(xs, []int{0, 10}) {
				t.Errorf("records = %v", records)
			}
			for _, r := range records {
				if r.Page != 0 || r.Y != 0 || r.Width != 10 || r.Height != 10 {
					t.Errorf("record = %+v", r)
				}
			}
		})
	}
}

func TestPool_SinkErrorCancelsRun(t *testing.T) {
	boom := errors.New("boom")
	sink := &recordingSink{err: boom}
	p, err := NewPool(sink, testParams, cpuBackends(3, func() Renderer { return &blockRenderer{size: 8} })...)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background(), runes(1000))
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, boom) {
			t.Errorf("Run = %v, want boom", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after a worker error")
	}
}

// trackingDevice counts downloads that were enqueued but not yet waited on,
// and records every Free that happens while one is pending.
type trackingDevice struct {
	deferredDevice

	mu       sync.Mutex
	pending  int
	frees    int
	badFrees int
}

type trackedEvent struct {
	ev   compute.Event
	d    *trackingDevice
	once sync.Once
}

func (e *trackedEvent) Wait() error {
	err := e.ev.Wait()
	e.once.Do(func() {
		e.d.mu.Lock()
		e.d.pending--
		e.d.mu.Unlock()
	})
	return err
}

func (d *trackingDevice) Download(dst []uint8, src compute.Buffer, wait ...compute.Event) (compute.Event, error) {
	ev, err := d.deferredDevice.Download(dst, src, wait...)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.pending++
	d.mu.Unlock()
	return &trackedEvent{ev: ev, d: d}, nil
}

func (d *trackingDevice) Free(buf compute.Buffer) {
	d.mu.Lock()
	d.frees++
	if d.pending > 0 {
		d.badFrees++
	}
	d.mu.Unlock()
	d.CPUDevice.Free(buf)
}

// cancelSink cancels the run once it has received after glyphs.
type cancelSink struct {
	mu     sync.Mutex
	n      int
	after  int
	cancel context.CancelFunc
}

func (s *cancelSink) Push(rune, *mono.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	if s.n == s.after {
		s.cancel()
	}
	return nil
}

func TestPool_CancelWaitsBeforeFree(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	devs := []*trackingDevice{
		{deferredDevice: deferredDevice{compute.NewCPUDevice("a")}},
		{deferredDevice: deferredDevice{compute.NewCPUDevice("b")}},
	}
	backends := make([]Backend, len(devs))
	for i, d := range devs {
		backends[i] = Backend{Device: d, Renderer: &blockRenderer{size: 8}}
	}
	p, err := NewPool(&cancelSink{after: 5, cancel: cancel}, testParams, backends...)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.Run(ctx, runes(500)); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	for _, d := range devs {
		if d.badFrees != 0 {
			t.Errorf("%s: %d of %d buffers freed while a download was pending", d.Name(), d.badFrees, d.frees)
		}
		if d.pending != 0 {
			t.Errorf("%s: %d downloads never waited on", d.Name(), d.pending)
		}
	}
}

func TestPool_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, err := NewPool(&recordingSink{}, testParams, cpuBackends(2, func() Renderer { return &blockRenderer{size: 8} })...)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Run(ctx, runes(50)); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateIdle, "idle"},
		{StateRunningBasicRender, "basic-render"},
		{StateRunningEdgeSDF, "edge-sdf"},
		{StateDraining, "draining"},
		{State(9), "State(9)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", int32(tt.s), got, tt.want)
		}
	}
}
