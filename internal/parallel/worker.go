package parallel

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/gogpu/sdfatlas/compute"
	"github.com/gogpu/sdfatlas/mono"
)

// Renderer rasterizes one character into dst. It reports false when the
// character has no visible pixels. A Renderer is used by one worker only.
type Renderer interface {
	Render(ch rune, dst *mono.Image) bool
}

// Sink receives finished distance fields. It must copy the pixels before
// returning and be safe for concurrent use.
type Sink interface {
	Push(ch rune, field *mono.Image) error
}

// State is the phase of a worker's loop.
type State int32

const (
	// StateIdle means the worker holds no task.
	StateIdle State = iota
	// StateRunningBasicRender means a character is being rasterized.
	StateRunningBasicRender
	// StateRunningEdgeSDF means edge and distance field work is in flight.
	StateRunningEdgeSDF
	// StateDraining means shutdown was requested and in-flight work is
	// being finished.
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunningBasicRender:
		return "basic-render"
	case StateRunningEdgeSDF:
		return "edge-sdf"
	case StateDraining:
		return "draining"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// WorkerStats counts what one worker did.
type WorkerStats struct {
	Name    string
	Glyphs  int
	Skipped int
	Grows   int
}

// Worker drives characters through rasterize, edge detect and distance
// field generation on one device.
//
// Rasterization of a character overlaps the device work of the previous
// one: the rasterized bitmap of iteration n is dispatched at the start of
// iteration n+1, and collected after that iteration's rasterization.
type Worker struct {
	name    string
	session *compute.Session
	render  Renderer
	sink    Sink
	params  compute.SDFParams
	mailbox *Mailbox
	running *atomic.Bool

	// front receives the character taken this iteration; back holds the
	// one rasterized last iteration.
	front, back *mono.Image
	frontChar   rune
	backChar    rune
	frontReady  bool
	backReady   bool

	field        *mono.Image
	inflight     compute.Event
	inflightChar rune

	state atomic.Int32
	stats WorkerStats
}

func newWorker(b Backend, params compute.SDFParams, mailbox *Mailbox, running *atomic.Bool, sink Sink) *Worker {
	name := b.Name
	if name == "" {
		name = b.Device.Name()
	}
	return &Worker{
		name:    name,
		session: compute.NewSession(b.Device),
		render:  b.Renderer,
		sink:    sink,
		params:  params,
		mailbox: mailbox,
		running: running,
		front:   &mono.Image{},
		back:    &mono.Image{},
		field:   &mono.Image{},
		stats:   WorkerStats{Name: name},
	}
}

// Name returns the worker name used in logs.
func (w *Worker) Name() string { return w.name }

// State returns the current loop phase.
func (w *Worker) State() State { return State(w.state.Load()) }

// Stats returns the worker's counters. Call after the worker has exited.
func (w *Worker) Stats() WorkerStats {
	s := w.stats
	s.Grows = w.session.Grows()
	return s
}

// done reports whether the worker may exit: shutdown was requested and it
// holds no rasterized or in-flight character.
func (w *Worker) done() bool {
	return !w.running.Load() && !w.backReady && w.inflight == nil
}

// run loops until done or ctx is cancelled. Device buffers are released on
// return, after any dispatched work has finished with them.
func (w *Worker) run(ctx context.Context) error {
	defer w.release()
	defer w.setState(StateIdle)

	for !w.done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		busy, err := w.step()
		if err != nil {
			return fmt.Errorf("worker %s: %w", w.name, err)
		}
		if !busy {
			runtime.Gosched()
		}
	}
	slogger().Debug("parallel: worker finished", "worker", w.name,
		"glyphs", w.stats.Glyphs, "skipped", w.stats.Skipped)
	return nil
}

// step runs one iteration and reports whether it did any work.
func (w *Worker) step() (bool, error) {
	busy := false

	if w.backReady {
		w.setState(StateRunningEdgeSDF)
		ev, err := w.session.Generate(w.back, w.field, w.params)
		if err != nil {
			return false, fmt.Errorf("dispatch %U: %w", w.backChar, err)
		}
		w.inflight = ev
		w.inflightChar = w.backChar
		w.backReady = false
		busy = true
	}

	if ch, ok := w.mailbox.TryTake(); ok {
		w.setState(StateRunningBasicRender)
		busy = true
		if w.render.Render(ch, w.front) {
			w.frontChar = ch
			w.frontReady = true
		} else {
			w.stats.Skipped++
			slogger().Warn("parallel: glyph has no visible pixels, skipped", "worker", w.name, "char", string(ch), "code", fmt.Sprintf("%U", ch))
		}
	}

	if w.inflight != nil {
		err := w.inflight.Wait()
		w.inflight = nil
		if err != nil {
			return false, fmt.Errorf("generate %U: %w", w.inflightChar, err)
		}
		if err := w.sink.Push(w.inflightChar, w.field); err != nil {
			return false, err
		}
		w.stats.Glyphs++
		slogger().Debug("parallel: glyph done", "worker", w.name, "char", string(w.inflightChar),
			"width", w.field.Width, "height", w.field.Height)
	}

	if w.frontReady {
		w.front, w.back = w.back, w.front
		w.backChar = w.frontChar
		w.backReady = true
		w.frontReady = false
	}

	switch {
	case !w.running.Load():
		w.setState(StateDraining)
	case !busy:
		w.setState(StateIdle)
	}
	return busy, nil
}

func (w *Worker) release() {
	if w.inflight != nil {
		_ = w.inflight.Wait()
		w.inflight = nil
	}
	w.session.Release()
}

func (w *Worker) setState(s State) { w.state.Store(int32(s)) }
