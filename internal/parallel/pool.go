package parallel

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/sdfatlas/compute"
)

// ErrNoWorkers is returned when a pool is created without backends.
var ErrNoWorkers = errors.New("parallel: no workers")

// Backend is one worker's device and its private rasterizer.
type Backend struct {
	// Name identifies the worker in logs; defaults to the device name.
	Name     string
	Device   compute.Device
	Renderer Renderer
}

// Stats summarizes a run.
type Stats struct {
	Glyphs    int
	Skipped   int
	PerWorker []WorkerStats
}

// Pool runs one goroutine per backend plus a dispatcher that publishes
// characters through a single-slot mailbox.
//
// Shutdown is cooperative. The dispatcher clears the running flag only after
// its last character has been taken, and each worker exits once the flag is
// clear and it holds no unfinished character, so no published character is
// lost. The first worker error cancels the run.
type Pool struct {
	workers []*Worker
	mailbox *Mailbox
	running atomic.Bool
}

// NewPool creates a pool with one worker per backend. Results go to sink.
func NewPool(sink Sink, params compute.SDFParams, backends ...Backend) (*Pool, error) {
	if len(backends) == 0 {
		return nil, ErrNoWorkers
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	p := &Pool{mailbox: NewMailbox()}
	for _, b := range backends {
		if b.Device == nil || b.Renderer == nil {
			return nil, errors.New("parallel: backend needs a device and a renderer")
		}
		p.workers = append(p.workers, newWorker(b, params, p.mailbox, &p.running, sink))
	}
	return p, nil
}

// Workers returns the workers in backend order.
func (p *Pool) Workers() []*Worker { return p.workers }

// Run processes chars and returns when every worker has exited. A Pool runs
// once.
func (p *Pool) Run(ctx context.Context, chars []rune) (Stats, error) {
	p.running.Store(true)
	g, gctx := errgroup.WithContext(ctx)

	for _, w := range p.workers {
		g.Go(func() error { return w.run(gctx) })
	}
	g.Go(func() error {
		defer p.running.Store(false)
		for _, ch := range chars {
			if err := p.mailbox.Publish(gctx, ch); err != nil {
				return err
			}
		}
		return p.mailbox.Drain(gctx)
	})

	slogger().Info("parallel: run started", "workers", len(p.workers), "chars", len(chars))
	err := g.Wait()

	var st Stats
	for _, w := range p.workers {
		ws := w.Stats()
		st.Glyphs += ws.Glyphs
		st.Skipped += ws.Skipped
		st.PerWorker = append(st.PerWorker, ws)
	}
	if err != nil {
		return st, err
	}
	slogger().Info("parallel: run finished", "glyphs", st.Glyphs, "skipped", st.Skipped)
	return st, nil
}
