package sdfatlas

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/sdfatlas/atlas"
	"github.com/gogpu/sdfatlas/charset"
	"github.com/gogpu/sdfatlas/compute"
	"github.com/gogpu/sdfatlas/glyph"
	"github.com/gogpu/sdfatlas/internal/gpu"
	"github.com/gogpu/sdfatlas/internal/parallel"
	"github.com/gogpu/sdfatlas/mono"
)

// GlyphRenderer rasterizes one character into a single-channel bitmap,
// reporting false when the character has no visible pixels. Each worker
// gets its own GlyphRenderer.
type GlyphRenderer interface {
	Render(ch rune, dst *mono.Image) bool
}

// RendererFactory creates a GlyphRenderer for one worker. If the renderer
// implements io.Closer it is closed when the run ends.
type RendererFactory func() (GlyphRenderer, error)

// Option configures a Generator.
type Option func(*Generator)

// WithFont rasterizes glyphs from f and drops characters f does not cover.
func WithFont(f *glyph.Font) Option {
	return func(g *Generator) {
		g.font = f
	}
}

// WithRendererFactory overrides glyph rasterization.
func WithRendererFactory(fn RendererFactory) Option {
	return func(g *Generator) {
		g.newRenderer = fn
	}
}

// WithPageWriter stores pages somewhere other than OutputDir.
func WithPageWriter(w atlas.PageWriter) Option {
	return func(g *Generator) {
		g.pages = w
	}
}

// WithMetadataWriter writes metadata to w instead of a file in OutputDir.
func WithMetadataWriter(w io.Writer) Option {
	return func(g *Generator) {
		g.metadata = w
	}
}

// WithDevices runs workers on devs in addition to the configured ones.
// The caller keeps ownership and closes them.
func WithDevices(devs ...compute.Device) Option {
	return func(g *Generator) {
		g.extra = append(g.extra, devs...)
	}
}

// WithDeviceProvider adds a GPU worker on the device shared by a host
// application. The provider must expose HalDevice and HalQueue.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(g *Generator) {
		g.provider = p
	}
}

// WorkerStats counts what one worker did.
type WorkerStats struct {
	Name    string
	Glyphs  int
	Skipped int
	Grows   int
}

// Stats summarizes a run.
type Stats struct {
	// Glyphs is the number of glyphs packed.
	Glyphs int
	// Skipped counts characters whose glyph had no visible pixels.
	Skipped int
	// Missing counts characters the font has no glyph for.
	Missing int
	// Pages is the number of pages written.
	Pages int

	PerWorker []WorkerStats
	Elapsed   time.Duration
}

// Generator renders a charset into atlas pages and placement metadata.
type Generator struct {
	cfg Config

	font        *glyph.Font
	newRenderer RendererFactory
	pages       atlas.PageWriter
	metadata    io.Writer
	extra       []compute.Device
	provider    gpucontext.DeviceProvider
}

// NewGenerator validates cfg and applies opts.
func NewGenerator(cfg Config, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Generator{cfg: cfg}
	for _, opt := range opts {
		opt(g)
	}
	if g.newRenderer == nil && g.font != nil {
		font, gopts := g.font, cfg.GlyphOptions()
		g.newRenderer = func() (GlyphRenderer, error) {
			return font.NewRasterizer(gopts)
		}
	}
	if g.pages == nil {
		g.pages = atlas.DirWriter{Dir: cfg.OutputDir}
	}
	return g, nil
}

// Config returns the generator configuration.
func (g *Generator) Config() Config { return g.cfg }

// Run renders every character of chars. Pages are written as they fill;
// the last page and the metadata are written only when every worker has
// finished without error.
func (g *Generator) Run(ctx context.Context, chars *charset.Set) (st Stats, err error) {
	start := time.Now()
	if g.newRenderer == nil {
		return st, ErrNoFont
	}

	runes := chars.Runes()
	if g.font != nil {
		var missing []rune
		runes, missing = g.font.Coverage().Filter(runes)
		st.Missing = len(missing)
		if len(missing) > 0 {
			Logger().Warn("sdfatlas: characters not in font, skipped", "count", len(missing), "first", string(missing[0]))
		}
	}

	owned, err := g.devices()
	if err != nil {
		return st, err
	}
	defer func() {
		if cerr := closeDevices(owned); cerr != nil {
			Logger().Warn("sdfatlas: close devices", "err", cerr)
		}
	}()
	devs := append(owned[:len(owned):len(owned)], g.extra...)
	if len(devs) == 0 {
		return st, ErrNoDevices
	}

	backends := make([]parallel.Backend, 0, len(devs))
	for _, d := range devs {
		r, err := g.newRenderer()
		if err != nil {
			return st, fmt.Errorf("sdfatlas: create renderer: %w", err)
		}
		if c, ok := r.(io.Closer); ok {
			defer func() { _ = c.Close() }()
		}
		backends = append(backends, parallel.Backend{Device: d, Renderer: r})
	}

	asm, err := atlas.New(g.cfg.AtlasConfig(), g.pages)
	if err != nil {
		return st, err
	}
	pool, err := parallel.NewPool(asm, g.cfg.SDFParams(), backends...)
	if err != nil {
		return st, err
	}

	Logger().Info("sdfatlas: run", "chars", len(runes), "workers", len(backends))
	ps, err := pool.Run(ctx, runes)
	st.Glyphs, st.Skipped = ps.Glyphs, ps.Skipped
	for _, ws := range ps.PerWorker {
		st.PerWorker = append(st.PerWorker, WorkerStats(ws))
	}
	if err != nil {
		st.Pages = asm.PagesWritten()
		return st, err
	}

	if err := asm.SaveCurrentPage(); err != nil {
		return st, err
	}
	st.Pages = asm.PagesWritten()
	if err := g.writeMetadata(asm); err != nil {
		return st, err
	}
	st.Elapsed = time.Since(start)
	Logger().Info("sdfatlas: done", "glyphs", st.Glyphs, "skipped", st.Skipped,
		"missing", st.Missing, "pages", st.Pages, "elapsed", st.Elapsed)
	return st, nil
}

// devices opens the configured devices plus the shared provider device.
// Caller-supplied devices are not included.
func (g *Generator) devices() ([]compute.Device, error) {
	var devs []compute.Device
	if g.cfg.CPUWorkers > 0 || len(g.cfg.GPUAdapters) > 0 {
		d, err := openDevices(&g.cfg)
		if err != nil {
			return nil, err
		}
		devs = d
	}
	if g.provider != nil {
		d, err := gpu.FromProvider("shared", g.provider)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("sdfatlas: shared device: %w", err), closeDevices(devs))
		}
		devs = append(devs, d)
	}
	return devs, nil
}

func (g *Generator) writeMetadata(asm *atlas.Assembler) error {
	format, err := atlas.ParseFormat(g.cfg.MetadataFormat)
	if err != nil {
		return err
	}
	if g.metadata != nil {
		return asm.SaveMetadata(g.metadata, format)
	}

	if err := os.MkdirAll(g.cfg.OutputDir, 0o750); err != nil {
		return err
	}
	path := filepath.Join(g.cfg.OutputDir, "metadata."+format.Ext())
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	if err := asm.SaveMetadata(f, format); err != nil {
		_ = f.Close()
		return fmt.Errorf("sdfatlas: write %s: %w", path, err)
	}
	return f.Close()
}
