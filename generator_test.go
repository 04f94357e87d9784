package sdfatlas

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/gogpu/sdfatlas/atlas"
	"github.com/gogpu/sdfatlas/charset"
	"github.com/gogpu/sdfatlas/compute"
	"github.com/gogpu/sdfatlas/glyph"
	"github.com/gogpu/sdfatlas/mono"
)

func goRegular(t testing.TB) *glyph.Font {
	t.Helper()
	f, err := glyph.Parse(goregular.TTF)
	if err != nil {
		t.Fatalf("glyph.Parse: %v", err)
	}
	return f
}

// smallConfig keeps glyphs at a few dozen field pixels so tests run fast.
func smallConfig(t testing.TB) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.PageWidth, cfg.PageHeight = 256, 256
	cfg.MarginX, cfg.MarginY = 1, 1
	cfg.PaddingX, cfg.PaddingY = 4, 4
	cfg.Stride = 4
	cfg.SearchRadius = 8
	cfg.Scale = 32
	cfg.CPUWorkers = 2
	cfg.MetadataFormat = "json"
	cfg.OutputDir = t.TempDir()
	return cfg
}

// =============================================================================
// Run
// =============================================================================

func TestGeneratorRun(t *testing.T) {
	cfg := smallConfig(t)
	font := goRegular(t)
	pages := atlas.NewMemoryWriter()
	var meta bytes.Buffer

	g, err := NewGenerator(cfg, WithFont(font), WithPageWriter(pages), WithMetadataWriter(&meta))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	// Space has a glyph but no ink; 中 is not in Go Regular.
	st, err := g.Run(context.Background(), charset.FromString("AB 中"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if st.Glyphs != 2 || st.Skipped != 1 || st.Missing != 1 || st.Pages != 1 {
		t.Errorf("stats = %+v, want 2 glyphs, 1 skipped, 1 missing, 1 page", st)
	}
	if len(st.PerWorker) != 2 {
		t.Errorf("PerWorker has %d entries, want 2", len(st.PerWorker))
	}
	if pages.Len() != 1 || pages.Page(0) == nil {
		t.Fatalf("pages written = %d, want page 0", pages.Len())
	}

	records, err := atlas.ReadMetadata(&meta, atlas.FormatJSON)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	r, err := font.NewRasterizer(cfg.GlyphOptions())
	if err != nil {
		t.Fatalf("NewRasterizer: %v", err)
	}
	defer r.Close()
	for _, rec := range records {
		if rec.Char != 'A' && rec.Char != 'B' {
			t.Errorf("unexpected record %+v", rec)
			continue
		}
		bm := mono.New(0, 0)
		if !r.Render(rec.Char, bm) {
			t.Fatalf("Render(%q) found no ink", rec.Char)
		}
		w, h := compute.SDFSize(bm.Width, bm.Height, cfg.Stride)
		if rec.Width != w || rec.Height != h {
			t.Errorf("%q placed as %dx%d, want %dx%d", rec.Char, rec.Width, rec.Height, w, h)
		}
		if rec.Page != 0 || rec.Y != cfg.MarginY {
			t.Errorf("%q placed at page %d y %d, want page 0 y %d", rec.Char, rec.Page, rec.Y, cfg.MarginY)
		}
	}
}

func TestGeneratorRunWritesOutputDir(t *testing.T) {
	cfg := smallConfig(t)
	cfg.MetadataFormat = "csv"
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")

	g, err := NewGenerator(cfg, WithFont(goRegular(t)))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	if _, err := g.Run(context.Background(), charset.FromString("xyz")); err != nil {
		t.Fatalf("Run: %v", err)
	}

	page, err := mono.Load(filepath.Join(cfg.OutputDir, "0.png"))
	if err != nil {
		t.Fatalf("load page: %v", err)
	}
	if page.Width != cfg.PageWidth || page.Height != cfg.PageHeight || !page.Gray() {
		t.Errorf("page is %dx%d with %d channels, want %dx%d gray",
			page.Width, page.Height, page.Channels, cfg.PageWidth, cfg.PageHeight)
	}

	f, err := os.Open(filepath.Join(cfg.OutputDir, "metadata.csv"))
	if err != nil {
		t.Fatalf("open metadata: %v", err)
	}
	defer f.Close()
	records, err := atlas.ReadMetadata(f, atlas.FormatCSV)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("got %d records, want 3", len(records))
	}
}

func TestGeneratorEmptyCharset(t *testing.T) {
	cfg := smallConfig(t)
	pages := atlas.NewMemoryWriter()
	var meta bytes.Buffer
	g, err := NewGenerator(cfg, WithFont(goRegular(t)), WithPageWriter(pages), WithMetadataWriter(&meta))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	st, err := g.Run(context.Background(), charset.New())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Glyphs != 0 {
		t.Errorf("Glyphs = %d, want 0", st.Glyphs)
	}
	// An empty run still saves one blank page.
	if pages.Len() != 1 {
		t.Errorf("pages written = %d, want 1", pages.Len())
	}
}

func TestGeneratorNoFont(t *testing.T) {
	g, err := NewGenerator(smallConfig(t))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	if _, err := g.Run(context.Background(), charset.FromString("A")); !errors.Is(err, ErrNoFont) {
		t.Errorf("Run without font = %v, want ErrNoFont", err)
	}
}

func TestGeneratorNoDevices(t *testing.T) {
	cfg := smallConfig(t)
	cfg.CPUWorkers = 0
	g, err := NewGenerator(cfg, WithFont(goRegular(t)))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	if _, err := g.Run(context.Background(), charset.FromString("A")); !errors.Is(err, ErrNoDevices) {
		t.Errorf("Run without devices = %v, want ErrNoDevices", err)
	}
}

func TestGeneratorInvalidConfig(t *testing.T) {
	cfg := smallConfig(t)
	cfg.Stride = 0
	_, err := NewGenerator(cfg)
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Field != "Stride" {
		t.Errorf("NewGenerator = %v, want ConfigError on Stride", err)
	}
}

// blockGlyph renders every character as the same filled square.
type blockGlyph struct{ closed *int }

func (blockGlyph) Render(_ rune, dst *mono.Image) bool {
	dst.Resize(12, 12)
	for y := 2; y < 10; y++ {
		for x := 2; x < 10; x++ {
			dst.SetGray(x, y, 255)
		}
	}
	return true
}

func (b blockGlyph) Close() error {
	*b.closed++
	return nil
}

func TestGeneratorCallerDevices(t *testing.T) {
	cfg := smallConfig(t)
	cfg.CPUWorkers = 0
	dev := compute.NewCPUDevice("ext")
	defer dev.Close()

	closed := 0
	var meta bytes.Buffer
	g, err := NewGenerator(cfg,
		WithDevices(dev),
		WithRendererFactory(func() (GlyphRenderer, error) { return blockGlyph{closed: &closed}, nil }),
		WithPageWriter(atlas.NewMemoryWriter()),
		WithMetadataWriter(&meta),
	)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	st, err := g.Run(context.Background(), charset.FromString("abc"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Glyphs != 3 || st.Missing != 0 {
		t.Errorf("stats = %+v, want 3 glyphs, 0 missing", st)
	}
	if len(st.PerWorker) != 1 || st.PerWorker[0].Name != "ext" || st.PerWorker[0].Glyphs != 3 {
		t.Errorf("PerWorker = %+v, want one ext worker with 3 glyphs", st.PerWorker)
	}
	if closed != 1 {
		t.Errorf("renderer closed %d times, want 1", closed)
	}
	// The caller still owns the device.
	if _, err := dev.Alloc(4); err != nil {
		t.Errorf("caller device unusable after Run: %v", err)
	}
}

func TestGeneratorCancelled(t *testing.T) {
	cfg := smallConfig(t)
	g, err := NewGenerator(cfg, WithFont(goRegular(t)),
		WithPageWriter(atlas.NewMemoryWriter()), WithMetadataWriter(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Run(ctx, charset.FromString("ABCDEFG")); !errors.Is(err, context.Canceled) {
		t.Errorf("Run with cancelled context = %v, want context.Canceled", err)
	}
}
