package glyph

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/gogpu/sdfatlas/mono"
)

func goRegular(t *testing.T) *Font {
	t.Helper()
	f, err := Parse(goregular.TTF)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return f
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse(nil); !errors.Is(err, ErrEmptyFont) {
		t.Errorf("Parse(nil) = %v, want ErrEmptyFont", err)
	}
	if _, err := Parse([]byte("not a font")); err == nil {
		t.Error("Parse(garbage) succeeded")
	}
}

func TestFontName(t *testing.T) {
	f := goRegular(t)
	if name := f.Name(); !strings.Contains(name, "Go") {
		t.Errorf("Name() = %q, want it to contain Go", name)
	}
	if f.NumGlyphs() == 0 {
		t.Error("NumGlyphs() = 0")
	}
}

func TestRenderThresholdsAndPads(t *testing.T) {
	f := goRegular(t)
	r, err := f.NewRasterizer(Options{Size: 48, PaddingX: 4, PaddingY: 3})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var img mono.Image
	if !r.Render('A', &img) {
		t.Fatal("Render('A') = false")
	}
	if img.Height != r.LineHeight()+6 {
		t.Errorf("height = %d, want line height %d + 6", img.Height, r.LineHeight())
	}
	if img.Width <= 8 {
		t.Errorf("width = %d, want ink plus padding", img.Width)
	}

	ink := 0
	for i, v := range img.Pix {
		switch v {
		case 255:
			ink++
		case 0:
		default:
			t.Fatalf("pixel %d = %d, want 0 or 255", i, v)
		}
	}
	if ink == 0 {
		t.Fatal("no ink")
	}

	// Padding stays blank.
	for y := range img.Height {
		for x := range 4 {
			if img.GrayAt(x, y) != 0 || img.GrayAt(img.Width-1-x, y) != 0 {
				t.Fatalf("ink in horizontal padding at row %d", y)
			}
		}
	}
	for x := range img.Width {
		for y := range 3 {
			if img.GrayAt(x, y) != 0 || img.GrayAt(x, img.Height-1-y) != 0 {
				t.Fatalf("ink in vertical padding at column %d", x)
			}
		}
	}
}

func TestRenderSpaceFails(t *testing.T) {
	f := goRegular(t)
	r, err := f.NewRasterizer(Options{Size: 32})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	var img mono.Image
	if r.Render(' ', &img) {
		t.Error("Render(' ') = true, want false for a glyph without ink")
	}
}

func TestRenderReusesBuffer(t *testing.T) {
	f := goRegular(t)
	r, err := f.NewRasterizer(Options{Size: 32, PaddingX: 2, PaddingY: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var img mono.Image
	r.Render('W', &img)
	wideW := img.Width
	if !r.Render('i', &img) {
		t.Fatal("Render('i') = false")
	}
	if img.Width >= wideW {
		t.Errorf("i width %d not narrower than W width %d", img.Width, wideW)
	}
	if len(img.Pix) != img.Width*img.Height {
		t.Errorf("len(Pix) = %d, want %d", len(img.Pix), img.Width*img.Height)
	}
}

func TestNewRasterizerRejectsBadOptions(t *testing.T) {
	f := goRegular(t)
	if _, err := f.NewRasterizer(Options{Size: 0}); err == nil {
		t.Error("size 0 accepted")
	}
	if _, err := f.NewRasterizer(Options{Size: 12, PaddingY: -1}); err == nil {
		t.Error("negative padding accepted")
	}
}

func TestCoverage(t *testing.T) {
	cov := goRegular(t).Coverage()
	if !cov.Has('A') {
		t.Error("Has('A') = false")
	}
	if cov.Has('中') {
		t.Error("Has('中') = true for a Latin font")
	}

	covered, missing := cov.Filter([]rune{'a', '中', 'b', '文'})
	if !slices.Equal(covered, []rune{'a', 'b'}) {
		t.Errorf("covered = %q", covered)
	}
	if !slices.Equal(missing, []rune{'中', '文'}) {
		t.Errorf("missing = %q", missing)
	}
}
