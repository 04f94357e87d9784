package mono

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
)

// Sentinel errors for raster input.
var (
	// ErrUnsupportedBitDepth is returned for rasters that are not 8 bits per channel.
	ErrUnsupportedBitDepth = errors.New("mono: raster must use 8 bits per channel")

	// ErrUnsupportedColor is returned for color formats other than gray, RGB or RGBA.
	ErrUnsupportedColor = errors.New("mono: raster must be grayscale, RGB or RGBA")
)

// Raster is a decoded 8-bit input raster with interleaved channels.
// Channels is 1 for grayscale input and 4 for RGB or RGBA input, which is
// also the sampling stride used by grayscale conversion.
type Raster struct {
	Pix      []uint8
	Width    int
	Height   int
	Channels int
}

// Gray reports whether the raster is already single-channel.
func (r *Raster) Gray() bool {
	return r.Channels == 1
}

// PNG header layout: signature, IHDR length and type, width and height,
// then bit depth and color type.
const (
	pngHeaderLen       = 26
	pngBitDepthOffset  = 24
	pngColorTypeOffset = 25
)

// PNG color types accepted as input: gray, RGB and RGBA.
const (
	pngColorGray = 0
	pngColorRGB  = 2
	pngColorRGBA = 6
)

// Decode reads a PNG and returns its pixels without color conversion. The
// header is checked before decoding, since image/png widens low bit depths
// and gray+alpha into 8-bit formats.
func Decode(rd io.Reader) (*Raster, error) {
	br := bufio.NewReader(rd)
	hdr, err := br.Peek(pngHeaderLen)
	if err != nil {
		return nil, fmt.Errorf("mono: decode png: %w", err)
	}
	if err := checkHeader(hdr); err != nil {
		return nil, err
	}
	img, err := png.Decode(br)
	if err != nil {
		return nil, fmt.Errorf("mono: decode png: %w", err)
	}
	return FromImage(img)
}

func checkHeader(hdr []byte) error {
	if string(hdr[:8]) != "\x89PNG\r\n\x1a\n" || string(hdr[12:16]) != "IHDR" {
		return fmt.Errorf("mono: decode png: %w", png.FormatError("not a PNG file"))
	}
	if depth := hdr[pngBitDepthOffset]; depth != 8 {
		return fmt.Errorf("%w: got %d bits", ErrUnsupportedBitDepth, depth)
	}
	switch ct := hdr[pngColorTypeOffset]; ct {
	case pngColorGray, pngColorRGB, pngColorRGBA:
		return nil
	default:
		return fmt.Errorf("%w: PNG color type %d", ErrUnsupportedColor, ct)
	}
}

// FromImage wraps an 8-bit gray, RGBA or NRGBA image. Other formats are
// rejected rather than converted.
func FromImage(img image.Image) (*Raster, error) {
	switch src := img.(type) {
	case *image.Gray:
		return pack(src.Pix, src.Stride, src.Rect, 1), nil
	case *image.RGBA:
		return pack(src.Pix, src.Stride, src.Rect, 4), nil
	case *image.NRGBA:
		return pack(src.Pix, src.Stride, src.Rect, 4), nil
	case *image.Gray16, *image.RGBA64, *image.NRGBA64:
		return nil, ErrUnsupportedBitDepth
	default:
		return nil, fmt.Errorf("%w: got %T", ErrUnsupportedColor, img)
	}
}

// pack copies rows into a tightly packed buffer.
func pack(pix []uint8, stride int, rect image.Rectangle, channels int) *Raster {
	w, h := rect.Dx(), rect.Dy()
	out := make([]uint8, w*h*channels)
	row := w * channels
	for y := 0; y < h; y++ {
		copy(out[y*row:(y+1)*row], pix[y*stride:y*stride+row])
	}
	return &Raster{Pix: out, Width: w, Height: h, Channels: channels}
}

// Load reads a PNG file.
func Load(path string) (*Raster, error) {
	f, err := os.Open(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return Decode(f)
}

// Encode writes m as an 8-bit grayscale PNG.
func (m *Image) Encode(w io.Writer) error {
	return png.Encode(w, m.ToGray())
}

// SavePNG writes m to path as an 8-bit grayscale PNG.
func (m *Image) SavePNG(path string) error {
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	if err := m.Encode(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
