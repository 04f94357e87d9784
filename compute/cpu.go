package compute

import (
	"math"

	"github.com/gogpu/sdfatlas/mono"
)

// Pixel classes produced by EdgeDetect.
const (
	Background uint8 = 0
	Interior   uint8 = 127
	Boundary   uint8 = 255
)

const (
	// EdgeThreshold separates background (below) from foreground (at or above).
	EdgeThreshold = 128

	// ZeroLevel is the distance field value on the shape boundary.
	ZeroLevel = 127

	// insideLevel classifies an SDF sample center as inside the shape.
	insideLevel = 96

	// boundaryLevel is the minimum edge value counted as a boundary hit.
	boundaryLevel = 192

	// maxOffset is the largest distance magnitude stored around ZeroLevel.
	maxOffset = 127
)

// SDFParams controls distance field generation.
type SDFParams struct {
	// Stride is the downsampling factor between the edge image and the field.
	Stride int

	// SearchRadius is the largest Chebyshev ring searched, in edge pixels.
	// Distances are normalized by this value.
	SearchRadius int
}

// Validate checks that both parameters are at least 1.
func (p SDFParams) Validate() error {
	if p.Stride < 1 {
		return &ParamError{Field: "Stride", Reason: "must be at least 1"}
	}
	if p.SearchRadius < 1 {
		return &ParamError{Field: "SearchRadius", Reason: "must be at least 1"}
	}
	return nil
}

// SDFSize returns the field dimensions for an edge image of width × height:
// ceil(width/stride) × ceil(height/stride).
func SDFSize(width, height, stride int) (int, int) {
	return (width + stride - 1) / stride, (height + stride - 1) / stride
}

// Grayscale writes src[i*stride] to dst[i] for every i in dst.
// len(src) must be at least len(dst)*stride.
func Grayscale(dst, src []uint8, stride int) {
	for i := range dst {
		dst[i] = src[i*stride]
	}
}

// EdgeDetect classifies every pixel of the width × height image src into dst.
// Neighbor lookups are clamped to the image, so the border never sees a
// background pixel that lies outside the image.
func EdgeDetect(dst, src []uint8, width, height int) {
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			if src[i] < EdgeThreshold {
				dst[i] = Background
				continue
			}
			dst[i] = Interior
			if hasBackgroundNeighbor(src, x, y, width, height) {
				dst[i] = Boundary
			}
		}
	}
}

func hasBackgroundNeighbor(src []uint8, x, y, width, height int) bool {
	for ny := y - 1; ny <= y+1; ny++ {
		for nx := x - 1; nx <= x+1; nx++ {
			if nx == x && ny == y {
				continue
			}
			if src[mono.ClampedOffset(nx, ny, width, height)] < EdgeThreshold {
				return true
			}
		}
	}
	return false
}

// SDFGenerate writes the distance field of the edgeWidth × edgeHeight edge
// image into dst, which must hold SDFSize(edgeWidth, edgeHeight, p.Stride)
// pixels.
func SDFGenerate(dst, edge []uint8, edgeWidth, edgeHeight int, p SDFParams) {
	sw, sh := SDFSize(edgeWidth, edgeHeight, p.Stride)
	for y := 0; y < sh; y++ {
		for x := 0; x < sw; x++ {
			cx := x*p.Stride + p.Stride/2
			cy := y*p.Stride + p.Stride/2
			dst[y*sw+x] = sdfSample(edge, cx, cy, edgeWidth, edgeHeight, p.SearchRadius)
		}
	}
}

// sdfSample evaluates one field pixel centered at (cx, cy) in the edge image.
func sdfSample(edge []uint8, cx, cy, width, height, radius int) uint8 {
	inside := edge[mono.ClampedOffset(cx, cy, width, height)] > insideLevel

	dist := maxOffset
	for d := 1; d <= radius; d++ {
		t, ok := ringHit(edge, cx, cy, d, width, height)
		if !ok {
			continue
		}
		f := math.Sqrt(float64(t*t+d*d)) / float64(radius)
		f = math.Max(0, math.Min(1, f))
		dist = int(f * maxOffset)
		break
	}
	if !inside {
		dist = -dist
	}
	return uint8(ZeroLevel + dist) //nolint:gosec // dist is in [-127, 127]
}

// ringHit scans the ring at Chebyshev distance d in ascending t and returns
// the first t whose top, bottom, left or right sample is a boundary pixel.
func ringHit(edge []uint8, cx, cy, d, width, height int) (int, bool) {
	for t := -d; t <= d; t++ {
		if edge[mono.ClampedOffset(cx+t, cy-d, width, height)] > boundaryLevel ||
			edge[mono.ClampedOffset(cx+t, cy+d, width, height)] > boundaryLevel ||
			edge[mono.ClampedOffset(cx-d, cy+t, width, height)] > boundaryLevel ||
			edge[mono.ClampedOffset(cx+d, cy+t, width, height)] > boundaryLevel {
			return t, true
		}
	}
	return 0, false
}
