package compute

import (
	"testing"
)

func TestGrayscale(t *testing.T) {
	src := []uint8{
		10, 20, 30, 255,
		40, 50, 60, 255,
		70, 80, 90, 0,
	}
	dst := make([]uint8, 3)
	Grayscale(dst, src, 4)
	want := []uint8{10, 40, 70}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("dst[%d] = %d, want %d", i, dst[i], want[i])
		}
	}

	rgb := []uint8{1, 2, 3, 4, 5, 6}
	dst = make([]uint8, 2)
	Grayscale(dst, rgb, 3)
	if dst[0] != 1 || dst[1] != 4 {
		t.Errorf("rgb grayscale = %v, want [1 4]", dst)
	}
}

func TestEdgeDetectConstantImage(t *testing.T) {
	const w, h = 7, 5
	src := make([]uint8, w*h)
	for i := range src {
		src[i] = 255
	}
	dst := make([]uint8, w*h)
	EdgeDetect(dst, src, w, h)
	for i, v := range dst {
		if v != Interior {
			t.Fatalf("dst[%d] (x=%d, y=%d) = %d, want %d", i, i%w, i/w, v, Interior)
		}
	}
}

func TestEdgeDetectSinglePixel(t *testing.T) {
	tests := []struct {
		name  string
		value uint8
		want  uint8
	}{
		{"at threshold", 128, Boundary},
		{"full", 255, Boundary},
		{"below threshold", 127, Background},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const w, h = 5, 5
			src := make([]uint8, w*h)
			src[2*w+2] = tt.value
			dst := make([]uint8, w*h)
			for i := range dst {
				dst[i] = 42
			}
			EdgeDetect(dst, src, w, h)
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					want := Background
					if x == 2 && y == 2 {
						want = tt.want
					}
					if got := dst[y*w+x]; got != want {
						t.Errorf("dst(%d, %d) = %d, want %d", x, y, got, want)
					}
				}
			}
		})
	}
}

func TestEdgeDetectSquare(t *testing.T) {
	const w, h = 6, 6
	src := make([]uint8, w*h)
	for y := 1; y <= 4; y++ {
		for x := 1; x <= 4; x++ {
			src[y*w+x] = 200
		}
	}
	dst := make([]uint8, w*h)
	EdgeDetect(dst, src, w, h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var want uint8
			switch {
			case x < 1 || x > 4 || y < 1 || y > 4:
				want = Background
			case x == 1 || x == 4 || y == 1 || y == 4:
				want = Boundary
			default:
				want = Interior
			}
			if got := dst[y*w+x]; got != want {
				t.Errorf("dst(%d, %d) = %d, want %d", x, y, got, want)
			}
		}
	}
}

func TestSDFSize(t *testing.T) {
	tests := []struct {
		w, h, stride int
		wantW, wantH int
	}{
		{10, 10, 1, 10, 10},
		{10, 10, 3, 4, 4},
		{16, 8, 8, 2, 1},
		{1, 1, 4, 1, 1},
		{0, 5, 2, 0, 3},
	}
	for _, tt := range tests {
		gw, gh := SDFSize(tt.w, tt.h, tt.stride)
		if gw != tt.wantW || gh != tt.wantH {
			t.Errorf("SDFSize(%d, %d, %d) = (%d, %d), want (%d, %d)",
				tt.w, tt.h, tt.stride, gw, gh, tt.wantW, tt.wantH)
		}
	}
}

func TestSDFGenerateNoBoundarySaturates(t *testing.T) {
	tests := []struct {
		name string
		fill uint8
		want uint8
	}{
		{"outside", Background, 0},
		{"inside", Interior, 254},
		{"just inside", 97, 254},
		{"not boundary", 192, 254},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const w, h = 12, 9
			edge := make([]uint8, w*h)
			for i := range edge {
				edge[i] = tt.fill
			}
			p := SDFParams{Stride: 2, SearchRadius: 3}
			sw, sh := SDFSize(w, h, p.Stride)
			dst := make([]uint8, sw*sh)
			SDFGenerate(dst, edge, w, h, p)
			for i, v := range dst {
				if v != tt.want {
					t.Fatalf("dst[%d] = %d, want %d", i, v, tt.want)
				}
			}
		})
	}
}

func TestSDFGenerateDistance(t *testing.T) {
	const w, h = 8, 8
	edge := make([]uint8, w*h)
	edge[3*w+5] = Boundary

	p := SDFParams{Stride: 1, SearchRadius: 4}
	dst := make([]uint8, w*h)
	SDFGenerate(dst, edge, w, h, p)

	// (3,3) is outside; first hit is (5,3) on ring 2 at t=0: 2/4*127 = 63.
	if got := dst[3*w+3]; got != 127-63 {
		t.Errorf("dst(3, 3) = %d, want %d", got, 127-63)
	}
	// The boundary pixel is inside with no other boundary in reach.
	if got := dst[3*w+5]; got != 254 {
		t.Errorf("dst(5, 3) = %d, want 254", got)
	}
	// (4,3) is outside and adjacent: ring 1 at t=0 gives 1/4*127 = 31.
	if got := dst[3*w+4]; got != 127-31 {
		t.Errorf("dst(4, 3) = %d, want %d", got, 127-31)
	}
}

func TestSDFGenerateRingTieBreak(t *testing.T) {
	const w, h = 9, 9
	edge := make([]uint8, w*h)
	// Both lie on ring 2 around (4,4). The corner is reached first (t = -2)
	// even though (6,4) is closer.
	edge[2*w+2] = Boundary
	edge[4*w+6] = Boundary

	p := SDFParams{Stride: 1, SearchRadius: 4}
	dst := make([]uint8, w*h)
	SDFGenerate(dst, edge, w, h, p)

	// sqrt(8)/4*127 = 89.8 -> 89.
	if got := dst[4*w+4]; got != 127-89 {
		t.Errorf("dst(4, 4) = %d, want %d", got, 127-89)
	}
}

func TestSDFGenerateStrideSamplesCenter(t *testing.T) {
	const w, h = 4, 4
	edge := make([]uint8, w*h)
	for i := range edge {
		edge[i] = Interior
	}
	// Sample center of the single output pixel is (2,2) for stride 4.
	edge[2*w+2] = Background
	edge[0] = Boundary

	p := SDFParams{Stride: 4, SearchRadius: 2}
	dst := make([]uint8, 1)
	SDFGenerate(dst, edge, w, h, p)

	// Outside; ring 2 reaches (0,0) at t=-2 first: sqrt(8)/2 clamps to 1.
	if dst[0] != 0 {
		t.Errorf("dst[0] = %d, want 0", dst[0])
	}
}

func TestSDFParamsValidate(t *testing.T) {
	tests := []struct {
		p       SDFParams
		wantErr bool
	}{
		{SDFParams{Stride: 1, SearchRadius: 1}, false},
		{SDFParams{Stride: 0, SearchRadius: 1}, true},
		{SDFParams{Stride: 1, SearchRadius: 0}, true},
		{SDFParams{Stride: -3, SearchRadius: 5}, true},
	}
	for _, tt := range tests {
		err := tt.p.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%+v) error = %v, wantErr %v", tt.p, err, tt.wantErr)
		}
	}
}
