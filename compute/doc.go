// Package compute implements the image-processing stages of the SDF
// pipeline and the contract shared by every compute backend.
//
// # Stages
//
//  1. Grayscale samples every stride-th byte of an interleaved RGB/RGBA
//     raster. Single-channel input skips this stage.
//  2. EdgeDetect classifies every pixel against a fixed threshold of 128:
//     0 for background, 127 for interior and 255 for boundary pixels, where a
//     boundary pixel is foreground with at least one background neighbor in
//     its clamped 8-neighborhood.
//  3. SDFGenerate downsamples the edge image by Stride and, for every output
//     pixel, searches square rings of growing Chebyshev radius for the first
//     boundary pixel. The distance is normalized by SearchRadius and stored
//     around a zero level of 127: larger values are inside, smaller outside.
//
// The ring search stops at the first ring that contains a boundary pixel and
// takes the first hit in ascending t order, which is not always the nearest
// point on that ring. Renderers built against this output depend on that
// bias, so it is kept as is.
//
// # Backends
//
// The functions in this package are the CPU backend: synchronous and free of
// allocations beyond their output buffers. [Device] is the uniform contract
// over both the CPU and the GPU backend: every enqueue takes a wait list of
// [Event] values and returns a new Event, so a chain of
// upload → edge → sdf → download is a dependency graph of events rather than
// a sequence of blocking calls. [CPUDevice] completes each call before
// returning. [Session] owns the per-worker device buffers and grows them
// lazily.
package compute
