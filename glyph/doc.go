// Package glyph turns characters of a vector font into single-channel
// bitmaps for the distance field pipeline.
//
// A Font is parsed once and shared. Each worker creates its own Rasterizer,
// which owns a sized face and is not safe for concurrent use.
//
// Bitmaps are thresholded: coverage of at least one half becomes 255, the
// rest 0. The bitmap is as wide as the glyph's ink and as tall as the face's
// line (ascent plus descent), with padding on every side so the distance
// field has room to fall off.
package glyph
