package sdfatlas

import (
	"runtime"

	"github.com/gogpu/sdfatlas/atlas"
	"github.com/gogpu/sdfatlas/compute"
	"github.com/gogpu/sdfatlas/glyph"
)

// Config holds the tunable parameters of a run.
type Config struct {
	// PageWidth and PageHeight are the atlas page size in pixels.
	PageWidth  int
	PageHeight int

	// MarginX and MarginY are left blank around each glyph on the page.
	MarginX int
	MarginY int

	// PaddingX and PaddingY are added around each rasterized glyph before
	// the distance field is computed, in render pixels.
	PaddingX int
	PaddingY int

	// Stride is the downsampling factor from render pixels to field pixels.
	Stride int

	// SearchRadius bounds the boundary search, in render pixels.
	SearchRadius int

	// Scale is the render size in pixels per em.
	Scale float64

	// CPUWorkers is the number of CPU workers.
	CPUWorkers int

	// GPUAdapters lists adapter indices, as reported by Devices, to run a
	// GPU worker on.
	GPUAdapters []int

	// MetadataFormat is "csv" or "json".
	MetadataFormat string

	// OutputDir receives <page>.png files and the metadata file.
	OutputDir string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PageWidth:      1024,
		PageHeight:     1024,
		MarginX:        2,
		MarginY:        2,
		PaddingX:       16,
		PaddingY:       16,
		Stride:         8,
		SearchRadius:   64,
		Scale:          512,
		CPUWorkers:     runtime.GOMAXPROCS(0),
		MetadataFormat: "csv",
		OutputDir:      ".",
	}
}

// Validate checks every field.
func (c *Config) Validate() error {
	if c.PageWidth < 1 {
		return &ConfigError{Field: "PageWidth", Reason: "must be at least 1"}
	}
	if c.PageHeight < 1 {
		return &ConfigError{Field: "PageHeight", Reason: "must be at least 1"}
	}
	if c.MarginX < 0 || c.MarginY < 0 {
		return &ConfigError{Field: "Margin", Reason: "must be non-negative"}
	}
	if c.PaddingX < 0 || c.PaddingY < 0 {
		return &ConfigError{Field: "Padding", Reason: "must be non-negative"}
	}
	if c.Stride < 1 {
		return &ConfigError{Field: "Stride", Reason: "must be at least 1"}
	}
	if c.SearchRadius < 1 {
		return &ConfigError{Field: "SearchRadius", Reason: "must be at least 1"}
	}
	if c.Scale <= 0 {
		return &ConfigError{Field: "Scale", Reason: "must be positive"}
	}
	if c.CPUWorkers < 0 {
		return &ConfigError{Field: "CPUWorkers", Reason: "must be non-negative"}
	}
	for _, i := range c.GPUAdapters {
		if i < 0 {
			return &ConfigError{Field: "GPUAdapters", Reason: "indices must be non-negative"}
		}
	}
	if _, err := atlas.ParseFormat(c.MetadataFormat); err != nil {
		return &ConfigError{Field: "MetadataFormat", Reason: "must be csv or json"}
	}
	return nil
}

// SDFParams returns the distance field parameters.
func (c *Config) SDFParams() compute.SDFParams {
	return compute.SDFParams{Stride: c.Stride, SearchRadius: c.SearchRadius}
}

// AtlasConfig returns the page geometry.
func (c *Config) AtlasConfig() atlas.Config {
	return atlas.Config{
		PageWidth:  c.PageWidth,
		PageHeight: c.PageHeight,
		MarginX:    c.MarginX,
		MarginY:    c.MarginY,
	}
}

// GlyphOptions returns the rasterization options.
func (c *Config) GlyphOptions() glyph.Options {
	return glyph.Options{Size: c.Scale, PaddingX: c.PaddingX, PaddingY: c.PaddingY}
}
