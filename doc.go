// Package sdfatlas generates signed distance field glyph atlases.
//
// A run rasterizes each character of a charset, classifies the bitmap's
// pixels as background, interior or boundary, and computes a downsampled
// distance field by searching square rings around each sample for the
// nearest boundary pixel. Fields are shelf-packed into fixed-size pages,
// and a metadata file records where each glyph landed.
//
// Work is spread over any mix of CPU workers and GPU adapters. Each worker
// owns its device buffers and overlaps rasterization of one character with
// the device work of the previous one.
//
// Basic usage:
//
//	font, err := glyph.Load("NotoSansSC-Regular.otf")
//	if err != nil {
//		log.Fatal(err)
//	}
//	chars, err := charset.Parse("ascii + gb2312-1")
//	if err != nil {
//		log.Fatal(err)
//	}
//	cfg := sdfatlas.DefaultConfig()
//	cfg.OutputDir = "atlas"
//	gen, err := sdfatlas.NewGenerator(cfg, sdfatlas.WithFont(font))
//	if err != nil {
//		log.Fatal(err)
//	}
//	stats, err := gen.Run(context.Background(), chars)
//
// A single raster symbol is converted with ConvertSymbolFile.
package sdfatlas
