// Command sdftool builds signed distance field atlases from fonts and
// converts single symbol images to distance fields.
//
// Usage:
//
//	sdftool [flags] symbol <image.png> <output.png>
//	sdftool [flags] font <font.ttf> <charset> <output-dir>
//	sdftool devices
//
// The charset argument is an expression such as
// "ascii + gb2312-1 + U+0400..U+04FF + @extra.txt".
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/gogpu/sdfatlas"
	"github.com/gogpu/sdfatlas/charset"
	"github.com/gogpu/sdfatlas/glyph"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("sdftool: ")

	cfg := sdfatlas.DefaultConfig()
	fs := flag.NewFlagSet("sdftool", flag.ExitOnError)
	verbose := bindFlags(fs, &cfg)
	fs.Usage = func() { usage(fs) }
	_ = fs.Parse(os.Args[1:])

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	sdfatlas.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "symbol":
		if len(rest) != 2 {
			fs.Usage()
			os.Exit(2)
		}
		err = sdfatlas.ConvertSymbolFile(cfg, rest[0], rest[1])
	case "font":
		if len(rest) != 3 {
			fs.Usage()
			os.Exit(2)
		}
		err = runFont(ctx, cfg, rest[0], rest[1], rest[2])
	case "devices":
		err = listDevices(os.Stdout)
	default:
		log.Printf("unknown command %q", cmd)
		fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func bindFlags(fs *flag.FlagSet, cfg *sdfatlas.Config) *bool {
	fs.IntVar(&cfg.PageWidth, "page-width", cfg.PageWidth, "atlas page width")
	fs.IntVar(&cfg.PageHeight, "page-height", cfg.PageHeight, "atlas page height")
	fs.IntVar(&cfg.MarginX, "margin-x", cfg.MarginX, "horizontal margin around each glyph on the page")
	fs.IntVar(&cfg.MarginY, "margin-y", cfg.MarginY, "vertical margin around each glyph on the page")
	fs.IntVar(&cfg.PaddingX, "padding-x", cfg.PaddingX, "horizontal padding around each rendered glyph")
	fs.IntVar(&cfg.PaddingY, "padding-y", cfg.PaddingY, "vertical padding around each rendered glyph")
	fs.IntVar(&cfg.Stride, "stride", cfg.Stride, "downsampling factor from render to field pixels")
	fs.IntVar(&cfg.SearchRadius, "radius", cfg.SearchRadius, "boundary search radius in render pixels")
	fs.Float64Var(&cfg.Scale, "scale", cfg.Scale, "render size in pixels per em")
	fs.IntVar(&cfg.CPUWorkers, "cpu", cfg.CPUWorkers, "number of CPU workers")
	fs.Func("gpu", "comma-separated GPU adapter indices (see devices)", func(s string) error {
		idx, err := parseIndices(s)
		cfg.GPUAdapters = idx
		return err
	})
	fs.StringVar(&cfg.MetadataFormat, "format", cfg.MetadataFormat, "metadata format: csv or json")
	return fs.Bool("v", false, "debug logging")
}

func parseIndices(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		i, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("adapter index %q: %w", f, err)
		}
		out = append(out, i)
	}
	return out, nil
}

func runFont(ctx context.Context, cfg sdfatlas.Config, fontPath, expr, outDir string) error {
	font, err := glyph.Load(fontPath)
	if err != nil {
		return err
	}
	chars, err := charset.Parse(expr)
	if err != nil {
		return err
	}
	cfg.OutputDir = outDir

	g, err := sdfatlas.NewGenerator(cfg, sdfatlas.WithFont(font))
	if err != nil {
		return err
	}
	st, err := g.Run(ctx, chars)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d glyphs on %d pages (%d skipped, %d missing) in %v\n",
		font.Name(), st.Glyphs, st.Pages, st.Skipped, st.Missing, st.Elapsed)
	for _, w := range st.PerWorker {
		fmt.Printf("  %-24s %6d glyphs %4d skipped\n", w.Name, w.Glyphs, w.Skipped)
	}
	return nil
}

func listDevices(w io.Writer) error {
	if !sdfatlas.GPUAvailable() {
		_, err := fmt.Fprintln(w, "GPU support not compiled in (built with -tags nogpu)")
		return err
	}
	devs, err := sdfatlas.Devices()
	if err != nil {
		return err
	}
	if len(devs) == 0 {
		return errors.New("no GPU adapters found")
	}
	for _, d := range devs {
		if _, err := fmt.Fprintf(w, "%d\t%s\t%s\n", d.Index, d.Name, d.Type); err != nil {
			return err
		}
	}
	return nil
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintln(out, "usage:")
	fmt.Fprintln(out, "  sdftool [flags] symbol <image.png> <output.png>")
	fmt.Fprintln(out, "  sdftool [flags] font <font.ttf> <charset> <output-dir>")
	fmt.Fprintln(out, "  sdftool devices")
	fmt.Fprintf(out, "\nbuiltin charsets: %s\n\nflags:\n", strings.Join(charset.Builtins(), ", "))
	fs.PrintDefaults()
	if devs, err := sdfatlas.Devices(); err == nil && len(devs) > 0 {
		fmt.Fprintln(out, "\nGPU adapters:")
		for _, d := range devs {
			fmt.Fprintf(out, "  %d  %s (%s)\n", d.Index, d.Name, d.Type)
		}
	}
}
