package sdfatlas

import (
	"fmt"

	"github.com/gogpu/sdfatlas/compute"
	"github.com/gogpu/sdfatlas/mono"
)

// ConvertSymbol computes the distance field of a single raster on dev.
// RGB and RGBA input is reduced to its first channel; single-channel input
// is used as is.
func ConvertSymbol(dev compute.Device, in *mono.Raster, p compute.SDFParams) (*mono.Image, error) {
	s := compute.NewSession(dev)
	defer s.Release()

	out := &mono.Image{}
	ev, err := s.Convert(in, out, p)
	if err != nil {
		return nil, fmt.Errorf("sdfatlas: convert on %s: %w", dev.Name(), err)
	}
	if err := ev.Wait(); err != nil {
		return nil, fmt.Errorf("sdfatlas: convert on %s: %w", dev.Name(), err)
	}
	return out, nil
}

// ConvertSymbolFile loads the PNG at inPath, converts it on the first
// configured device (a GPU adapter if any is listed) and saves the field as
// a single-channel PNG at outPath.
func ConvertSymbolFile(cfg Config, inPath, outPath string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	in, err := mono.Load(inPath)
	if err != nil {
		return fmt.Errorf("sdfatlas: load %s: %w", inPath, err)
	}

	devCfg := cfg
	if len(devCfg.GPUAdapters) > 0 {
		devCfg.GPUAdapters = devCfg.GPUAdapters[:1]
		devCfg.CPUWorkers = 0
	} else {
		devCfg.CPUWorkers = 1
	}
	devs, err := openDevices(&devCfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeDevices(devs) }()

	Logger().Info("sdfatlas: symbol", "input", inPath, "width", in.Width, "height", in.Height,
		"channels", in.Channels, "device", devs[0].Name())
	out, err := ConvertSymbol(devs[0], in, cfg.SDFParams())
	if err != nil {
		return err
	}
	return out.SavePNG(outPath)
}
