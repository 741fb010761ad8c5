// Copyright (C) 2023 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"time"
	"github.com/mlnoga/rawlight/internal/compute"
	"github.com/mlnoga/rawlight/internal/pipeline"
	"github.com/mlnoga/rawlight/internal/rawio"
	"github.com/mlnoga/rawlight/internal/rest"
	"github.com/pbnjay/memory"
)

const version = "0.1.0"

var totalMiBs=memory.TotalMemory()/1024/1024

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")

var out      = flag.String("out", "out.tif", "save developed image to `file`")
var png      = flag.String("png", "%auto", "save downscaled preview as PNG to `file`. `%auto` replaces suffix of output file with .png")
var pngDim   = flag.Int("pngDim", 512, "maximum preview dimension in pixels")
var params   = flag.String("params", "", "load development parameters from .json or .yaml `file`")

var cfa      = flag.String("cfa", "RGGB", "color filter array type, one of RGGB, GRBG, GBRG, BGGR")
var black    = flag.Float64("black", 0, "normalized black level to subtract before scaling")
var gains    = flag.String("gains", "1,1,1,1", "white balance gains per CFA site as `r,g0,b,g1`")
var demosaic = flag.String("demosaic", "adaptive", "demosaic strategy, one of adaptive, malvar, fast")
var estimator= flag.String("estimator", "ols", "noise estimator, one of ols, lmeds")
var exposure = flag.Float64("exposure", 1, "linear exposure gain already applied to the mosaic")
var rawNR    = flag.Bool("rawNR", true, "denoise in the raw domain before demosaicing")
var dither   = flag.Bool("dither", false, "apply blue noise dithering to the output")

var chroot   = flag.String("chroot", "", "filesystem root for serve mode (requires root)")
var setuid   = flag.Int("setuid", -1, "user id to switch to for serve mode, -1=keep")

func main() {
	logWriter:=os.Stdout
	start:=time.Now()
	flag.Usage=func(){
		fmt.Fprintf(logWriter, `Rawlight Copyright (c) 2023 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (develop|serve|legal|version) (img0.pgm ... imgn.pgm)

Commands:
  develop Develop raw mosaics into display-ready images
  serve   Start the REST API server on :8080
  legal   Show license and attribution information
  version Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *png=="%auto" {
		if *out!="" {
			*png=strings.TrimSuffix(*out, filepath.Ext(*out))+".png"
		} else {
			*png=""
		}
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Fprintf(logWriter, "Could not create CPU profile: %s\n", err.Error())
			os.Exit(-1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(logWriter, "Could not start CPU profile: %s\n", err.Error())
			os.Exit(-1)
		}
		defer pprof.StopCPUProfile()
	}

	args:=flag.Args()
	if len(args)<1 {
		flag.Usage()
		return
	}

	switch args[0] {
	case "serve":
		if err:=rest.MakeSandbox(*chroot, *setuid); err!=nil {
			fmt.Fprintf(logWriter, "Could not sandbox server: %s\n", err.Error())
			os.Exit(-1)
		}
		rest.Serve()

	case "develop":
		if len(args)<2 {
			fmt.Fprintf(logWriter, "No input files given\n")
			os.Exit(-1)
		}
		p, err:=developParameters()
		if err!=nil {
			fmt.Fprintf(logWriter, "Error in parameters: %s\n", err.Error())
			os.Exit(-1)
		}
		ctx:=compute.NewContext(logWriter)
		fmt.Fprintf(logWriter, "Developing %d file(s) with %d threads and %d MiB physical memory\n",
			len(args)-1, ctx.MaxThreads, totalMiBs)
		for i, fileName:=range args[1:] {
			if err:=developFile(ctx, fileName, i, len(args)-1, p); err!=nil {
				fmt.Fprintf(logWriter, "%s: %s\n", fileName, err.Error())
				os.Exit(-1)
			}
		}
		fmt.Fprintf(logWriter, "Done after %v\n", time.Since(start))

	case "legal":
		fmt.Fprintf(logWriter, "%s\n", legal)

	case "version":
		fmt.Fprintf(logWriter, "Rawlight version %s\n", version)

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(logWriter, "Unknown command %s\n", args[0])
		flag.Usage()
		os.Exit(-1)
	}
}

// Builds development parameters from the parameter file, if any, with
// command line flags applied on top
func developParameters() (*pipeline.DevelopParameters, error) {
	p:=pipeline.NewDevelopParameters()
	if *params!="" {
		var err error
		if p, err=pipeline.LoadParameters(*params); err!=nil { return nil, err }
	}
	p.BayerPattern=*cfa
	p.BlackLevel=float32(*black)
	p.Demosaic=*demosaic
	p.Estimator=*estimator
	p.ExposureMultiplier=float32(*exposure)
	p.RawDenoise=*rawNR
	p.Dither=*dither
	if _, err:=fmt.Sscanf(*gains, "%g,%g,%g,%g",
		&p.ScaleMul[0], &p.ScaleMul[1], &p.ScaleMul[2], &p.ScaleMul[3]); err!=nil {
		return nil, fmt.Errorf("bad gains %q: %w", *gains, err)
	}
	return p, p.Validate()
}

func developFile(ctx *compute.Context, fileName string, index, total int, p *pipeline.DevelopParameters) error {
	raw, err:=rawio.ReadPGM16FromFile(fileName)
	if err!=nil { return err }
	fmt.Fprintf(ctx.Log, "%d of %d: %s, %dx%d mosaic\n", index+1, total, fileName, raw.Width, raw.Height)

	img, err:=pipeline.Develop(ctx, raw, p)
	if err!=nil { return err }

	outName:=*out
	if total>1 {
		ext:=filepath.Ext(outName)
		outName=fmt.Sprintf("%s%04d%s", strings.TrimSuffix(outName, ext), index, ext)
	}
	if err:=rawio.WriteTIFF16ToFile(outName, img); err!=nil { return err }
	fmt.Fprintf(ctx.Log, "Saved %s\n", outName)

	if *png!="" {
		pngName:=*png
		if total>1 {
			ext:=filepath.Ext(pngName)
			pngName=fmt.Sprintf("%s%04d%s", strings.TrimSuffix(pngName, ext), index, ext)
		}
		if err:=rawio.WritePreviewToFile(pngName, img, *pngDim); err!=nil { return err }
		fmt.Fprintf(ctx.Log, "Saved %s\n", pngName)
	}
	return nil
}
