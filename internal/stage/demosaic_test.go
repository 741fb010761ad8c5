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


package stage

import (
	"io/ioutil"
	"math"
	"testing"
	"github.com/mlnoga/rawlight/internal/compute"
	"github.com/mlnoga/rawlight/internal/raster"
)

func newTestContext() *compute.Context {
	ctx:=compute.NewContext(ioutil.Discard)
	ctx.MaxThreads=1
	return ctx
}

func near(a, b, tol float32) bool {
	return float32(math.Abs(float64(a-b)))<=tol
}

// Scale+debayer of a known 4x4 RGGB pattern with known black level and
// per-channel gains must reproduce the ground-truth RGB at each pixel
func TestScaleAndFastDebayerGroundTruth(t *testing.T) {
	ctx:=newTestContext()
	raw:=raster.NewGray16(4, 4)
	// uniform quads: R=0.2, G=0.3, B=0.4 before black level and gain
	blackLevel:=float32(0.1)
	rf:=float32(0.2 + 0.1)
	gf:=float32(0.3 + 0.1)
	bf:=float32(0.4 + 0.1)
	rv:=uint16(rf * 65535)
	gv:=uint16(gf * 65535)
	bv:=uint16(bf * 65535)
	for qy:=0; qy<2; qy++ {
		for qx:=0; qx<2; qx++ {
			raw.Set(2*qx,   2*qy,   rv)
			raw.Set(2*qx+1, 2*qy,   gv)
			raw.Set(2*qx,   2*qy+1, gv)
			raw.Set(2*qx+1, 2*qy+1, bv)
		}
	}

	scaleMul:=[4]float32{2, 1, 1.5, 1}
	scaled:=raster.NewImage(4, 4, raster.Luma)
	ScaleRawData(ctx, raw, scaled, raster.RGGB, scaleMul, blackLevel)

	rgb:=raster.NewImage(2, 2, raster.RGBA)
	FastDebayer(ctx, scaled, rgb, raster.RGGB)

	tol:=float32(2.0/65535.0)*2
	for y:=0; y<2; y++ {
		for x:=0; x<2; x++ {
			if !near(rgb.At(x, y, 0), 0.2*2, tol) { t.Errorf("R at (%d,%d)=%f; want %f", x, y, rgb.At(x, y, 0), 0.2*2) }
			if !near(rgb.At(x, y, 1), 0.3, tol)   { t.Errorf("G at (%d,%d)=%f; want %f", x, y, rgb.At(x, y, 1), 0.3) }
			if !near(rgb.At(x, y, 2), 0.4*1.5, tol) { t.Errorf("B at (%d,%d)=%f; want %f", x, y, rgb.At(x, y, 2), 0.4*1.5) }
		}
	}
}

func TestFastDebayerShapeContract(t *testing.T) {
	defer func() {
		if recover()==nil { t.Errorf("expected panic on non-half-size output") }
	}()
	ctx:=newTestContext()
	raw:=raster.NewImage(8, 8, raster.Luma)
	rgb:=raster.NewImage(8, 8, raster.RGBA) // wrong: must be 4x4
	FastDebayer(ctx, raw, rgb, raster.RGGB)
}

func TestBayerRGBARoundTrip(t *testing.T) {
	ctx:=newTestContext()
	raw:=raster.NewImage(8, 6, raster.Luma)
	for i:=range raw.Pix { raw.Pix[i]=float32(i)*0.001 }

	for _, pattern:=range []raster.Bayer{raster.RGGB, raster.BGGR} {
		packed:=raster.NewImage(4, 3, raster.RGBA)
		BayerToRawRGBA(ctx, raw, packed, pattern)
		back:=raster.NewImage(8, 6, raster.Luma)
		RawRGBAToBayer(ctx, packed, back, pattern)
		for i:=range raw.Pix {
			if raw.Pix[i]!=back.Pix[i] {
				t.Fatalf("%s: pixel %d: roundtrip %f; want %f", pattern, i, back.Pix[i], raw.Pix[i])
			}
		}
	}
}

// On a uniform image, all demosaic strategies must return the flat color
func TestDemosaicFlatField(t *testing.T) {
	ctx:=newTestContext()
	width, height:=16, 12
	raw:=raster.NewImage(width, height, raster.Luma)
	for i:=range raw.Pix { raw.Pix[i]=0.25 }

	gradient:=raster.NewImage(width, height, raster.LumaAlpha)
	RawImageGradient(ctx, raw, gradient)

	green:=raster.NewImage(width, height, raster.Luma)
	InterpolateGreen(ctx, raw, gradient, green, raster.GRBG, [2]float32{1e-4, 1e-4})
	rgb:=raster.NewImage(width, height, raster.RGBA)
	InterpolateRedBlue(ctx, raw, green, gradient, rgb, raster.GRBG, [2]float32{1e-4, 1e-4}, [2]float32{1e-4, 1e-4})
	rgb2:=raster.NewImage(width, height, raster.RGBA)
	InterpolateRedBlueAtGreen(ctx, rgb, gradient, rgb2, raster.GRBG, [2]float32{1e-4, 1e-4}, [2]float32{1e-4, 1e-4})

	mal:=raster.NewImage(width, height, raster.RGBA)
	Malvar(ctx, raw, mal, raster.GRBG)

	for y:=0; y<height; y++ {
		for x:=0; x<width; x++ {
			for c:=0; c<3; c++ {
				if !near(rgb2.At(x, y, c), 0.25, 1e-5) {
					t.Fatalf("adaptive: channel %d at (%d,%d)=%f; want 0.25", c, x, y, rgb2.At(x, y, c))
				}
				if !near(mal.At(x, y, c), 0.25, 1e-5) {
					t.Fatalf("malvar: channel %d at (%d,%d)=%f; want 0.25", c, x, y, mal.At(x, y, c))
				}
			}
		}
	}
}

// Green interpolation must not average across a sharp vertical edge
func TestInterpolateGreenEdgeAware(t *testing.T) {
	ctx:=newTestContext()
	width, height:=16, 16
	raw:=raster.NewImage(width, height, raster.Luma)
	for y:=0; y<height; y++ {
		for x:=0; x<width; x++ {
			v:=float32(0.1)
			if x>=8 { v=0.5 }
			raw.Set(x, y, 0, v)
		}
	}
	gradient:=raster.NewImage(width, height, raster.LumaAlpha)
	RawImageGradient(ctx, raw, gradient)
	green:=raster.NewImage(width, height, raster.Luma)
	InterpolateGreen(ctx, raw, gradient, green, raster.RGGB, [2]float32{1e-6, 1e-6})

	// red site at (4,4), well left of the edge: all neighbors are 0.1
	if !near(green.At(4, 4, 0), 0.1, 1e-4) { t.Errorf("green left of edge=%f; want 0.1", green.At(4, 4, 0)) }
	// red site at (12,4), right of the edge
	if !near(green.At(12, 4, 0), 0.5, 1e-4) { t.Errorf("green right of edge=%f; want 0.5", green.At(12, 4, 0)) }
}
