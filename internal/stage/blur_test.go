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
	"testing"
	"github.com/mlnoga/rawlight/internal/raster"
)

// For any radius, optimized tap weights must sum to one and the tap
// count must not exceed the naive full kernel's
func TestGaussianKernelBilinearWeights(t *testing.T) {
	for _, radius:=range []float32{0.7, 1, 1.5, 2.5, 4, 7.3} {
		taps:=GaussianKernelBilinearWeights(radius)
		_, size:=gaussianKernelWeights(radius)

		sum:=float32(0)
		for _, tap:=range taps { sum+=tap.W }
		if !near(sum, 1, 1e-5) {
			t.Errorf("radius %.1f: tap weights sum to %f; want 1", radius, sum)
		}
		if len(taps)>size*size {
			t.Errorf("radius %.1f: %d optimized taps exceed naive %d", radius, len(taps), size*size)
		}
		if len(taps)>size*((size+1)/2) {
			t.Errorf("radius %.1f: %d optimized taps; want at most %d", radius, len(taps), size*((size+1)/2))
		}
	}
}

// Blurring a constant image must return the constant
func TestGaussianBlurConstant(t *testing.T) {
	ctx:=newTestContext()
	input:=raster.NewImage(12, 12, raster.RGBA)
	for i:=range input.Pix { input.Pix[i]=0.37 }
	output:=raster.NewImage(12, 12, raster.RGBA)
	GaussianBlur(ctx, input, 2.0, output)
	for i, v:=range output.Pix {
		if !near(v, 0.37, 1e-4) { t.Fatalf("pixel %d=%f; want 0.37", i, v) }
	}
}

// Blur must reduce the amplitude of an impulse without destroying its mass
func TestGaussianBlurImpulse(t *testing.T) {
	ctx:=newTestContext()
	input:=raster.NewImage(17, 17, raster.RGBA)
	input.Set(8, 8, 0, 1)
	output:=raster.NewImage(17, 17, raster.RGBA)
	GaussianBlur(ctx, input, 2.0, output)

	if output.At(8, 8, 0)>=1 { t.Errorf("impulse not attenuated: %f", output.At(8, 8, 0)) }
	if output.At(8, 8, 0)<=0 { t.Errorf("impulse vanished: %f", output.At(8, 8, 0)) }
	mass:=float32(0)
	for y:=0; y<17; y++ {
		for x:=0; x<17; x++ { mass+=output.At(x, y, 0) }
	}
	if !near(mass, 1, 0.05) { t.Errorf("impulse mass=%f; want ~1", mass) }
}

func TestGaussianBlurSobelShapes(t *testing.T) {
	ctx:=newTestContext()
	raw:=raster.NewImage(16, 16, raster.Luma)
	for i:=range raw.Pix { raw.Pix[i]=0.2 }
	sobel:=raster.NewImage(16, 16, raster.RGBA)
	RawImageSobel(ctx, raw, sobel)
	out:=raster.NewImage(16, 16, raster.LumaAlpha)
	GaussianBlurSobel(ctx, raw, sobel, [2]float32{1e-6, 1e-6}, 1.5, 4.0, out)

	// flat image: no gradient anywhere after noise thresholding
	for i, v:=range out.Pix {
		if v!=0 { t.Fatalf("flat field gradient %d=%f; want 0", i, v) }
	}
}
