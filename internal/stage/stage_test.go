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
	"math/rand"
	"testing"
	"github.com/mlnoga/rawlight/internal/raster"
)

func TestTransformImageRoundTrip(t *testing.T) {
	ctx:=newTestContext()
	input:=raster.NewImage(8, 8, raster.RGBA)
	rng:=rand.New(rand.NewSource(42))
	for i:=range input.Pix { input.Pix[i]=rng.Float32() }

	ycbcr:=raster.NewImage(8, 8, raster.RGBA)
	TransformImage(ctx, input, ycbcr, RGBToYCbCrMatrix())
	back:=raster.NewImage(8, 8, raster.RGBA)
	TransformImage(ctx, ycbcr, back, YCbCrToRGBMatrix())

	for i:=range input.Pix {
		if !near(input.Pix[i], back.Pix[i], 1e-3) {
			t.Fatalf("pixel %d: roundtrip %f; want %f", i, back.Pix[i], input.Pix[i])
		}
	}
}

// Denoising a noisy flat field must reduce variance and preserve the mean
func TestDenoiseImageFlatField(t *testing.T) {
	ctx:=newTestContext()
	width, height:=32, 32
	input:=raster.NewImage(width, height, raster.RGBA)
	rng:=rand.New(rand.NewSource(7))
	sigma:=float32(0.02)
	for y:=0; y<height; y++ {
		for x:=0; x<width; x++ {
			o:=input.Offset(x, y)
			input.Pix[o+0]=0.3 + sigma*float32(rng.NormFloat64())
			input.Pix[o+1]=sigma*float32(rng.NormFloat64())
			input.Pix[o+2]=sigma*float32(rng.NormFloat64())
		}
	}
	gradient:=raster.NewImage(width, height, raster.LumaAlpha) // zero gradient

	output:=raster.NewImage(width, height, raster.RGBA)
	variance:=sigma*sigma
	DenoiseImage(ctx, input, gradient,
		[3]float32{variance, variance, variance}, [3]float32{0, 0, 0}, [3]float32{1, 1, 1},
		1.0, 0, 0, output)

	varIn:=channelVariance(input, 0)
	varOut:=channelVariance(output, 0)
	if varOut>=varIn*0.8 { t.Errorf("variance in=%g out=%g; want meaningful reduction", varIn, varOut) }

	meanIn:=channelMean(input, 0)
	meanOut:=channelMean(output, 0)
	if !near(meanIn, meanOut, 0.002) { t.Errorf("mean in=%f out=%f; want preserved", meanIn, meanOut) }
}

func TestDenoiseImageGuidedFlatField(t *testing.T) {
	ctx:=newTestContext()
	width, height:=32, 32
	input:=raster.NewImage(width, height, raster.RGBA)
	rng:=rand.New(rand.NewSource(8))
	sigma:=float32(0.02)
	for i:=0; i<width*height; i++ {
		input.Pix[i*4+0]=0.3 + sigma*float32(rng.NormFloat64())
	}
	output:=raster.NewImage(width, height, raster.RGBA)
	variance:=sigma*sigma
	DenoiseImageGuided(ctx, input, [3]float32{variance, variance, variance}, [3]float32{0, 0, 0}, output)

	if v:=channelVariance(output, 0); v>=channelVariance(input, 0)*0.8 {
		t.Errorf("guided variance=%g; want reduction from %g", v, channelVariance(input, 0))
	}
}

// A single hot pixel must be removed, the flat surround untouched
func TestDespeckleImage(t *testing.T) {
	ctx:=newTestContext()
	input:=raster.NewImage(9, 9, raster.RGBA)
	for i:=0; i<81; i++ { input.Pix[i*4+0]=0.2 }
	input.Set(4, 4, 0, 0.9)

	output:=raster.NewImage(9, 9, raster.RGBA)
	DespeckleImage(ctx, input, [3]float32{1e-6, 1e-6, 1e-6}, [3]float32{0, 0, 0}, output)

	if !near(output.At(4, 4, 0), 0.2, 1e-4) { t.Errorf("speckle survived: %f", output.At(4, 4, 0)) }
	if !near(output.At(2, 2, 0), 0.2, 1e-6) { t.Errorf("flat pixel disturbed: %f", output.At(2, 2, 0)) }
}

func TestDespeckleRawBlackIsIdentity(t *testing.T) {
	ctx:=newTestContext()
	raw:=raster.NewImage(8, 8, raster.Luma)
	for i:=range raw.Pix { raw.Pix[i]=float32(i)*0.01 }
	out:=raster.NewImage(8, 8, raster.Luma)
	DespeckleRawBlack(ctx, raw, raster.RGGB, out)
	for i:=range raw.Pix {
		if raw.Pix[i]!=out.Pix[i] { t.Fatalf("pixel %d changed: %f vs %f", i, out.Pix[i], raw.Pix[i]) }
	}
}

func TestBlendHighlightsBelowClipUnchanged(t *testing.T) {
	ctx:=newTestContext()
	input:=raster.NewImage(4, 4, raster.RGBA)
	for i:=0; i<16; i++ {
		input.Pix[i*4+0]=0.5
		input.Pix[i*4+1]=0.3
		input.Pix[i*4+2]=0.1
	}
	output:=raster.NewImage(4, 4, raster.RGBA)
	BlendHighlights(ctx, input, 0.9, output)
	for i:=range input.Pix {
		if input.Pix[i]!=output.Pix[i] { t.Fatalf("pixel %d changed below clip", i) }
	}

	// above clip, channels move towards neutral
	input.Set(0, 0, 0, 1.5)
	BlendHighlights(ctx, input, 0.9, output)
	if output.At(0, 0, 0)>=1.5 { t.Errorf("clipped channel not rolled off: %f", output.At(0, 0, 0)) }
	if output.At(0, 0, 2)<=0.1 { t.Errorf("low channel not lifted towards neutral: %f", output.At(0, 0, 2)) }
}

// With all detail weights at 1, the tone mapping mask is the identity
func TestLocalToneMappingMaskIdentity(t *testing.T) {
	ctx:=newTestContext()
	width, height:=16, 16
	input:=raster.NewImage(width, height, raster.RGBA)
	for i:=0; i<width*height; i++ { input.Pix[i*4+0]=0.4 }

	var guide, ab, abMean [3]*raster.Image
	for i, scale:=range []int{4, 2, 1} {
		guide[i]=raster.NewImage(width/scale, height/scale, raster.RGBA)
		RescaleImage(ctx, input, guide[i])
		ab[i]=raster.NewImage(width/scale, height/scale, raster.LumaAlpha)
		abMean[i]=raster.NewImage(width/scale, height/scale, raster.LumaAlpha)
	}

	mask:=raster.NewImage(width, height, raster.Luma)
	params:=LTMParameters{Eps: 0.01, Detail: [3]float32{1, 1, 1}}
	LocalToneMappingMask(ctx, input, guide, ab, abMean, params, YCbCrToRGBMatrix(), [2]float32{1e-6, 1e-6}, mask)

	for i, v:=range mask.Pix {
		if !near(v, 1, 1e-4) { t.Fatalf("mask %d=%f; want 1", i, v) }
	}
}

func TestFuseFramesIdenticalInput(t *testing.T) {
	ctx:=newTestContext()
	width, height:=12, 10
	ref:=raster.NewImage(width, height, raster.RGBA)
	for i:=0; i<width*height; i++ {
		ref.Pix[i*4+0]=0.3
		ref.Pix[i*4+1]=0.1
		ref.Pix[i*4+2]=-0.05
	}
	gradient:=raster.NewImage(width, height, raster.LumaAlpha)
	variance:=[3]float32{1e-4, 1e-4, 1e-4}

	// first frame: previous fused estimate is the reference itself
	out:=raster.NewImage(width, height, raster.RGBA)
	FuseFrames(ctx, ref, gradient, ref, ref, raster.Identity3x3(), variance, [3]float32{0, 0, 0}, 1, out)
	for y:=0; y<height; y++ {
		for x:=0; x<width; x++ {
			for c:=0; c<3; c++ {
				if !near(out.At(x, y, c), ref.At(x, y, c), 1e-5) {
					t.Fatalf("fusing identical frames changed (%d,%d,%d): %f vs %f", x, y, c, out.At(x, y, c), ref.At(x, y, c))
				}
			}
		}
	}
}

func TestRescaleImageConstant(t *testing.T) {
	ctx:=newTestContext()
	input:=raster.NewImage(16, 16, raster.RGBA)
	for i:=range input.Pix { input.Pix[i]=0.6 }
	output:=raster.NewImage(7, 5, raster.RGBA)
	RescaleImage(ctx, input, output)
	for i, v:=range output.Pix {
		if !near(v, 0.6, 1e-5) { t.Fatalf("pixel %d=%f; want 0.6", i, v) }
	}
}

func TestSubtractNoiseFusedImage(t *testing.T) {
	ctx:=newTestContext()
	width, height:=8, 8
	input:=raster.NewImage(width, height, raster.RGBA)
	in1:=raster.NewImage(width/2, height/2, raster.RGBA)
	den1:=raster.NewImage(width/2, height/2, raster.RGBA)
	for i:=0; i<width*height; i++ { input.Pix[i*4]=0.5 }
	for i:=0; i<width*height/4; i++ {
		in1.Pix[i*4]=0.3
		den1.Pix[i*4]=0.2
	}
	out:=raster.NewImage(width, height, raster.RGBA)
	SubtractNoiseFusedImage(ctx, input, in1, den1, out)
	// detail delta of 0.1 restored on top of each pixel
	for y:=0; y<height; y++ {
		for x:=0; x<width; x++ {
			if !near(out.At(x, y, 0), 0.6, 1e-4) {
				t.Fatalf("(%d,%d)=%f; want 0.6", x, y, out.At(x, y, 0))
			}
		}
	}
}

func TestBlueNoiseDither(t *testing.T) {
	ctx:=newTestContext()
	input:=raster.NewImage(16, 16, raster.RGBA)
	for i:=0; i<256; i++ { input.Pix[i*4]=0.5 }
	noise:=raster.NewGray16(4, 4)
	for i:=range noise.Pix { noise.Pix[i]=uint16((i*65535)/15) }

	output:=raster.NewImage(16, 16, raster.RGBA)
	BlueNoise(ctx, input, noise, [2]float32{1e-4, 0}, output)

	// dither tiles with period 4
	if output.At(0, 0, 0)!=output.At(4, 0, 0) || output.At(1, 2, 0)!=output.At(5, 6, 0) {
		t.Errorf("dither texture does not tile with repeat addressing")
	}
	// amplitude bounded by the noise model
	for i:=0; i<256; i++ {
		if d:=output.Pix[i*4]-0.5; d< -0.006 || d>0.006 {
			t.Fatalf("dither amplitude %f out of bounds", d)
		}
	}
}

func channelMean(img *raster.Image, c int) float32 {
	sum:=float32(0)
	for y:=0; y<img.Height; y++ {
		for x:=0; x<img.Width; x++ { sum+=img.At(x, y, c) }
	}
	return sum/float32(img.Width*img.Height)
}

func channelVariance(img *raster.Image, c int) float32 {
	m:=channelMean(img, c)
	sum:=float32(0)
	for y:=0; y<img.Height; y++ {
		for x:=0; x<img.Width; x++ {
			d:=img.At(x, y, c)-m
			sum+=d*d
		}
	}
	return sum/float32(img.Width*img.Height)
}
