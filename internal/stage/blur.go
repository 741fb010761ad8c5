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
	"math"
	"github.com/mlnoga/rawlight/internal/compute"
	"github.com/mlnoga/rawlight/internal/raster"
)

// A single convolution tap: weight and fractional sample offset.
// Fractional offsets let one bilinear texture fetch read two pixels
type ConvTap struct {
	W float32
	X float32
	Y float32
}

// Builds the naive 2-D Gaussian tap grid for the given radius,
// normalized so the weights sum to one. Kernel size is ceil(2*radius),
// grown to the next odd number
func gaussianKernelWeights(radius float32) (weights []float32, size int) {
	size=int(math.Ceil(float64(2 * radius)))
	if size%2==0 { size++ }
	weights=make([]float32, size*size)
	h:=size/2
	sum:=float32(0)
	for y:=-h; y<=h; y++ {
		for x:=-h; x<=h; x++ {
			w:=float32(math.Exp(float64(-float32(x*x+y*y) / (2 * radius * radius))))
			weights[(y+h)*size+(x+h)]=w
			sum+=w
		}
	}
	for i:=range weights { weights[i]/=sum }
	return weights, size
}

// Builds the sampled-convolution tap list for a Gaussian of the given
// radius, merging horizontally adjacent taps into single bilinear
// fetches: two taps (w0 at x) and (w1 at x+1) combine into one tap of
// weight w0+w1 at x+w1/(w0+w1). The result has at most size*ceil(size/2)
// taps versus size*size naive, preserves the weight sum, and is immutable
// once built
func GaussianKernelBilinearWeights(radius float32) []ConvTap {
	weights, size:=gaussianKernelWeights(radius)
	h:=size/2

	taps:=make([]ConvTap, 0, size*((size+1)/2))
	for y:=-h; y<=h; y++ {
		for x:=-h; x<=h; x+=2 {
			w0:=weights[(y+h)*size+(x+h)]
			if x+1>h {
				taps=append(taps, ConvTap{w0, float32(x), float32(y)})
				continue
			}
			w1:=weights[(y+h)*size+(x+1+h)]
			if w0+w1<=0 {
				continue
			}
			taps=append(taps, ConvTap{w0 + w1, float32(x) + w1/(w0+w1), float32(y)})
		}
	}
	return taps
}

// Gaussian blur of an RGBA image by sampled convolution with
// bilinear-optimized taps. The tap list is built once per call and
// reused across the whole extent
func GaussianBlur(ctx *compute.Context, input *raster.Image, radius float32, output *raster.Image) {
	raster.MustMatch(input, output, "input image", "output image")

	taps:=GaussianKernelBilinearWeights(radius)
	sampler:=raster.Sampler{Address: raster.AddressClamp, Filter: raster.FilterLinear}
	ctx.Dispatch(compute.KSampledConvolution, output.Width, output.Height, func(x, y int) {
		o:=output.Offset(x, y)
		var sum [4]float32
		for _, t:=range taps {
			fx, fy:=float32(x)+t.X, float32(y)+t.Y
			for c:=0; c<4; c++ {
				sum[c]+=t.W * sampler.Sample(input, fx, fy, c)
			}
		}
		for c:=0; c<4; c++ { output.Pix[o+c]=sum[c] }
	})
}

// Noise-suppressed gradient image for the denoise stages: the Sobel
// magnitude is blurred at two radii, thresholded against the raw noise
// model amplitude at the local signal level, and written as a luma+alpha
// pair (small-radius detail gradient, large-radius area gradient)
func GaussianBlurSobel(ctx *compute.Context, raw, sobel *raster.Image,
	rawNoiseModel [2]float32, radius1, radius2 float32, output *raster.Image) {
	sobel.MustBe(raw.Width, raw.Height, raster.RGBA, "sobel image")
	output.MustBe(raw.Width, raw.Height, raster.LumaAlpha, "gradient output")

	taps1:=GaussianKernelBilinearWeights(radius1)
	taps2:=GaussianKernelBilinearWeights(radius2)
	sampler:=raster.Sampler{Address: raster.AddressClamp, Filter: raster.FilterLinear}

	ctx.Dispatch(compute.KSampledConvolutionSobel, output.Width, output.Height, func(x, y int) {
		var small, large float32
		for _, t:=range taps1 {
			small+=t.W * sampler.Sample(sobel, float32(x)+t.X, float32(y)+t.Y, 2)
		}
		for _, t:=range taps2 {
			large+=t.W * sampler.Sample(sobel, float32(x)+t.X, float32(y)+t.Y, 2)
		}
		// gradients below the noise amplitude are not edges
		sigma:=float32(math.Sqrt(float64(rawNoiseModel[0] + rawNoiseModel[1]*raw.At(x, y, 0))))
		small-=4*sigma
		if small<0 { small=0 }
		large-=4*sigma
		if large<0 { large=0 }

		o:=output.Offset(x, y)
		output.Pix[o+0]=small
		output.Pix[o+1]=large
	})
}
