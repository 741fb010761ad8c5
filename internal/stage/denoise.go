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

func expWeight(diff, variance float32) float32 {
	if variance<1e-12 { variance=1e-12 }
	return float32(math.Exp(float64(-0.5 * diff * diff / variance)))
}

// Edge-preserving multiscale denoise for YCbCr images. Range weights are
// derived from the per-channel noise model variance a+b*Y scaled by the
// threshold multipliers; chromaBoost widens the chroma acceptance window.
// Luma smoothing is strengthened where the gradient magnitude stays below
// gradientThreshold, controlled by gradientBoost.
func DenoiseImage(ctx *compute.Context, input, gradient *raster.Image,
	varA, varB, thresholdMultipliers [3]float32, chromaBoost, gradientBoost, gradientThreshold float32,
	output *raster.Image) {
	gradient.MustBe(input.Width, input.Height, raster.LumaAlpha, "gradient image")
	raster.MustMatch(input, output, "input image", "output image")

	ctx.Dispatch(compute.KDenoiseImage, output.Width, output.Height, func(x, y int) {
		yv:=input.At(x, y, 0)
		var sigma2 [3]float32
		for c:=0; c<3; c++ {
			s:=(varA[c] + varB[c]*yv) * thresholdMultipliers[c]
			if c>0 { s*=chromaBoost }
			sigma2[c]=s
		}
		if gradientBoost>0 && gradientThreshold>0 {
			g:=gradientMag(gradient, x, y)
			if g<gradientThreshold {
				// flat area: widen the luma acceptance window
				sigma2[0]*=1 + gradientBoost*(gradientThreshold-g)/gradientThreshold
			}
		}

		var sumW, sumV [3]float32
		for wy:=-statsRadius; wy<=statsRadius; wy++ {
			for wx:=-statsRadius; wx<=statsRadius; wx++ {
				for c:=0; c<3; c++ {
					v:=input.AtClamped(x+wx, y+wy, c)
					w:=expWeight(v-input.At(x, y, c), sigma2[c])
					sumW[c]+=w
					sumV[c]+=w*v
				}
			}
		}
		o:=output.Offset(x, y)
		for c:=0; c<3; c++ {
			output.Pix[o+c]=sumV[c]/sumW[c]
		}
		output.Pix[o+3]=input.Pix[input.Offset(x, y)+3]
	})
}

// Guided-filter denoise variant with no gradient input. Each channel is
// smoothed by a self-guided filter whose epsilon is the modeled noise
// variance at the local mean
func DenoiseImageGuided(ctx *compute.Context, input *raster.Image, varA, varB [3]float32, output *raster.Image) {
	raster.MustMatch(input, output, "input image", "output image")

	n:=float32((2*statsRadius + 1) * (2*statsRadius + 1))
	ctx.Dispatch(compute.KDenoiseImageGuided, output.Width, output.Height, func(x, y int) {
		o:=output.Offset(x, y)
		for c:=0; c<3; c++ {
			var sum, sum2 float32
			for wy:=-statsRadius; wy<=statsRadius; wy++ {
				for wx:=-statsRadius; wx<=statsRadius; wx++ {
					v:=input.AtClamped(x+wx, y+wy, c)
					sum+=v
					sum2+=v*v
				}
			}
			m:=sum/n
			variance:=sum2/n - m*m
			if variance<0 { variance=0 }
			eps:=varA[c] + varB[c]*m
			a:=variance/(variance+eps+1e-12)
			output.Pix[o+c]=a*input.At(x, y, c) + (1-a)*m
		}
		output.Pix[o+3]=input.Pix[input.Offset(x, y)+3]
	})
}

// Despeckle for YCbCr images: isolated luma outliers are clamped to the
// second-smallest/second-largest neighbor, with the correction limited
// by the noise model; chroma channels get a 3x3 median
func DespeckleImage(ctx *compute.Context, input *raster.Image, varA, varB [3]float32, output *raster.Image) {
	raster.MustMatch(input, output, "input image", "output image")

	ctx.Dispatch(compute.KDespeckleImage, output.Width, output.Height, func(x, y int) {
		o:=output.Offset(x, y)

		var neighbors [9]float32
		gather3x3(input, x, y, 0, &neighbors)
		lo, hi:=secondMinMax(&neighbors)
		yv:=input.At(x, y, 0)
		clamped:=yv
		if clamped<lo { clamped=lo }
		if clamped>hi { clamped=hi }
		// only correct excursions beyond the expected noise amplitude
		sigma:=float32(math.Sqrt(float64(varA[0] + varB[0]*yv)))
		if abs32(clamped-yv)<=sigma { clamped=yv }
		output.Pix[o+0]=clamped

		for c:=1; c<3; c++ {
			gather3x3(input, x, y, c, &neighbors)
			output.Pix[o+c]=median9(&neighbors)
		}
		output.Pix[o+3]=input.Pix[input.Offset(x, y)+3]
	})
}

// Raw-domain denoise for the quad-packed representation. Plain range
// filter per packed channel with fixed variance from the raw noise model
func DenoiseRawRGBA(ctx *compute.Context, input *raster.Image, rawVariance [4]float32, output *raster.Image) {
	raster.MustMatch(input, output, "input image", "output image")

	ctx.Dispatch(compute.KDenoiseRawRGBA, output.Width, output.Height, func(x, y int) {
		o:=output.Offset(x, y)
		for c:=0; c<4; c++ {
			center:=input.At(x, y, c)
			var sumW, sumV float32
			for wy:=-statsRadius; wy<=statsRadius; wy++ {
				for wx:=-statsRadius; wx<=statsRadius; wx++ {
					v:=input.AtClamped(x+wx, y+wy, c)
					w:=expWeight(v-center, rawVariance[c])
					sumW+=w
					sumV+=w*v
				}
			}
			output.Pix[o+c]=sumV/sumW
		}
	})
}

// Raw-domain despeckle: clamps each packed channel to the second
// smallest/largest of its 3x3 neighborhood when the excursion exceeds
// the modeled noise amplitude
func DespeckleRawRGBA(ctx *compute.Context, input *raster.Image, rawVariance [4]float32, output *raster.Image) {
	raster.MustMatch(input, output, "input image", "output image")

	ctx.Dispatch(compute.KDespeckleRawRGBA, output.Width, output.Height, func(x, y int) {
		o:=output.Offset(x, y)
		var neighbors [9]float32
		for c:=0; c<4; c++ {
			gather3x3(input, x, y, c, &neighbors)
			lo, hi:=secondMinMax(&neighbors)
			v:=input.At(x, y, c)
			clamped:=v
			if clamped<lo { clamped=lo }
			if clamped>hi { clamped=hi }
			sigma:=float32(math.Sqrt(float64(rawVariance[c])))
			if abs32(clamped-v)<=sigma { clamped=v }
			output.Pix[o+c]=clamped
		}
	})
}

// Reconstructs a denoised-but-detail-preserving image by subtracting the
// noise component estimated between a coarser pyramid level and its
// denoised version. input is the current level; input1/inputDenoised1 are
// the half-resolution coarser level, sampled bilinearly. The luma
// subtraction is gated by the noise model so genuine detail survives,
// and sharpening rescales the retained luma detail near edges
func SubtractNoiseImage(ctx *compute.Context, input, input1, inputDenoised1, gradient *raster.Image,
	lumaWeight, sharpening float32, nlfParam [2]float32, output *raster.Image) {
	raster.MustMatch(input, output, "input image", "output image")
	raster.MustMatch(input1, inputDenoised1, "coarse image", "denoised coarse image")
	gradient.MustBe(input.Width, input.Height, raster.LumaAlpha, "gradient image")

	sampler:=raster.Sampler{Address: raster.AddressClamp, Filter: raster.FilterLinear}
	ctx.Dispatch(compute.KSubtractNoiseImage, output.Width, output.Height, func(x, y int) {
		// map to coarse level pixel centers
		cx:=(float32(x)+0.5)*float32(input1.Width)/float32(input.Width) - 0.5
		cy:=(float32(y)+0.5)*float32(input1.Height)/float32(input.Height) - 0.5

		yv:=input.At(x, y, 0)
		o:=output.Offset(x, y)
		for c:=0; c<3; c++ {
			noise:=sampler.Sample(input1, cx, cy, c) - sampler.Sample(inputDenoised1, cx, cy, c)
			w:=float32(1)
			if c==0 {
				sigma2:=nlfParam[0] + nlfParam[1]*yv
				w=lumaWeight*expWeight(noise, sigma2)
			}
			output.Pix[o+c]=input.At(x, y, c) - w*noise
		}
		if sharpening!=1 {
			// boost retained luma detail near edges only
			base:=sampler.Sample(inputDenoised1, cx, cy, 0)
			edge:=gradientMag(gradient, x, y)
			k:=1 + (sharpening-1)*min32(1, edge*4)
			output.Pix[o+0]=base + k*(output.Pix[o+0]-base)
		}
		output.Pix[o+3]=input.Pix[input.Offset(x, y)+3]
	})
}

// Fused-image variant of the noise subtraction, with no weighting:
// restores the detail delta between a frame and its denoised version
// on top of the fused result
func SubtractNoiseFusedImage(ctx *compute.Context, input, input1, inputDenoised1, output *raster.Image) {
	raster.MustMatch(input, output, "input image", "output image")
	raster.MustMatch(input1, inputDenoised1, "detail image", "denoised detail image")

	sampler:=raster.Sampler{Address: raster.AddressClamp, Filter: raster.FilterLinear}
	ctx.Dispatch(compute.KSubtractNoiseFusedImage, output.Width, output.Height, func(x, y int) {
		cx:=(float32(x)+0.5)*float32(input1.Width)/float32(input.Width) - 0.5
		cy:=(float32(y)+0.5)*float32(input1.Height)/float32(input.Height) - 0.5
		o:=output.Offset(x, y)
		for c:=0; c<3; c++ {
			detail:=sampler.Sample(input1, cx, cy, c) - sampler.Sample(inputDenoised1, cx, cy, c)
			output.Pix[o+c]=input.At(x, y, c) + detail
		}
		output.Pix[o+3]=input.Pix[input.Offset(x, y)+3]
	})
}

func gather3x3(img *raster.Image, x, y, c int, out *[9]float32) {
	i:=0
	for wy:=-1; wy<=1; wy++ {
		for wx:=-1; wx<=1; wx++ {
			out[i]=img.AtClamped(x+wx, y+wy, c)
			i++
		}
	}
}

// Second smallest and second largest of 9 values
func secondMinMax(v *[9]float32) (lo, hi float32) {
	min1, min2:=float32(math.MaxFloat32), float32(math.MaxFloat32)
	max1, max2:=float32(-math.MaxFloat32), float32(-math.MaxFloat32)
	for _, x:=range v {
		if x<min1 { min2=min1; min1=x } else if x<min2 { min2=x }
		if x>max1 { max2=max1; max1=x } else if x>max2 { max2=x }
	}
	return min2, max2
}

// Median of 9 values by insertion sort on a local copy
func median9(v *[9]float32) float32 {
	s:=*v
	for i:=1; i<9; i++ {
		x:=s[i]
		j:=i-1
		for j>=0 && s[j]>x {
			s[j+1]=s[j]
			j--
		}
		s[j+1]=x
	}
	return s[4]
}

func min32(a, b float32) float32 {
	if a<b { return a }
	return b
}
