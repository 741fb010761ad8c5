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

// Local tone mapping parameters. Detail weights are per octave in
// LF, MF, HF order; a weight of exactly 1 is the identity and skips
// the octave's guided filter pass entirely
type LTMParameters struct {
	Eps    float32    `json:"eps"    yaml:"eps"`
	Detail [3]float32 `json:"detail" yaml:"detail"`
}

// Guided filter coefficient pass: computes per-pixel (alpha, beta) such
// that alpha*luma+beta is the edge-aware local linear fit of the guide
// image's luma, with eps controlling edge sensitivity
func GuidedFilterAB(ctx *compute.Context, guide *raster.Image, ab *raster.Image, eps float32) {
	ab.MustBe(guide.Width, guide.Height, raster.LumaAlpha, "ab image")

	n:=float32((2*statsRadius + 1) * (2*statsRadius + 1))
	ctx.Dispatch(compute.KGuidedFilterAB, ab.Width, ab.Height, func(x, y int) {
		var sum, sum2 float32
		for wy:=-statsRadius; wy<=statsRadius; wy++ {
			for wx:=-statsRadius; wx<=statsRadius; wx++ {
				v:=guide.AtClamped(x+wx, y+wy, 0)
				sum+=v
				sum2+=v*v
			}
		}
		m:=sum/n
		variance:=sum2/n - m*m
		if variance<0 { variance=0 }
		alpha:=variance/(variance+eps)
		o:=ab.Offset(x, y)
		ab.Pix[o+0]=alpha
		ab.Pix[o+1]=(1-alpha)*m
	})
}

// Box filters the guided filter coefficients, smoothing the piecewise
// linear fits into a continuous field
func BoxFilterGF(ctx *compute.Context, ab, abMean *raster.Image) {
	raster.MustMatch(ab, abMean, "ab image", "ab mean image")

	n:=float32((2*statsRadius + 1) * (2*statsRadius + 1))
	ctx.Dispatch(compute.KBoxFilterGF, abMean.Width, abMean.Height, func(x, y int) {
		var sumA, sumB float32
		for wy:=-statsRadius; wy<=statsRadius; wy++ {
			for wx:=-statsRadius; wx<=statsRadius; wx++ {
				sumA+=ab.AtClamped(x+wx, y+wy, 0)
				sumB+=ab.AtClamped(x+wx, y+wy, 1)
			}
		}
		o:=abMean.Offset(x, y)
		abMean.Pix[o+0]=sumA/n
		abMean.Pix[o+1]=sumB/n
	})
}

// Computes the local tone mapping luma mask from three octave guide
// images (LF, MF, HF order). Octaves whose detail weight is not exactly 1
// get a guided filter pass producing alpha/beta coefficients, which are
// box filtered; the final blend raises the ratio of each pixel's luma to
// its octave-filtered base to detail-1, guarded by the noise model so
// noise in deep shadows is not amplified, and by the YCbCr-to-sRGB matrix
// so boosted highlights stay in gamut
func LocalToneMappingMask(ctx *compute.Context, input *raster.Image,
	guide, ab, abMean [3]*raster.Image, params LTMParameters,
	ycbcrToSrgb raster.Matrix3x3, nlfParam [2]float32, output *raster.Image) {
	output.MustBe(input.Width, input.Height, raster.Luma, "ltm mask image")
	for i:=0; i<3; i++ {
		ab[i].MustBe(guide[i].Width, guide[i].Height, raster.LumaAlpha, "ab image")
		abMean[i].MustBe(guide[i].Width, guide[i].Height, raster.LumaAlpha, "ab mean image")
	}

	for i:=0; i<3; i++ {
		if i==0 || params.Detail[i]!=1 {
			GuidedFilterAB(ctx, guide[i], ab[i], params.Eps)
			BoxFilterGF(ctx, ab[i], abMean[i])
		}
	}

	sampler:=raster.Sampler{Address: raster.AddressClamp, Filter: raster.FilterLinear}
	ctx.Dispatch(compute.KLocalToneMappingMask, output.Width, output.Height, func(x, y int) {
		yv:=input.At(x, y, 0)
		guarded:=max32(yv, 1e-4)

		// noise floor: fade detail boost out below ~4 sigma
		sigma:=float32(math.Sqrt(float64(nlfParam[0] + nlfParam[1]*guarded)))
		noiseFade:=min32(1, guarded/(4*sigma+1e-8))

		mask:=float32(1)
		for i:=0; i<3; i++ {
			d:=params.Detail[i]
			if i!=0 && d==1 { continue }
			cx:=(float32(x)+0.5)*float32(abMean[i].Width)/float32(output.Width) - 0.5
			cy:=(float32(y)+0.5)*float32(abMean[i].Height)/float32(output.Height) - 0.5
			alpha:=sampler.Sample(abMean[i], cx, cy, 0)
			beta:=sampler.Sample(abMean[i], cx, cy, 1)
			base:=max32(alpha*yv+beta, 1e-4)
			exponent:=(d - 1) * noiseFade
			mask*=float32(math.Pow(float64(guarded/base), float64(exponent)))
		}

		// keep boosted pixels inside the sRGB gamut
		if mask>1 {
			rgb:=ycbcrToSrgb.MulVec([3]float32{yv * mask, input.At(x, y, 1), input.At(x, y, 2)})
			maxC:=max32(rgb[0], max32(rgb[1], rgb[2]))
			if maxC>1 {
				mask/=maxC
			}
		}
		output.Set(x, y, 0, mask)
	})
}

func max32(a, b float32) float32 {
	if a>b { return a }
	return b
}
