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

// Window radius for local noise statistics
const statsRadius = 2

// Textured pixels are excluded from noise statistics; above this Sobel
// magnitude the local variance measures signal, not noise
const statsEdgeThreshold = 0.25

var statsNaN = float32(math.NaN())

// Local noise statistics for a YCbCr image. For each pixel the output
// channels are (local luma mean, luma variance, Cb variance, Cr variance)
// over a (2*statsRadius+1)^2 window. Pixels on edges, as flagged by the
// gradient image, produce NaN statistics and are skipped by the fit.
func YCbCrNoiseStatistics(ctx *compute.Context, input, gradient, stats *raster.Image) {
	if input.Channels!=raster.RGBA { input.MustBe(input.Width, input.Height, raster.RGBA, "input image") }
	gradient.MustBe(input.Width, input.Height, raster.LumaAlpha, "gradient image")
	stats.MustBe(input.Width, input.Height, raster.RGBA, "statistics image")

	ctx.Dispatch(compute.KYCbCrNoiseStatistics, stats.Width, stats.Height, func(x, y int) {
		o:=stats.Offset(x, y)
		if gradientMag(gradient, x, y)>statsEdgeThreshold {
			stats.Pix[o+0]=statsNaN
			stats.Pix[o+1]=statsNaN
			stats.Pix[o+2]=statsNaN
			stats.Pix[o+3]=statsNaN
			return
		}

		var sum, sum2 [3]float32
		n:=float32(0)
		for wy:=-statsRadius; wy<=statsRadius; wy++ {
			for wx:=-statsRadius; wx<=statsRadius; wx++ {
				for c:=0; c<3; c++ {
					v:=input.AtClamped(x+wx, y+wy, c)
					sum[c]+=v
					sum2[c]+=v*v
				}
				n++
			}
		}
		meanY:=sum[0]/n
		stats.Pix[o+0]=meanY
		for c:=0; c<3; c++ {
			stats.Pix[o+1+c]=sum2[c]/n - (sum[c]/n)*(sum[c]/n)
		}
	})
}

// Local noise statistics for the raw Bayer domain, per quad channel.
// Outputs are three half-resolution images holding the local mean,
// variance and excess kurtosis of each packed channel, computed over a
// window of statsRadius quads in each direction. Edge quads produce NaN
func RawNoiseStatistics(ctx *compute.Context, raw *raster.Image, pattern raster.Bayer,
	gradient, mean, variance, kurtosis *raster.Image) {
	mean.MustBe(raw.Width/2, raw.Height/2, raster.RGBA, "mean image")
	variance.MustBe(mean.Width, mean.Height, raster.RGBA, "variance image")
	kurtosis.MustBe(mean.Width, mean.Height, raster.RGBA, "kurtosis image")
	gradient.MustBe(raw.Width, raw.Height, raster.RGBA, "sobel image")

	r, g0, b, g1:=pattern.Offsets()
	sites:=[4]raster.QuadOffset{r, g0, b, g1}

	ctx.Dispatch(compute.KRawNoiseStatistics, mean.Width, mean.Height, func(qx, qy int) {
		om:=mean.Offset(qx, qy)
		ov:=variance.Offset(qx, qy)
		ok:=kurtosis.Offset(qx, qy)

		if gradient.AtClamped(2*qx, 2*qy, 2)>statsEdgeThreshold {
			for c:=0; c<4; c++ {
				mean.Pix[om+c]=statsNaN
				variance.Pix[ov+c]=statsNaN
				kurtosis.Pix[ok+c]=statsNaN
			}
			return
		}

		for c, site:=range sites {
			var s1, s2 float64
			n:=float64(0)
			for wy:=-statsRadius; wy<=statsRadius; wy++ {
				for wx:=-statsRadius; wx<=statsRadius; wx++ {
					v:=float64(raw.AtClamped(2*(qx+wx)+site.X, 2*(qy+wy)+site.Y, 0))
					s1+=v
					s2+=v*v
					n++
				}
			}
			m:=s1/n
			vr:=s2/n - m*m

			// second pass for the fourth central moment
			var s4 float64
			for wy:=-statsRadius; wy<=statsRadius; wy++ {
				for wx:=-statsRadius; wx<=statsRadius; wx++ {
					d:=float64(raw.AtClamped(2*(qx+wx)+site.X, 2*(qy+wy)+site.Y, 0)) - m
					s4+=d*d*d*d
				}
			}
			mean.Pix[om+c]=float32(m)
			variance.Pix[ov+c]=float32(vr)
			if vr>0 {
				kurtosis.Pix[ok+c]=float32(s4/(n*vr*vr) - 3)
			} else {
				kurtosis.Pix[ok+c]=statsNaN
			}
		}
	})
}
