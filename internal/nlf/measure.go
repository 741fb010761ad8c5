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


package nlf

import (
	"github.com/mlnoga/rawlight/internal/compute"
	"github.com/mlnoga/rawlight/internal/raster"
	"github.com/mlnoga/rawlight/internal/stage"
)

// Measures a three channel noise level function for a YCbCr image.
// Local statistics are gathered per pixel, edge pixels are excluded via
// the gradient image, and the chosen estimator fits variance against the
// local luma mean. Results are normalized to unit exposure by scaling
// with the square of the exposure multiplier
func MeasureYCbCr(ctx *compute.Context, input, gradient *raster.Image,
	exposureMultiplier float32, est Estimator) (NLF, FitReport) {
	stats:=raster.NewImage(input.Width, input.Height, raster.RGBA)
	stage.YCbCrNoiseStatistics(ctx, input, gradient, stats)

	s:=&sampleSet{
		channels: 3,
		count:    stats.Width*stats.Height,
		mean:     make([]float64, 3*stats.Width*stats.Height),
		variance: make([]float64, 3*stats.Width*stats.Height),
	}
	for i:=0; i<s.count; i++ {
		o:=4*i
		m:=float64(stats.Pix[o])
		for c:=0; c<3; c++ {
			// luma and chroma variances share the luma mean as abscissa
			s.mean[3*i+c]=m
			s.variance[3*i+c]=float64(stats.Pix[o+1+c])
		}
	}

	n, rep:=fit(ctx, "pyramid", s, est)
	n.Scale(exposureMultiplier*exposureMultiplier)
	return n, rep
}

// Measures a four channel noise level function for a Bayer mosaic, one
// model per quad site. Statistics are gathered per quad; besides the
// edge and range gates, quads whose excess kurtosis falls outside the
// Gaussian band are rejected as defective or clipped. Results are
// normalized to unit exposure
func MeasureRaw(ctx *compute.Context, raw *raster.Image, pattern raster.Bayer,
	sobel *raster.Image, exposureMultiplier float32, est Estimator) (NLF, FitReport) {
	qw, qh:=raw.Width/2, raw.Height/2
	mean:=raster.NewImage(qw, qh, raster.RGBA)
	variance:=raster.NewImage(qw, qh, raster.RGBA)
	kurtosis:=raster.NewImage(qw, qh, raster.RGBA)
	stage.RawNoiseStatistics(ctx, raw, pattern, sobel, mean, variance, kurtosis)

	s:=&sampleSet{
		channels: 4,
		count:    qw*qh,
		mean:     make([]float64, 4*qw*qh),
		variance: make([]float64, 4*qw*qh),
		kurtosis: make([]float64, 4*qw*qh),
	}
	for i:=range s.mean {
		s.mean[i]=float64(mean.Pix[i])
		s.variance[i]=float64(variance.Pix[i])
		s.kurtosis[i]=float64(kurtosis.Pix[i])
	}

	n, rep:=fit(ctx, "raw", s, est)
	n.Scale(exposureMultiplier*exposureMultiplier)
	return n, rep
}

func fit(ctx *compute.Context, tag string, s *sampleSet, est Estimator) (NLF, FitReport) {
	if est==EstimateLMedS {
		return fitLMedS(ctx.Log, tag, s)
	}
	return fitClosedForm(ctx.Log, tag, s)
}
