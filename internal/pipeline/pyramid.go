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


package pipeline

import (
	"github.com/mlnoga/rawlight/internal/compute"
	"github.com/mlnoga/rawlight/internal/nlf"
	"github.com/mlnoga/rawlight/internal/raster"
	"github.com/mlnoga/rawlight/internal/stage"
)

// Number of octaves in the denoise pyramid, full, half and quarter
// resolution
const pyramidOctaves = 3

// Multiscale denoise of a YCbCr image. Each octave gets its own noise
// model and denoise pass; reconstruction walks from the coarsest octave
// back up, subtracting at each level the noise revealed by the scale
// below. Returns the reconstructed image and the full-resolution noise
// model for downstream stages
func denoisePyramid(ctx *compute.Context, ycbcr, edges *raster.Image,
	params *DevelopParameters) (*raster.Image, nlf.NLF) {
	est:=params.estimator()

	var levels, gradients, denoised [pyramidOctaves]*raster.Image
	var models [pyramidOctaves]nlf.NLF
	levels[0], gradients[0]=ycbcr, edges
	for i:=1; i<pyramidOctaves; i++ {
		lw, lh:=halfExtent(levels[i-1].Width), halfExtent(levels[i-1].Height)
		levels[i]=raster.NewImage(lw, lh, raster.RGBA)
		stage.RescaleImage(ctx, levels[i-1], levels[i])
		gradients[i]=raster.NewImage(lw, lh, raster.LumaAlpha)
		stage.RescaleImage(ctx, gradients[i-1], gradients[i])
	}

	for i:=0; i<pyramidOctaves; i++ {
		models[i], _=nlf.MeasureYCbCr(ctx, levels[i], gradients[i], params.ExposureMultiplier, est)
		varA:=[3]float32{models[i].A[0], models[i].A[1], models[i].A[2]}
		varB:=[3]float32{models[i].B[0], models[i].B[1], models[i].B[2]}

		denoised[i]=raster.NewImageLike(levels[i])
		dn:=params.Denoise[i]
		if dn.Guided {
			stage.DenoiseImageGuided(ctx, levels[i], varA, varB, denoised[i])
		} else {
			stage.DenoiseImage(ctx, levels[i], gradients[i], varA, varB,
				dn.ThresholdMultipliers, dn.ChromaBoost, dn.GradientBoost, dn.GradientThreshold,
				denoised[i])
		}
	}

	result:=denoised[pyramidOctaves-1]
	for i:=pyramidOctaves-2; i>=0; i-- {
		dn:=params.Denoise[i]
		out:=raster.NewImageLike(denoised[i])
		stage.SubtractNoiseImage(ctx, denoised[i], levels[i+1], result, gradients[i],
			dn.LumaWeight, dn.Sharpening, [2]float32{models[i].A[0], models[i].B[0]}, out)
		result=out
	}
	return result, models[0]
}
