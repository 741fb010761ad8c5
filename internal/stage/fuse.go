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
	"github.com/mlnoga/rawlight/internal/compute"
	"github.com/mlnoga/rawlight/internal/raster"
)

// Multi-frame fusion step. Warps the new frame into the reference frame's
// geometry with the given homography, then accumulates it onto the running
// fused estimate. The blend weight compares the warped sample against the
// reference through the noise model, so misaligned or moving content falls
// back to the reference; confidence in the accumulated estimate grows
// monotonically with the count of frames already fused
func FuseFrames(ctx *compute.Context, reference, gradient, input, previousFused *raster.Image,
	homography raster.Matrix3x3, varA, varB [3]float32, fusedFrames int, newFused *raster.Image) {
	raster.MustMatch(reference, newFused, "reference image", "fused image")
	raster.MustMatch(reference, previousFused, "reference image", "previous fused image")
	gradient.MustBe(reference.Width, reference.Height, raster.LumaAlpha, "gradient image")

	sampler:=raster.Sampler{Address: raster.AddressClamp, Filter: raster.FilterLinear}
	n:=float32(fusedFrames)
	ctx.Dispatch(compute.KFuseFrames, newFused.Width, newFused.Height, func(x, y int) {
		wx, wy:=homography.Project(float32(x), float32(y))

		refY:=reference.At(x, y, 0)
		sigma2:=varA[0] + varB[0]*refY
		warpedY:=sampler.Sample(input, wx, wy, 0)
		w:=expWeight(warpedY-refY, sigma2)

		// trust alignment less on edges, where small errors cost detail
		edge:=gradientMag(gradient, x, y)
		w/=1 + 4*edge

		o:=newFused.Offset(x, y)
		for c:=0; c<3; c++ {
			warped:=sampler.Sample(input, wx, wy, c)
			blended:=w*warped + (1-w)*reference.At(x, y, c)
			newFused.Pix[o+c]=(n*previousFused.At(x, y, c) + blended)/(n + 1)
		}
		newFused.Pix[o+3]=reference.Pix[reference.Offset(x, y)+3]
	})
}
