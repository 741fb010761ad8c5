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
	"errors"
	"fmt"
	"github.com/mlnoga/rawlight/internal/compute"
	"github.com/mlnoga/rawlight/internal/raster"
	"github.com/mlnoga/rawlight/internal/stage"
)

// One frame of an aligned burst: a YCbCr image plus the homography
// mapping reference pixel coordinates into this frame
type Frame struct {
	Image      *raster.Image
	Homography raster.Matrix3x3
}

// Fuses an aligned burst of YCbCr frames into the first frame, reducing
// noise by sqrt of the frame count in static areas. Each frame is warped
// by its homography and blended with a weight that falls off where the
// warped signal disagrees with the reference beyond the noise model, or
// near edges where alignment errors cost detail. A final coarse-scale
// noise subtraction removes the residual low-frequency noise the
// per-pixel blend cannot reach
func FuseExposures(ctx *compute.Context, frames []Frame, varA, varB [3]float32) (*raster.Image, error) {
	if len(frames)==0 { return nil, errors.New("no frames to fuse") }
	ref:=frames[0].Image

	luma:=raster.NewImage(ref.Width, ref.Height, raster.Luma)
	stage.ConvertToGrayscale(ctx, ref, luma, [3]float32{1, 0, 0})
	gradient:=raster.NewImage(ref.Width, ref.Height, raster.LumaAlpha)
	stage.RawImageGradient(ctx, luma, gradient)

	fused:=raster.NewImageLike(ref)
	copy(fused.Pix, ref.Pix)
	for i:=1; i<len(frames); i++ {
		f:=frames[i]
		if f.Image.Width!=ref.Width || f.Image.Height!=ref.Height || f.Image.Channels!=ref.Channels {
			return nil, fmt.Errorf("frame %d extent %dx%dx%d does not match reference %dx%dx%d",
				i, f.Image.Width, f.Image.Height, f.Image.Channels, ref.Width, ref.Height, ref.Channels)
		}
		next:=raster.NewImageLike(ref)
		stage.FuseFrames(ctx, ref, gradient, f.Image, fused, f.Homography, varA, varB, i-1, next)
		fused=next
	}

	// residual coarse-scale noise: denoise a half-size copy and subtract
	// the delta from the fused result
	half:=raster.NewImage(halfExtent(ref.Width), halfExtent(ref.Height), raster.RGBA)
	stage.RescaleImage(ctx, fused, half)
	halfDenoised:=raster.NewImageLike(half)
	stage.DenoiseImageGuided(ctx, half, varA, varB, halfDenoised)

	out:=raster.NewImageLike(fused)
	stage.SubtractNoiseFusedImage(ctx, fused, half, halfDenoised, out)
	return out, nil
}
