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

// Central-difference gradient of a single-channel image.
// Output channels are (dx, dy)
func RawImageGradient(ctx *compute.Context, raw *raster.Image, gradient *raster.Image) {
	gradient.MustBe(raw.Width, raw.Height, raster.LumaAlpha, "gradient image")

	ctx.Dispatch(compute.KRawImageGradient, gradient.Width, gradient.Height, func(x, y int) {
		dx:=0.5*(raw.AtClamped(x+1, y, 0) - raw.AtClamped(x-1, y, 0))
		dy:=0.5*(raw.AtClamped(x, y+1, 0) - raw.AtClamped(x, y-1, 0))
		o:=gradient.Offset(x, y)
		gradient.Pix[o+0]=dx
		gradient.Pix[o+1]=dy
	})
}

// Sobel operator on a single-channel image. Output channels are
// (gx, gy, magnitude, 0); the magnitude channel gates the noise
// statistics kernels
func RawImageSobel(ctx *compute.Context, raw *raster.Image, gradient *raster.Image) {
	gradient.MustBe(raw.Width, raw.Height, raster.RGBA, "sobel image")

	ctx.Dispatch(compute.KRawImageSobel, gradient.Width, gradient.Height, func(x, y int) {
		nw:=raw.AtClamped(x-1, y-1, 0); n:=raw.AtClamped(x, y-1, 0); ne:=raw.AtClamped(x+1, y-1, 0)
		w :=raw.AtClamped(x-1, y,   0);                              e:=raw.AtClamped(x+1, y,   0)
		sw:=raw.AtClamped(x-1, y+1, 0); s:=raw.AtClamped(x, y+1, 0); se:=raw.AtClamped(x+1, y+1, 0)

		gx:=(ne+2*e+se) - (nw+2*w+sw)
		gy:=(sw+2*s+se) - (nw+2*n+ne)
		mag:=float32(math.Sqrt(float64(gx*gx + gy*gy)))

		o:=gradient.Offset(x, y)
		gradient.Pix[o+0]=gx
		gradient.Pix[o+1]=gy
		gradient.Pix[o+2]=mag
		gradient.Pix[o+3]=0
	})
}

// Gradient magnitude from a (dx,dy) luma+alpha gradient image
func gradientMag(gradient *raster.Image, x, y int) float32 {
	dx:=gradient.At(x, y, 0)
	dy:=gradient.At(x, y, 1)
	return float32(math.Sqrt(float64(dx*dx + dy*dy)))
}
