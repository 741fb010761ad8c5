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

func abs32(v float32) float32 {
	if v<0 { return -v }
	return v
}

// Adaptive green channel interpolation. At non-green sites the green value
// is reconstructed from a noise-aware blend of horizontal and vertical
// estimates: directional differences are compared against the expected
// noise variance a+b*signal, so that in flat areas the two directions
// average out instead of amplifying noise-induced ringing.
func InterpolateGreen(ctx *compute.Context, raw, gradient, green *raster.Image,
	pattern raster.Bayer, greenVariance [2]float32) {
	gradient.MustBe(raw.Width, raw.Height, raster.LumaAlpha, "gradient image")
	green.MustBe(raw.Width, raw.Height, raster.Luma, "green image")

	ctx.Dispatch(compute.KInterpolateGreen, green.Width, green.Height, func(x, y int) {
		if pattern.IsGreen(x, y) {
			green.Set(x, y, 0, raw.At(x, y, 0))
			return
		}
		c :=raw.AtClamped(x, y, 0)
		gl:=raw.AtClamped(x-1, y, 0)
		gr:=raw.AtClamped(x+1, y, 0)
		gu:=raw.AtClamped(x, y-1, 0)
		gd:=raw.AtClamped(x, y+1, 0)

		dH:=abs32(gl-gr) + abs32(2*c-raw.AtClamped(x-2, y, 0)-raw.AtClamped(x+2, y, 0)) + abs32(gradient.At(x, y, 0))
		dV:=abs32(gu-gd) + abs32(2*c-raw.AtClamped(x, y-2, 0)-raw.AtClamped(x, y+2, 0)) + abs32(gradient.At(x, y, 1))

		// directional differences below the noise floor carry no signal
		sigma:=greenVariance[0] + greenVariance[1]*c
		wH:=1.0/(sigma + dH*dH + 1e-8)
		wV:=1.0/(sigma + dV*dV + 1e-8)
		green.Set(x, y, 0, (wH*0.5*(gl+gr) + wV*0.5*(gu+gd))/(wH+wV))
	})
}

// Red/blue interpolation via color differences against the green plane.
// Fills red and blue at their own and at opposite sites; values at green
// sites are provisional averages, refined by InterpolateRedBlueAtGreen.
// Works on one Bayer quad at a time
func InterpolateRedBlue(ctx *compute.Context, raw, green, gradient, rgb *raster.Image,
	pattern raster.Bayer, redVariance, blueVariance [2]float32) {
	green.MustBe(raw.Width, raw.Height, raster.Luma, "green image")
	gradient.MustBe(raw.Width, raw.Height, raster.LumaAlpha, "gradient image")
	rgb.MustBe(raw.Width, raw.Height, raster.RGBA, "rgb image")

	ctx.Dispatch(compute.KInterpolateRedBlue, rgb.Width/2, rgb.Height/2, func(qx, qy int) {
		for dy:=0; dy<2; dy++ {
			for dx:=0; dx<2; dx++ {
				x, y:=2*qx+dx, 2*qy+dy
				g:=green.At(x, y, 0)
				o:=rgb.Offset(x, y)
				var r, b float32
				switch {
				case pattern.IsRed(x, y):
					r=raw.At(x, y, 0)
					b=g + diagColorDiff(raw, green, x, y)
				case pattern.IsGreen(x, y):
					// provisional: same-row neighbors are one color, same-column the other
					if pattern.IsRed(x+1, y) || pattern.IsRed(x-1, y) {
						r=g + rowColorDiff(raw, green, x, y)
						b=g + colColorDiff(raw, green, x, y)
					} else {
						r=g + colColorDiff(raw, green, x, y)
						b=g + rowColorDiff(raw, green, x, y)
					}
				default: // blue site
					b=raw.At(x, y, 0)
					r=g + diagColorDiff(raw, green, x, y)
				}
				rgb.Pix[o+0]=r
				rgb.Pix[o+1]=g
				rgb.Pix[o+2]=b
				rgb.Pix[o+3]=0
			}
		}
	})
}

func diagColorDiff(raw, green *raster.Image, x, y int) float32 {
	return 0.25*((raw.AtClamped(x-1, y-1, 0)-green.AtClamped(x-1, y-1, 0)) +
		(raw.AtClamped(x+1, y-1, 0)-green.AtClamped(x+1, y-1, 0)) +
		(raw.AtClamped(x-1, y+1, 0)-green.AtClamped(x-1, y+1, 0)) +
		(raw.AtClamped(x+1, y+1, 0)-green.AtClamped(x+1, y+1, 0)))
}

func rowColorDiff(raw, green *raster.Image, x, y int) float32 {
	return 0.5*((raw.AtClamped(x-1, y, 0)-green.AtClamped(x-1, y, 0)) +
		(raw.AtClamped(x+1, y, 0)-green.AtClamped(x+1, y, 0)))
}

func colColorDiff(raw, green *raster.Image, x, y int) float32 {
	return 0.5*((raw.AtClamped(x, y-1, 0)-green.AtClamped(x, y-1, 0)) +
		(raw.AtClamped(x, y+1, 0)-green.AtClamped(x, y+1, 0)))
}

// Refines red and blue at green sites with gradient-weighted color
// differences. Non-green sites pass through unchanged. Works on one
// Bayer quad at a time
func InterpolateRedBlueAtGreen(ctx *compute.Context, rgbIn, gradient, rgbOut *raster.Image,
	pattern raster.Bayer, redVariance, blueVariance [2]float32) {
	gradient.MustBe(rgbIn.Width, rgbIn.Height, raster.LumaAlpha, "gradient image")
	raster.MustMatch(rgbIn, rgbOut, "rgb input", "rgb output")

	ctx.Dispatch(compute.KInterpolateRedBlueAtGreen, rgbOut.Width/2, rgbOut.Height/2, func(qx, qy int) {
		for dy:=0; dy<2; dy++ {
			for dx:=0; dx<2; dx++ {
				x, y:=2*qx+dx, 2*qy+dy
				oi:=rgbIn.Offset(x, y)
				oo:=rgbOut.Offset(x, y)
				if !pattern.IsGreen(x, y) {
					copy(rgbOut.Pix[oo:oo+4], rgbIn.Pix[oi:oi+4])
					continue
				}
				g:=rgbIn.Pix[oi+1]
				rgbOut.Pix[oo+0]=g + weightedChannelDiff(rgbIn, gradient, x, y, 0, redVariance)
				rgbOut.Pix[oo+1]=g
				rgbOut.Pix[oo+2]=g + weightedChannelDiff(rgbIn, gradient, x, y, 2, blueVariance)
				rgbOut.Pix[oo+3]=rgbIn.Pix[oi+3]
			}
		}
	})
}

// Gradient-weighted average of channel-minus-green differences over the
// four direct neighbors
func weightedChannelDiff(rgb, gradient *raster.Image, x, y, c int, variance [2]float32) float32 {
	g:=rgb.At(x, y, 1)
	sigma:=variance[0] + variance[1]*g
	dx:=abs32(gradient.At(x, y, 0))
	dy:=abs32(gradient.At(x, y, 1))
	wH:=1.0/(sigma + dx*dx + 1e-8)
	wV:=1.0/(sigma + dy*dy + 1e-8)

	dH:=0.5*((rgb.AtClamped(x-1, y, c)-rgb.AtClamped(x-1, y, 1)) + (rgb.AtClamped(x+1, y, c)-rgb.AtClamped(x+1, y, 1)))
	dV:=0.5*((rgb.AtClamped(x, y-1, c)-rgb.AtClamped(x, y-1, 1)) + (rgb.AtClamped(x, y+1, c)-rgb.AtClamped(x, y+1, 1)))
	return (wH*dH + wV*dV)/(wH+wV)
}

// Fixed coefficient-stencil demosaic after Malvar-He-Cutler, used when
// gradient weighting is unnecessary. 5x5 stencils, coefficients in
// eighths of the center weight
func Malvar(ctx *compute.Context, raw, rgb *raster.Image, pattern raster.Bayer) {
	rgb.MustBe(raw.Width, raw.Height, raster.RGBA, "rgb image")

	ctx.Dispatch(compute.KMalvar, rgb.Width, rgb.Height, func(x, y int) {
		c:=raw.AtClamped(x, y, 0)
		o:=rgb.Offset(x, y)
		var r, g, b float32
		switch {
		case pattern.IsRed(x, y):
			r=c
			g=malvarCross(raw, x, y)
			b=malvarDiag(raw, x, y)
		case pattern.IsGreen(x, y):
			g=c
			if pattern.IsRed(x+1, y) || pattern.IsRed(x-1, y) {
				r=malvarRow(raw, x, y)
				b=malvarCol(raw, x, y)
			} else {
				r=malvarCol(raw, x, y)
				b=malvarRow(raw, x, y)
			}
		default:
			b=c
			g=malvarCross(raw, x, y)
			r=malvarDiag(raw, x, y)
		}
		rgb.Pix[o+0]=r
		rgb.Pix[o+1]=g
		rgb.Pix[o+2]=b
		rgb.Pix[o+3]=0
	})
}

// Green at a red or blue site
func malvarCross(raw *raster.Image, x, y int) float32 {
	c:=raw.AtClamped(x, y, 0)
	return (4*c +
		2*(raw.AtClamped(x-1, y, 0)+raw.AtClamped(x+1, y, 0)+raw.AtClamped(x, y-1, 0)+raw.AtClamped(x, y+1, 0)) -
		(raw.AtClamped(x-2, y, 0)+raw.AtClamped(x+2, y, 0)+raw.AtClamped(x, y-2, 0)+raw.AtClamped(x, y+2, 0))) * 0.125
}

// Red at blue site or blue at red site
func malvarDiag(raw *raster.Image, x, y int) float32 {
	c:=raw.AtClamped(x, y, 0)
	return (6*c +
		2*(raw.AtClamped(x-1, y-1, 0)+raw.AtClamped(x+1, y-1, 0)+raw.AtClamped(x-1, y+1, 0)+raw.AtClamped(x+1, y+1, 0)) -
		1.5*(raw.AtClamped(x-2, y, 0)+raw.AtClamped(x+2, y, 0)+raw.AtClamped(x, y-2, 0)+raw.AtClamped(x, y+2, 0))) * 0.125
}

// Red or blue at a green site with same-color row neighbors
func malvarRow(raw *raster.Image, x, y int) float32 {
	c:=raw.AtClamped(x, y, 0)
	return (5*c +
		4*(raw.AtClamped(x-1, y, 0)+raw.AtClamped(x+1, y, 0)) -
		(raw.AtClamped(x-1, y-1, 0)+raw.AtClamped(x+1, y-1, 0)+raw.AtClamped(x-1, y+1, 0)+raw.AtClamped(x+1, y+1, 0)) -
		(raw.AtClamped(x-2, y, 0)+raw.AtClamped(x+2, y, 0)) +
		0.5*(raw.AtClamped(x, y-2, 0)+raw.AtClamped(x, y+2, 0))) * 0.125
}

// Red or blue at a green site with same-color column neighbors
func malvarCol(raw *raster.Image, x, y int) float32 {
	c:=raw.AtClamped(x, y, 0)
	return (5*c +
		4*(raw.AtClamped(x, y-1, 0)+raw.AtClamped(x, y+1, 0)) -
		(raw.AtClamped(x-1, y-1, 0)+raw.AtClamped(x+1, y-1, 0)+raw.AtClamped(x-1, y+1, 0)+raw.AtClamped(x+1, y+1, 0)) -
		(raw.AtClamped(x, y-2, 0)+raw.AtClamped(x, y+2, 0)) +
		0.5*(raw.AtClamped(x-2, y, 0)+raw.AtClamped(x+2, y, 0))) * 0.125
}

// Nearest-only debayer for quick previews: each Bayer quad becomes one
// RGB pixel. Asserts exact half-size output
func FastDebayer(ctx *compute.Context, raw *raster.Image, rgb *raster.Image, pattern raster.Bayer) {
	raw.MustBe(2*rgb.Width, 2*rgb.Height, raster.Luma, "raw image")
	if rgb.Channels!=raster.RGBA { rgb.MustBe(rgb.Width, rgb.Height, raster.RGBA, "rgb image") }

	r, g0, b, g1:=pattern.Offsets()
	ctx.Dispatch(compute.KFastDebayer, rgb.Width, rgb.Height, func(x, y int) {
		rx, ry:=2*x, 2*y
		o:=rgb.Offset(x, y)
		rgb.Pix[o+0]=raw.At(rx+r.X, ry+r.Y, 0)
		rgb.Pix[o+1]=0.5*(raw.At(rx+g0.X, ry+g0.Y, 0) + raw.At(rx+g1.X, ry+g1.Y, 0))
		rgb.Pix[o+2]=raw.At(rx+b.X, ry+b.Y, 0)
		rgb.Pix[o+3]=0
	})
}
