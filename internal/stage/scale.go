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


// Package stage is a catalog of pure image-to-image transform stages.
// Every stage enforces its exact input/output shape contract and either
// fully writes its output extent or panics; there is no partial state.
// All math operates on normalized scene-linear float values except
// ScaleRawData, which consumes 16-bit sensor values.
package stage

import (
	"github.com/mlnoga/rawlight/internal/compute"
	"github.com/mlnoga/rawlight/internal/raster"
)

// Converts 16-bit sensor values to normalized scene-linear floats,
// subtracting the black level and applying per-channel white balance
// gains. Works on one Bayer quad at a time.
func ScaleRawData(ctx *compute.Context, raw *raster.Gray16, scaled *raster.Image,
	pattern raster.Bayer, scaleMul [4]float32, blackLevel float32) {
	scaled.MustBe(raw.Width, raw.Height, raster.Luma, "scaled raw image")

	r, g0, b, g1:=pattern.Offsets()
	ctx.Dispatch(compute.KScaleRawData, scaled.Width/2, scaled.Height/2, func(qx, qy int) {
		x, y:=2*qx, 2*qy
		scaleQuadSite(raw, scaled, x+r.X,  y+r.Y,  scaleMul[0], blackLevel)
		scaleQuadSite(raw, scaled, x+g0.X, y+g0.Y, scaleMul[1], blackLevel)
		scaleQuadSite(raw, scaled, x+b.X,  y+b.Y,  scaleMul[2], blackLevel)
		scaleQuadSite(raw, scaled, x+g1.X, y+g1.Y, scaleMul[3], blackLevel)
	})
}

func scaleQuadSite(raw *raster.Gray16, scaled *raster.Image, x, y int, mul, blackLevel float32) {
	v:=float32(raw.At(x, y))*(1.0/65535.0) - blackLevel
	if v<0 { v=0 }
	scaled.Set(x, y, 0, v*mul)
}

// Packs a Bayer mosaic into a half-resolution 4-channel image, one
// channel per quad photosite (R, Gr, B, Gb)
func BayerToRawRGBA(ctx *compute.Context, raw *raster.Image, rgba *raster.Image, pattern raster.Bayer) {
	raw.MustBe(2*rgba.Width, 2*rgba.Height, raster.Luma, "raw image")

	r, g0, b, g1:=pattern.Offsets()
	ctx.Dispatch(compute.KBayerToRawRGBA, rgba.Width, rgba.Height, func(x, y int) {
		rx, ry:=2*x, 2*y
		o:=rgba.Offset(x, y)
		rgba.Pix[o+0]=raw.At(rx+r.X,  ry+r.Y,  0)
		rgba.Pix[o+1]=raw.At(rx+g0.X, ry+g0.Y, 0)
		rgba.Pix[o+2]=raw.At(rx+b.X,  ry+b.Y,  0)
		rgba.Pix[o+3]=raw.At(rx+g1.X, ry+g1.Y, 0)
	})
}

// Unpacks a quad-packed 4-channel image back into a full-resolution
// Bayer mosaic. Inverse of BayerToRawRGBA
func RawRGBAToBayer(ctx *compute.Context, rgba *raster.Image, raw *raster.Image, pattern raster.Bayer) {
	raw.MustBe(2*rgba.Width, 2*rgba.Height, raster.Luma, "raw image")
	if rgba.Channels!=raster.RGBA { rgba.MustBe(rgba.Width, rgba.Height, raster.RGBA, "rgba image") }

	r, g0, b, g1:=pattern.Offsets()
	ctx.Dispatch(compute.KRawRGBAToBayer, rgba.Width, rgba.Height, func(x, y int) {
		rx, ry:=2*x, 2*y
		o:=rgba.Offset(x, y)
		raw.Set(rx+r.X,  ry+r.Y,  0, rgba.Pix[o+0])
		raw.Set(rx+g0.X, ry+g0.Y, 0, rgba.Pix[o+1])
		raw.Set(rx+b.X,  ry+b.Y,  0, rgba.Pix[o+2])
		raw.Set(rx+g1.X, ry+g1.Y, 0, rgba.Pix[o+3])
	})
}

// Raw-domain black level despeckle. Currently an explicit identity pass.
// TODO: port the sub-black-level speckle suppression once per-sensor
// black offset maps are available from the calibration collaborator.
func DespeckleRawBlack(ctx *compute.Context, raw *raster.Image, pattern raster.Bayer, despeckled *raster.Image) {
	raster.MustMatch(raw, despeckled, "raw image", "despeckled image")

	ctx.Dispatch(compute.KDespeckleRawBlack, raw.Width, raw.Height, func(x, y int) {
		despeckled.Set(x, y, 0, raw.At(x, y, 0))
	})
}
