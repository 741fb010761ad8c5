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


package raster

// Addressing mode for samples outside the image extent
type AddressMode int

const (
	AddressClamp  AddressMode = iota // clamp to edge
	AddressRepeat                    // tile the image
)

// Filter mode for fractional sample positions
type FilterMode int

const (
	FilterNearest FilterMode = iota
	FilterLinear
)

// A texture sampler over float32 images. Resampling stages use
// {AddressClamp, FilterLinear}; blue noise dithering tiles its
// texture with {AddressRepeat, FilterLinear}.
type Sampler struct {
	Address AddressMode
	Filter  FilterMode
}

func (s Sampler) wrap(v, n int) int {
	if s.Address==AddressRepeat {
		v%=n
		if v<0 { v+=n }
		return v
	}
	if v<0 { return 0 }
	if v>=n { return n-1 }
	return v
}

// Samples channel c of the image at pixel coordinates (fx,fy).
// Integer coordinates address pixel centers.
func (s Sampler) Sample(img *Image, fx, fy float32, c int) float32 {
	if s.Filter==FilterNearest {
		x:=s.wrap(int(floor32(fx+0.5)), img.Width)
		y:=s.wrap(int(floor32(fy+0.5)), img.Height)
		return img.At(x, y, c)
	}
	x0f:=floor32(fx)
	y0f:=floor32(fy)
	dx, dy:=fx-x0f, fy-y0f
	x0:=s.wrap(int(x0f),   img.Width)
	x1:=s.wrap(int(x0f)+1, img.Width)
	y0:=s.wrap(int(y0f),   img.Height)
	y1:=s.wrap(int(y0f)+1, img.Height)
	v00:=img.At(x0, y0, c)
	v10:=img.At(x1, y0, c)
	v01:=img.At(x0, y1, c)
	v11:=img.At(x1, y1, c)
	return v00*(1-dx)*(1-dy) + v10*dx*(1-dy) + v01*(1-dx)*dy + v11*dx*dy
}

func floor32(v float32) float32 {
	i:=float32(int(v))
	if v<i { i-- }
	return i
}
