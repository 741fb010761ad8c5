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
	"github.com/valyala/fastrand"
	"github.com/mlnoga/rawlight/internal/raster"
)

// Generates a square dither tile for the blue noise stage. White noise
// has too much low-frequency energy and would show as blotches;
// removing the local 3x3 mean with wraparound addressing pushes the
// spectrum towards high frequencies, a cheap blue noise approximation
func NewDitherTexture(size int) *raster.Gray16 {
	var rng fastrand.RNG
	white:=make([]float32, size*size)
	for i:=range white {
		white[i]=float32(rng.Uint32n(1<<16))*(1.0/65535.0)
	}

	highpass:=make([]float32, size*size)
	lo, hi:=float32(0), float32(0)
	for y:=0; y<size; y++ {
		for x:=0; x<size; x++ {
			sum:=float32(0)
			for wy:=-1; wy<=1; wy++ {
				for wx:=-1; wx<=1; wx++ {
					sum+=white[((y+wy+size)%size)*size + (x+wx+size)%size]
				}
			}
			v:=white[y*size+x] - sum*(1.0/9.0)
			highpass[y*size+x]=v
			if v<lo { lo=v }
			if v>hi { hi=v }
		}
	}

	// normalize to the full 16 bit range
	tex:=raster.NewGray16(size, size)
	scale:=float32(0)
	if hi>lo { scale=65535.0/(hi-lo) }
	for i, v:=range highpass {
		tex.Pix[i]=uint16((v-lo)*scale + 0.5)
	}
	return tex
}
