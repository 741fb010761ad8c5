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

import (
	"fmt"
	"strings"
)

// The 2x2 repeating arrangement of color filters over sensor photosites.
// Never mutated once an image is loaded.
type Bayer int

const (
	RGGB Bayer = iota
	GRBG
	GBRG
	BGGR
)

func (b Bayer) String() string {
	switch b {
	case RGGB: return "RGGB"
	case GRBG: return "GRBG"
	case GBRG: return "GBRG"
	case BGGR: return "BGGR"
	}
	return fmt.Sprintf("Bayer(%d)", int(b))
}

// Parses a color filter array name like "rggb"
func ParseBayer(s string) (Bayer, error) {
	switch strings.ToUpper(s) {
	case "RGGB": return RGGB, nil
	case "GRBG": return GRBG, nil
	case "GBRG": return GBRG, nil
	case "BGGR": return BGGR, nil
	}
	return 0, fmt.Errorf("unknown CFA value %s", s)
}

// Offset of a photosite within the repeating 2x2 quad
type QuadOffset struct {
	X, Y int
}

// Photosite positions within the quad, in packed quad channel order:
// red, green-on-red-row, blue, green-on-blue-row.
func (b Bayer) Offsets() (r, g0, bl, g1 QuadOffset) {
	switch b {
	case RGGB: return QuadOffset{0,0}, QuadOffset{1,0}, QuadOffset{1,1}, QuadOffset{0,1}
	case GRBG: return QuadOffset{1,0}, QuadOffset{0,0}, QuadOffset{0,1}, QuadOffset{1,1}
	case GBRG: return QuadOffset{0,1}, QuadOffset{1,1}, QuadOffset{1,0}, QuadOffset{0,0}
	case BGGR: return QuadOffset{1,1}, QuadOffset{0,1}, QuadOffset{0,0}, QuadOffset{1,0}
	}
	panic(fmt.Sprintf("raster: invalid bayer pattern %d", int(b)))
}

// Returns true if the photosite at (x,y) is a green site
func (b Bayer) IsGreen(x, y int) bool {
	_, g0, _, g1 := b.Offsets()
	px, py := x&1, y&1
	return (px==g0.X && py==g0.Y) || (px==g1.X && py==g1.Y)
}

// Returns true if the photosite at (x,y) is a red site
func (b Bayer) IsRed(x, y int) bool {
	r, _, _, _ := b.Offsets()
	return x&1==r.X && y&1==r.Y
}
