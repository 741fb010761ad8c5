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
)

// Number of float32 channels per pixel. Only these three layouts exist:
// single-channel luma, luma+alpha pairs, and RGBA quads (also used for
// packed 2x2 Bayer quads).
const (
	Luma      = 1
	LumaAlpha = 2
	RGBA      = 4
)

// A 2-D grid of float32 pixels with a fixed channel count.
// Width, Height and Channels are immutable after creation.
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []float32 // len=Width*Height*Channels, row major, interleaved
}

// Creates an image of the given dimensions with zeroed pixels
func NewImage(width, height, channels int) *Image {
	if width<=0 || height<=0 { panic(fmt.Sprintf("raster: invalid image size %dx%d", width, height)) }
	if channels!=Luma && channels!=LumaAlpha && channels!=RGBA {
		panic(fmt.Sprintf("raster: invalid channel count %d", channels))
	}
	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]float32, width*height*channels),
	}
}

// Creates an image with the same dimensions and channel count as the given one
func NewImageLike(img *Image) *Image {
	return NewImage(img.Width, img.Height, img.Channels)
}

// Index of channel 0 of pixel (x,y)
func (img *Image) Offset(x, y int) int {
	return (y*img.Width + x) * img.Channels
}

// Reads channel c of pixel (x,y)
func (img *Image) At(x, y, c int) float32 {
	return img.Pix[(y*img.Width+x)*img.Channels+c]
}

// Writes channel c of pixel (x,y)
func (img *Image) Set(x, y, c int, v float32) {
	img.Pix[(y*img.Width+x)*img.Channels+c] = v
}

// Reads channel c of pixel (x,y), clamping coordinates to the image edge
func (img *Image) AtClamped(x, y, c int) float32 {
	if x<0 { x=0 } else if x>=img.Width  { x=img.Width-1  }
	if y<0 { y=0 } else if y>=img.Height { y=img.Height-1 }
	return img.Pix[(y*img.Width+x)*img.Channels+c]
}

func (img *Image) String() string {
	return fmt.Sprintf("%dx%dx%d", img.Width, img.Height, img.Channels)
}

// Asserts that an image has exactly the given dimensions and channel count.
// Shape mismatches are precondition violations, not recoverable errors.
func (img *Image) MustBe(width, height, channels int, what string) {
	if img.Width!=width || img.Height!=height || img.Channels!=channels {
		panic(fmt.Sprintf("raster: %s is %s, want %dx%dx%d", what, img, width, height, channels))
	}
}

// Asserts that two images have identical shape
func MustMatch(a, b *Image, whatA, whatB string) {
	if a.Width!=b.Width || a.Height!=b.Height || a.Channels!=b.Channels {
		panic(fmt.Sprintf("raster: %s is %s but %s is %s", whatA, a, whatB, b))
	}
}

// A 2-D grid of 16-bit sensor values. Used for the raw mosaic input
// and for dither textures; all image math happens in float32.
type Gray16 struct {
	Width  int
	Height int
	Pix    []uint16
}

// Creates a 16-bit image of the given dimensions with zeroed pixels
func NewGray16(width, height int) *Gray16 {
	if width<=0 || height<=0 { panic(fmt.Sprintf("raster: invalid image size %dx%d", width, height)) }
	return &Gray16{Width: width, Height: height, Pix: make([]uint16, width*height)}
}

// Reads pixel (x,y)
func (img *Gray16) At(x, y int) uint16 {
	return img.Pix[y*img.Width+x]
}

// Writes pixel (x,y)
func (img *Gray16) Set(x, y int, v uint16) {
	img.Pix[y*img.Width+x] = v
}
