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


package rawio

import (
	"bufio"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"
	"github.com/nfnt/resize"
	"golang.org/x/image/tiff"
	"github.com/mlnoga/rawlight/internal/raster"
)

// Writes a display-referred RGBA image to 16-bit deflate-compressed TIFF
func WriteTIFF16(w io.Writer, img *raster.Image) error {
	return tiff.Encode(w, toRGBA64(img), &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

// Writes a display-referred RGBA image to a 16-bit TIFF file
func WriteTIFF16ToFile(path string, img *raster.Image) error {
	file, err:=os.Create(path)
	if err!=nil { return err }
	defer file.Close()

	writer:=bufio.NewWriter(file)
	defer writer.Flush()
	return WriteTIFF16(writer, img)
}

// Writes a PNG preview downscaled to fit within maxDim in both dimensions
func WritePreviewToFile(path string, img *raster.Image, maxDim int) error {
	file, err:=os.Create(path)
	if err!=nil { return err }
	defer file.Close()

	small:=resize.Thumbnail(uint(maxDim), uint(maxDim), toRGBA64(img), resize.Lanczos3)
	writer:=bufio.NewWriter(file)
	defer writer.Flush()
	return png.Encode(writer, small)
}

func toRGBA64(img *raster.Image) *image.RGBA64 {
	img.MustBe(img.Width, img.Height, raster.RGBA, "output image")

	out:=image.NewRGBA64(image.Rect(0, 0, img.Width, img.Height))
	for y:=0; y<img.Height; y++ {
		for x:=0; x<img.Width; x++ {
			o:=img.Offset(x, y)
			out.SetRGBA64(x, y, color.RGBA64{
				R: quantize16(img.Pix[o+0]),
				G: quantize16(img.Pix[o+1]),
				B: quantize16(img.Pix[o+2]),
				A: 65535,
			})
		}
	}
	return out
}

// NaNs become zeros on export, else viewers break on the output
func quantize16(v float32) uint16 {
	if math.IsNaN(float64(v)) || v<0 { v=0 }
	if v>1 { v=1 }
	return uint16(v*65535 + 0.5)
}
