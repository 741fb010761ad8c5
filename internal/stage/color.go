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
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/mlnoga/rawlight/internal/compute"
	"github.com/mlnoga/rawlight/internal/raster"
)

func pow32(base, exp float32) float32 {
	return float32(math.Pow(float64(base), float64(exp)))
}

func sqrt32(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}

// ITU-R BT.709 RGB to YCbCr, full range
func RGBToYCbCrMatrix() raster.Matrix3x3 {
	return raster.Matrix3x3{
		{ 0.2126,  0.7152,  0.0722},
		{-0.1146, -0.3854,  0.5},
		{ 0.5,    -0.4542, -0.0458},
	}
}

// ITU-R BT.709 YCbCr to RGB, full range
func YCbCrToRGBMatrix() raster.Matrix3x3 {
	return raster.Matrix3x3{
		{1,  0,        1.5748},
		{1, -0.1873,  -0.4681},
		{1,  1.8556,   0},
	}
}

// Applies a 3x3 colorspace transform to every pixel. Alpha passes through
func TransformImage(ctx *compute.Context, input *raster.Image, output *raster.Image, transform raster.Matrix3x3) {
	raster.MustMatch(input, output, "input image", "output image")

	ctx.Dispatch(compute.KTransformImage, output.Width, output.Height, func(x, y int) {
		oi:=input.Offset(x, y)
		v:=transform.MulVec([3]float32{input.Pix[oi+0], input.Pix[oi+1], input.Pix[oi+2]})
		oo:=output.Offset(x, y)
		output.Pix[oo+0]=v[0]
		output.Pix[oo+1]=v[1]
		output.Pix[oo+2]=v[2]
		output.Pix[oo+3]=input.Pix[oi+3]
	})
}

// Display conversion knobs. Opaque configuration owned by the
// calibration collaborator
type RGBConversion struct {
	ExposureBias     float32 `json:"exposureBias"     yaml:"exposureBias"`     // stops, applied as 2^bias
	Blacks           float32 `json:"blacks"           yaml:"blacks"`           // linear black point subtraction
	Saturation       float32 `json:"saturation"       yaml:"saturation"`       // 1 is neutral
	LocalToneMapping bool    `json:"localToneMapping" yaml:"localToneMapping"`
}

// Converts a scene-linear camera-space image to display sRGB: camera
// matrix, optional local tone mapping mask on luma, exposure bias,
// black point, saturation, then sRGB companding. This and ScaleRawData
// are the only stages that leave scene-linear space
func ConvertToSRGB(ctx *compute.Context, linear, ltmMask *raster.Image, output *raster.Image,
	rgbCam raster.Matrix3x3, params RGBConversion) {
	raster.MustMatch(linear, output, "linear image", "output image")
	ltmMask.MustBe(linear.Width, linear.Height, raster.Luma, "ltm mask image")

	gain:=pow32(2, params.ExposureBias)
	ctx.Dispatch(compute.KConvertToSRGB, output.Width, output.Height, func(x, y int) {
		oi:=linear.Offset(x, y)
		v:=rgbCam.MulVec([3]float32{linear.Pix[oi+0], linear.Pix[oi+1], linear.Pix[oi+2]})

		scale:=gain
		if params.LocalToneMapping {
			scale*=ltmMask.At(x, y, 0)
		}
		lum:=(v[0] + v[1] + v[2]) * (1.0/3.0)
		for c:=0; c<3; c++ {
			n:=(v[c]-lum)*params.Saturation + lum
			n=n*scale - params.Blacks
			if n<0 { n=0 } else if n>1 { n=1 }
			v[c]=n
		}

		col:=colorful.LinearRgb(float64(v[0]), float64(v[1]), float64(v[2])).Clamped()
		oo:=output.Offset(x, y)
		output.Pix[oo+0]=float32(col.R)
		output.Pix[oo+1]=float32(col.G)
		output.Pix[oo+2]=float32(col.B)
		output.Pix[oo+3]=1
	})
}

// Projects a linear RGBA image to single-channel grayscale with the
// given luminance weights
func ConvertToGrayscale(ctx *compute.Context, linear *raster.Image, gray *raster.Image, lumaWeights [3]float32) {
	gray.MustBe(linear.Width, linear.Height, raster.Luma, "grayscale image")

	ctx.Dispatch(compute.KConvertToGrayscale, gray.Width, gray.Height, func(x, y int) {
		o:=linear.Offset(x, y)
		gray.Set(x, y, 0, lumaWeights[0]*linear.Pix[o+0]+lumaWeights[1]*linear.Pix[o+1]+lumaWeights[2]*linear.Pix[o+2])
	})
}

// Rolls clipped highlights off towards neutral: channels above the clip
// level desaturate progressively instead of tearing into false color
func BlendHighlights(ctx *compute.Context, input *raster.Image, clip float32, output *raster.Image) {
	raster.MustMatch(input, output, "input image", "output image")

	ctx.Dispatch(compute.KBlendHighlights, output.Width, output.Height, func(x, y int) {
		oi:=input.Offset(x, y)
		r, g, b:=input.Pix[oi+0], input.Pix[oi+1], input.Pix[oi+2]
		maxC:=max32(r, max32(g, b))
		oo:=output.Offset(x, y)
		if maxC<=clip {
			output.Pix[oo+0]=r
			output.Pix[oo+1]=g
			output.Pix[oo+2]=b
		} else {
			lum:=(r + g + b) * (1.0/3.0)
			t:=min32(1, (maxC-clip)/max32(clip, 1e-6))
			output.Pix[oo+0]=r + t*(lum-r)
			output.Pix[oo+1]=g + t*(lum-g)
			output.Pix[oo+2]=b + t*(lum-b)
		}
		output.Pix[oo+3]=input.Pix[oi+3]
	})
}

// Blue noise dithering: adds model-scaled dither to the luma channel,
// tiling the fixed-size dither texture over the image extent with
// repeat addressing
func BlueNoise(ctx *compute.Context, input *raster.Image, noise *raster.Gray16,
	lumaVariance [2]float32, output *raster.Image) {
	raster.MustMatch(input, output, "input image", "output image")

	ctx.Dispatch(compute.KBlueNoise, output.Width, output.Height, func(x, y int) {
		// repeat addressing over the dither tile
		nx:=x%noise.Width
		ny:=y%noise.Height
		bn:=float32(noise.At(nx, ny))*(1.0/65535.0) - 0.5

		oi:=input.Offset(x, y)
		yv:=input.Pix[oi+0]
		amp:=sqrt32(lumaVariance[0] + lumaVariance[1]*yv)
		oo:=output.Offset(x, y)
		output.Pix[oo+0]=yv + bn*amp
		output.Pix[oo+1]=input.Pix[oi+1]
		output.Pix[oo+2]=input.Pix[oi+2]
		output.Pix[oo+3]=input.Pix[oi+3]
	})
}

// Bilinear resample to the output image's extent. Used to build and
// collapse the octave pyramid
func RescaleImage(ctx *compute.Context, input, output *raster.Image) {
	if input.Channels!=output.Channels {
		raster.MustMatch(input, output, "input image", "output image")
	}

	sampler:=raster.Sampler{Address: raster.AddressClamp, Filter: raster.FilterLinear}
	sx:=float32(input.Width)/float32(output.Width)
	sy:=float32(input.Height)/float32(output.Height)
	ctx.Dispatch(compute.KRescaleImage, output.Width, output.Height, func(x, y int) {
		fx:=(float32(x)+0.5)*sx - 0.5
		fy:=(float32(y)+0.5)*sy - 0.5
		o:=output.Offset(x, y)
		for c:=0; c<output.Channels; c++ {
			output.Pix[o+c]=sampler.Sample(input, fx, fy, c)
		}
	})
}
