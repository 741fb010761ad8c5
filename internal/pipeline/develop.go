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
	"fmt"
	"github.com/codahale/hdrhistogram"
	"github.com/mlnoga/rawlight/internal/compute"
	"github.com/mlnoga/rawlight/internal/nlf"
	"github.com/mlnoga/rawlight/internal/raster"
	"github.com/mlnoga/rawlight/internal/stage"
)

// Edge detection blur radii for the dual-scale gradient
const (
	edgeRadiusSmall = 1.5
	edgeRadiusLarge = 4.5
)

// Develops a raw sensor mosaic into a display-ready sRGB image: scaling,
// raw-domain denoise, demosaic, highlight roll-off, octave pyramid
// denoise, local tone mapping and output conversion. The fast demosaic
// strategy yields a half-size result, the others are full size
func Develop(ctx *compute.Context, raw *raster.Gray16, params *DevelopParameters) (*raster.Image, error) {
	if err:=params.Validate(); err!=nil { return nil, err }
	pattern, _:=raster.ParseBayer(params.BayerPattern)
	w, h:=raw.Width, raw.Height
	// three pyramid octaves plus the 5x5 statistics windows need 16 pixels
	if w<16 || h<16 || w%2!=0 || h%2!=0 {
		return nil, fmt.Errorf("mosaic extent %dx%d must be even and at least 16x16", w, h)
	}
	est:=params.estimator()

	scaled:=raster.NewImage(w, h, raster.Luma)
	stage.ScaleRawData(ctx, raw, scaled, pattern, params.ScaleMul, params.BlackLevel)

	despeckled:=raster.NewImageLike(scaled)
	stage.DespeckleRawBlack(ctx, scaled, pattern, despeckled)

	sobel:=raster.NewImage(w, h, raster.RGBA)
	stage.RawImageSobel(ctx, despeckled, sobel)

	rawNoise, _:=nlf.MeasureRaw(ctx, despeckled, pattern, sobel, params.ExposureMultiplier, est)
	greenModel:=[2]float32{rawNoise.A[1], rawNoise.B[1]}

	mosaic:=despeckled
	if params.RawDenoise {
		mosaic=denoiseRaw(ctx, despeckled, pattern, rawNoise)
	}

	gradient:=raster.NewImage(w, h, raster.LumaAlpha)
	stage.RawImageGradient(ctx, mosaic, gradient)
	edges:=raster.NewImage(w, h, raster.LumaAlpha)
	stage.GaussianBlurSobel(ctx, mosaic, sobel, greenModel, edgeRadiusSmall, edgeRadiusLarge, edges)

	rgb:=demosaic(ctx, mosaic, gradient, pattern, rawNoise, params.Demosaic)

	clip:=highlightClip(rgb, params.HighlightQuantile)
	blended:=raster.NewImageLike(rgb)
	stage.BlendHighlights(ctx, rgb, clip, blended)

	ycbcr:=raster.NewImageLike(blended)
	stage.TransformImage(ctx, blended, ycbcr, stage.RGBToYCbCrMatrix())

	// the fast debayer halves the extent, resample the edge map to match
	if edges.Width!=ycbcr.Width || edges.Height!=ycbcr.Height {
		resampled:=raster.NewImage(ycbcr.Width, ycbcr.Height, raster.LumaAlpha)
		stage.RescaleImage(ctx, edges, resampled)
		edges=resampled
	}

	denoised, lumaNoise:=denoisePyramid(ctx, ycbcr, edges, params)

	varA:=[3]float32{lumaNoise.A[0], lumaNoise.A[1], lumaNoise.A[2]}
	varB:=[3]float32{lumaNoise.B[0], lumaNoise.B[1], lumaNoise.B[2]}
	despeckledOut:=raster.NewImageLike(denoised)
	stage.DespeckleImage(ctx, denoised, varA, varB, despeckledOut)
	result:=despeckledOut

	if params.Dither {
		dithered:=raster.NewImageLike(result)
		stage.BlueNoise(ctx, result, NewDitherTexture(64), [2]float32{lumaNoise.A[0], lumaNoise.B[0]}, dithered)
		result=dithered
	}

	mask:=toneMappingMask(ctx, result, params, lumaNoise)

	linear:=raster.NewImageLike(result)
	stage.TransformImage(ctx, result, linear, stage.YCbCrToRGBMatrix())
	srgb:=raster.NewImageLike(linear)
	stage.ConvertToSRGB(ctx, linear, mask, srgb, params.CamToRGB, params.RGB)
	return srgb, nil
}

// Denoises the mosaic in the raw domain where the four CFA channels are
// still statistically independent: pack to a half-size quad image,
// denoise and despeckle per site, unpack
func denoiseRaw(ctx *compute.Context, mosaic *raster.Image, pattern raster.Bayer, model nlf.NLF) *raster.Image {
	m:=meanLuma(mosaic)
	var rawVariance [4]float32
	for c:=0; c<4; c++ { rawVariance[c]=model.VarianceAt(c, m) }

	packed:=raster.NewImage(mosaic.Width/2, mosaic.Height/2, raster.RGBA)
	stage.BayerToRawRGBA(ctx, mosaic, packed, pattern)
	denoised:=raster.NewImageLike(packed)
	stage.DenoiseRawRGBA(ctx, packed, rawVariance, denoised)
	despeckled:=raster.NewImageLike(packed)
	stage.DespeckleRawRGBA(ctx, denoised, rawVariance, despeckled)

	out:=raster.NewImageLike(mosaic)
	stage.RawRGBAToBayer(ctx, despeckled, out, pattern)
	return out
}

func demosaic(ctx *compute.Context, mosaic, gradient *raster.Image, pattern raster.Bayer,
	model nlf.NLF, strategy string) *raster.Image {
	w, h:=mosaic.Width, mosaic.Height
	switch strategy {
	case DemosaicFast:
		rgb:=raster.NewImage(w/2, h/2, raster.RGBA)
		stage.FastDebayer(ctx, mosaic, rgb, pattern)
		return rgb
	case DemosaicMalvar:
		rgb:=raster.NewImage(w, h, raster.RGBA)
		stage.Malvar(ctx, mosaic, rgb, pattern)
		return rgb
	}

	redModel:=[2]float32{model.A[0], model.B[0]}
	greenModel:=[2]float32{model.A[1], model.B[1]}
	blueModel:=[2]float32{model.A[2], model.B[2]}

	green:=raster.NewImage(w, h, raster.Luma)
	stage.InterpolateGreen(ctx, mosaic, gradient, green, pattern, greenModel)
	provisional:=raster.NewImage(w, h, raster.RGBA)
	stage.InterpolateRedBlue(ctx, mosaic, green, gradient, provisional, pattern, redModel, blueModel)
	rgb:=raster.NewImage(w, h, raster.RGBA)
	stage.InterpolateRedBlueAtGreen(ctx, provisional, gradient, rgb, pattern, redModel, blueModel)
	return rgb
}

// Computes the local tone mapping mask over a three-octave guide pyramid
func toneMappingMask(ctx *compute.Context, ycbcr *raster.Image, params *DevelopParameters,
	lumaNoise nlf.NLF) *raster.Image {
	var guide, ab, abMean [3]*raster.Image
	guide[0]=ycbcr
	for i:=1; i<3; i++ {
		gw, gh:=halfExtent(guide[i-1].Width), halfExtent(guide[i-1].Height)
		guide[i]=raster.NewImage(gw, gh, raster.RGBA)
		stage.RescaleImage(ctx, guide[i-1], guide[i])
	}
	for i:=0; i<3; i++ {
		ab[i]=raster.NewImage(guide[i].Width, guide[i].Height, raster.LumaAlpha)
		abMean[i]=raster.NewImage(guide[i].Width, guide[i].Height, raster.LumaAlpha)
	}

	mask:=raster.NewImage(ycbcr.Width, ycbcr.Height, raster.Luma)
	ycbcrToSrgb:=params.CamToRGB.Mul(stage.YCbCrToRGBMatrix())
	stage.LocalToneMappingMask(ctx, ycbcr, guide, ab, abMean, params.LTM, ycbcrToSrgb,
		[2]float32{lumaNoise.A[0], lumaNoise.B[0]}, mask)
	return mask
}

// Clip level for the highlight roll-off, taken as a high quantile of the
// per-pixel channel maxima
func highlightClip(rgb *raster.Image, quantile float64) float32 {
	hist:=hdrhistogram.New(1, 65536, 3)
	for i:=0; i<len(rgb.Pix); i+=4 {
		v:=rgb.Pix[i]
		if rgb.Pix[i+1]>v { v=rgb.Pix[i+1] }
		if rgb.Pix[i+2]>v { v=rgb.Pix[i+2] }
		hv:=int64(v*65535) + 1
		if hv<1 { hv=1 } else if hv>65536 { hv=65536 }
		hist.RecordValue(hv)
	}
	return float32(hist.ValueAtQuantile(quantile*100)-1)*(1.0/65535.0)
}

func meanLuma(img *raster.Image) float32 {
	sum:=float64(0)
	for i:=0; i<len(img.Pix); i+=img.Channels {
		sum+=float64(img.Pix[i])
	}
	return float32(sum/float64(len(img.Pix)/img.Channels))
}

func halfExtent(v int) int {
	if v<4 { return 2 }
	return v/2
}
