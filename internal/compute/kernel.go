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


package compute

// Closed enumeration of kernel stages. Stage entry points are bound to
// these identifiers at build time; there is no string lookup on the hot
// path, the names exist for tracing and logs only.
type Kernel int

const (
	KScaleRawData Kernel = iota
	KRawImageGradient
	KRawImageSobel
	KInterpolateGreen
	KInterpolateRedBlue
	KInterpolateRedBlueAtGreen
	KMalvar
	KFastDebayer
	KBayerToRawRGBA
	KRawRGBAToBayer
	KYCbCrNoiseStatistics
	KRawNoiseStatistics
	KDenoiseImage
	KDenoiseImageGuided
	KDespeckleImage
	KDenoiseRawRGBA
	KDespeckleRawRGBA
	KDespeckleRawBlack
	KGuidedFilterAB
	KBoxFilterGF
	KLocalToneMappingMask
	KSampledConvolution
	KSampledConvolutionSobel
	KBlueNoise
	KBlendHighlights
	KTransformImage
	KConvertToSRGB
	KConvertToGrayscale
	KFuseFrames
	KSubtractNoiseImage
	KSubtractNoiseFusedImage
	KRescaleImage
	numKernels // must be last
)

var kernelNames=[numKernels]string{
	"scaleRawData",
	"rawImageGradient",
	"rawImageSobel",
	"interpolateGreen",
	"interpolateRedBlue",
	"interpolateRedBlueAtGreen",
	"malvar",
	"fastDebayer",
	"bayerToRawRGBA",
	"rawRGBAToBayer",
	"ycbcrNoiseStatistics",
	"rawNoiseStatistics",
	"denoiseImage",
	"denoiseImageGuided",
	"despeckleImage",
	"denoiseRawRGBA",
	"despeckleRawRGBA",
	"despeckleRawBlack",
	"guidedFilterAB",
	"boxFilterGF",
	"localToneMappingMask",
	"sampledConvolution",
	"sampledConvolutionSobel",
	"blueNoise",
	"blendHighlights",
	"transformImage",
	"convertToSRGB",
	"convertToGrayscale",
	"fuseFrames",
	"subtractNoiseImage",
	"subtractNoiseFusedImage",
	"rescaleImage",
}

func (k Kernel) String() string {
	if k<0 || k>=numKernels { return "invalidKernel" }
	return kernelNames[k]
}
