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


// Package nlf estimates noise level functions, linear models of pixel
// variance as a function of signal level. A separate model is fitted per
// color channel from local noise statistics gathered by the stage kernels.
package nlf

import (
	"math"
)

// Regression coefficients never fall below this floor, so downstream
// stages can divide by a noise estimate without checking for zero
const coefFloor = 1e-8

// Samples outside the sensor's linear response zone are excluded from
// the fit
const (
	minSignal = 0.001
	maxSignal = 0.5
)

// Initial ceiling on sample variance. Statistics windows overlapping
// real image structure report variances far above photon noise; after
// the first fit the ceiling is tightened to the fitted slope
const varianceCeiling = 0.001

// Raw-domain samples must look Gaussian. Excess kurtosis outside this
// band flags defective pixels or clipped highlights
const (
	minKurtosis = -1.0
	maxKurtosis = 1.0
)

// A noise level function models per-channel pixel variance as
// variance = A + B*signal for signal in [0,1]
type NLF struct {
	A []float32 `json:"a"`
	B []float32 `json:"b"`
}

// Allocates a noise level function for the given number of channels,
// with all coefficients at the floor
func New(channels int) NLF {
	n:=NLF{A: make([]float32, channels), B: make([]float32, channels)}
	for c:=0; c<channels; c++ {
		n.A[c]=coefFloor
		n.B[c]=coefFloor
	}
	return n
}

// Number of channels the model covers
func (n NLF) Channels() int { return len(n.A) }

// Modeled variance of the given channel at the given signal level
func (n NLF) VarianceAt(c int, signal float32) float32 {
	return n.A[c]+n.B[c]*signal
}

// Modeled standard deviation of the given channel at the given signal level
func (n NLF) SigmaAt(c int, signal float32) float32 {
	return float32(math.Sqrt(float64(n.VarianceAt(c, signal))))
}

// Scales all coefficients, e.g. to normalize for exposure gain
func (n NLF) Scale(factor float32) {
	for c:=range n.A {
		n.A[c]*=factor
		n.B[c]*=factor
	}
}

// Selects the regression strategy for fitting a noise level function
type Estimator int

const (
	// Two-pass ordinary least squares with residual-gated outlier
	// rejection. Deterministic and fast, the default
	EstimateClosedForm Estimator = iota

	// Least median of squares over randomly sampled point pairs.
	// Slower, robust to a larger fraction of contaminated samples
	EstimateLMedS
)

// Describes the quality of a completed fit
type FitReport struct {
	Samples   int       // statistics windows surviving all gates
	Total     int       // statistics windows examined
	RMSE      []float64 // root mean squared residual per channel
	Degraded  bool      // the refit did not improve on the first pass
}

// Fraction of examined windows that contributed to the fit
func (r *FitReport) Coverage() float64 {
	if r.Total==0 { return 0 }
	return float64(r.Samples)/float64(r.Total)
}

// NaN-safe clamp to the coefficient floor
func floorClamp(v float64) float64 {
	if math.IsNaN(v) || v<coefFloor { return coefFloor }
	return v
}
