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


package nlf

import (
	"fmt"
	"io"
	"math"
	"sort"
	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/stat"
)

// Iteration budget and convergence threshold for the least median of
// squares search
const (
	lmedsIterations = 100
	lmedsThreshold  = 1e-6
)

// Inliers of the winning model are those within this many robust
// standard deviations of the median residual
const lmedsInlierScale = 2.5

// Fits variance = A + B*signal per channel by least median of squares.
// Candidate models are built from randomly sampled pairs of points; the
// model minimizing the median residual over all samples wins, and is then
// polished with an ordinary least squares pass over its inliers. Slower
// than the closed form fit but tolerant of heavy contamination
func fitLMedS(log io.Writer, tag string, s *sampleSet) (NLF, FitReport) {
	ch:=s.channels

	// drop NaN and out-of-range samples up front
	ceiling:=make([]float64, ch)
	for c:=range ceiling { ceiling[c]=varianceCeiling }
	idx:=make([]int, 0, s.count)
	for i:=0; i<s.count; i++ {
		if s.valid(i, ceiling) { idx=append(idx, i) }
	}

	res:=New(ch)
	if len(idx)<2 {
		if log!=nil { fmt.Fprintf(log, "%s NLF warning: %d samples, need 2 for LMedS\n", tag, len(idx)) }
		return res, FitReport{Samples: 0, Total: s.count, RMSE: make([]float64, ch), Degraded: true}
	}

	// residual of one sample against a candidate model, euclidean over channels
	residual:=func(a, b []float64, i int) float64 {
		base:=i*ch
		sum:=float64(0)
		for c:=0; c<ch; c++ {
			d:=a[c]+b[c]*s.mean[base+c] - s.variance[base+c]
			sum+=d*d
		}
		return math.Sqrt(sum)
	}

	var rng fastrand.RNG
	a, b:=make([]float64, ch), make([]float64, ch)
	bestA, bestB:=make([]float64, ch), make([]float64, ch)
	errs:=make([]float64, len(idx))
	bestLoss:=math.Inf(1)

	for iter:=0; iter<lmedsIterations; iter++ {
		i:=idx[rng.Uint32n(uint32(len(idx)))]
		j:=idx[rng.Uint32n(uint32(len(idx)))]
		if i==j { continue }

		// exact line through the sampled pair, per channel
		degenerate:=false
		for c:=0; c<ch; c++ {
			m1, v1:=s.mean[i*ch+c], s.variance[i*ch+c]
			m2, v2:=s.mean[j*ch+c], s.variance[j*ch+c]
			if m1==m2 { degenerate=true; break }
			b[c]=(v2-v1)/(m2-m1)
			a[c]=v1-b[c]*m1
		}
		if degenerate { continue }

		for k, si:=range idx { errs[k]=residual(a, b, si) }
		sort.Float64s(errs)
		loss:=stat.Quantile(0.5, stat.Empirical, errs, nil)
		if loss<bestLoss {
			bestLoss=loss
			copy(bestA, a)
			copy(bestB, b)
			if bestLoss<lmedsThreshold { break }
		}
	}

	// polish with least squares over the winning model's inliers
	gate:=lmedsInlierScale*bestLoss
	if gate<lmedsThreshold { gate=lmedsThreshold }
	xs:=make([]float64, 0, len(idx))
	ys:=make([]float64, 0, len(idx))
	inliers:=make([]int, 0, len(idx))
	for _, si:=range idx {
		if residual(bestA, bestB, si)<=gate { inliers=append(inliers, si) }
	}

	rep:=FitReport{Samples: len(inliers), Total: s.count, RMSE: make([]float64, ch)}
	if len(inliers)<2 {
		rep.Degraded=true
		for c:=0; c<ch; c++ {
			res.A[c]=float32(floorClamp(bestA[c]))
			res.B[c]=float32(floorClamp(bestB[c]))
		}
		return res, rep
	}

	for c:=0; c<ch; c++ {
		xs, ys=xs[:0], ys[:0]
		for _, si:=range inliers {
			xs=append(xs, s.mean[si*ch+c])
			ys=append(ys, s.variance[si*ch+c])
		}
		alpha, beta:=stat.LinearRegression(xs, ys, nil, false)
		a[c]=floorClamp(alpha)
		b[c]=floorClamp(beta)

		sum:=float64(0)
		for k:=range xs {
			d:=a[c]+b[c]*xs[k] - ys[k]
			sum+=d*d
		}
		rep.RMSE[c]=math.Sqrt(sum/float64(len(xs)))
		res.A[c]=float32(a[c])
		res.B[c]=float32(b[c])
	}

	if log!=nil {
		fmt.Fprintf(log, "%s NLF A %.4e B %.4e median loss %.4e on %.1f%% samples\n",
			tag, a, b, bestLoss, 100*rep.Coverage())
	}
	return res, rep
}
