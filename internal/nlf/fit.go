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
)

// A flat store of per-window noise statistics, stride channels.
// Kurtosis is nil unless the raw-domain gate applies
type sampleSet struct {
	channels int
	count    int
	mean     []float64
	variance []float64
	kurtosis []float64
}

// Reports whether sample i passes the inclusion gates with the given
// per-channel variance ceiling. All channels must pass
func (s *sampleSet) valid(i int, varianceMax []float64) bool {
	base:=i*s.channels
	for c:=0; c<s.channels; c++ {
		m:=s.mean[base+c]
		v:=s.variance[base+c]
		if math.IsNaN(m) || math.IsNaN(v) { return false }
		if m<minSignal || m>maxSignal   { return false }
		if v>varianceMax[c]             { return false }
		if s.kurtosis!=nil {
			k:=s.kurtosis[base+c]
			if math.IsNaN(k) || k<=minKurtosis || k>=maxKurtosis { return false }
		}
	}
	return true
}

// Fits variance = A + B*signal per channel with two regression passes.
// The first pass runs ordinary least squares over all samples below the
// initial variance ceiling. The second pass tightens the ceiling to the
// fitted slope, drops samples whose squared residual against the first
// model exceeds half its mean squared error, and refits on the survivors.
// The refit is always adopted; when it fails to improve on the first pass
// the report is flagged degraded and a warning is logged
func fitClosedForm(log io.Writer, tag string, s *sampleSet) (NLF, FitReport) {
	ch:=s.channels
	varianceMax:=make([]float64, ch)
	for c:=range varianceMax { varianceMax[c]=varianceCeiling }

	sx, sy:=make([]float64, ch), make([]float64, ch)
	sxx, sxy:=make([]float64, ch), make([]float64, ch)
	accumulate:=func(i int) {
		base:=i*ch
		for c:=0; c<ch; c++ {
			m, v:=s.mean[base+c], s.variance[base+c]
			sx[c]+=m
			sy[c]+=v
			sxx[c]+=m*m
			sxy[c]+=m*v
		}
	}

	n:=float64(0)
	for i:=0; i<s.count; i++ {
		if !s.valid(i, varianceMax) { continue }
		accumulate(i)
		n++
	}

	a, b:=make([]float64, ch), make([]float64, ch)
	solve:=func(n float64) {
		for c:=0; c<ch; c++ {
			b[c]=floorClamp((n*sxy[c]-sx[c]*sy[c])/(n*sxx[c]-sx[c]*sx[c]))
			a[c]=floorClamp((sy[c]-b[c]*sx[c])/n)
		}
	}
	solve(n)

	// mean squared residual of the first model over its inclusion set
	err2:=make([]float64, ch)
	for i:=0; i<s.count; i++ {
		if !s.valid(i, varianceMax) { continue }
		base:=i*ch
		for c:=0; c<ch; c++ {
			d:=a[c]+b[c]*s.mean[base+c] - s.variance[base+c]
			err2[c]+=d*d
		}
	}
	for c:=0; c<ch; c++ { err2[c]/=n }

	// refit on samples consistent with the first model
	copy(varianceMax, b)
	for c:=range sx { sx[c], sy[c], sxx[c], sxy[c]=0, 0, 0, 0 }
	newErr2:=make([]float64, ch)
	n2:=float64(0)
	for i:=0; i<s.count; i++ {
		if !s.valid(i, varianceMax) { continue }
		base:=i*ch
		keep:=true
		for c:=0; c<ch; c++ {
			d:=a[c]+b[c]*s.mean[base+c] - s.variance[base+c]
			if d*d>0.5*err2[c] { keep=false; break }
		}
		if !keep { continue }
		accumulate(i)
		for c:=0; c<ch; c++ {
			d:=a[c]+b[c]*s.mean[base+c] - s.variance[base+c]
			newErr2[c]+=d*d
		}
		n2++
	}
	for c:=0; c<ch; c++ { newErr2[c]/=n2 }
	solve(n2)

	degraded:=false
	for c:=0; c<ch; c++ {
		if !(newErr2[c]<=err2[c]) { degraded=true }
	}

	rep:=FitReport{Samples: int(n2), Total: s.count, RMSE: make([]float64, ch), Degraded: degraded}
	for c:=0; c<ch; c++ { rep.RMSE[c]=math.Sqrt(newErr2[c]) }

	if log!=nil {
		if degraded {
			fmt.Fprintf(log, "%s NLF warning: refit did not improve, RMSE %.4e on %.1f%% samples\n",
				tag, rep.RMSE, 100*rep.Coverage())
		} else {
			fmt.Fprintf(log, "%s NLF A %.4e B %.4e RMSE %.4e on %.1f%% samples\n",
				tag, a, b, rep.RMSE, 100*rep.Coverage())
		}
	}

	res:=New(ch)
	for c:=0; c<ch; c++ {
		res.A[c]=float32(a[c])
		res.B[c]=float32(b[c])
	}
	return res, rep
}
