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

import (
	"io/ioutil"
	"sync/atomic"
	"testing"
)

func TestDispatchCoversExtent(t *testing.T) {
	ctx:=NewContext(ioutil.Discard)
	width, height:=37, 53
	var count int64
	ctx.Dispatch(KRescaleImage, width, height, func(x, y int) {
		atomic.AddInt64(&count, 1)
	})
	if count!=int64(width*height) {
		t.Errorf("dispatch visited %d pixels; want %d", count, width*height)
	}
}

func TestDispatchEachPixelOnce(t *testing.T) {
	ctx:=NewContext(ioutil.Discard)
	width, height:=64, 48
	visited:=make([]int32, width*height)
	ctx.Dispatch(KDenoiseImage, width, height, func(x, y int) {
		atomic.AddInt32(&visited[y*width+x], 1)
	})
	for i, v:=range visited {
		if v!=1 { t.Fatalf("pixel %d visited %d times; want 1", i, v) }
	}
}

func TestTraceHook(t *testing.T) {
	ctx:=NewContext(ioutil.Discard)
	var traced Kernel = -1
	ctx.Trace=func(k Kernel, w, h int) { traced=k }
	ctx.Dispatch(KFastDebayer, 2, 2, func(x, y int) {})
	if traced!=KFastDebayer { t.Errorf("trace hook saw %v; want %v", traced, KFastDebayer) }
}

func TestKernelNames(t *testing.T) {
	if KScaleRawData.String()!="scaleRawData" { t.Errorf("bad name %s", KScaleRawData) }
	if KRescaleImage.String()!="rescaleImage" { t.Errorf("bad name %s", KRescaleImage) }
	for k:=Kernel(0); k<numKernels; k++ {
		if k.String()=="" { t.Errorf("kernel %d has empty name", k) }
	}
}
