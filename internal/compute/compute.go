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
	"io"
	"runtime"
	"sync"
	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"
)

// Called before a kernel runs over its extent. Hosts may wire this
// to tracing or intermediate-image dumps; the library itself never
// writes to the filesystem.
type TraceFunc func(k Kernel, width, height int)

// An execution context for kernel stages. The kernel catalog is fixed at
// build time; dispatch parallelizes rows across worker goroutines, and a
// stage's output is complete when Dispatch returns.
type Context struct {
	Log        io.Writer
	MaxThreads int       // worker goroutines per dispatch
	MemoryMB   int       // memory.TotalMemory()/1024/1024
	Trace      TraceFunc // optional instrumentation hook
	bandRows   int       // rows per work item
}

// Creates a compute context logging to the given writer
func NewContext(log io.Writer) *Context {
	// wider bands keep vector units busy on longer runs of pixels
	bandRows:=4
	if cpuid.CPU.AVX2() { bandRows=16 }
	return &Context{
		Log:        log,
		MaxThreads: runtime.GOMAXPROCS(0),
		MemoryMB:   int(memory.TotalMemory()/1024/1024),
		bandRows:   bandRows,
	}
}

// Runs the kernel body over every (x,y) in the width x height extent,
// parallelized across row bands. The body must not read pixels it writes;
// in-place aliasing between distinct kernel arguments is caller error.
func (c *Context) Dispatch(k Kernel, width, height int, body func(x, y int)) {
	if c.Trace!=nil { c.Trace(k, width, height) }

	maxThreads:=c.MaxThreads
	if maxThreads<1 { maxThreads=1 }
	bandRows:=c.bandRows
	if bandRows<1 { bandRows=1 }

	bands:=(height+bandRows-1)/bandRows
	if bands<=1 || maxThreads==1 {
		for y:=0; y<height; y++ {
			for x:=0; x<width; x++ { body(x, y) }
		}
		return
	}

	limiter:=make(chan bool, maxThreads)
	wg:=sync.WaitGroup{}
	for b:=0; b<bands; b++ {
		limiter <- true
		wg.Add(1)
		go func(yLo int) {
			defer func() { <-limiter; wg.Done() }()
			yHi:=yLo+bandRows
			if yHi>height { yHi=height }
			for y:=yLo; y<yHi; y++ {
				for x:=0; x<width; x++ { body(x, y) }
			}
		}(b*bandRows)
	}
	wg.Wait()
}
