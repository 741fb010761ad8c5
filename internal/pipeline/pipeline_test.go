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
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"github.com/mlnoga/rawlight/internal/compute"
	"github.com/mlnoga/rawlight/internal/raster"
)

func newTestContext() *compute.Context {
	return &compute.Context{Log: io.Discard, MaxThreads: 1}
}

// Uniform mosaic at the given normalized level
func flatMosaic(w, h int, level float32) *raster.Gray16 {
	raw:=raster.NewGray16(w, h)
	v:=uint16(level*65535 + 0.5)
	for i:=range raw.Pix { raw.Pix[i]=v }
	return raw
}

func TestDevelopFlatField(t *testing.T) {
	ctx:=newTestContext()
	raw:=flatMosaic(32, 32, 0.2)

	for _, strategy:=range []string{DemosaicAdaptive, DemosaicMalvar} {
		params:=NewDevelopParameters()
		params.Demosaic=strategy

		out, err:=Develop(ctx, raw, params)
		if err!=nil { t.Fatalf("%s: %v", strategy, err) }
		if out.Width!=32 || out.Height!=32 || out.Channels!=raster.RGBA {
			t.Fatalf("%s: output %dx%dx%d, want 32x32x4", strategy, out.Width, out.Height, out.Channels)
		}

		lo, hi:=float32(2), float32(-1)
		for i:=0; i<len(out.Pix); i+=4 {
			for c:=0; c<3; c++ {
				v:=out.Pix[i+c]
				if math.IsNaN(float64(v)) { t.Fatalf("%s: NaN at %d", strategy, i+c) }
				if v<lo { lo=v }
				if v>hi { hi=v }
			}
		}
		// a flat input must stay flat, companded into display range
		if hi-lo>1e-3 {
			t.Errorf("%s: flat field output spans [%v,%v]", strategy, lo, hi)
		}
		if lo<0.4 || hi>0.6 {
			t.Errorf("%s: companded level [%v,%v], want near sRGB(0.2)", strategy, lo, hi)
		}
	}
}

func TestDevelopFastIsHalfSize(t *testing.T) {
	ctx:=newTestContext()
	params:=NewDevelopParameters()
	params.Demosaic=DemosaicFast

	out, err:=Develop(ctx, flatMosaic(32, 32, 0.2), params)
	if err!=nil { t.Fatal(err) }
	if out.Width!=16 || out.Height!=16 {
		t.Errorf("fast debayer output %dx%d, want 16x16", out.Width, out.Height)
	}
}

func TestDevelopRejectsBadInput(t *testing.T) {
	ctx:=newTestContext()

	params:=NewDevelopParameters()
	if _, err:=Develop(ctx, flatMosaic(10, 10, 0.2), params); err==nil {
		t.Error("undersized mosaic accepted")
	}
	// 14x14 is even but below the three-octave pyramid minimum
	if _, err:=Develop(ctx, flatMosaic(14, 14, 0.2), params); err==nil {
		t.Error("mosaic below pyramid minimum accepted")
	}
	if _, err:=Develop(ctx, flatMosaic(18, 17, 0.2), params); err==nil {
		t.Error("odd mosaic extent accepted")
	}
	if _, err:=Develop(ctx, flatMosaic(16, 16, 0.2), params); err!=nil {
		t.Errorf("minimum extent mosaic rejected: %v", err)
	}

	params=NewDevelopParameters()
	params.Demosaic="bicubic"
	if _, err:=Develop(ctx, flatMosaic(32, 32, 0.2), params); err==nil {
		t.Error("unknown demosaic strategy accepted")
	}

	params=NewDevelopParameters()
	params.BayerPattern="XYZW"
	if _, err:=Develop(ctx, flatMosaic(32, 32, 0.2), params); err==nil {
		t.Error("unknown bayer pattern accepted")
	}
}

func TestLoadParameters(t *testing.T) {
	dir:=t.TempDir()

	jsonPath:=filepath.Join(dir, "params.json")
	if err:=os.WriteFile(jsonPath, []byte(`{"demosaic":"malvar","blackLevel":0.05}`), 0644); err!=nil {
		t.Fatal(err)
	}
	p, err:=LoadParameters(jsonPath)
	if err!=nil { t.Fatal(err) }
	if p.Demosaic!=DemosaicMalvar || p.BlackLevel!=0.05 {
		t.Errorf("json params %q %v, want malvar 0.05", p.Demosaic, p.BlackLevel)
	}
	if p.BayerPattern!="RGGB" { t.Errorf("defaults not applied, pattern %q", p.BayerPattern) }

	yamlPath:=filepath.Join(dir, "params.yaml")
	if err:=os.WriteFile(yamlPath, []byte("demosaic: fast\nexposureMultiplier: 2\n"), 0644); err!=nil {
		t.Fatal(err)
	}
	p, err=LoadParameters(yamlPath)
	if err!=nil { t.Fatal(err) }
	if p.Demosaic!=DemosaicFast || p.ExposureMultiplier!=2 {
		t.Errorf("yaml params %q %v, want fast 2", p.Demosaic, p.ExposureMultiplier)
	}

	if _, err:=LoadParameters(filepath.Join(dir, "missing.json")); err==nil {
		t.Error("missing file accepted")
	}
	badPath:=filepath.Join(dir, "params.json")
	if err:=os.WriteFile(badPath, []byte(`{"demosaic":"bicubic"}`), 0644); err!=nil { t.Fatal(err) }
	if _, err:=LoadParameters(badPath); err==nil {
		t.Error("invalid strategy in file accepted")
	}
}

func TestFuseExposuresIdenticalFrames(t *testing.T) {
	ctx:=newTestContext()
	ref:=raster.NewImage(16, 16, raster.RGBA)
	for i:=0; i<len(ref.Pix); i+=4 {
		ref.Pix[i]=0.3
		ref.Pix[i+3]=1
	}
	frames:=[]Frame{
		{Image: ref, Homography: raster.Identity3x3()},
		{Image: ref, Homography: raster.Identity3x3()},
		{Image: ref, Homography: raster.Identity3x3()},
	}

	out, err:=FuseExposures(ctx, frames, [3]float32{1e-4, 1e-4, 1e-4}, [3]float32{0, 0, 0})
	if err!=nil { t.Fatal(err) }
	for i:=0; i<len(out.Pix); i+=4 {
		if math.Abs(float64(out.Pix[i]-0.3))>1e-5 {
			t.Fatalf("fusing identical flat frames changed luma to %v at %d", out.Pix[i], i)
		}
	}
}

func TestFuseExposuresErrors(t *testing.T) {
	ctx:=newTestContext()
	if _, err:=FuseExposures(ctx, nil, [3]float32{1, 1, 1}, [3]float32{0, 0, 0}); err==nil {
		t.Error("empty frame list accepted")
	}

	ref:=raster.NewImage(16, 16, raster.RGBA)
	other:=raster.NewImage(8, 8, raster.RGBA)
	frames:=[]Frame{{Image: ref, Homography: raster.Identity3x3()}, {Image: other, Homography: raster.Identity3x3()}}
	if _, err:=FuseExposures(ctx, frames, [3]float32{1, 1, 1}, [3]float32{0, 0, 0}); err==nil {
		t.Error("mismatched frame extent accepted")
	}
}

func TestNewDitherTexture(t *testing.T) {
	tex:=NewDitherTexture(16)
	if tex.Width!=16 || tex.Height!=16 { t.Fatalf("texture %dx%d, want 16x16", tex.Width, tex.Height) }

	lo, hi:=uint16(65535), uint16(0)
	sum:=0
	for _, v:=range tex.Pix {
		if v<lo { lo=v }
		if v>hi { hi=v }
		sum+=int(v)
	}
	if lo!=0 || hi!=65535 {
		t.Errorf("texture range [%d,%d], want full 16 bit span", lo, hi)
	}
	mean:=sum/len(tex.Pix)
	if mean<16384 || mean>49152 {
		t.Errorf("texture mean %d badly off center", mean)
	}
}
