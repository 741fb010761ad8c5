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
	"bytes"
	"strings"
	"testing"
	"golang.org/x/image/tiff"
	"github.com/mlnoga/rawlight/internal/raster"
)

func TestPGM16RoundTrip(t *testing.T) {
	img:=raster.NewGray16(4, 3)
	for i:=range img.Pix { img.Pix[i]=uint16(i*5000) }

	buf:=&bytes.Buffer{}
	if err:=WritePGM16(buf, img); err!=nil { t.Fatal(err) }
	got, err:=ReadPGM16(buf)
	if err!=nil { t.Fatal(err) }
	if got.Width!=4 || got.Height!=3 { t.Fatalf("extent %dx%d, want 4x3", got.Width, got.Height) }
	for i:=range img.Pix {
		if got.Pix[i]!=img.Pix[i] {
			t.Fatalf("pixel %d: %d != %d", i, got.Pix[i], img.Pix[i])
		}
	}
}

func TestReadPGM16Header(t *testing.T) {
	// comments and flexible whitespace are part of the format
	src:="P5 # magic\n# a comment line\n2 1\n255\n"+string([]byte{0, 255})
	img, err:=ReadPGM16(strings.NewReader(src))
	if err!=nil { t.Fatal(err) }
	if img.Width!=2 || img.Height!=1 { t.Fatalf("extent %dx%d, want 2x1", img.Width, img.Height) }
	if img.Pix[0]!=0 || img.Pix[1]!=65535 {
		t.Errorf("8-bit values %d %d not widened to 0 65535", img.Pix[0], img.Pix[1])
	}

	if _, err:=ReadPGM16(strings.NewReader("P2\n2 1\n255\n")); err==nil {
		t.Error("ASCII PGM accepted")
	}
	if _, err:=ReadPGM16(strings.NewReader("P5\n-2 1\n255\n")); err==nil {
		t.Error("negative extent accepted")
	}
}

func TestWriteTIFF16(t *testing.T) {
	img:=raster.NewImage(4, 4, raster.RGBA)
	for i:=0; i<len(img.Pix); i+=4 {
		img.Pix[i]=0.5
		img.Pix[i+1]=0.25
		img.Pix[i+2]=1
		img.Pix[i+3]=1
	}

	buf:=&bytes.Buffer{}
	if err:=WriteTIFF16(buf, img); err!=nil { t.Fatal(err) }
	decoded, err:=tiff.Decode(buf)
	if err!=nil { t.Fatal(err) }
	if b:=decoded.Bounds(); b.Dx()!=4 || b.Dy()!=4 {
		t.Errorf("decoded extent %dx%d, want 4x4", b.Dx(), b.Dy())
	}
	r, g, _, _:=decoded.At(0, 0).RGBA()
	if r>>8!=127 && r>>8!=128 { t.Errorf("red %d, want about half scale", r>>8) }
	if g>>8!=63 && g>>8!=64 { t.Errorf("green %d, want about quarter scale", g>>8) }
}
