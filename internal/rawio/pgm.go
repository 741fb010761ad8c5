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


// Package rawio reads and writes the external image formats of the CLI
// and REST surfaces: 16-bit PGM mosaics in, 16-bit TIFF and previews
// out. Raw format metadata handling beyond plain mosaics lives in the
// calibration tooling, not here.
package rawio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"github.com/mlnoga/rawlight/internal/raster"
)

// Reads a 16-bit binary PGM (P5) mosaic. 8-bit files are widened to 16
// bits so the pipeline always sees the full range
func ReadPGM16(r io.Reader) (*raster.Gray16, error) {
	br:=bufio.NewReader(r)

	magic, err:=pgmToken(br)
	if err!=nil { return nil, err }
	if magic!="P5" { return nil, fmt.Errorf("bad PGM magic %q, want P5", magic) }

	var width, height, maxVal int
	for _, v:=range []*int{&width, &height, &maxVal} {
		tok, err:=pgmToken(br)
		if err!=nil { return nil, err }
		if _, err:=fmt.Sscanf(tok, "%d", v); err!=nil {
			return nil, fmt.Errorf("bad PGM header token %q", tok)
		}
	}
	if width<=0 || height<=0 { return nil, fmt.Errorf("bad PGM extent %dx%d", width, height) }
	if maxVal<=0 || maxVal>=65536 { return nil, fmt.Errorf("bad PGM maximum value %d", maxVal) }

	img:=raster.NewGray16(width, height)
	if maxVal<256 {
		buf:=make([]byte, width*height)
		if _, err:=io.ReadFull(br, buf); err!=nil { return nil, err }
		for i, b:=range buf {
			img.Pix[i]=uint16(int(b)*65535/maxVal)
		}
	} else {
		buf:=make([]byte, 2*width*height)
		if _, err:=io.ReadFull(br, buf); err!=nil { return nil, err }
		for i:=range img.Pix {
			v:=int(buf[2*i])<<8 | int(buf[2*i+1])
			img.Pix[i]=uint16(v*65535/maxVal)
		}
	}
	return img, nil
}

// Reads a 16-bit binary PGM mosaic from a file
func ReadPGM16FromFile(path string) (*raster.Gray16, error) {
	file, err:=os.Open(path)
	if err!=nil { return nil, err }
	defer file.Close()
	img, err:=ReadPGM16(file)
	if err!=nil { return nil, fmt.Errorf("%s: %w", path, err) }
	return img, nil
}

// Writes a 16-bit binary PGM mosaic
func WritePGM16(w io.Writer, img *raster.Gray16) error {
	bw:=bufio.NewWriter(w)
	fmt.Fprintf(bw, "P5\n%d %d\n65535\n", img.Width, img.Height)
	buf:=make([]byte, 2*len(img.Pix))
	for i, v:=range img.Pix {
		buf[2*i]=byte(v>>8)
		buf[2*i+1]=byte(v)
	}
	if _, err:=bw.Write(buf); err!=nil { return err }
	return bw.Flush()
}

// Next whitespace-delimited header token, skipping # comments
func pgmToken(r *bufio.Reader) (string, error) {
	tok:=make([]byte, 0, 16)
	for {
		b, err:=r.ReadByte()
		if err!=nil {
			if err==io.EOF && len(tok)>0 { return string(tok), nil }
			return "", err
		}
		switch {
		case b=='#':
			if _, err:=r.ReadString('\n'); err!=nil { return "", err }
		case b==' ' || b=='\t' || b=='\r' || b=='\n':
			if len(tok)>0 { return string(tok), nil }
		default:
			tok=append(tok, b)
		}
	}
}
