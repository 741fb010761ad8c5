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


package raster

import (
	"fmt"
	"gonum.org/v1/gonum/mat"
)

// A 3x3 matrix passed by value. Used for colorspace transforms
// and for homographies between frames.
type Matrix3x3 [3][3]float32

// The identity matrix
func Identity3x3() Matrix3x3 {
	return Matrix3x3{{1,0,0},{0,1,0},{0,0,1}}
}

// Matrix-vector product
func (m Matrix3x3) MulVec(v [3]float32) [3]float32 {
	return [3]float32{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// Matrix-matrix product m*o
func (m Matrix3x3) Mul(o Matrix3x3) Matrix3x3 {
	var res Matrix3x3
	for i:=0; i<3; i++ {
		for j:=0; j<3; j++ {
			res[i][j]=m[i][0]*o[0][j] + m[i][1]*o[1][j] + m[i][2]*o[2][j]
		}
	}
	return res
}

// Inverts the matrix. Errors on singular input
func (m Matrix3x3) Inverse() (Matrix3x3, error) {
	d:=mat.NewDense(3, 3, nil)
	for i:=0; i<3; i++ {
		for j:=0; j<3; j++ {
			d.Set(i, j, float64(m[i][j]))
		}
	}
	var inv mat.Dense
	if err:=inv.Inverse(d); err!=nil {
		return Matrix3x3{}, fmt.Errorf("singular 3x3 matrix: %s", err.Error())
	}
	var res Matrix3x3
	for i:=0; i<3; i++ {
		for j:=0; j<3; j++ {
			res[i][j]=float32(inv.At(i, j))
		}
	}
	return res, nil
}

// Applies the matrix as a homography: projects (x,y,1) and
// divides by the resulting w coordinate
func (m Matrix3x3) Project(x, y float32) (px, py float32) {
	v:=m.MulVec([3]float32{x, y, 1})
	w:=v[2]
	if w==0 { w=1e-20 }
	return v[0]/w, v[1]/w
}
