// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package jmath contains float32 helpers and the affine transform shared by
// the encoder and the kernels.
package jmath

import (
	"math"
	"structs"

	"golang.org/x/exp/constraints"
	"honnef.co/go/curve"
)

func Abs32(f float32) float32 {
	return float32(math.Abs(float64(f)))
}

func Sqrt32(f float32) float32 {
	return float32(math.Sqrt(float64(f)))
}

func Floor32(f float32) float32 {
	return float32(math.Floor(float64(f)))
}

func Ceil32(f float32) float32 {
	return float32(math.Ceil(float64(f)))
}

func Pow32(x, y float32) float32 {
	return float32(math.Pow(float64(x), float64(y)))
}

func Hypot32(x, y float32) float32 {
	return float32(math.Hypot(float64(x), float64(y)))
}

// Sign32 returns -1, 0 or 1, like GLSL's sign.
func Sign32(f float32) float32 {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	default:
		return 0
	}
}

func Clamp[T constraints.Integer | constraints.Float](x, lo, hi T) T {
	return min(max(x, lo), hi)
}

func Mix32(a, b, t float32) float32 {
	return a + (b-a)*t
}

// AlignUp rounds n up to a multiple of alignment, which has to be a power of
// two.
func AlignUp[T constraints.Integer](n, alignment T) T {
	return (n + alignment - 1) & -alignment
}

// Transform is a 2x2 matrix in column-major order followed by a translation.
type Transform struct {
	_ structs.HostLayout

	Matrix      [4]float32
	Translation [2]float32
}

var Identity = Transform{
	Matrix: [4]float32{1, 0, 0, 1},
}

func (t Transform) Mul(other Transform) Transform {
	return Transform{
		Matrix: [4]float32{
			t.Matrix[0]*other.Matrix[0] + t.Matrix[2]*other.Matrix[1],
			t.Matrix[1]*other.Matrix[0] + t.Matrix[3]*other.Matrix[1],
			t.Matrix[0]*other.Matrix[2] + t.Matrix[2]*other.Matrix[3],
			t.Matrix[1]*other.Matrix[2] + t.Matrix[3]*other.Matrix[3],
		},
		Translation: [2]float32{
			t.Matrix[0]*other.Translation[0] +
				t.Matrix[2]*other.Translation[1] +
				t.Translation[0],
			t.Matrix[1]*other.Translation[0] +
				t.Matrix[3]*other.Translation[1] +
				t.Translation[1],
		},
	}
}

func (t Transform) Apply(x, y float32) (float32, float32) {
	return t.Matrix[0]*x + t.Matrix[2]*y + t.Translation[0],
		t.Matrix[1]*x + t.Matrix[3]*y + t.Translation[1]
}

func (t Transform) Determinant() float32 {
	return t.Matrix[0]*t.Matrix[3] - t.Matrix[1]*t.Matrix[2]
}

// HalfWidth returns the per-axis half extent of a stroke of the given width
// under the transform's linear part.
func (t Transform) HalfWidth(lineWidth float32) (float32, float32) {
	return 0.5 * lineWidth * Hypot32(t.Matrix[0], t.Matrix[2]),
		0.5 * lineWidth * Hypot32(t.Matrix[1], t.Matrix[3])
}

func TransformFromAffine(transform curve.Affine) Transform {
	c := transform.Coefficients()
	return Transform{
		Matrix:      [4]float32{float32(c[0]), float32(c[1]), float32(c[2]), float32(c[3])},
		Translation: [2]float32{float32(c[4]), float32(c[5])},
	}
}

func Translate(x, y float32) Transform {
	return Transform{
		Matrix:      [4]float32{1, 0, 0, 1},
		Translation: [2]float32{x, y},
	}
}

func Scale(sx, sy float32) Transform {
	return Transform{
		Matrix: [4]float32{sx, 0, 0, sy},
	}
}
