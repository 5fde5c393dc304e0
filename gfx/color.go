// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package gfx contains the color and image formats shared by the encoder and
// the fine rasterizer.
//
// Scene colors are packed as 0xRRGGBBAA with sRGB-encoded components and
// straight alpha. The rasterizer blends in linear space with premultiplied
// alpha.
package gfx

import (
	"math"

	"honnef.co/go/color"
	"honnef.co/go/tessera/jmath"
)

// ToSRGB applies the sRGB transfer function to a linear component.
func ToSRGB(x float32) float32 {
	if x <= 0.0031308 {
		return x * 12.92
	}
	return 1.055*jmath.Pow32(x, 1.0/2.4) - 0.055
}

// FromSRGB is the inverse of ToSRGB.
func FromSRGB(x float32) float32 {
	if x <= 0.04045 {
		return x / 12.92
	}
	return jmath.Pow32((x+0.055)/1.055, 2.4)
}

// UnpackRGBA splits a packed 0xRRGGBBAA color into components in [0, 1].
func UnpackRGBA(c uint32) [4]float32 {
	return [4]float32{
		float32(c>>24) / 255,
		float32(c>>16&0xFF) / 255,
		float32(c>>8&0xFF) / 255,
		float32(c&0xFF) / 255,
	}
}

// PackRGBA is the inverse of UnpackRGBA. Components are clamped to [0, 1]
// and rounded to the nearest 8-bit value.
func PackRGBA(v [4]float32) uint32 {
	var out uint32
	for _, f := range v {
		if f != f {
			f = 0
		}
		out = out<<8 | uint32(jmath.Clamp(f, 0, 1)*255+0.5)
	}
	return out
}

// Premultiply converts a packed sRGB color with straight alpha into linear,
// premultiplied components.
func Premultiply(c uint32) [4]float32 {
	v := UnpackRGBA(c)
	a := v[3]
	return [4]float32{
		FromSRGB(v[0]) * a,
		FromSRGB(v[1]) * a,
		FromSRGB(v[2]) * a,
		a,
	}
}

// Unpremultiply is the inverse of Premultiply. Fully transparent colors
// pack to zero.
func Unpremultiply(rgba [4]float32) uint32 {
	a := rgba[3]
	if a <= 0 {
		return 0
	}
	inv := 1 / a
	return PackRGBA([4]float32{
		ToSRGB(min(rgba[0]*inv, 1)),
		ToSRGB(min(rgba[1]*inv, 1)),
		ToSRGB(min(rgba[2]*inv, 1)),
		a,
	})
}

// Pack converts c to the packed scene color format.
func Pack(c *color.Color) uint32 {
	cc := c.Convert(color.LinearSRGB)
	clamp := func(v float64) float32 {
		if math.IsNaN(v) {
			return 0
		}
		return float32(min(max(v, 0), 1))
	}
	return PackRGBA([4]float32{
		ToSRGB(clamp(cc.Values[0])),
		ToSRGB(clamp(cc.Values[1])),
		ToSRGB(clamp(cc.Values[2])),
		clamp(cc.Values[3]),
	})
}
