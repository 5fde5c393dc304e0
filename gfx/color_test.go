// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gfx

import (
	"image"
	stdcolor "image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSRGBRoundTrip(t *testing.T) {
	for v := range 256 {
		f := float32(v) / 255
		got := ToSRGB(FromSRGB(f))
		assert.InDelta(t, f, got, 1e-5, "value %d", v)
	}
}

func TestSRGBEndpoints(t *testing.T) {
	assert.Equal(t, float32(0), ToSRGB(0))
	assert.InDelta(t, 1, ToSRGB(1), 1e-6)
	assert.InDelta(t, 0.5, FromSRGB(ToSRGB(0.5)), 1e-6)
	// Linear segment below the cutoff.
	assert.InDelta(t, 0.001*12.92, ToSRGB(0.001), 1e-7)
}

func TestPackRGBA(t *testing.T) {
	for _, c := range []uint32{0, 0xFF0000FF, 0x12345678, 0xFFFFFFFF, 0x80808080} {
		assert.Equal(t, c, PackRGBA(UnpackRGBA(c)), "%08x", c)
	}
	assert.Equal(t, uint32(0xFF00FF00), PackRGBA([4]float32{2, -1, 1.5, 0}))
}

func TestPremultiplyRoundTrip(t *testing.T) {
	for _, c := range []uint32{0xFF0000FF, 0x336699FF, 0x00FF0080, 0xFFFFFF40} {
		got := Unpremultiply(Premultiply(c))
		assert.Equal(t, c, got, "%08x", c)
	}
	assert.Equal(t, uint32(0), Unpremultiply(Premultiply(0x12345600)))
}

func TestPackedSRGBRoundTrip(t *testing.T) {
	for v := range uint32(256) {
		for shift := uint32(8); shift <= 24; shift += 8 {
			c := v<<shift | 0xFF
			got := Unpremultiply(Premultiply(c))
			for s := uint32(0); s <= 24; s += 8 {
				w, g := int(c>>s&0xFF), int(got>>s&0xFF)
				if d := w - g; d > 1 || d < -1 {
					t.Errorf("%08x: got %08x", c, got)
					break
				}
			}
		}
	}
}

func TestPremultiplyOpaqueRed(t *testing.T) {
	v := Premultiply(0xFF0000FF)
	want := [4]float32{1, 0, 0, 1}
	for i := range v {
		assert.InDelta(t, want[i], v[i], 1e-6)
	}
}

func TestNewImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 7, 6))
	src.Set(5, 5, stdcolor.RGBA{R: 0xFF, A: 0xFF})
	src.Set(6, 5, stdcolor.RGBA{G: 0x80, A: 0x80})

	img := NewImage(src)
	require.Equal(t, 2, img.Width)
	require.Equal(t, 1, img.Height)
	assert.Equal(t, uint32(0xFF0000FF), img.At(0, 0))
	// Premultiplied 0x80 green at half alpha is full green.
	assert.Equal(t, uint32(0x00FF0080), img.At(1, 0))
	assert.Equal(t, uint32(0), img.At(2, 0))
	assert.Equal(t, uint32(0), img.At(-1, 0))
}

func TestImagesLookup(t *testing.T) {
	imgs := NewImages(image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	assert.NotNil(t, imgs.Lookup(0))
	assert.Nil(t, imgs.Lookup(1))
}

func TestToNRGBA(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 11)
	}
	img := NewImage(src)
	assert.Equal(t, src.Pix, img.ToNRGBA().Pix)
	assert.Equal(t, src.Rect, img.ToNRGBA().Rect)
}
