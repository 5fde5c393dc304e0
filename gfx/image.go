// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package gfx

import (
	"image"

	"golang.org/x/image/draw"
)

// Image is a read-only texture. Each texel is a packed 0xRRGGBBAA color in
// sRGB with straight alpha.
type Image struct {
	Width  int
	Height int
	Pixels []uint32
}

// NewImage converts img to an Image. The image's bounds are translated so
// that its top-left corner becomes texel (0, 0).
func NewImage(img image.Image) Image {
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}

	out := Image{
		Width:  b.Dx(),
		Height: b.Dy(),
		Pixels: make([]uint32, b.Dx()*b.Dy()),
	}
	for y := range out.Height {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+out.Width*4]
		for x := range out.Width {
			p := row[x*4 : x*4+4 : x*4+4]
			out.Pixels[y*out.Width+x] = uint32(p[0])<<24 | uint32(p[1])<<16 | uint32(p[2])<<8 | uint32(p[3])
		}
	}
	return out
}

// At returns the texel at (x, y), or transparent black outside the image.
func (img *Image) At(x, y int) uint32 {
	if x < 0 || y < 0 || x >= img.Width || y >= img.Height {
		return 0
	}
	return img.Pixels[y*img.Width+x]
}

// Images is the image store referenced by FillImage elements.
type Images []Image

func NewImages(imgs ...image.Image) Images {
	out := make(Images, len(imgs))
	for i, img := range imgs {
		out[i] = NewImage(img)
	}
	return out
}

// Lookup returns the image with the given index, or nil.
func (imgs Images) Lookup(index uint32) *Image {
	if uint64(index) >= uint64(len(imgs)) {
		return nil
	}
	return &imgs[index]
}

// ToNRGBA copies the image into an image.NRGBA.
func (img *Image) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := range img.Height {
		row := out.Pix[y*out.Stride : y*out.Stride+img.Width*4]
		for x, c := range img.Pixels[y*img.Width : (y+1)*img.Width] {
			row[x*4+0] = uint8(c >> 24)
			row[x*4+1] = uint8(c >> 16)
			row[x*4+2] = uint8(c >> 8)
			row[x*4+3] = uint8(c)
		}
	}
	return out
}
