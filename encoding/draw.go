// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package encoding

import (
	"honnef.co/go/color"
	"honnef.co/go/tessera/gfx"
)

// FillColor paints the current path with a packed 0xRRGGBBAA color in sRGB
// with straight alpha.
func (enc *Encoding) FillColor(rgba uint32) {
	enc.paint(Element{Tag: ElementFillColor, Payload: [8]uint32{rgba}})
}

// FillColorSpace paints the current path with c, converted to sRGB.
func (enc *Encoding) FillColorSpace(c *color.Color) {
	enc.FillColor(gfx.Pack(c))
}

// FillImage paints the current path with the image at index in the image
// store. Pixel (x, y) samples texel (x+dx, y+dy).
func (enc *Encoding) FillImage(index uint32, dx, dy int16) {
	enc.paint(Element{Tag: ElementFillImage, Payload: [8]uint32{index, PackOffset(dx, dy)}})
}
