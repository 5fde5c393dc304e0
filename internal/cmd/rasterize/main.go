// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Command rasterize renders a demo scene to a PNG file.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"math"
	"os"
	"os/signal"

	"github.com/kelseyhightower/envconfig"
	"honnef.co/go/curve"
	"honnef.co/go/tessera"
	"honnef.co/go/tessera/encoding"
	"honnef.co/go/tessera/gfx"
	"honnef.co/go/tessera/jmath"
)

type config struct {
	Output string `envconfig:"OUTPUT" default:"out.png"`
	Width  uint32 `envconfig:"WIDTH" default:"512"`
	Height uint32 `envconfig:"HEIGHT" default:"512"`
}

func main() {
	var cfg config
	if err := envconfig.Process("RASTERIZE", &cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	opts, err := tessera.LoadOptions()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-out file] [-width n] [-height n]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.StringVar(&cfg.Output, "out", cfg.Output, "Path to output `file`")
	width := flag.Uint("width", uint(cfg.Width), "Width of the image in pixels")
	height := flag.Uint("height", uint(cfg.Height), "Height of the image in pixels")
	flag.Parse()
	if len(flag.Args()) != 0 {
		flag.Usage()
		os.Exit(2)
	}
	cfg.Width, cfg.Height = uint32(*width), uint32(*height)

	tessera.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: opts.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, cfg, opts); err != nil {
		tessera.Logger().Error("rasterize failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config, opts tessera.Options) error {
	enc, images := demoScene(float32(cfg.Width), float32(cfg.Height))
	img, err := tessera.NewRenderer(opts).Render(ctx, enc, images, cfg.Width, cfg.Height)
	if err != nil {
		return err
	}

	f, err := os.Create(cfg.Output)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	tessera.Logger().Info("wrote image", "path", cfg.Output, "width", cfg.Width, "height", cfg.Height)
	return nil
}

// demoScene draws a checkerboard-filled card, a clipped fan of curves and
// a stroked outline.
func demoScene(w, h float32) (*encoding.Encoding, gfx.Images) {
	checker := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := range 64 {
		for x := range 64 {
			i := checker.PixOffset(x, y)
			v := uint8(0x40)
			if (x/8+y/8)%2 == 0 {
				v = 0xC0
			}
			copy(checker.Pix[i:i+4], []uint8{v, v, v, 0xFF})
		}
	}

	var enc encoding.Encoding
	enc.Transform(jmath.Scale(w/512, h/512))

	var card curve.BezPath
	card.MoveTo(curve.Point{X: 32, Y: 32})
	card.LineTo(curve.Point{X: 480, Y: 32})
	card.LineTo(curve.Point{X: 480, Y: 480})
	card.LineTo(curve.Point{X: 32, Y: 480})
	enc.Path(card)
	enc.FillImage(0, 0, 0)

	var clip curve.BezPath
	clip.MoveTo(curve.Point{X: 256, Y: 64})
	clip.CubicTo(curve.Point{X: 480, Y: 64}, curve.Point{X: 480, Y: 448}, curve.Point{X: 256, Y: 448})
	clip.CubicTo(curve.Point{X: 32, Y: 448}, curve.Point{X: 32, Y: 64}, curve.Point{X: 256, Y: 64})
	enc.Path(clip)
	enc.BeginClip()
	for i := range 12 {
		a := float64(i) * math.Pi / 6
		var blade curve.BezPath
		blade.MoveTo(curve.Point{X: 256, Y: 256})
		blade.QuadTo(
			curve.Point{X: 256 + 300*math.Cos(a), Y: 256 + 300*math.Sin(a)},
			curve.Point{X: 256 + 300*math.Cos(a+0.4), Y: 256 + 300*math.Sin(a+0.4)},
		)
		enc.Path(blade)
		enc.FillColor(uint32(i*20)<<24 | uint32(255-i*20)<<8 | 0xC0)
	}
	enc.EndClip()

	enc.SetFillMode(encoding.FillModeStroke)
	enc.SetLineWidth(6)
	enc.Path(clip)
	enc.FillColor(0x202020FF)

	return &enc, gfx.NewImages(checker)
}
