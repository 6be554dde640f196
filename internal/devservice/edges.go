// Package devservice is a local stand-in for the edge-detection endpoint.
//
// It speaks the same contract as the deployed service (multipart field
// "image" in, grayscale JPEG out) so the client can be developed offline.
// The edge map is assembled from bild filters.
package devservice

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
)

// Options tunes the edge map.
type Options struct {
	// BlurRadius is the gaussian blur radius applied before the gradient.
	BlurRadius float64

	// HighRatio is the strong-edge threshold as a fraction of the largest
	// gradient. LowRatio is the weak-edge threshold as a fraction of the
	// strong one.
	HighRatio float64
	LowRatio  float64

	// WeakValue and StrongValue are the output intensities of weak and
	// strong edge pixels. Everything else is black.
	WeakValue   uint8
	StrongValue uint8
}

// DefaultOptions returns the weak/strong levels 80/200 with 0.05/0.2 thresholds.
func DefaultOptions() Options {
	return Options{
		BlurRadius:  1.0,
		HighRatio:   0.2,
		LowRatio:    0.05,
		WeakValue:   80,
		StrongValue: 200,
	}
}

// EdgeMap returns a grayscale edge image of img.
func EdgeMap(img image.Image, opts Options) *image.Gray {
	gray := effect.Grayscale(img)
	var src image.Image = gray
	if opts.BlurRadius > 0 {
		src = blur.Gaussian(gray, opts.BlurRadius)
	}
	gradient := effect.Grayscale(effect.Sobel(src))

	var peak uint8
	for _, p := range gradient.Pix {
		if p > peak {
			peak = p
		}
	}

	bounds := gradient.Bounds()
	out := image.NewGray(bounds)
	if peak == 0 {
		return out
	}

	high := levelAt(float64(peak) * opts.HighRatio)
	low := levelAt(float64(high) * opts.LowRatio)
	strong := segment.Threshold(gradient, high)
	weak := segment.Threshold(gradient, low)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			switch {
			case strong.GrayAt(x, y).Y > 0:
				out.SetGray(x, y, color.Gray{Y: opts.StrongValue})
			case weak.GrayAt(x, y).Y > 0:
				out.SetGray(x, y, color.Gray{Y: opts.WeakValue})
			}
		}
	}
	return out
}

// levelAt converts a threshold to a level, never below 1 so flat regions
// stay black.
func levelAt(v float64) uint8 {
	switch {
	case v < 1:
		return 1
	case v > 255:
		return 255
	}
	return uint8(v)
}
