// Package histogram embeds images as normalized RGB color histograms.
package histogram

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for the formats the catalog accepts
	_ "image/png"
	"math"
)

// DefaultBins is the number of buckets per color channel.
const DefaultBins = 4

// Embedder computes a bins^3 RGB histogram. Large images are sampled on a
// grid of at most maxSamples pixels per axis.
type Embedder struct {
	bins       int
	maxSamples int
}

// New creates an embedder with the given bins per channel.
func New(bins int) *Embedder {
	if bins <= 0 {
		bins = DefaultBins
	}
	if bins > 16 {
		bins = 16
	}
	return &Embedder{bins: bins, maxSamples: 128}
}

// Dimension returns the length of produced vectors.
func (e *Embedder) Dimension() int { return e.bins * e.bins * e.bins }

// Embed decodes a JPEG or PNG image and returns its L2-normalized histogram.
func (e *Embedder) Embed(data []byte) ([]float64, error) {
	if len(data) == 0 {
		return nil, errors.New("histogram: empty image")
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("histogram: decode image: %w", err)
	}
	if format != "jpeg" && format != "png" {
		return nil, fmt.Errorf("histogram: unsupported image format %q", format)
	}
	return e.EmbedImage(img)
}

// EmbedImage returns the histogram of an already decoded image.
func (e *Embedder) EmbedImage(img image.Image) ([]float64, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, errors.New("histogram: image has no pixels")
	}
	stepX := max(1, b.Dx()/e.maxSamples)
	stepY := max(1, b.Dy()/e.maxSamples)

	vec := make([]float64, e.Dimension())
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			r, g, bl, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			vec[e.bucket(r)*e.bins*e.bins+e.bucket(g)*e.bins+e.bucket(bl)]++
		}
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

// bucket maps a 16-bit channel value to its bin.
func (e *Embedder) bucket(c uint32) int {
	i := int(c) * e.bins / 0x10000
	if i >= e.bins {
		i = e.bins - 1
	}
	return i
}
