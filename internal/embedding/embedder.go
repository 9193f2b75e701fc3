// Package embedding turns product text and images into dense vectors
// for the offline catalog.
package embedding

// TextEmbedder converts free text into a numeric vector representation.
// Implementations learn their vocabulary from the catalog in Fit.
type TextEmbedder interface {
	Fit(corpus []string) error
	Dimension() int
	Embed(text string) []float64
}

// ImageEmbedder converts encoded image bytes into a numeric vector.
type ImageEmbedder interface {
	Dimension() int
	Embed(data []byte) ([]float64, error)
}
