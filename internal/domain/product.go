package domain

import (
	"math"
	"net/http"
	"strings"
)

// Product is a single catalog record as returned by the search endpoints.
type Product struct {
	ID          int64    `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Price       *float64 `json:"price,omitempty" yaml:"price,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	ImageURL    string   `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	ProductURL  string   `json:"product_url,omitempty" yaml:"product_url,omitempty"`
	Distance    float64  `json:"distance,omitempty" yaml:"-"`
}

// ProductDetails carries the extended metadata served by the product endpoint.
type ProductDetails struct {
	Product      `yaml:",inline"`
	MainCategory string `json:"main_category,omitempty" yaml:"main_category,omitempty"`
	Categories   string `json:"categories,omitempty" yaml:"categories,omitempty"`
	Features     string `json:"features,omitempty" yaml:"features,omitempty"`
	Details      string `json:"details,omitempty" yaml:"details,omitempty"`
	Status       string `json:"status,omitempty" yaml:"status,omitempty"`
}

// Context joins the textual fields of a product, used for answering questions about it.
func (d ProductDetails) Context() string {
	parts := []string{d.Title, d.Description, d.Features, d.Details}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}

// Image is one uploaded query image.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// NewImage wraps raw bytes, sniffing the content type from the payload.
func NewImage(name string, data []byte) *Image {
	return &Image{Name: name, ContentType: http.DetectContentType(data), Data: data}
}

// Empty reports whether the image carries no payload.
func (i *Image) Empty() bool { return i == nil || len(i.Data) == 0 }

// Supported reports whether the backend accepts this image type.
func (i *Image) Supported() bool {
	if i.Empty() {
		return false
	}
	switch strings.ToLower(i.ContentType) {
	case "image/jpeg", "image/jpg", "image/png":
		return true
	}
	return false
}

// Weights splits relevance between the image and text modalities of a hybrid query.
type Weights struct {
	Image float64
	Text  float64
}

// NewWeights returns weights with the text share derived as 1-image.
// The text share is rounded to six places so that the wire value stays readable.
func NewWeights(image float64) (Weights, error) {
	if math.IsNaN(image) || image < 0 || image > 1 {
		return Weights{}, ErrInvalidWeight
	}
	text := math.Round((1-image)*1e6) / 1e6
	return Weights{Image: image, Text: text}, nil
}

// Sum returns the total of both shares.
func (w Weights) Sum() float64 { return w.Image + w.Text }

// Modality names the request shape chosen for a query.
type Modality string

const (
	ModalityText   Modality = "text"
	ModalityImage  Modality = "image"
	ModalityHybrid Modality = "hybrid"
)
