package domain

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWeights(t *testing.T) {
	w, err := NewWeights(0.7)
	require.NoError(t, err)
	assert.Equal(t, 0.7, w.Image)
	assert.Equal(t, 0.3, w.Text)
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)

	for _, bad := range []float64{-0.1, 1.01, math.NaN()} {
		_, err := NewWeights(bad)
		assert.ErrorIs(t, err, ErrInvalidWeight)
		assert.ErrorIs(t, err, ErrInvalidQuery)
	}
}

func TestNewWeights_Bounds(t *testing.T) {
	w, err := NewWeights(0)
	require.NoError(t, err)
	assert.Equal(t, Weights{Image: 0, Text: 1}, w)

	w, err = NewWeights(1)
	require.NoError(t, err)
	assert.Equal(t, Weights{Image: 1, Text: 0}, w)
}

func TestImageSupported(t *testing.T) {
	png := NewImage("a.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	jpg := NewImage("a.jpg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F', 0})
	gif := NewImage("a.gif", []byte("GIF89a\x01\x00"))

	assert.Equal(t, "image/png", png.ContentType)
	assert.True(t, png.Supported())
	assert.True(t, jpg.Supported())
	assert.False(t, gif.Supported())

	var none *Image
	assert.True(t, none.Empty())
	assert.False(t, none.Supported())
	assert.True(t, NewImage("empty.png", nil).Empty())
}

func TestTransportError(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		err  *TransportError
		want string
	}{
		{&TransportError{Op: "text search", StatusCode: 400, Detail: "Query cannot be empty"}, "text search failed: status 400: Query cannot be empty"},
		{&TransportError{Op: "text search", StatusCode: 200, Err: errors.New("decode response: EOF")}, "text search failed: status 200: decode response: EOF"},
		{&TransportError{Op: "image search", StatusCode: 502}, "image search failed: status 502"},
		{&TransportError{Op: "ask", Err: cause}, "ask failed: connection refused"},
		{&TransportError{Op: "ask"}, "ask failed"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}

	wrapped := fmt.Errorf("load more: %w", &TransportError{Op: "text search", Err: cause})
	assert.ErrorIs(t, wrapped, ErrTransport)
	assert.ErrorIs(t, wrapped, cause)
	var te *TransportError
	require.ErrorAs(t, wrapped, &te)
	assert.Equal(t, "text search", te.Op)
}

func TestAssistantError(t *testing.T) {
	err := error(&AssistantError{Message: "Product not found"})

	assert.Equal(t, "assistant: Product not found", err.Error())
	assert.NotErrorIs(t, err, ErrTransport)
}

func TestProductDetailsContext(t *testing.T) {
	d := ProductDetails{
		Product:  Product{Title: "Boots", Description: "  Waterproof. "},
		Features: "Leather",
	}

	assert.Equal(t, "Boots\nWaterproof.\nLeather", d.Context())
}
