package domain

import "context"

// Backend runs top-k searches against the product catalog.
type Backend interface {
	TextSearch(ctx context.Context, text string, k int) ([]Product, error)
	ImageSearch(ctx context.Context, image Image, k int) ([]Product, error)
	HybridSearch(ctx context.Context, text string, image Image, w Weights, k int) ([]Product, error)
}

// Assistant answers free-text questions about a single product.
type Assistant interface {
	Ask(ctx context.Context, productID int64, question string) (string, error)
}

// Catalog looks up full product records.
type Catalog interface {
	Product(ctx context.Context, id int64) (ProductDetails, error)
}
