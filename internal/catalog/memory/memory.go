// Package memory is an offline search backend over a local product catalog.
// It serves the same ports as the HTTP client so the UI can run without the
// search API.
package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"smartcart/internal/chunker"
	"smartcart/internal/domain"
	"smartcart/internal/embedding"
	"smartcart/internal/embedding/histogram"
	"smartcart/internal/embedding/tfidf"
	"smartcart/internal/logger"
	"smartcart/internal/summarizer"
	vsmemory "smartcart/internal/vectorstore/memory"
)

// Entry is one catalog record. Image names a local file used for visual
// similarity, resolved against the catalog's image directory.
type Entry struct {
	domain.ProductDetails `yaml:",inline"`
	Image                 string `yaml:"image,omitempty"`
}

// File is the on-disk catalog layout. JSON files decode too.
type File struct {
	ImageDir string  `yaml:"image_dir,omitempty"`
	Products []Entry `yaml:"products"`
}

// Options configures the backend.
type Options struct {
	Logger *logger.Logger
	// Bins per color channel for image histograms.
	Bins int
}

// Backend implements domain.Backend, domain.Assistant and domain.Catalog
// over an immutable set of products.
type Backend struct {
	log      *logger.Logger
	products []domain.ProductDetails
	byID     map[int64]int

	text     embedding.TextEmbedder
	textIdx  *vsmemory.Index
	images   embedding.ImageEmbedder
	imageIdx *vsmemory.Index
	passages *chunker.SentenceChunker
}

// Load reads a catalog file and indexes it.
func Load(path string, opts Options) (*Backend, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	dir := f.ImageDir
	if dir == "" {
		dir = "."
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(filepath.Dir(path), dir)
	}
	return New(f.Products, dir, opts)
}

// New indexes entries. Images are read from imageDir; entries whose image is
// missing or unreadable are left out of image search only.
func New(entries []Entry, imageDir string, opts Options) (*Backend, error) {
	if len(entries) == 0 {
		return nil, errors.New("memory: catalog has no products")
	}
	b := &Backend{
		log:      opts.Logger.With("memory"),
		byID:     make(map[int64]int, len(entries)),
		text:     tfidf.New(),
		images:   histogram.New(opts.Bins),
		passages: chunker.NewSentenceChunker(2, 1),
	}
	corpus := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, dup := b.byID[e.ID]; dup {
			return nil, fmt.Errorf("memory: duplicate product id %d", e.ID)
		}
		b.byID[e.ID] = len(b.products)
		b.products = append(b.products, e.ProductDetails)
		corpus = append(corpus, searchText(e.ProductDetails))
	}

	if err := b.text.Fit(corpus); err != nil {
		return nil, err
	}
	idx, err := vsmemory.NewIndex(b.text.Dimension())
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(b.products))
	vecs := make([][]float64, len(b.products))
	for i, p := range b.products {
		ids[i] = p.ID
		vecs[i] = b.text.Embed(corpus[i])
	}
	if err := idx.Upsert(ids, vecs); err != nil {
		return nil, err
	}
	b.textIdx = idx

	b.imageIdx, err = vsmemory.NewIndex(b.images.Dimension())
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Image == "" {
			continue
		}
		path := e.Image
		if !filepath.IsAbs(path) {
			path = filepath.Join(imageDir, path)
		}
		data, err := os.ReadFile(path)
		if err == nil {
			var vec []float64
			if vec, err = b.images.Embed(data); err == nil {
				err = b.imageIdx.Upsert([]int64{e.ID}, [][]float64{vec})
			}
		}
		if err != nil {
			b.log.Warnf("product %d: image skipped: %v", e.ID, err)
		}
	}
	b.log.Infof("indexed %d products (%d with images)", len(b.products), b.imageIdx.Len())
	return b, nil
}

// TextSearch ranks products by TF-IDF cosine similarity to text.
func (b *Backend) TextSearch(ctx context.Context, text string, k int) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.results(b.textIdx.Search(b.text.Embed(text), b.textIdx.Len()), k), nil
}

// ImageSearch ranks products by color histogram similarity to image.
func (b *Backend) ImageSearch(ctx context.Context, image domain.Image, k int) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec, err := b.images.Embed(image.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedImage, err)
	}
	return b.results(b.imageIdx.Search(vec, b.imageIdx.Len()), k), nil
}

// HybridSearch fuses text and image similarity. Weights are normalized to
// sum to one before fusing.
func (b *Backend) HybridSearch(ctx context.Context, text string, image domain.Image, w domain.Weights, k int) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sum := w.Sum()
	if sum <= 0 {
		return nil, domain.ErrInvalidWeight
	}
	wi, wt := w.Image/sum, w.Text/sum

	vec, err := b.images.Embed(image.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedImage, err)
	}
	imageScores := b.imageIdx.Scores(vec)
	textScores := b.textIdx.Scores(b.text.Embed(text))

	hits := make([]vsmemory.Hit, 0, len(b.products))
	for _, p := range b.products {
		hits = append(hits, vsmemory.Hit{ID: p.ID, Score: wi*imageScores[p.ID] + wt*textScores[p.ID]})
	}
	return b.results(vsmemory.TopK(hits, len(hits)), k), nil
}

// Ask answers with the passage of the product's text that best overlaps the
// question.
func (b *Backend) Ask(ctx context.Context, productID int64, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	i, ok := b.byID[productID]
	if !ok {
		return "", &domain.AssistantError{Message: "Product not found"}
	}
	best, bestScore := "", 0.0
	for _, passage := range b.passages.Chunk(b.products[i].Context()) {
		if score := summarizer.Overlap(question, passage); score > bestScore {
			best, bestScore = passage, score
		}
	}
	if best == "" {
		return "", &domain.AssistantError{Message: "The product details do not answer that question."}
	}
	return best, nil
}

// Product returns the full record of one product.
func (b *Backend) Product(ctx context.Context, id int64) (domain.ProductDetails, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProductDetails{}, err
	}
	i, ok := b.byID[id]
	if !ok {
		return domain.ProductDetails{}, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	return b.products[i], nil
}

// results keeps positive scores, truncates to k and reports distance as
// 1-similarity.
func (b *Backend) results(hits []vsmemory.Hit, k int) []domain.Product {
	out := make([]domain.Product, 0, min(k, len(hits)))
	for _, h := range hits {
		if len(out) == k {
			break
		}
		if h.Score <= 1e-9 {
			continue
		}
		p := b.products[b.byID[h.ID]].Product
		p.Distance = 1 - h.Score
		out = append(out, p)
	}
	return out
}

func searchText(d domain.ProductDetails) string {
	return d.Context() + "\n" + d.MainCategory + "\n" + d.Categories
}
