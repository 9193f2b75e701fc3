// Package catalog is an HTTP client for the product search API.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"smartcart/internal/domain"
	"smartcart/internal/logger"
)

// Config configures the search API client.
type Config struct {
	BaseURL      string
	SearchPrefix string
	// FileField is the multipart field carrying the query image.
	FileField string
	Timeout   time.Duration
	// MaxRetries bounds retries of requests answered with 429 or 5xx.
	MaxRetries int
	// RequestsPerSecond enables client-side rate limiting when positive.
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
	Logger            *logger.Logger
}

// Client talks to the search API. It implements domain.Backend,
// domain.Assistant and domain.Catalog.
type Client struct {
	base       *url.URL
	prefix     string
	fileField  string
	client     *http.Client
	maxRetries int
	limiter    *rate.Limiter
	log        *logger.Logger

	mu        sync.Mutex
	imageBase string
	haveBase  bool
}

// NewClient creates a client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("catalog: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("catalog: invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("catalog: base URL must be http or https, got %q", cfg.BaseURL)
	}
	if cfg.SearchPrefix == "" {
		cfg.SearchPrefix = "/search"
	}
	if cfg.FileField == "" {
		cfg.FileField = "file"
	}
	hc := cfg.HTTPClient
	if hc == nil {
		t := cfg.Timeout
		if t == 0 {
			t = 30 * time.Second
		}
		hc = &http.Client{Timeout: t}
	}
	c := &Client{
		base:       base,
		prefix:     "/" + strings.Trim(cfg.SearchPrefix, "/"),
		fileField:  cfg.FileField,
		client:     hc,
		maxRetries: max(0, cfg.MaxRetries),
		log:        cfg.Logger.With("catalog"),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c, nil
}

// TextSearch returns the top k products for a free-text query.
func (c *Client) TextSearch(ctx context.Context, text string, k int) ([]domain.Product, error) {
	q := url.Values{}
	q.Set("query", text)
	q.Set("k", strconv.Itoa(k))
	endpoint := c.endpoint(c.prefix+"/text", q)
	var out []domain.Product
	err := c.do(ctx, "text search", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	}, decodeResults(&out))
	if err != nil {
		return nil, err
	}
	return c.resolveAll(out), nil
}

// ImageSearch returns the top k products visually similar to image.
func (c *Client) ImageSearch(ctx context.Context, image domain.Image, k int) ([]domain.Product, error) {
	q := url.Values{}
	q.Set("k", strconv.Itoa(k))
	endpoint := c.endpoint(c.prefix+"/image", q)
	form := multipartForm{fileField: c.fileField, image: image}
	var out []domain.Product
	err := c.do(ctx, "image search", form.request(endpoint), decodeResults(&out))
	if err != nil {
		return nil, err
	}
	return c.resolveAll(out), nil
}

// HybridSearch returns the top k products for a weighted text and image query.
// Text and weights travel both as form fields and as query parameters, since
// backends differ in where they read them from.
func (c *Client) HybridSearch(ctx context.Context, text string, image domain.Image, w domain.Weights, k int) ([]domain.Product, error) {
	fields := map[string]string{
		"text":    text,
		"w_image": formatWeight(w.Image),
		"w_text":  formatWeight(w.Text),
	}
	q := url.Values{}
	for name, v := range fields {
		q.Set(name, v)
	}
	q.Set("k", strconv.Itoa(k))
	endpoint := c.endpoint(c.prefix+"/hybrid", q)
	form := multipartForm{fileField: c.fileField, image: image, fields: fields}
	var out []domain.Product
	err := c.do(ctx, "hybrid search", form.request(endpoint), decodeResults(&out))
	if err != nil {
		return nil, err
	}
	return c.resolveAll(out), nil
}

// Ask sends a question about one product to the assistant endpoint.
func (c *Client) Ask(ctx context.Context, productID int64, question string) (string, error) {
	body, err := json.Marshal(struct {
		ProductID int64  `json:"product_id"`
		Question  string `json:"question"`
	}{productID, question})
	if err != nil {
		return "", err
	}
	endpoint := c.endpoint(c.prefix+"/ask-question", nil)
	var out struct {
		Answer string `json:"answer"`
		Error  string `json:"error"`
	}
	err = c.do(ctx, "ask question", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, decodeJSON(&out))
	if err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", &domain.AssistantError{Message: out.Error}
	}
	return out.Answer, nil
}

// PublicConfig holds the frontend-safe settings published by the backend.
type PublicConfig struct {
	ImageBaseURL string `json:"image_base_url"`
}

// PublicConfig fetches the backend's public configuration.
func (c *Client) PublicConfig(ctx context.Context) (PublicConfig, error) {
	endpoint := c.endpoint("/config", nil)
	var out PublicConfig
	err := c.do(ctx, "load config", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	}, decodeJSON(&out))
	return out, err
}

// Product fetches the full record of one product.
func (c *Client) Product(ctx context.Context, id int64) (domain.ProductDetails, error) {
	endpoint := c.endpoint("/products/"+strconv.FormatInt(id, 10), nil)
	var out struct {
		domain.ProductDetails
		Image string `json:"image"`
	}
	err := c.do(ctx, "get product", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	}, decodeJSON(&out))
	if err != nil {
		var te *domain.TransportError
		if errors.As(err, &te) && te.StatusCode == http.StatusNotFound {
			return domain.ProductDetails{}, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
		}
		return domain.ProductDetails{}, err
	}
	details := out.ProductDetails
	if details.ImageURL == "" && out.Image != "" {
		details.ImageURL = c.imageURL(ctx, out.Image)
	}
	return details, nil
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// imageURL joins a stored image name onto the published image base, falling
// back to the API base when the config endpoint is unavailable.
func (c *Client) imageURL(ctx context.Context, name string) string {
	if isAbsolute(name) {
		return name
	}
	c.mu.Lock()
	base, ok := c.imageBase, c.haveBase
	c.mu.Unlock()
	if !ok {
		if cfg, err := c.PublicConfig(ctx); err == nil {
			base = cfg.ImageBaseURL
			c.mu.Lock()
			c.imageBase, c.haveBase = base, true
			c.mu.Unlock()
		} else {
			c.log.Debugf("public config unavailable: %v", err)
		}
	}
	if base == "" {
		return c.resolve(name)
	}
	return c.resolve(base + name)
}

func (c *Client) resolveAll(products []domain.Product) []domain.Product {
	for i := range products {
		if products[i].ImageURL != "" {
			products[i].ImageURL = c.resolve(products[i].ImageURL)
		}
	}
	return products
}

// resolve turns a relative reference into an absolute URL on the API host.
func (c *Client) resolve(ref string) string {
	if isAbsolute(ref) {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	return c.base.ResolveReference(u).String()
}

func isAbsolute(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "data:")
}

func formatWeight(w float64) string { return strconv.FormatFloat(w, 'f', -1, 64) }

type decoder func(io.Reader) error

func decodeJSON(out any) decoder {
	return func(r io.Reader) error { return json.NewDecoder(r).Decode(out) }
}

// decodeResults accepts a bare array or an object wrapping it under "results".
func decodeResults(out *[]domain.Product) decoder {
	return func(r io.Reader) error {
		payload, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		payload = bytes.TrimSpace(payload)
		if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
			*out = nil
			return nil
		}
		if payload[0] == '[' {
			return json.Unmarshal(payload, out)
		}
		var wrapped struct {
			Results []domain.Product `json:"results"`
		}
		if err := json.Unmarshal(payload, &wrapped); err != nil {
			return err
		}
		*out = wrapped.Results
		return nil
	}
}
