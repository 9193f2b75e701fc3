// Package session implements the search session controller: it turns a text
// query and/or an image into one of the three backend request shapes, grows
// the result window on "load more", and keeps at most one request in flight
// per session.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"smartcart/internal/domain"
	"smartcart/internal/logger"
)

const (
	// DefaultInitialWindow is the number of results requested by a new search.
	DefaultInitialWindow = 8
	// DefaultWindowIncrement is added to the window on every expansion.
	DefaultWindowIncrement = 20
)

// Input is what the user submitted for a new search.
type Input struct {
	Text        string
	Image       *domain.Image
	ImageWeight float64
}

// Options tunes a Controller. Zero values fall back to the defaults.
type Options struct {
	InitialWindow   int
	WindowIncrement int
	Logger          *logger.Logger
}

// Controller owns the state of one search session.
//
// Renderer callbacks are serialized with state transitions, so a renderer may
// call Snapshot but must not call StartSearch or ExpandWindow synchronously.
type Controller struct {
	id        string
	backend   domain.Backend
	renderer  Renderer
	initial   int
	increment int
	log       *logger.Logger

	// renderMu orders renderer callbacks with the transitions that produced them.
	renderMu sync.Mutex

	mu         sync.Mutex
	query      *query
	generation uint64
}

// New creates a controller bound to a backend and a renderer.
func New(backend domain.Backend, renderer Renderer, opts Options) *Controller {
	if opts.InitialWindow <= 0 {
		opts.InitialWindow = DefaultInitialWindow
	}
	if opts.WindowIncrement <= 0 {
		opts.WindowIncrement = DefaultWindowIncrement
	}
	if renderer == nil {
		renderer = RendererFuncs{}
	}
	id := uuid.NewString()
	return &Controller{
		id:        id,
		backend:   backend,
		renderer:  renderer,
		initial:   opts.InitialWindow,
		increment: opts.WindowIncrement,
		log:       opts.Logger.With("session=" + id[:8]),
	}
}

// ID returns the session identifier.
func (c *Controller) ID() string { return c.id }

// StartSearch replaces the active query with a new one and fetches its first
// window. It blocks until the response has been rendered. Every failure is
// handed to the renderer and also returned.
func (c *Controller) StartSearch(ctx context.Context, in Input) error {
	q, err := newQuery(in, c.initial)
	if err != nil {
		c.log.Warnf("rejected search: %v", err)
		c.renderMu.Lock()
		c.renderer.Fail(err)
		c.renderMu.Unlock()
		return err
	}

	c.renderMu.Lock()
	c.mu.Lock()
	c.generation++
	q.generation = c.generation
	q.loading = true
	c.query = q
	k := q.windowSize
	c.mu.Unlock()
	c.renderer.Reset()
	c.renderMu.Unlock()

	c.log.Infof("search gen=%d modality=%s k=%d", q.generation, q.modality, k)
	return c.fetch(ctx, q, k, 0)
}

// ExpandWindow grows the window of the active query and re-fetches the full
// top-k list. It reports whether a request was dispatched: nothing happens
// while a request is in flight, after exhaustion, or without an active query.
func (c *Controller) ExpandWindow(ctx context.Context) (bool, error) {
	c.mu.Lock()
	q := c.query
	if q == nil || q.loading || q.exhausted {
		c.mu.Unlock()
		return false, nil
	}
	prev := q.windowSize
	q.windowSize += c.increment
	q.loading = true
	k := q.windowSize
	c.mu.Unlock()

	c.log.Infof("expand gen=%d k=%d->%d", q.generation, prev, k)
	return true, c.fetch(ctx, q, k, prev)
}

// End discards the active query. Responses still in flight are dropped.
func (c *Controller) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.query = nil
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{ID: c.id, Generation: c.generation}
	if q := c.query; q != nil {
		s.Active = true
		s.Generation = q.generation
		s.Text = q.text
		s.HasImage = !q.image.Empty()
		s.Modality = q.modality
		s.Weights = q.weights
		s.WindowSize = q.windowSize
		s.Loading = q.loading
		s.Exhausted = q.exhausted
	}
	return s
}

// fetch runs one request for q without holding any lock and applies the
// outcome only if q is still the active query. prev is the window size to
// restore on failure; zero means this is the first window.
func (c *Controller) fetch(ctx context.Context, q *query, k, prev int) error {
	results, err := c.dispatch(ctx, q, k)

	c.renderMu.Lock()
	defer c.renderMu.Unlock()

	c.mu.Lock()
	if c.query != q {
		c.mu.Unlock()
		c.log.Debugf("dropping response for superseded gen=%d", q.generation)
		return nil
	}
	q.loading = false
	if err != nil {
		if prev > 0 {
			q.windowSize = prev
		}
		c.mu.Unlock()
		c.log.Warnf("gen=%d k=%d: %v", q.generation, k, err)
		c.renderer.Fail(err)
		return err
	}
	if len(results) < k {
		q.exhausted = true
	}
	page := Page{
		Generation: q.generation,
		Modality:   q.modality,
		Results:    results,
		WindowSize: k,
		HasMore:    !q.exhausted,
		Expanded:   prev > 0,
	}
	c.mu.Unlock()

	c.log.Debugf("gen=%d k=%d got=%d more=%t", q.generation, k, len(results), page.HasMore)
	c.renderer.Render(page)
	return nil
}

func (c *Controller) dispatch(ctx context.Context, q *query, k int) ([]domain.Product, error) {
	switch q.modality {
	case domain.ModalityText:
		return c.backend.TextSearch(ctx, q.text, k)
	case domain.ModalityImage:
		return c.backend.ImageSearch(ctx, *q.image, k)
	default:
		return c.backend.HybridSearch(ctx, q.text, *q.image, q.weights, k)
	}
}

// query is the mutable state of one submitted search. Only windowSize,
// loading and exhausted change after creation.
type query struct {
	generation uint64
	text       string
	image      *domain.Image
	weights    domain.Weights
	modality   domain.Modality

	windowSize int
	loading    bool
	exhausted  bool
}

func newQuery(in Input, window int) (*query, error) {
	text := strings.TrimSpace(in.Text)
	hasImage := !in.Image.Empty()
	q := &query{text: text, windowSize: window}
	switch {
	case text == "" && !hasImage:
		return nil, domain.ErrInvalidQuery
	case !hasImage:
		q.modality = domain.ModalityText
		return q, nil
	}
	if !in.Image.Supported() {
		return nil, domain.ErrUnsupportedImage
	}
	img := *in.Image
	q.image = &img
	if text == "" {
		q.modality = domain.ModalityImage
		return q, nil
	}
	w, err := domain.NewWeights(in.ImageWeight)
	if err != nil {
		return nil, err
	}
	q.modality = domain.ModalityHybrid
	q.weights = w
	return q, nil
}
