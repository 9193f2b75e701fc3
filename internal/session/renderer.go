package session

import "smartcart/internal/domain"

// Renderer receives the outcome of every request issued by a Controller.
type Renderer interface {
	// Reset clears the displayed results ahead of a new search.
	Reset()
	// Render replaces the displayed results with the full list in page.
	Render(page Page)
	// Fail reports a rejected query or a failed request. Previously rendered
	// results stay valid.
	Fail(err error)
}

// RendererFuncs adapts plain functions to Renderer. Nil fields are skipped.
type RendererFuncs struct {
	ResetFunc  func()
	RenderFunc func(Page)
	FailFunc   func(error)
}

func (r RendererFuncs) Reset() {
	if r.ResetFunc != nil {
		r.ResetFunc()
	}
}

func (r RendererFuncs) Render(page Page) {
	if r.RenderFunc != nil {
		r.RenderFunc(page)
	}
}

func (r RendererFuncs) Fail(err error) {
	if r.FailFunc != nil {
		r.FailFunc(err)
	}
}

// Page is the full ordered result list for one window of a query.
type Page struct {
	Generation uint64
	Modality   domain.Modality
	Results    []domain.Product
	WindowSize int
	// HasMore is false once the backend returned fewer results than requested.
	HasMore bool
	// Expanded is true when the page answers a "load more" request.
	Expanded bool
}

// Empty reports a successful search with no matches.
func (p Page) Empty() bool { return len(p.Results) == 0 }

// Snapshot is a point-in-time copy of a session's state.
type Snapshot struct {
	ID         string
	Generation uint64
	Active     bool
	Text       string
	HasImage   bool
	Modality   domain.Modality
	Weights    domain.Weights
	WindowSize int
	Loading    bool
	Exhausted  bool
}

// CanExpand reports whether ExpandWindow would dispatch a request.
func (s Snapshot) CanExpand() bool { return s.Active && !s.Loading && !s.Exhausted }
